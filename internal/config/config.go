// Package config loads nesfetch settings from YAML and the environment.
package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/nesemu/nesfetch/internal/catalog"
	"github.com/nesemu/nesfetch/internal/mapper"
	"github.com/nesemu/nesfetch/internal/session"
)

// DefaultDestination is where ROMs are stored unless configured otherwise.
const DefaultDestination = "~/Downloads/nes_roms/"

// Config captures everything the download and mapper commands need.
type Config struct {
	Download DownloadConfig `yaml:"download"`
	Mappers  MappersConfig  `yaml:"mappers"`
	HTTP     HTTPConfig     `yaml:"http"`
}

// DownloadConfig controls the catalog download pipeline.
type DownloadConfig struct {
	Origin      string `yaml:"origin"`
	CatalogPath string `yaml:"catalog_path"`
	Destination string `yaml:"destination"`
	Concurrency int    `yaml:"concurrency"`
}

// MappersConfig controls the mapper counting run.
type MappersConfig struct {
	Origin      string `yaml:"origin"`
	IDs         int    `yaml:"ids"`
	Head        int    `yaml:"head"`
	Concurrency int    `yaml:"concurrency"`
}

// HTTPConfig controls the shared transport session.
type HTTPConfig struct {
	UserAgent       string   `yaml:"user_agent"`
	RequestTimeout  Duration `yaml:"request_timeout"`
	MaxConnsPerHost int      `yaml:"max_conns_per_host"`
	MaxBodyBytes    int64    `yaml:"max_body_bytes"`
}

// Default returns a Config matching the sites' public layout with no concurrency cap.
func Default() Config {
	return Config{
		Download: DownloadConfig{
			Origin:      catalog.DefaultOrigin,
			CatalogPath: catalog.DefaultCatalogPath,
			Destination: DefaultDestination,
		},
		Mappers: MappersConfig{
			Origin: mapper.DefaultOrigin,
			IDs:    mapper.DefaultIDs,
			Head:   mapper.DefaultHead,
		},
		HTTP: HTTPConfig{
			UserAgent: session.DefaultUserAgent,
		},
	}
}

// Load reads a YAML config from path on top of Default, then applies
// environment overrides. An empty path skips the file.
func Load(path string) (*Config, error) {
	if strings.TrimSpace(path) == "" {
		cfg := Default()
		if err := cfg.ApplyEnv(); err != nil {
			return nil, err
		}
		return &cfg, cfg.Validate()
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open config: %w", err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFromReader decodes YAML from r on top of Default and applies environment overrides.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := Default()
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.ApplyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// ApplyEnv overrides fields from NESFETCH_* environment variables.
// A value that cannot be parsed is an error.
func (c *Config) ApplyEnv() error {
	if v := os.Getenv("NESFETCH_DEST"); v != "" {
		c.Download.Destination = v
	}
	if v := os.Getenv("NESFETCH_ORIGIN"); v != "" {
		c.Download.Origin = v
	}
	if v := os.Getenv("NESFETCH_DOCS_ORIGIN"); v != "" {
		c.Mappers.Origin = v
	}
	if v := os.Getenv("NESFETCH_CONCURRENCY"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("NESFETCH_CONCURRENCY must be an integer, got %q", v)
		}
		c.Download.Concurrency = n
		c.Mappers.Concurrency = n
	}
	if v := os.Getenv("NESFETCH_USER_AGENT"); v != "" {
		c.HTTP.UserAgent = v
	}
	return nil
}

// Validate rejects configurations that cannot run.
func (c Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.Download.Origin) == "" {
		errs = append(errs, errors.New("download.origin must not be empty"))
	}
	if strings.TrimSpace(c.Mappers.Origin) == "" {
		errs = append(errs, errors.New("mappers.origin must not be empty"))
	}
	if c.Download.Concurrency < 0 {
		errs = append(errs, errors.New("download.concurrency must be >= 0"))
	}
	if c.Mappers.Concurrency < 0 {
		errs = append(errs, errors.New("mappers.concurrency must be >= 0"))
	}
	if c.Mappers.IDs < 1 {
		errs = append(errs, errors.New("mappers.ids must be >= 1"))
	}
	if c.Mappers.Head < 1 {
		errs = append(errs, errors.New("mappers.head must be >= 1"))
	}
	if c.HTTP.MaxBodyBytes < 0 {
		errs = append(errs, errors.New("http.max_body_bytes must be >= 0"))
	}
	if c.HTTP.RequestTimeout.Duration < 0 {
		errs = append(errs, errors.New("http.request_timeout must be >= 0"))
	}
	return errors.Join(errs...)
}

// Session returns the transport options described by the HTTP section.
func (c Config) Session() session.Options {
	return session.Options{
		UserAgent:       c.HTTP.UserAgent,
		Timeout:         c.HTTP.RequestTimeout.Duration,
		MaxConnsPerHost: c.HTTP.MaxConnsPerHost,
		MaxBodyBytes:    c.HTTP.MaxBodyBytes,
	}
}

// ExpandHome replaces a leading ~ or ~/ with the user's home directory.
// Other users' homes (~name) are left as is.
func ExpandHome(path string) string {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, path[1:])
}
