// Package report writes run outcomes as YAML and mapper counts as parquet.
package report

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/parquet-go/parquet-go"
	"gopkg.in/yaml.v3"

	"github.com/nesemu/nesfetch/internal/mapper"
	"github.com/nesemu/nesfetch/internal/pipeline"
)

// DownloadRun is the YAML form of a pipeline report.
type DownloadRun struct {
	RunID      string          `yaml:"run_id"`
	CatalogURL string          `yaml:"catalog_url"`
	StartedAt  string          `yaml:"started_at"`
	FinishedAt string          `yaml:"finished_at"`
	Totals     map[string]int  `yaml:"totals"`
	Entries    []DownloadEntry `yaml:"entries"`
}

// DownloadEntry is the YAML form of one outcome.
type DownloadEntry struct {
	Name       string `yaml:"name"`
	Reference  string `yaml:"reference"`
	Status     string `yaml:"status"`
	URL        string `yaml:"url,omitempty"`
	Path       string `yaml:"path,omitempty"`
	Candidates int    `yaml:"candidates"`
	Error      string `yaml:"error,omitempty"`
}

// MapperRun is the YAML form of a mapper summary.
type MapperRun struct {
	RunID      string          `yaml:"run_id"`
	Origin     string          `yaml:"origin"`
	Total      int             `yaml:"total"`
	HeadLabel  string          `yaml:"head_label"`
	HeadTotal  int             `yaml:"head_total"`
	Percentage *float64        `yaml:"percentage"`
	Counts     []mapper.Record `yaml:"counts"`
}

// FromPipeline converts a pipeline report.
func FromPipeline(r *pipeline.Report) DownloadRun {
	run := DownloadRun{
		RunID:      r.RunID,
		CatalogURL: r.CatalogURL,
		StartedAt:  r.StartedAt.Format(time.RFC3339),
		FinishedAt: r.FinishedAt.Format(time.RFC3339),
		Totals:     make(map[string]int),
		Entries:    make([]DownloadEntry, 0, len(r.Outcomes)),
	}

	for _, o := range r.Outcomes {
		entry := DownloadEntry{
			Name:       o.Entry.DisplayName,
			Reference:  o.Entry.Reference,
			Status:     string(o.Status),
			URL:        o.URL,
			Path:       o.Path,
			Candidates: o.Candidates,
		}
		if o.Err != nil {
			entry.Error = o.Err.Error()
		}
		run.Totals[entry.Status]++
		run.Entries = append(run.Entries, entry)
	}
	return run
}

// FromSummary converts a mapper summary. Percentage is nil when the total is zero.
func FromSummary(s *mapper.Summary) MapperRun {
	run := MapperRun{
		RunID:     s.RunID,
		Origin:    s.Origin,
		Total:     s.Total(),
		HeadLabel: s.HeadLabel(),
		HeadTotal: s.HeadTotal(),
		Counts:    s.Records(),
	}
	if pct, err := s.Percentage(); err == nil {
		run.Percentage = &pct
	}
	return run
}

// SaveYAML marshals v into path, creating parent directories.
func SaveYAML(path string, v any) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create report directory: %w", err)
		}
	}

	data, err := yaml.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal YAML: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write YAML file: %w", err)
	}
	return nil
}

// SaveParquet writes one row per mapper id to path.
func SaveParquet(path string, s *mapper.Summary) error {
	if err := parquet.WriteFile(path, s.Records()); err != nil {
		return fmt.Errorf("failed to write parquet: %w", err)
	}
	return nil
}
