// Package asset stores downloaded ROMs without ever overwriting an existing file.
package asset

import (
	"context"
	"errors"
	"fmt"
	"html"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

// ErrDirectoryMissing is returned when the destination is absent or not a directory.
var ErrDirectoryMissing = errors.New("destination directory does not exist")

// Getter fetches a binary payload.
type Getter interface {
	Get(ctx context.Context, url string) ([]byte, error)
}

// Outcome describes what Store did with an asset.
type Outcome string

const (
	OutcomeStored           Outcome = "stored"
	OutcomeSkipped          Outcome = "skipped"
	OutcomeDirectoryMissing Outcome = "directory_missing"
)

// Result is returned by Store.
type Result struct {
	Outcome  Outcome
	FileName string
	Path     string
	Bytes    int
}

// Fetcher downloads assets into a local directory.
type Fetcher struct {
	Getter Getter
}

// NewFetcher creates a fetcher using getter for downloads.
func NewFetcher(getter Getter) *Fetcher {
	return &Fetcher{Getter: getter}
}

// FileName derives the local file name from the last path segment of url.
// HTML entities are decoded; percent escapes are kept as is.
func FileName(url string) string {
	return html.UnescapeString(url[strings.LastIndex(url, "/")+1:])
}

// Store downloads url into dir unless a file with the same name already exists.
// An existing file is never overwritten or compared. The payload is written
// without length or checksum validation.
func (f *Fetcher) Store(ctx context.Context, url, dir string) (Result, error) {
	if err := CheckDir(dir); err != nil {
		return Result{Outcome: OutcomeDirectoryMissing}, err
	}

	data, err := f.Getter.Get(ctx, url)
	if err != nil {
		return Result{}, fmt.Errorf("failed to download asset: %w", err)
	}

	name := FileName(url)
	if name == "" || name == "." || name == ".." || strings.ContainsRune(name, os.PathSeparator) {
		return Result{}, fmt.Errorf("invalid file name %q derived from %s", name, url)
	}

	result := Result{
		FileName: name,
		Path:     filepath.Join(dir, name),
		Bytes:    len(data),
	}

	if _, err := os.Lstat(result.Path); err == nil {
		result.Outcome = OutcomeSkipped
		return result, nil
	}

	created, err := writeNew(result.Path, data)
	if err != nil {
		return Result{}, err
	}
	if !created {
		result.Outcome = OutcomeSkipped
		return result, nil
	}

	result.Outcome = OutcomeStored
	return result, nil
}

// writeNew creates path exclusively and writes data to it. It reports false
// without error when another writer created the file first.
func writeNew(path string, data []byte) (created bool, err error) {
	file, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
	if err != nil {
		if errors.Is(err, fs.ErrExist) {
			return false, nil
		}
		return false, fmt.Errorf("failed to create file: %w", err)
	}
	defer func() {
		if cerr := file.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("failed to close file: %w", cerr)
		}
	}()

	if _, err := file.Write(data); err != nil {
		slog.Warn("Partial asset left on disk", "path", path, "error", err)
		return true, fmt.Errorf("failed to write file: %w", err)
	}
	return true, nil
}

// CheckDir returns ErrDirectoryMissing unless dir exists and is a directory.
func CheckDir(dir string) error {
	if !isDir(dir) {
		return fmt.Errorf("%w: %s", ErrDirectoryMissing, dir)
	}
	return nil
}

func isDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}
