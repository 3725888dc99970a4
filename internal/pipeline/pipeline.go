// Package pipeline runs the catalog download: list, resolve, then store every game concurrently.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/nesemu/nesfetch/internal/asset"
	"github.com/nesemu/nesfetch/internal/catalog"
	"github.com/nesemu/nesfetch/internal/session"
)

// Status is the final state of one catalog entry.
type Status string

const (
	StatusDropped          Status = "dropped"
	StatusStored           Status = "stored"
	StatusSkipped          Status = "skipped"
	StatusDirectoryMissing Status = "directory_missing"
	StatusFailed           Status = "failed"
)

// Outcome records what happened to a single entry.
type Outcome struct {
	Entry      catalog.Entry
	Status     Status
	URL        string
	Path       string
	Candidates int
	Err        error
}

// Report collects every outcome of one run. Outcomes follow catalog order.
type Report struct {
	RunID      string
	CatalogURL string
	StartedAt  time.Time
	FinishedAt time.Time
	Outcomes   []Outcome
}

// Count returns how many outcomes have status s.
func (r *Report) Count(s Status) int {
	n := 0
	for _, o := range r.Outcomes {
		if o.Status == s {
			n++
		}
	}
	return n
}

// Options configures a pipeline run.
type Options struct {
	Origin      string
	CatalogPath string
	Destination string
	// Concurrency caps in-flight entry tasks. Zero or less means no cap.
	Concurrency int
	HTTP        session.Options
	Logger      *slog.Logger
}

// Pipeline downloads every game listed on the catalog page.
type Pipeline struct {
	opts Options
}

// New creates a pipeline, filling in default origin and catalog path.
func New(opts Options) *Pipeline {
	if opts.Origin == "" {
		opts.Origin = catalog.DefaultOrigin
	}
	if opts.CatalogPath == "" {
		opts.CatalogPath = catalog.DefaultCatalogPath
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Pipeline{opts: opts}
}

// CatalogURL returns the absolute URL of the catalog page.
func (p *Pipeline) CatalogURL() string {
	return strings.TrimRight(p.opts.Origin, "/") + p.opts.CatalogPath
}

// Run fetches the catalog and processes every entry concurrently over one
// shared session. It waits for all entries to settle. The returned error is
// the first entry failure, if any; a failing entry never cancels the others.
func (p *Pipeline) Run(ctx context.Context) (*Report, error) {
	report := &Report{
		RunID:      uuid.NewString(),
		CatalogURL: p.CatalogURL(),
		StartedAt:  time.Now(),
	}
	logger := p.opts.Logger.With("run_id", report.RunID)

	s := session.New(p.opts.HTTP)
	defer s.Close()

	page, err := s.GetPage(ctx, report.CatalogURL)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch catalog: %w", err)
	}

	entries := catalog.Entries(page)
	logger.Info("Catalog parsed", "url", report.CatalogURL, "entries", len(entries))

	resolver := catalog.NewResolver(s, p.opts.Origin)
	fetcher := asset.NewFetcher(s)

	report.Outcomes = make([]Outcome, len(entries))

	var g errgroup.Group
	if p.opts.Concurrency > 0 {
		g.SetLimit(p.opts.Concurrency)
	}

	for i, entry := range entries {
		logger.Info("Find entry, try to download", "name", entry.DisplayName, "reference", entry.Reference)
		g.Go(func() error {
			out := p.process(ctx, resolver, fetcher, entry)
			report.Outcomes[i] = out
			logOutcome(logger, out)
			if out.Status == StatusFailed {
				return fmt.Errorf("%s: %w", entry.DisplayName, out.Err)
			}
			return nil
		})
	}

	err = g.Wait()
	report.FinishedAt = time.Now()

	logger.Info("Run complete",
		"entries", len(entries),
		"stored", report.Count(StatusStored),
		"skipped", report.Count(StatusSkipped),
		"dropped", report.Count(StatusDropped),
		"failed", report.Count(StatusFailed),
		"duration", report.FinishedAt.Sub(report.StartedAt))

	return report, err
}

func (p *Pipeline) process(ctx context.Context, resolver *catalog.Resolver, fetcher *asset.Fetcher, entry catalog.Entry) Outcome {
	out := Outcome{Entry: entry}

	// No detail fetch is spent on an entry that has nowhere to go.
	if err := asset.CheckDir(p.opts.Destination); err != nil {
		out.Status = StatusDirectoryMissing
		out.Err = err
		return out
	}

	res, err := resolver.Resolve(ctx, entry.Reference)
	if err != nil {
		out.Status = StatusFailed
		out.Err = err
		return out
	}
	out.Candidates = res.Candidates
	if !res.Resolved() {
		out.Status = StatusDropped
		return out
	}
	out.URL = res.URL

	stored, err := fetcher.Store(ctx, res.URL, p.opts.Destination)
	out.Path = stored.Path
	switch {
	case errors.Is(err, asset.ErrDirectoryMissing):
		out.Status = StatusDirectoryMissing
		out.Err = err
	case err != nil:
		out.Status = StatusFailed
		out.Err = err
	case stored.Outcome == asset.OutcomeSkipped:
		out.Status = StatusSkipped
	default:
		out.Status = StatusStored
	}
	return out
}

func logOutcome(logger *slog.Logger, out Outcome) {
	attrs := []any{"name", out.Entry.DisplayName}
	switch out.Status {
	case StatusStored:
		logger.Info("Download success", append(attrs, "path", out.Path)...)
	case StatusSkipped:
		logger.Info("File exists, skipping", append(attrs, "path", out.Path)...)
	case StatusDropped:
		logger.Info("No unique download link, dropping", append(attrs, "candidates", out.Candidates)...)
	case StatusDirectoryMissing:
		logger.Warn("Destination directory missing", append(attrs, "error", out.Err)...)
	case StatusFailed:
		logger.Error("Entry failed", append(attrs, "error", out.Err)...)
	}
}
