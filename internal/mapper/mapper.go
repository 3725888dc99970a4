// Package mapper counts how many games the NES directory lists for each iNES mapper id.
package mapper

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/nesemu/nesfetch/internal/session"
)

const (
	DefaultOrigin = "https://nesdir.github.io"
	DefaultIDs    = 256
	DefaultHead   = 5

	// RowMarker starts a table row; the first row on every page is the header.
	RowMarker = "<tr>"
)

// ErrZeroTotal is returned when the percentage is requested over a zero total.
var ErrZeroTotal = errors.New("total count is zero")

// CountMarkers returns the number of game rows in body: row markers minus
// the header row. A page without any row marker yields -1.
func CountMarkers(body string) int {
	return strings.Count(body, RowMarker) - 1
}

// Options configures a counting run.
type Options struct {
	Origin string
	// IDs is the size of the id space, counted from 0. Zero means DefaultIDs.
	IDs int
	// Head is how many leading ids form the coverage share. Zero means DefaultHead.
	Head int
	// Concurrency caps in-flight page fetches. Zero or less means no cap.
	Concurrency int
	HTTP        session.Options
	Logger      *slog.Logger
}

// Counter fetches one page per mapper id and counts its rows.
type Counter struct {
	opts Options
}

// NewCounter creates a counter with defaults filled in.
func NewCounter(opts Options) *Counter {
	if opts.Origin == "" {
		opts.Origin = DefaultOrigin
	}
	opts.Origin = strings.TrimRight(opts.Origin, "/")
	if opts.IDs <= 0 {
		opts.IDs = DefaultIDs
	}
	if opts.Head <= 0 {
		opts.Head = DefaultHead
	}
	if opts.Head > opts.IDs {
		opts.Head = opts.IDs
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Counter{opts: opts}
}

// PageURL returns the directory page listing games for mapper id.
func (c *Counter) PageURL(id int) string {
	return fmt.Sprintf("%s/mapper%d.html", c.opts.Origin, id)
}

// CountAll fetches every mapper page concurrently and returns the counts.
// Error pages are counted like any other body. The first transport failure
// is returned once all fetches have settled.
func (c *Counter) CountAll(ctx context.Context) (*Summary, error) {
	runID := uuid.NewString()
	logger := c.opts.Logger.With("run_id", runID)
	start := time.Now()

	s := session.New(c.opts.HTTP)
	defer s.Close()

	summary := &Summary{
		RunID:  runID,
		Origin: c.opts.Origin,
		Head:   c.opts.Head,
		Counts: make([]int, c.opts.IDs),
	}

	var g errgroup.Group
	if c.opts.Concurrency > 0 {
		g.SetLimit(c.opts.Concurrency)
	}

	for id := 0; id < c.opts.IDs; id++ {
		g.Go(func() error {
			body, err := s.GetPage(ctx, c.PageURL(id))
			if err != nil {
				logger.Error("Failed to fetch mapper page", "ines", id, "error", err)
				return fmt.Errorf("mapper %d: %w", id, err)
			}
			summary.Counts[id] = CountMarkers(body)
			logger.Debug("Counted mapper page", "ines", id, "count", summary.Counts[id])
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	logger.Info("Mapper count complete", "ids", c.opts.IDs, "total", summary.Total(), "duration", time.Since(start))
	return summary, nil
}

// Summary holds per-id counts of one run.
type Summary struct {
	RunID  string
	Origin string
	Head   int
	Counts []int
}

// Record is one exported row.
type Record struct {
	INES  int32 `parquet:"ines" yaml:"ines"`
	Count int32 `parquet:"count" yaml:"count"`
}

// Records returns the counts as rows ordered by id.
func (s *Summary) Records() []Record {
	records := make([]Record, len(s.Counts))
	for id, count := range s.Counts {
		records[id] = Record{INES: int32(id), Count: int32(count)}
	}
	return records
}

// Total is the sum of every count, negative ones included.
func (s *Summary) Total() int {
	return sum(s.Counts)
}

// HeadTotal is the sum of counts for ids [0, Head).
func (s *Summary) HeadTotal() int {
	head := s.Head
	if head > len(s.Counts) {
		head = len(s.Counts)
	}
	return sum(s.Counts[:head])
}

// Percentage is HeadTotal as a share of Total, in percent.
func (s *Summary) Percentage() (float64, error) {
	total := s.Total()
	if total == 0 {
		return 0, ErrZeroTotal
	}
	return float64(s.HeadTotal()) / float64(total) * 100, nil
}

// HeadLabel names the head range, e.g. "mapper0-4".
func (s *Summary) HeadLabel() string {
	return fmt.Sprintf("mapper0-%d", s.Head-1)
}

// WriteText prints one line per id, the total and the head coverage.
// The counts and total are written even when the percentage is undefined.
func (s *Summary) WriteText(w io.Writer) error {
	var b strings.Builder
	for id, count := range s.Counts {
		fmt.Fprintf(&b, "ines %d: %d\n", id, count)
	}
	fmt.Fprintf(&b, "total: %d\n", s.Total())

	pct, pctErr := s.Percentage()
	if pctErr == nil {
		fmt.Fprintf(&b, "%s cover %.2f%% games\n", s.HeadLabel(), pct)
	}

	if _, err := io.WriteString(w, b.String()); err != nil {
		return fmt.Errorf("failed to write summary: %w", err)
	}
	return pctErr
}

func sum(values []int) int {
	total := 0
	for _, v := range values {
		total += v
	}
	return total
}
