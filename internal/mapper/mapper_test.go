package mapper

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

func TestCountMarkers(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		expected int
	}{
		{name: "no markers", body: "<html></html>", expected: -1},
		{name: "header only", body: "<table><tr><th>Name</th></tr></table>", expected: 0},
		{name: "three games", body: "<tr>h</tr><tr>a</tr><tr>b</tr><tr>c</tr>", expected: 3},
		{name: "attributes are not markers", body: "<tr>h</tr><tr class=\"x\">a</tr>", expected: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CountMarkers(tt.body); got != tt.expected {
				t.Errorf("Expected %d, got %d", tt.expected, got)
			}
		})
	}
}

// pageServer answers /mapper<id>.html with rows[id]+1 row markers, header included.
func pageServer(t *testing.T, rows func(id int) int) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var id int
		if _, err := fmt.Sscanf(r.URL.Path, "/mapper%d.html", &id); err != nil {
			http.NotFound(w, r)
			return
		}
		n := rows(id)
		if n < 0 {
			_, _ = w.Write([]byte("<html>no table</html>"))
			return
		}
		_, _ = w.Write([]byte("<table>" + strings.Repeat("<tr><td>x</td></tr>", n+1) + "</table>"))
	}))
	t.Cleanup(server.Close)
	return server
}

func TestCountAllAggregation(t *testing.T) {
	head := []int{10, 0, 5, 0, 0}
	server := pageServer(t, func(id int) int {
		if id < len(head) {
			return head[id]
		}
		return 1
	})

	summary, err := NewCounter(Options{Origin: server.URL, Concurrency: 32, Logger: discard}).CountAll(context.Background())
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	if len(summary.Counts) != 256 {
		t.Fatalf("Expected 256 counts, got %d", len(summary.Counts))
	}
	if summary.Total() != 266 {
		t.Errorf("Expected total 266, got %d", summary.Total())
	}
	if summary.HeadTotal() != 15 {
		t.Errorf("Expected head total 15, got %d", summary.HeadTotal())
	}

	pct, err := summary.Percentage()
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if got := fmt.Sprintf("%.2f", pct); got != "5.64" {
		t.Errorf("Expected 5.64, got %s", got)
	}

	var out strings.Builder
	if err := summary.WriteText(&out); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	text := out.String()
	for _, line := range []string{"ines 0: 10\n", "ines 255: 1\n", "total: 266\n", "mapper0-4 cover 5.64% games\n"} {
		if !strings.Contains(text, line) {
			t.Errorf("Expected output to contain %q", line)
		}
	}
}

func TestCountAllKeepsNegativeCounts(t *testing.T) {
	server := pageServer(t, func(id int) int {
		if id == 3 {
			return -1
		}
		return 2
	})

	summary, err := NewCounter(Options{Origin: server.URL, IDs: 8, Head: 4, Logger: discard}).CountAll(context.Background())
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if summary.Counts[3] != -1 {
		t.Errorf("Expected -1 for page without rows, got %d", summary.Counts[3])
	}
	if summary.Total() != 13 {
		t.Errorf("Expected total 13, got %d", summary.Total())
	}
	if summary.HeadLabel() != "mapper0-3" {
		t.Errorf("Expected label mapper0-3, got %s", summary.HeadLabel())
	}
}

func TestPercentageZeroTotal(t *testing.T) {
	server := pageServer(t, func(id int) int { return 0 })

	summary, err := NewCounter(Options{Origin: server.URL, IDs: 16, Logger: discard}).CountAll(context.Background())
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	if _, err := summary.Percentage(); !errors.Is(err, ErrZeroTotal) {
		t.Fatalf("Expected ErrZeroTotal, got %v", err)
	}

	var out strings.Builder
	if err := summary.WriteText(&out); !errors.Is(err, ErrZeroTotal) {
		t.Fatalf("Expected ErrZeroTotal from WriteText, got %v", err)
	}
	if !strings.Contains(out.String(), "total: 0\n") {
		t.Errorf("Expected total line even with zero total, got %q", out.String())
	}
	if strings.Contains(out.String(), "cover") {
		t.Errorf("Expected no coverage line for zero total, got %q", out.String())
	}
}

func TestCountAllErrorPageCountsAsMissing(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/mapper3.html" {
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte("<html>404 File not found</html>"))
			return
		}
		_, _ = w.Write([]byte("<tr><tr>"))
	}))
	defer server.Close()

	summary, err := NewCounter(Options{Origin: server.URL, IDs: 6, Head: 2, Logger: discard}).CountAll(context.Background())
	if err != nil {
		t.Fatalf("Expected no error for a 404 page, got %v", err)
	}
	if summary.Counts[3] != -1 {
		t.Errorf("Expected -1 for 404 page, got %d", summary.Counts[3])
	}
	if summary.Total() != 4 {
		t.Errorf("Expected total 4, got %d", summary.Total())
	}
}

func TestCountAllFetchFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/mapper7.html" {
			hj, ok := w.(http.Hijacker)
			if !ok {
				t.Error("Expected hijackable response writer")
				return
			}
			conn, _, err := hj.Hijack()
			if err != nil {
				t.Errorf("Hijack failed: %v", err)
				return
			}
			_ = conn.Close()
			return
		}
		_, _ = w.Write([]byte("<tr><tr>"))
	}))
	defer server.Close()

	_, err := NewCounter(Options{Origin: server.URL, IDs: 10, Logger: discard}).CountAll(context.Background())
	if err == nil {
		t.Fatal("Expected error, got nil")
	}
	if !strings.Contains(err.Error(), "mapper 7") {
		t.Errorf("Expected error to name mapper 7, got %v", err)
	}
}

func TestRecords(t *testing.T) {
	s := &Summary{Head: 2, Counts: []int{4, -1, 7}}
	records := s.Records()
	if len(records) != 3 {
		t.Fatalf("Expected 3 records, got %d", len(records))
	}
	if records[1].INES != 1 || records[1].Count != -1 {
		t.Errorf("Unexpected record %+v", records[1])
	}
}

func TestNewCounterDefaults(t *testing.T) {
	c := NewCounter(Options{Head: 500, IDs: 10})
	if c.opts.Origin != DefaultOrigin {
		t.Errorf("Expected default origin, got %s", c.opts.Origin)
	}
	if c.opts.Head != 10 {
		t.Errorf("Expected head clamped to 10, got %d", c.opts.Head)
	}
	if got := c.PageURL(42); got != "https://nesdir.github.io/mapper42.html" {
		t.Errorf("Unexpected page URL %s", got)
	}
}
