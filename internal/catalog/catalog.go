// Package catalog lists games on the catalog page and resolves each to its download link.
package catalog

import (
	"context"
	"fmt"
	"strings"

	"github.com/nesemu/nesfetch/internal/extract"
)

const (
	// DefaultOrigin is the site every entry reference and download link is relative to.
	DefaultOrigin = "https://www.nesfiles.com"

	// DefaultCatalogPath is the listing page enumerating every game.
	DefaultCatalogPath = "/Games"
)

// Getter fetches a page as text. Error pages are returned like any other page.
type Getter interface {
	GetPage(ctx context.Context, url string) (string, error)
}

// Entry is one game listed on the catalog page.
type Entry struct {
	Reference   string `yaml:"reference"`
	DisplayName string `yaml:"name"`
}

// Entries parses the catalog table of doc into entries, in document order.
func Entries(doc string) []Entry {
	links := extract.Links(doc, extract.CatalogTable)
	if len(links) == 0 {
		return nil
	}

	entries := make([]Entry, 0, len(links))
	for _, l := range links {
		entries = append(entries, Entry{Reference: l.Href, DisplayName: l.Text})
	}
	return entries
}

// Kind tells whether a detail page yielded a usable download link.
type Kind int

const (
	KindAmbiguous Kind = iota
	KindResolved
)

func (k Kind) String() string {
	if k == KindResolved {
		return "resolved"
	}
	return "ambiguous"
}

// Resolution is the result of resolving one entry.
// URL is set only when Kind is KindResolved.
type Resolution struct {
	Kind       Kind
	URL        string
	Candidates int
}

// Resolved reports whether r carries a download URL.
func (r Resolution) Resolved() bool {
	return r.Kind == KindResolved
}

// Resolver turns entry references into direct download links.
type Resolver struct {
	Getter Getter
	Origin string
}

// NewResolver creates a resolver for origin. An empty origin uses DefaultOrigin.
func NewResolver(getter Getter, origin string) *Resolver {
	if origin == "" {
		origin = DefaultOrigin
	}
	return &Resolver{
		Getter: getter,
		Origin: strings.TrimRight(origin, "/"),
	}
}

// DetailURL returns the absolute detail page URL for reference.
func (r *Resolver) DetailURL(reference string) string {
	return r.Origin + reference
}

// Resolve fetches the detail page of reference and extracts its download link.
// A page with zero or several candidate links is not an error: it returns a
// KindAmbiguous resolution.
func (r *Resolver) Resolve(ctx context.Context, reference string) (Resolution, error) {
	page, err := r.Getter.GetPage(ctx, r.DetailURL(reference))
	if err != nil {
		return Resolution{}, fmt.Errorf("failed to fetch detail page: %w", err)
	}

	links := extract.Links(page, extract.DownloadBox)
	if len(links) != 1 {
		return Resolution{Kind: KindAmbiguous, Candidates: len(links)}, nil
	}

	return Resolution{
		Kind:       KindResolved,
		URL:        r.Origin + links[0].Href,
		Candidates: 1,
	}, nil
}
