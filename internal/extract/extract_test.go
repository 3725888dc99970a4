package extract

import (
	"reflect"
	"testing"
)

const catalogFixture = `<html><body>
<a href="/About">About</a>
<table class="nesfilesTable">
<tr><td><a href="/NES/1942/">1942</a></td></tr>
<tr><td><a href="/NES/Contra/" class="game">Contra</a></td></tr>
<tr><td><a href="/NES/Tetris/">Tetris</a></td></tr>
</table>
<p>between</p>
<table class="footer"><tr><td><a href="/Footer">Footer</a></td></tr></table>
<a href="/After">After</a>
</body></html>`

func TestLinksCatalogTable(t *testing.T) {
	got := Links(catalogFixture, CatalogTable)
	expected := []Link{
		{Href: "/NES/1942/", Text: "1942"},
		{Href: "/NES/Contra/", Text: "Contra"},
		{Href: "/NES/Tetris/", Text: "Tetris"},
		// The region runs to the last </table>, so the footer table is included.
		{Href: "/Footer", Text: "Footer"},
	}

	if !reflect.DeepEqual(got, expected) {
		t.Errorf("Expected %v, got %v", expected, got)
	}
}

func TestRegionSlice(t *testing.T) {
	tests := []struct {
		name     string
		doc      string
		region   Region
		expected string
	}{
		{
			name:     "first end after start",
			doc:      `x<div class="lal">a</div>b</div>`,
			region:   DownloadBox,
			expected: `<div class="lal">a`,
		},
		{
			name:     "last end in document",
			doc:      `<table class="nesfilesTable">a</table>b</table>c`,
			region:   CatalogTable,
			expected: `<table class="nesfilesTable">a</table>b`,
		},
		{
			name:     "missing start scans from beginning",
			doc:      `abc</div>def`,
			region:   DownloadBox,
			expected: `abc`,
		},
		{
			name:     "missing end scans to the end",
			doc:      `x<div class="lal">abc`,
			region:   DownloadBox,
			expected: `<div class="lal">abc`,
		},
		{
			name:     "last end before start is empty",
			doc:      `</table><table class="nesfilesTable">abc`,
			region:   CatalogTable,
			expected: "",
		},
		{
			name:     "empty end marker scans to the end",
			doc:      `a<b>c`,
			region:   Region{Start: "<b>"},
			expected: "<b>c",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.region.Slice(tt.doc)
			if got != tt.expected {
				t.Errorf("Expected %q, got %q", tt.expected, got)
			}
		})
	}
}

func TestLinksCount(t *testing.T) {
	tests := []struct {
		name     string
		doc      string
		expected int
	}{
		{name: "none", doc: `<div class="lal">no links</div>`, expected: 0},
		{name: "one", doc: `<div class="lal"><a href="/d/a.nes">a</a></div>`, expected: 1},
		{name: "two", doc: `<div class="lal"><a href="/d/a.nes">a</a> <a href="/d/b.nes">b</a></div>`, expected: 2},
		{name: "outside region ignored", doc: `<a href="/x">x</a><div class="lal"><a href="/d/a.nes">a</a></div><a href="/y">y</a>`, expected: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Links(tt.doc, DownloadBox)
			if len(got) != tt.expected {
				t.Errorf("Expected %d links, got %d (%v)", tt.expected, len(got), got)
			}
		})
	}
}

func TestLinksLazyMatching(t *testing.T) {
	doc := `<a href="/a">A</a><a href="/b">B</a>`
	got := Links(doc, Region{})
	expected := []Link{{Href: "/a", Text: "A"}, {Href: "/b", Text: "B"}}

	if !reflect.DeepEqual(got, expected) {
		t.Errorf("Expected %v, got %v", expected, got)
	}
}
