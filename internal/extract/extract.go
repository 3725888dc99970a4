// Package extract pulls anchor links out of a delimited region of an HTML document.
//
// Matching is textual: a region is cut out between two literal markers and
// anchors inside it are found with a lazy pattern. No DOM is built.
package extract

import (
	"regexp"
	"strings"
)

var anchorPattern = regexp.MustCompile(`<a href="(.*?)"[^>]*>(.*?)</a>`)

// Region bounds the part of a document that is scanned for links.
type Region struct {
	Start string
	End   string
	// EndIsLast selects the last occurrence of End in the whole document
	// instead of the first occurrence after Start.
	EndIsLast bool
}

var (
	// CatalogTable is the games table on the catalog page. It runs to the
	// last </table> of the document, not the one that closes it.
	CatalogTable = Region{Start: `<table class="nesfilesTable">`, End: `</table>`, EndIsLast: true}

	// DownloadBox is the container holding the download anchor on a detail page.
	DownloadBox = Region{Start: `<div class="lal">`, End: `</div>`}
)

// Link is one anchor found inside a region.
type Link struct {
	Href string
	Text string
}

// Slice returns the part of doc delimited by r.
// A missing Start scans from the beginning of doc, a missing End scans to its end,
// and an End that precedes Start yields an empty region.
func (r Region) Slice(doc string) string {
	start := strings.Index(doc, r.Start)
	if start < 0 {
		start = 0
	}

	end := -1
	if r.End != "" {
		if r.EndIsLast {
			end = strings.LastIndex(doc, r.End)
		} else if i := strings.Index(doc[start:], r.End); i >= 0 {
			end = start + i
		}
	}
	if end < 0 {
		end = len(doc)
	}
	if end < start {
		return ""
	}
	return doc[start:end]
}

// Links returns every anchor in the r region of doc, in document order.
func Links(doc string, r Region) []Link {
	matches := anchorPattern.FindAllStringSubmatch(r.Slice(doc), -1)
	if len(matches) == 0 {
		return nil
	}

	links := make([]Link, 0, len(matches))
	for _, m := range matches {
		links = append(links, Link{Href: m[1], Text: m[2]})
	}
	return links
}
