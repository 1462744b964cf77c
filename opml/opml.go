// Package opml exports the backend's source list as OPML and compares OPML
// subscription files against it.
package opml

import (
	"encoding/xml"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"
)

// OPML represents the root OPML structure.
type OPML struct {
	XMLName xml.Name `xml:"opml"`
	Version string   `xml:"version,attr"`
	Head    Head     `xml:"head"`
	Body    Body     `xml:"body"`
}

// Head contains metadata about the OPML document.
type Head struct {
	Title       string `xml:"title,omitempty"`
	DateCreated string `xml:"dateCreated,omitempty"`
}

// Body contains the outline elements.
type Body struct {
	Outlines []Outline `xml:"outline"`
}

// Outline represents a feed or a group of feeds.
type Outline struct {
	Text     string    `xml:"text,attr,omitempty"`
	Title    string    `xml:"title,attr,omitempty"`
	Type     string    `xml:"type,attr,omitempty"`
	XMLUrl   string    `xml:"xmlUrl,attr,omitempty"`
	Category string    `xml:"category,attr,omitempty"`
	Outlines []Outline `xml:"outline,omitempty"`
}

// Source is one feed subscription.
type Source struct {
	URL      string `json:"url"`
	Title    string `json:"title,omitempty"`
	Category string `json:"category,omitempty"`
}

// Parse reads an OPML document and returns its feeds in document order.
func Parse(r io.Reader) ([]Source, error) {
	var doc OPML
	if err := xml.NewDecoder(r).Decode(&doc); err != nil {
		return nil, fmt.Errorf("failed to parse OPML: %w", err)
	}
	return collect(doc.Body.Outlines, ""), nil
}

// collect walks nested outlines. Groups without their own category pass
// their text down to their children.
func collect(outlines []Outline, parentCategory string) []Source {
	var sources []Source

	for _, o := range outlines {
		if o.XMLUrl != "" {
			s := Source{URL: o.XMLUrl, Title: o.Title, Category: o.Category}
			if s.Category == "" {
				s.Category = parentCategory
			}
			if s.Title == "" {
				s.Title = o.Text
			}
			sources = append(sources, s)
		}

		if len(o.Outlines) > 0 {
			group := o.Text
			if group == "" {
				group = parentCategory
			}
			sources = append(sources, collect(o.Outlines, group)...)
		}
	}

	return sources
}

// Generate writes sources as an OPML 2.0 document. Sources with a category
// are grouped under it, in first-seen order; the rest sit at the top level.
func Generate(w io.Writer, title string, sources []Source) error {
	doc := OPML{
		Version: "2.0",
		Head: Head{
			Title:       title,
			DateCreated: time.Now().Format(time.RFC1123),
		},
	}

	groups := make(map[string]int)
	for _, s := range sources {
		text := s.Title
		if text == "" {
			text = s.URL
		}
		o := Outline{Type: "rss", Text: text, Title: text, XMLUrl: s.URL, Category: s.Category}

		if s.Category == "" {
			doc.Body.Outlines = append(doc.Body.Outlines, o)
			continue
		}

		idx, ok := groups[s.Category]
		if !ok {
			doc.Body.Outlines = append(doc.Body.Outlines, Outline{Text: s.Category, Title: s.Category})
			idx = len(doc.Body.Outlines) - 1
			groups[s.Category] = idx
		}
		doc.Body.Outlines[idx].Outlines = append(doc.Body.Outlines[idx].Outlines, o)
	}

	if _, err := io.WriteString(w, xml.Header); err != nil {
		return fmt.Errorf("failed to write XML header: %w", err)
	}

	enc := xml.NewEncoder(w)
	enc.Indent("", "  ")
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("failed to encode OPML: %w", err)
	}

	if _, err := io.WriteString(w, "\n"); err != nil {
		return fmt.Errorf("failed to write final newline: %w", err)
	}
	return nil
}

// DiffResult lists how a local subscription file differs from the backend.
type DiffResult struct {
	OnlyLocal  []string `json:"only_local"`
	OnlyRemote []string `json:"only_remote"`
	Shared     []string `json:"shared"`
}

// InSync reports whether both sides list the same feeds.
func (d DiffResult) InSync() bool {
	return len(d.OnlyLocal) == 0 && len(d.OnlyRemote) == 0
}

// Diff compares local sources against the backend's feed URLs. URLs are
// compared after trimming whitespace and a trailing slash, case-insensitively.
func Diff(local []Source, remote []string) DiffResult {
	result := DiffResult{OnlyLocal: []string{}, OnlyRemote: []string{}, Shared: []string{}}

	remoteSet := make(map[string]string, len(remote))
	for _, u := range remote {
		remoteSet[normalizeURL(u)] = u
	}

	localSet := make(map[string]bool, len(local))
	for _, s := range local {
		key := normalizeURL(s.URL)
		if localSet[key] {
			continue
		}
		localSet[key] = true

		if _, ok := remoteSet[key]; ok {
			result.Shared = append(result.Shared, s.URL)
		} else {
			result.OnlyLocal = append(result.OnlyLocal, s.URL)
		}
	}

	for key, u := range remoteSet {
		if !localSet[key] {
			result.OnlyRemote = append(result.OnlyRemote, u)
		}
	}

	sort.Strings(result.OnlyLocal)
	sort.Strings(result.OnlyRemote)
	sort.Strings(result.Shared)
	return result
}

func normalizeURL(u string) string {
	return strings.ToLower(strings.TrimRight(strings.TrimSpace(u), "/"))
}
