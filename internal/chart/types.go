// Package chart fetches word-frequency statistics per Bible book and renders
// them as stacked bar charts, memoized by a deterministic cache key.
package chart

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

const (
	DefaultVersion = "HSV"
	DefaultMode    = "exact"

	// MaxBooks bounds the number of bars so book labels stay legible.
	MaxBooks = 24
)

// Row holds the occurrence count of every requested word in one book.
// On the wire it is a flat object: {"book": "Genesis", "licht": 12, ...}.
type Row struct {
	Book   string
	Counts map[string]int
}

// Total sums the counts of words in r.
func (r Row) Total(words []string) int {
	total := 0
	for _, w := range words {
		total += r.Counts[w]
	}
	return total
}

func (r Row) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(r.Counts)+1)
	for w, c := range r.Counts {
		out[w] = c
	}
	out["book"] = r.Book
	return json.Marshal(out)
}

func (r *Row) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("decode chart row: %w", err)
	}
	r.Book = ""
	r.Counts = make(map[string]int, len(raw))
	for k, v := range raw {
		if k == "book" {
			_ = json.Unmarshal(v, &r.Book)
			continue
		}
		// Non-numeric counts are treated as zero.
		var n float64
		if err := json.Unmarshal(v, &n); err == nil {
			r.Counts[k] = int(n)
		}
	}
	return nil
}

// Spec describes a chart computable from the stats collaborator.
type Spec struct {
	Version string
	Mode    string
	Words   []string
	Title   string
}

// Normalized applies the default version and mode and drops blank words.
func (s Spec) Normalized() Spec {
	out := Spec{
		Version: strings.TrimSpace(s.Version),
		Mode:    strings.ToLower(strings.TrimSpace(s.Mode)),
		Title:   strings.TrimSpace(s.Title),
		Words:   CleanWords(s.Words),
	}
	if out.Version == "" {
		out.Version = DefaultVersion
	}
	if out.Mode == "" {
		out.Mode = DefaultMode
	}
	return out
}

// DefaultTitle is the chart heading used when the caller gave none.
func (s Spec) DefaultTitle() string {
	if s.Title != "" {
		return s.Title
	}
	version := s.Version
	if version == "" {
		version = DefaultVersion
	}
	return "Woordfrequentie — " + version
}

// Rendered is the outcome of one chart render. Image is nil iff Words is
// empty or the stats collaborator returned no rows.
type Rendered struct {
	Image []byte   `json:"image,omitempty"`
	Rows  []Row    `json:"rows"`
	Words []string `json:"words"`
}

// Top returns at most n leading rows.
func (r *Rendered) Top(n int) []Row {
	if r == nil {
		return nil
	}
	if len(r.Rows) <= n {
		return r.Rows
	}
	return r.Rows[:n]
}

// Key identifies one memoized render: version|mode|sorted words.
func Key(version, mode string, words []string) string {
	sorted := append([]string(nil), words...)
	sort.Strings(sorted)
	return version + "|" + mode + "|" + strings.Join(sorted, ",")
}

// CleanWords trims words and drops empty ones, keeping their order.
func CleanWords(words []string) []string {
	out := make([]string, 0, len(words))
	for _, w := range words {
		if w = strings.TrimSpace(w); w != "" {
			out = append(out, w)
		}
	}
	return out
}

// rank totals every row across words, sorts descending and keeps the top
// MaxBooks. Ties keep the collaborator's order.
func rank(rows []Row, words []string) []Row {
	ranked := append([]Row(nil), rows...)
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Total(words) > ranked[j].Total(words)
	})
	if len(ranked) > MaxBooks {
		ranked = ranked[:MaxBooks]
	}
	return ranked
}
