// Package view derives read-only projections from a loaded collection:
// search, pagination, theme ranking and status counts. Nothing here
// mutates its input.
package view

import (
	"slices"
	"strings"

	"github.com/redhat-et/script-archive/archive-service/internal/script"
)

const (
	DefaultPageSize  = 5
	DefaultTopThemes = 5
)

// Search returns the scripts whose title, era or any theme contains term,
// ignoring case. Whitespace in term is significant; only the empty term
// matches everything. Order is preserved.
func Search(scripts []script.Script, term string) []script.Script {
	needle := strings.ToLower(term)
	if needle == "" {
		return slices.Clone(scripts)
	}

	out := make([]script.Script, 0, len(scripts))
	for _, s := range scripts {
		if Matches(s, needle) {
			out = append(out, s)
		}
	}
	return out
}

// Matches reports whether s matches an already lowercased search term.
func Matches(s script.Script, needle string) bool {
	if strings.Contains(strings.ToLower(s.Title), needle) ||
		strings.Contains(strings.ToLower(s.Era), needle) {
		return true
	}
	for _, th := range s.Themes {
		if strings.Contains(strings.ToLower(th), needle) {
			return true
		}
	}
	return false
}

// Page is one page of a collection.
type Page struct {
	Items      []script.Script `json:"items"`
	Number     int             `json:"page"`
	Size       int             `json:"page_size"`
	TotalPages int             `json:"total_pages"`
	TotalItems int             `json:"total_items"`
}

// Paginate returns page number (1-based) of scripts. Out of range numbers
// clamp to the first or last page; size <= 0 uses DefaultPageSize. An
// empty collection has one empty page.
func Paginate(scripts []script.Script, number, size int) Page {
	if size <= 0 {
		size = DefaultPageSize
	}
	total := len(scripts)
	pages := max(1, (total+size-1)/size)
	number = min(max(number, 1), pages)

	start := min((number-1)*size, total)
	end := min(start+size, total)
	return Page{
		Items:      slices.Clone(scripts[start:end]),
		Number:     number,
		Size:       size,
		TotalPages: pages,
		TotalItems: total,
	}
}

// ThemeCount is a theme and how many analyzed scripts carry it.
type ThemeCount struct {
	Theme string `json:"theme"`
	Count int    `json:"count"`
}

// TopThemes counts themes across analyzed scripts and returns the n most
// frequent. Ties keep the order in which themes were first seen. n <= 0
// uses DefaultTopThemes.
func TopThemes(scripts []script.Script, n int) []ThemeCount {
	if n <= 0 {
		n = DefaultTopThemes
	}

	counts := make([]ThemeCount, 0)
	pos := make(map[string]int)
	for _, s := range scripts {
		if s.Status != script.StatusAnalyzed {
			continue
		}
		for _, th := range s.Themes {
			i, ok := pos[th]
			if !ok {
				i = len(counts)
				pos[th] = i
				counts = append(counts, ThemeCount{Theme: th})
			}
			counts[i].Count++
		}
	}

	slices.SortStableFunc(counts, func(a, b ThemeCount) int {
		return b.Count - a.Count
	})
	if len(counts) > n {
		counts = counts[:n]
	}
	return counts
}

// Counts tallies scripts by status.
type Counts struct {
	Pending  int `json:"pending"`
	Analyzed int `json:"analyzed"`
	Archived int `json:"archived"`
	Total    int `json:"total"`
}

// Count tallies scripts by status.
func Count(scripts []script.Script) Counts {
	var c Counts
	for _, s := range scripts {
		switch s.Status {
		case script.StatusPending:
			c.Pending++
		case script.StatusAnalyzed:
			c.Analyzed++
		case script.StatusArchived:
			c.Archived++
		}
	}
	c.Total = len(scripts)
	return c
}

// Result is a searched and paginated view with collection-wide counts.
type Result struct {
	Page
	Term   string `json:"q,omitempty"`
	Counts Counts `json:"counts"`
}

// Query filters scripts by term, then paginates the matches. Counts cover
// the whole collection, not just the matches.
func Query(scripts []script.Script, term string, number, size int) Result {
	return Result{
		Page:   Paginate(Search(scripts, term), number, size),
		Term:   term,
		Counts: Count(scripts),
	}
}
