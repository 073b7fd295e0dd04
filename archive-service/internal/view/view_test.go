package view

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/redhat-et/script-archive/archive-service/internal/script"
)

func sample() []script.Script {
	return []script.Script{
		{ID: "5", Title: "Hamlet", Era: "Elizabethan", Status: script.StatusAnalyzed, Themes: []string{"Revenge", "Madness"}},
		{ID: "4", Title: "The Rover", Era: "Restoration", Status: script.StatusPending, Themes: []string{}},
		{ID: "3", Title: "Oedipus Rex", Era: "Ancient", Status: script.StatusArchived, Themes: []string{"Fate"}},
		{ID: "2", Title: "Everyman", Era: "Medieval", Status: script.StatusAnalyzed, Themes: []string{"Death", "Salvation"}},
		{ID: "1", Title: "Waiting for Godot", Era: "Modern", Status: script.StatusPending, Themes: []string{}},
	}
}

func ids(scripts []script.Script) []string {
	out := make([]string, len(scripts))
	for i, s := range scripts {
		out[i] = s.ID
	}
	return out
}

func TestSearch(t *testing.T) {
	scripts := sample()

	tests := []struct {
		term string
		want []string
	}{
		{term: "", want: []string{"5", "4", "3", "2", "1"}},
		{term: " ", want: []string{"4", "3", "1"}},
		{term: "   ", want: []string{}},
		{term: "rex ", want: []string{}},
		{term: " rex", want: []string{"3"}},
		{term: "hamlet", want: []string{"5"}},
		{term: "ELIZA", want: []string{"5"}},
		{term: "fate", want: []string{"3"}},
		{term: "an", want: []string{"5", "3", "2"}},
		{term: "e", want: []string{"5", "4", "3", "2", "1"}},
		{term: "zzz", want: []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.term, func(t *testing.T) {
			assert.Equal(t, tt.want, ids(Search(scripts, tt.term)))
		})
	}
}

// A script is found iff the term occurs in its title, era or a theme.
func TestSearch_Correctness(t *testing.T) {
	scripts := sample()
	terms := []string{"a", "re", "ev", "dea", "mod", "x", "o", "Rex", " ", "Rex ", " for ", "Hamlet "}
	for _, term := range terms {
		found := make(map[string]bool)
		for _, s := range Search(scripts, term) {
			found[s.ID] = true
		}
		lower := strings.ToLower(term)
		for _, s := range scripts {
			want := strings.Contains(strings.ToLower(s.Title), lower) ||
				strings.Contains(strings.ToLower(s.Era), lower)
			for _, th := range s.Themes {
				want = want || strings.Contains(strings.ToLower(th), lower)
			}
			assert.Equal(t, want, found[s.ID], "term %q script %s", term, s.ID)
		}
	}
}

func TestSearch_DoesNotMutate(t *testing.T) {
	scripts := sample()
	out := Search(scripts, "")
	out[0].Title = "changed"
	assert.Equal(t, "Hamlet", scripts[0].Title)
}

func TestPaginate(t *testing.T) {
	scripts := sample()

	p := Paginate(scripts, 1, 2)
	assert.Equal(t, []string{"5", "4"}, ids(p.Items))
	assert.Equal(t, 1, p.Number)
	assert.Equal(t, 3, p.TotalPages)
	assert.Equal(t, 5, p.TotalItems)

	p = Paginate(scripts, 3, 2)
	assert.Equal(t, []string{"1"}, ids(p.Items))

	p = Paginate(scripts, 99, 2)
	assert.Equal(t, 3, p.Number, "clamps high")
	assert.Equal(t, []string{"1"}, ids(p.Items))

	p = Paginate(scripts, -4, 2)
	assert.Equal(t, 1, p.Number, "clamps low")

	p = Paginate(scripts, 1, 0)
	assert.Equal(t, DefaultPageSize, p.Size)
	assert.Len(t, p.Items, 5)
	assert.Equal(t, 1, p.TotalPages)
}

func TestPaginate_Empty(t *testing.T) {
	p := Paginate(nil, 3, 5)
	assert.Equal(t, 1, p.Number)
	assert.Equal(t, 1, p.TotalPages)
	assert.Equal(t, 0, p.TotalItems)
	assert.Empty(t, p.Items)
}

// Concatenating every page rebuilds the collection exactly.
func TestPaginate_ReconstructsCollection(t *testing.T) {
	for n := 0; n <= 23; n++ {
		scripts := make([]script.Script, n)
		for i := range scripts {
			scripts[i] = script.Script{ID: fmt.Sprint(i)}
		}
		for _, size := range []int{1, 2, 3, 5, 7, 10, 50} {
			var all []string
			first := Paginate(scripts, 1, size)
			for page := 1; page <= first.TotalPages; page++ {
				all = append(all, ids(Paginate(scripts, page, size).Items)...)
			}
			require.Len(t, all, n, "n=%d size=%d", n, size)
			for i, id := range all {
				assert.Equal(t, fmt.Sprint(i), id)
			}
		}
	}
}

func TestTopThemes_Example(t *testing.T) {
	scripts := []script.Script{
		{Status: script.StatusAnalyzed, Themes: []string{"Love", "Power"}},
		{Status: script.StatusAnalyzed, Themes: []string{"Love"}},
		{Status: script.StatusAnalyzed, Themes: []string{"Betrayal"}},
	}
	assert.Equal(t, []ThemeCount{
		{Theme: "Love", Count: 2},
		{Theme: "Power", Count: 1},
		{Theme: "Betrayal", Count: 1},
	}, TopThemes(scripts, 5))
}

func TestTopThemes_AnalyzedOnlyAndLimit(t *testing.T) {
	scripts := []script.Script{
		{Status: script.StatusArchived, Themes: []string{"War", "War"}},
		{Status: script.StatusPending, Themes: []string{"War"}},
		{Status: script.StatusAnalyzed, Themes: []string{"A", "B", "C"}},
		{Status: script.StatusAnalyzed, Themes: []string{"D", "E", "F", "C"}},
	}

	top := TopThemes(scripts, 0)
	require.Len(t, top, DefaultTopThemes)
	assert.Equal(t, ThemeCount{Theme: "C", Count: 2}, top[0])
	assert.Equal(t, []string{"A", "B", "D", "E"}, []string{top[1].Theme, top[2].Theme, top[3].Theme, top[4].Theme})

	assert.Len(t, TopThemes(scripts, 2), 2)
	assert.Empty(t, TopThemes(nil, 3))
}

func TestCount(t *testing.T) {
	assert.Equal(t, Counts{Pending: 2, Analyzed: 2, Archived: 1, Total: 5}, Count(sample()))
}

func TestQuery(t *testing.T) {
	r := Query(sample(), "an", 2, 1)
	assert.Equal(t, []string{"3"}, ids(r.Items))
	assert.Equal(t, 3, r.TotalPages)
	assert.Equal(t, 3, r.TotalItems)
	assert.Equal(t, 5, r.Counts.Total)
	assert.Equal(t, "an", r.Term)
}
