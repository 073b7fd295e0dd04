package cmd

import (
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/fatih/color"

	"github.com/redhat-et/script-archive/archive-service/internal/lifecycle"
	"github.com/redhat-et/script-archive/archive-service/internal/script"
	"github.com/redhat-et/script-archive/archive-service/internal/view"
)

var (
	green  = color.New(color.FgGreen)
	yellow = color.New(color.FgYellow)
	red    = color.New(color.FgRed, color.Bold)
	cyan   = color.New(color.FgCyan)
	faint  = color.New(color.Faint)
)

var statusColors = map[script.Status]*color.Color{
	script.StatusPending:  yellow,
	script.StatusAnalyzed: cyan,
	script.StatusArchived: green,
}

// PrintNotification renders a lifecycle notification on stderr.
func PrintNotification(n lifecycle.Notification) {
	printNotification(os.Stderr, n)
}

func printNotification(w io.Writer, n lifecycle.Notification) {
	switch n.Status {
	case lifecycle.NotifyPending:
		cyan.Fprintf(w, "→ %s\n", n.Message)
	case lifecycle.NotifySuccess:
		green.Fprintf(w, "✓ %s\n", n.Message)
	case lifecycle.NotifyError:
		red.Fprintf(w, "✗ %s\n", n.Message)
	}
}

// printScripts writes a page of scripts as a table.
func printScripts(w io.Writer, res view.Result) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tTITLE\tERA\tSTATUS\tOWNER\tCREATED")
	for _, s := range res.Items {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
			s.ID, s.Title, s.Era, colorStatus(s.Status), s.Owner, formatTime(s.CreatedAt))
	}
	tw.Flush()

	faint.Fprintf(w, "page %d/%d, %d matching", res.Number, res.TotalPages, res.TotalItems)
	if res.Term != "" {
		faint.Fprintf(w, " %q", res.Term)
	}
	faint.Fprintf(w, " | %d total, %d pending, %d analyzed, %d archived\n",
		res.Counts.Total, res.Counts.Pending, res.Counts.Analyzed, res.Counts.Archived)
}

// printScript writes one script in detail.
func printScript(w io.Writer, s script.Script) {
	fmt.Fprintf(w, "%s  %s\n", s.ID, s.Title)
	fmt.Fprintf(w, "  era:     %s\n", s.Era)
	fmt.Fprintf(w, "  status:  %s\n", colorStatus(s.Status))
	fmt.Fprintf(w, "  owner:   %s\n", s.Owner)
	fmt.Fprintf(w, "  created: %s\n", formatTime(s.CreatedAt))
	if len(s.Themes) > 0 {
		fmt.Fprintf(w, "  themes:  %s\n", strings.Join(s.Themes, ", "))
	}
	if s.CharacterNetwork != "" {
		fmt.Fprintf(w, "  network: %s\n", s.CharacterNetwork)
	}
}

func printThemes(w io.Writer, themes []view.ThemeCount) {
	if len(themes) == 0 {
		yellow.Fprintln(w, "⚠️  No analyzed scripts yet")
		return
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "THEME\tSCRIPTS")
	for _, t := range themes {
		fmt.Fprintf(tw, "%s\t%d\n", t.Theme, t.Count)
	}
	tw.Flush()
}

func colorStatus(st script.Status) string {
	if c, ok := statusColors[st]; ok {
		return c.Sprint(string(st))
	}
	return string(st)
}

func formatTime(ms int64) string {
	if ms == 0 {
		return "-"
	}
	return time.UnixMilli(ms).Format("2006-01-02 15:04")
}
