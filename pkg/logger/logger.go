package logger

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
)

// Component identifiers for color-coded logging
type Component string

const (
	ComponentArchive   Component = "ARCHIVE"
	ComponentLedger    Component = "LEDGER"
	ComponentIndex     Component = "INDEX"
	ComponentLifecycle Component = "LIFECYCLE"
	ComponentAnalyzer  Component = "ANALYZER"
	ComponentPolicy    Component = "POLICY"
	ComponentAuth      Component = "AUTH"
)

// ANSI color codes
const (
	colorReset   = "\033[0m"
	colorGreen   = "\033[32m"
	colorBlue    = "\033[34m"
	colorMagenta = "\033[35m"
	colorYellow  = "\033[33m"
	colorCyan    = "\033[36m"
	colorWhite   = "\033[37m"
	colorOrange  = "\033[38;5;208m"
)

// componentColors maps components to their display colors
var componentColors = map[Component]string{
	ComponentArchive:   colorWhite,
	ComponentLedger:    colorGreen,
	ComponentIndex:     colorCyan,
	ComponentLifecycle: colorYellow,
	ComponentAnalyzer:  colorMagenta,
	ComponentPolicy:    colorOrange,
	ComponentAuth:      colorBlue,
}

// ColorHandler is a slog handler that prefixes every record with a
// color-coded component tag and a level glyph.
type ColorHandler struct {
	out       io.Writer
	mu        *sync.Mutex
	component Component
	useColors bool
	level     slog.Leveler
	attrs     []slog.Attr
	group     string
}

// NewColorHandler creates a new color-coded handler
func NewColorHandler(out io.Writer, component Component, useColors bool, level slog.Leveler) *ColorHandler {
	if level == nil {
		level = slog.LevelInfo
	}
	return &ColorHandler{
		out:       out,
		mu:        &sync.Mutex{},
		component: component,
		useColors: useColors,
		level:     level,
	}
}

// Enabled reports whether the handler emits records at the given level
func (h *ColorHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level.Level()
}

// Handle processes a log record with color-coded output
func (h *ColorHandler) Handle(_ context.Context, r slog.Record) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	color, reset := componentColors[h.component], colorReset
	if !h.useColors {
		color, reset = "", ""
	}

	// Format: glyph [COMPONENT] message attrs...
	fmt.Fprintf(h.out, "%s%s [%s]%s %s", color, levelGlyph(r.Level), h.component, reset, r.Message)

	for _, a := range h.attrs {
		fmt.Fprintf(h.out, " %s=%v", a.Key, a.Value)
	}
	r.Attrs(func(a slog.Attr) bool {
		fmt.Fprintf(h.out, " %s=%v", h.qualify(a.Key), a.Value)
		return true
	})
	fmt.Fprintln(h.out)

	return nil
}

// WithAttrs returns a new handler with the given attributes
func (h *ColorHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	clone := *h
	clone.attrs = make([]slog.Attr, 0, len(h.attrs)+len(attrs))
	clone.attrs = append(clone.attrs, h.attrs...)
	for _, a := range attrs {
		a.Key = h.qualify(a.Key)
		clone.attrs = append(clone.attrs, a)
	}
	return &clone
}

// WithGroup returns a new handler with the given group
func (h *ColorHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	clone := *h
	clone.group = h.qualify(name)
	return &clone
}

func (h *ColorHandler) qualify(key string) string {
	if h.group == "" {
		return key
	}
	return h.group + "." + key
}

func levelGlyph(level slog.Level) string {
	switch {
	case level >= slog.LevelError:
		return "\U0001F534" // Red circle
	case level >= slog.LevelWarn:
		return "\U0001F7E1" // Yellow circle
	case level >= slog.LevelInfo:
		return "\U0001F535" // Blue circle
	default:
		return "\U0001F7E3" // Purple circle
	}
}

// ParseLevel maps a config string to a slog level, defaulting to info.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

var level = new(slog.LevelVar)

// SetLevel changes the level of every logger created by New.
func SetLevel(l slog.Level) {
	level.Set(l)
}

// Logger wraps slog.Logger with component-specific functionality
type Logger struct {
	*slog.Logger
	component Component
}

// New creates a new component-specific logger
func New(component Component) *Logger {
	useColors := os.Getenv("NO_COLOR") == "" && os.Getenv("TERM") != "dumb"
	handler := NewColorHandler(os.Stdout, component, useColors, level)
	return &Logger{
		Logger:    slog.New(handler),
		component: component,
	}
}

// NewWithWriter creates a logger with a custom writer
func NewWithWriter(component Component, w io.Writer, useColors bool) *Logger {
	handler := NewColorHandler(w, component, useColors, slog.LevelDebug)
	return &Logger{
		Logger:    slog.New(handler),
		component: component,
	}
}

// Discard returns a logger that drops everything. Useful in tests.
func Discard(component Component) *Logger {
	return NewWithWriter(component, io.Discard, false)
}

// Component returns the component tag of the logger
func (l *Logger) Component() Component {
	return l.component
}

// Success logs a success message
func (l *Logger) Success(msg string, args ...any) {
	l.Info("✅ "+msg, args...)
}

// Deny logs a denial message
func (l *Logger) Deny(msg string, args ...any) {
	l.Warn("❌ DENY: "+msg, args...)
}

// Allow logs an allow decision
func (l *Logger) Allow(msg string, args ...any) {
	l.Info("✅ ALLOW: "+msg, args...)
}

// Section logs a section header
func (l *Logger) Section(title string) {
	bar := strings.Repeat("═", 50)
	l.Info(bar)
	l.Info(" " + title)
	l.Info(bar)
}

// Script logs script-related info
func (l *Logger) Script(scriptID string, msg string, args ...any) {
	l.Info("\U0001F4DC ["+scriptID+"] "+msg, args...)
}
