package logger

import (
	"bytes"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestColorHandler_PlainOutput(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithWriter(ComponentIndex, &buf, false)

	log.With("key", "script_keys").Warn("index payload malformed", "bytes", 12)

	out := buf.String()
	assert.Contains(t, out, "[INDEX]")
	assert.Contains(t, out, "index payload malformed")
	assert.Contains(t, out, "key=script_keys")
	assert.Contains(t, out, "bytes=12")
	assert.NotContains(t, out, "\033[")
}

func TestColorHandler_Group(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithWriter(ComponentLedger, &buf, false)

	log.WithGroup("s3").Info("put", "key", "script_1")

	assert.Contains(t, buf.String(), "s3.key=script_1")
}

func TestColorHandler_Level(t *testing.T) {
	var buf bytes.Buffer
	h := NewColorHandler(&buf, ComponentArchive, false, slog.LevelWarn)
	log := slog.New(h)

	log.Info("hidden")
	log.Error("shown")

	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "shown")
}

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"INFO":    slog.LevelInfo,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"":        slog.LevelInfo,
		"bogus":   slog.LevelInfo,
	}
	for in, want := range tests {
		assert.Equal(t, want, ParseLevel(in), "input %q", in)
	}
}
