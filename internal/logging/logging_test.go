package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_Text(t *testing.T) {
	var buf bytes.Buffer
	New(WithWriter(&buf)).Info("page converted", "page", 3)

	assert.Contains(t, buf.String(), "page converted")
	assert.Contains(t, buf.String(), "page=3")
}

func TestNew_Levels(t *testing.T) {
	var buf bytes.Buffer
	l := New(WithWriter(&buf), WithLevel(slog.LevelWarn))
	l.Info("hidden")
	assert.Empty(t, buf.String())

	l.Warn("shown")
	assert.Contains(t, buf.String(), "shown")

	buf.Reset()
	New(WithWriter(&buf), WithDebug(true)).Debug("debug msg")
	assert.Contains(t, buf.String(), "debug msg")
}

func TestNew_JSON(t *testing.T) {
	var buf bytes.Buffer
	New(WithWriter(&buf), WithJSON(true), WithPretty(true)).Info("upserted", "points", 42)

	var parsed map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &parsed))
	assert.Equal(t, "upserted", parsed["msg"])
	assert.EqualValues(t, 42, parsed["points"])
}

func TestNew_Pretty(t *testing.T) {
	var buf bytes.Buffer
	New(WithWriter(&buf), WithPretty(true)).Info("pretty output")
	assert.Contains(t, buf.String(), "pretty output")
}

func TestNew_Writers(t *testing.T) {
	var a, b bytes.Buffer
	New(WithWriters(&a, &b)).Info("multi")
	assert.Contains(t, a.String(), "multi")
	assert.Contains(t, b.String(), "multi")
}

func TestNop(t *testing.T) {
	l := Nop()
	assert.False(t, l.Handler().Enabled(context.Background(), slog.LevelError))
	assert.NotPanics(t, func() { l.With("k", "v").Error("dropped") })
}

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug": slog.LevelDebug,
		"INFO":  slog.LevelInfo,
		" warn": slog.LevelWarn,
		"error": slog.LevelError,
	}
	for in, want := range tests {
		got, err := ParseLevel(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := ParseLevel("loud")
	assert.Error(t, err)
}

func TestFromConfig(t *testing.T) {
	var buf bytes.Buffer
	l, err := FromConfig("debug", "json", &buf)
	require.NoError(t, err)
	l.Debug("hello")
	assert.Contains(t, buf.String(), `"msg":"hello"`)

	_, err = FromConfig("info", "xml", nil)
	assert.Error(t, err)

	_, err = FromConfig("verbose", "text", nil)
	assert.Error(t, err)
}
