package logger

import (
	"bytes"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"dycrawler/pkg/config"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newBufferLogger(buf *bytes.Buffer) *zerologLogger {
	zlog := zerolog.New(buf).Level(zerolog.DebugLevel)
	return &zerologLogger{logger: &zlog, fields: map[string]interface{}{}}
}

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		cfg     *config.LoggingConfig
		wantErr bool
	}{
		{"info level", &config.LoggingConfig{Level: "info"}, false},
		{"debug level", &config.LoggingConfig{Level: "debug"}, false},
		{"invalid level", &config.LoggingConfig{Level: "chatty"}, true},
		{"file output", &config.LoggingConfig{Level: "info", File: filepath.Join(t.TempDir(), "logs", "dy.log")}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l, err := NewWithWriter(tt.cfg, &bytes.Buffer{})
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.NotNil(t, l)
		})
	}
}

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		level    string
		expected zerolog.Level
		wantErr  bool
	}{
		{"debug", zerolog.DebugLevel, false},
		{"INFO", zerolog.InfoLevel, false},
		{"", zerolog.InfoLevel, false},
		{"warning", zerolog.WarnLevel, false},
		{"error", zerolog.ErrorLevel, false},
		{"disabled", zerolog.Disabled, false},
		{"verbose", zerolog.InfoLevel, true},
	}

	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			level, err := parseLogLevel(tt.level)
			assert.Equal(t, tt.wantErr, err != nil)
			assert.Equal(t, tt.expected, level)
		})
	}
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	l, err := NewWithWriter(&config.LoggingConfig{Level: "warn"}, &buf)
	require.NoError(t, err)

	l.Info("hidden")
	l.Warn("shown")

	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "shown")
}

func TestFieldsAndChaining(t *testing.T) {
	var buf bytes.Buffer
	base := newBufferLogger(&buf)

	base.WithField("sec_user_id", "MS4w").
		WithFields(map[string]interface{}{"page": 2, "has_more": true}).
		InfoWithFields("page fetched", map[string]interface{}{"items": 18})

	out := buf.String()
	assert.Contains(t, out, `"sec_user_id":"MS4w"`)
	assert.Contains(t, out, `"page":2`)
	assert.Contains(t, out, `"has_more":true`)
	assert.Contains(t, out, `"items":18`)

	buf.Reset()
	base.Info("parent untouched")
	assert.NotContains(t, buf.String(), "sec_user_id")
}

func TestWithError(t *testing.T) {
	var buf bytes.Buffer
	base := newBufferLogger(&buf)

	assert.Same(t, base, base.WithError(nil))

	base.WithError(errors.New("connection reset")).Error("download failed")
	assert.Contains(t, buf.String(), "connection reset")
}

func TestFieldTypes(t *testing.T) {
	var buf bytes.Buffer
	newBufferLogger(&buf).InfoWithFields("types", map[string]interface{}{
		"int64":    int64(456),
		"duration": 5 * time.Second,
		"strings":  []string{"a", "b"},
		"custom":   struct{ Name string }{Name: "x"},
	})

	out := buf.String()
	assert.Contains(t, out, `"int64":456`)
	assert.Contains(t, out, `"strings":["a","b"]`)
	assert.Contains(t, out, `"Name":"x"`)
}

func TestGlobalLogger(t *testing.T) {
	tl := NewTestLogger()
	SetLogger(tl)
	t.Cleanup(func() { SetLogger(nil) })

	Info("global info")
	WithField("k", "v").Warn("global warn")

	assert.True(t, tl.HasMessage("global info"))
	warns := tl.GetMessagesByLevel("WARN")
	require.Len(t, warns, 1)
	assert.Equal(t, "v", warns[0].Fields["k"])

	assert.Same(t, tl, OrGlobal(nil))
}

func TestHelpers(t *testing.T) {
	tl := NewTestLogger()

	LogPage(tl, 1, 18, 2, true)
	LogDownload(tl, "7001", "clip", "/tmp/clip.mp4", nil)
	LogDownload(tl, "7002", "broken", "", errors.New("status 403"))
	LogRequest(tl, "GET", "https://example.com", 503, time.Second)
	LogSummary(tl, 2, 1, 1, 0, time.Minute)

	assert.True(t, tl.HasMessage("Listing page fetched"))
	assert.True(t, tl.HasMessage("Download completed"))
	assert.True(t, tl.HasError())

	errs := tl.GetMessagesByLevel("ERROR")
	require.Len(t, errs, 2)
	assert.EqualError(t, errs[0].Error, "status 403")
	assert.Equal(t, "7002", errs[0].Fields["video_id"])
}

func TestTestLoggerSharesSink(t *testing.T) {
	tl := NewTestLogger()
	child := tl.WithField("component", "walker").WithError(errors.New("boom"))
	child.Warn("from child")

	msgs := tl.GetMessages()
	require.Len(t, msgs, 1)
	assert.Equal(t, "walker", msgs[0].Fields["component"])
	assert.EqualError(t, msgs[0].Error, "boom")
	assert.True(t, tl.HasMessageContaining("child"))

	tl.Clear()
	assert.Empty(t, tl.GetMessages())
}

func TestNopLogger(t *testing.T) {
	l := NewNopLogger()
	l.WithField("a", 1).WithError(errors.New("x")).Error("ignored")
	assert.Nil(t, l.GetZerolog())
}
