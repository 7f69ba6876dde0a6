package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"reflect"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    slog.Level
		wantErr bool
	}{
		{"debug", slog.LevelDebug, false},
		{"INFO", slog.LevelInfo, false},
		{"", slog.LevelInfo, false},
		{"warning", slog.LevelWarn, false},
		{"error", slog.LevelError, false},
		{"loud", slog.LevelInfo, true},
	}
	for _, tt := range tests {
		got, err := ParseLevel(tt.in)
		assert.Equal(t, tt.want, got, tt.in)
		assert.Equal(t, tt.wantErr, err != nil, tt.in)
	}
}

func TestSimpleFormat(t *testing.T) {
	var buf bytes.Buffer
	log := slog.New(NewHandler(slog.LevelInfo, &buf, "simple"))

	log.With("conversation_id", "c1").WithGroup("tool").Info("Tool finished",
		"name", "monthly_trend", "took", 1500*time.Microsecond, "note", "two words")
	log.Debug("hidden")

	assert.Equal(t,
		"INFO Tool finished conversation_id=c1 tool.name=monthly_trend tool.took=1.5ms tool.note=\"two words\"\n",
		buf.String())
}

func TestVerboseFormat(t *testing.T) {
	var buf bytes.Buffer
	log := slog.New(NewHandler(slog.LevelDebug, &buf, "verbose"))
	log.Warn("slow", "n", 3)

	line := buf.String()
	assert.Regexp(t, `^\d{4}/\d{2}/\d{2} \d{2}:\d{2}:\d{2} WARN slow n=3\n$`, line)
}

func TestJSONFormat(t *testing.T) {
	var buf bytes.Buffer
	log := slog.New(NewHandler(slog.LevelInfo, &buf, "json"))
	log.Error("boom", "status", 500)

	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	assert.Equal(t, "ERROR", rec["level"])
	assert.Equal(t, "boom", rec["msg"])
	assert.EqualValues(t, 500, rec["status"])
}

func TestThirdPartyRecordsFiltered(t *testing.T) {
	foreignPC := reflect.ValueOf(strings.ToUpper).Pointer()

	for _, tt := range []struct {
		level slog.Level
		want  bool
	}{
		{slog.LevelInfo, false},
		{slog.LevelDebug, true},
	} {
		var buf bytes.Buffer
		h := NewHandler(tt.level, &buf, "simple")
		rec := slog.NewRecord(time.Now(), slog.LevelError, "from a dependency", foreignPC)
		require.NoError(t, h.Handle(context.Background(), rec))
		assert.Equal(t, tt.want, buf.Len() > 0, "level %s", tt.level)
	}
}

func TestOwnRecordsKeptThroughLoggerMethods(t *testing.T) {
	var buf bytes.Buffer
	l := slog.New(NewHandler(slog.LevelInfo, &buf, "simple"))

	l.Info("from module code")
	l.Warn("still here", "n", 1)
	l.Log(context.Background(), slog.LevelError, "and here")
	l.Debug("below level")

	assert.Equal(t, "INFO from module code\nWARN still here n=1\nERROR and here\n", buf.String())
}

func TestIsOwnPackage(t *testing.T) {
	var pcs [1]uintptr
	runtime.Callers(1, pcs[:])
	assert.True(t, isOwnPackage(pcs[0]))
	assert.True(t, isOwnPackage(0))
	assert.False(t, isOwnPackage(reflect.ValueOf(strings.ToUpper).Pointer()))
}

func TestInitSetsDefault(t *testing.T) {
	prev := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prev) })

	var buf bytes.Buffer
	l := Init(slog.LevelInfo, &buf, "simple")
	assert.Same(t, l, GetLogger())

	slog.Info("hello")
	assert.Equal(t, "INFO hello\n", buf.String())
}

func TestOpenLogFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tally.log")
	f, cleanup, err := OpenLogFile(path)
	require.NoError(t, err)
	_, err = f.WriteString("line\n")
	require.NoError(t, err)
	cleanup()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "line\n", string(data))

	_, _, err = OpenLogFile(filepath.Join(t.TempDir(), "missing", "x.log"))
	require.Error(t, err)
}
