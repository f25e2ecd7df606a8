package logger

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestInitConfiguresGlobalLogger(t *testing.T) {
	t.Cleanup(func() { Replace(nil) })

	require.NoError(t, Init(Options{Level: "debug"}))
	require.True(t, Logger().Core().Enabled(zap.DebugLevel))
}

func TestInitFallsBackToInfoOnUnknownLevel(t *testing.T) {
	t.Cleanup(func() { Replace(nil) })

	require.NoError(t, Init(Options{Level: "verbose", Encoding: "console"}))
	core := Logger().Core()
	require.False(t, core.Enabled(zap.DebugLevel))
	require.True(t, core.Enabled(zap.InfoLevel))
}

func TestLoggingHelpersEmitEntries(t *testing.T) {
	core, recorded := observer.New(zap.DebugLevel)
	t.Cleanup(func() { Replace(nil) })
	Replace(zap.New(core))

	Info("info message", zap.String("k", "v"))
	Error("error message")
	Warn("warn message")
	Debug("debug message")

	entries := recorded.All()
	require.Len(t, entries, 4)
	want := []string{"info message", "error message", "warn message", "debug message"}
	for i, entry := range entries {
		require.Equal(t, want[i], entry.Message)
	}
	require.Equal(t, "v", entries[0].ContextMap()["k"])
}

func TestWithModuleAttachesModuleField(t *testing.T) {
	core, recorded := observer.New(zap.InfoLevel)
	t.Cleanup(func() { Replace(nil) })
	Replace(zap.New(core))

	WithModule("blood_requests").Info("status updated")

	entries := recorded.All()
	require.Len(t, entries, 1)
	require.Equal(t, "blood_requests", entries[0].ContextMap()["module"])
}

func TestInitWithRotatingFile(t *testing.T) {
	t.Cleanup(func() { Replace(nil); SetLevel("info") })

	path := filepath.Join(t.TempDir(), "bloodbridge.log")
	require.NoError(t, Init(Options{Level: "info", File: path, MaxSizeMB: 1}))

	Info("written to file", zap.String("k", "v"))
	require.NoError(t, Sync())

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Contains(t, string(content), "written to file")
}

func TestSetLevelAdjustsRunningLogger(t *testing.T) {
	t.Cleanup(func() { Replace(nil); SetLevel("info") })

	require.NoError(t, Init(Options{Level: "info"}))
	require.False(t, Logger().Core().Enabled(zap.DebugLevel))

	SetLevel("debug")
	require.True(t, Logger().Core().Enabled(zap.DebugLevel))
}
