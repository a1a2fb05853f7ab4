package logger

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mafia-game/backend/internal/config"
)

func TestModuleLevels(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, Init(&config.LogConfig{
		Level:  "info",
		Format: "json",
		Output: "file",
		File: config.LogFileConfig{
			Path:     dir,
			Filename: "mafia.log",
			MaxSize:  1,
		},
		Modules: map[string]string{"room": "error"},
	}))
	t.Cleanup(func() {
		mu.Lock()
		logger = nil
		moduleLevels = nil
		mu.Unlock()
	})

	WithModule("room").Warn("suppressed warning")
	WithModule("room").Error("room failure")
	WithModule("server").Debug("suppressed debug")
	WithModule("server").Info("server ready")

	all, err := os.ReadFile(filepath.Join(dir, "mafia.log"))
	require.NoError(t, err)
	assert.Contains(t, string(all), "server ready")
	assert.Contains(t, string(all), "room failure")
	assert.Contains(t, string(all), `"logger":"room"`)
	assert.NotContains(t, string(all), "suppressed")

	errorsOnly, err := os.ReadFile(filepath.Join(dir, "error.log"))
	require.NoError(t, err)
	assert.Contains(t, string(errorsOnly), "room failure")
	assert.NotContains(t, string(errorsOnly), "server ready")
}

func TestGetBeforeInit(t *testing.T) {
	assert.NotNil(t, Get())
	assert.NotPanics(t, func() {
		LogRequest("GET", "/health", 200, 0, "127.0.0.1")
	})
}
