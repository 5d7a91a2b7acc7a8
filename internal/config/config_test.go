package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, ".", cfg.Workspace)
	assert.Equal(t, filepath.Join(".", ".symgraph", "index.db"), cfg.DBPath)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.True(t, cfg.Audit.Enabled)
	assert.False(t, cfg.Audit.Verbose)
	assert.False(t, cfg.LSP.Enabled)
	assert.Equal(t, 300*time.Millisecond, cfg.DebounceInterval())
}

func TestLoadMissingFileIsNotAnError(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, ".", cfg.Workspace)
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "symgraph.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
workspace: /srv/proj
log_level: debug
audit:
  enabled: false
lsp:
  enabled: true
  server_paths:
    go: /usr/local/bin/gopls
watch:
  enabled: true
  debounce_ms: 500
`), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "/srv/proj", cfg.Workspace)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.False(t, cfg.Audit.Enabled)
	assert.True(t, cfg.LSP.Enabled)
	assert.Equal(t, "/usr/local/bin/gopls", cfg.LSP.ServerPaths["go"])
	assert.True(t, cfg.Watch.Enabled)
	assert.Equal(t, 500*time.Millisecond, cfg.DebounceInterval())
	assert.Equal(t, filepath.Join("/srv/proj", ".symgraph", "index.db"), cfg.DBPath)
}

func TestLoadMalformedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("workspace: [unclosed"), 0644))

	_, err := Load(path)
	require.Error(t, err)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("SYMGRAPH_WORKSPACE", "/env/ws")
	t.Setenv("SYMGRAPH_DB_PATH", "/env/db.sqlite")
	t.Setenv("SYMGRAPH_LOG_LEVEL", "warn")
	t.Setenv("SYMGRAPH_AUDIT", "false")
	t.Setenv("SYMGRAPH_AUDIT_VERBOSE", "true")
	t.Setenv("SYMGRAPH_LSP", "true")
	t.Setenv("SYMGRAPH_WATCH", "1")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "/env/ws", cfg.Workspace)
	assert.Equal(t, "/env/db.sqlite", cfg.DBPath)
	assert.Equal(t, "warn", cfg.LogLevel)
	assert.False(t, cfg.Audit.Enabled)
	assert.True(t, cfg.Audit.Verbose)
	assert.True(t, cfg.LSP.Enabled)
	assert.True(t, cfg.Watch.Enabled)
}

func TestEnvBoolIgnoresGarbage(t *testing.T) {
	t.Setenv("SYMGRAPH_AUDIT", "maybe")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.True(t, cfg.Audit.Enabled)
}
