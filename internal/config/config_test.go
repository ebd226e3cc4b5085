package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func writeConf(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "dispatchd.json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad_ValuesAboveFloorsPassThrough(t *testing.T) {
	path := writeConf(t, `{"secret":"1234567890","socket":"100.100.100.100:8000","workers":8,"command_buffer":1024,"node":"node1","connection_buffer_size":4096}`)

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "100.100.100.100:8000", cfg.Socket())
	require.Equal(t, 8, cfg.Workers())
	require.Equal(t, 1024, cfg.CommandBufferSize())
	require.Equal(t, 4096, cfg.ConnectionBufferSize())
	require.Equal(t, "1234567890", cfg.Secret())
	require.Equal(t, "node1", cfg.Node())
}

func TestLoad_FloorsBelowMinimums(t *testing.T) {
	path := writeConf(t, `{"secret":"s","node":"n","workers":1,"command_buffer":1,"connection_buffer_size":10}`)

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, MinCommandPoolSize, cfg.CommandBufferSize())
	require.Equal(t, MinBufferSize, cfg.ConnectionBufferSize())
	require.Equal(t, DefaultSocket, cfg.Socket())
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.json"))
	require.Error(t, err)
}

func TestLoad_MalformedJSON(t *testing.T) {
	path := writeConf(t, `{not json`)
	_, err := Load(path)
	require.Error(t, err)
}

func TestLoad_InvalidSocket(t *testing.T) {
	path := writeConf(t, `{"socket":"not-a-socket","node":"n"}`)
	_, err := Load(path)
	require.Error(t, err)
}

func TestConfig_StringDescribesNodeAndSocket(t *testing.T) {
	path := writeConf(t, `{"node":"n1","socket":"127.0.0.1:5882"}`)
	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "Server n1 at 127.0.0.1:5882.", cfg.String())
}
