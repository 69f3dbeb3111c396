package rclone

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rclone.conf")

	cfg := map[string]RemoteOptions{
		"work": {"type": "sftp", "host": "example.com", "user": "alice"},
	}
	require.NoError(t, writeConfig(path, cfg))

	read, err := readConfig(path)
	require.NoError(t, err)
	require.Contains(t, read, "work")
	assert.Equal(t, "sftp", read["work"]["type"])
	assert.Equal(t, "example.com", read["work"]["host"])
	assert.Equal(t, "alice", read["work"]["user"])
}

func TestReadConfig_MissingFileReturnsEmpty(t *testing.T) {
	cfg, err := readConfig(filepath.Join(t.TempDir(), "nope.conf"))
	require.NoError(t, err)
	assert.Empty(t, cfg)
}
