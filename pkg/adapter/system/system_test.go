package system

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/storagebroker/service/pkg/types"
)

func TestGetUsage_CurrentDir(t *testing.T) {
	s := New("")
	usage, err := s.GetUsage(context.Background(), ".")
	require.NoError(t, err)
	assert.Greater(t, usage.Size, uint64(0))
	assert.GreaterOrEqual(t, usage.Used, uint64(0))
}

func TestMountMarkers_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "markers.conf")
	s := New(path)
	ctx := context.Background()

	require.NoError(t, s.WriteMountMarker(ctx, "/dev/sda1", types.MountOptionsSettings{RawOptions: []string{"noauto", "rw"}}))
	require.NoError(t, s.WriteMountMarker(ctx, "/dev/sdb1", types.MountOptionsSettings{RawOptions: []string{"ro"}}))

	markers, err := s.ReadMountMarkers(ctx)
	require.NoError(t, err)
	assert.Len(t, markers, 2)

	require.NoError(t, s.RemoveMountMarker(ctx, "/dev/sda1"))
	markers, err = s.ReadMountMarkers(ctx)
	require.NoError(t, err)
	assert.Len(t, markers, 1)
}

func TestMountMarkers_MissingFileReadsEmpty(t *testing.T) {
	s := New(filepath.Join(t.TempDir(), "does-not-exist.conf"))
	markers, err := s.ReadMountMarkers(context.Background())
	require.NoError(t, err)
	assert.Empty(t, markers)
}

func TestSupportedFilesystemTypes_DoesNotError(t *testing.T) {
	s := New("")
	supported, err := s.SupportedFilesystemTypes(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, supported)
}

func TestFindBlockingProcesses_SelfNotMatched(t *testing.T) {
	s := New("")
	refs, err := s.FindBlockingProcesses(context.Background(), os.TempDir()+"/does-not-exist-mount-point")
	require.NoError(t, err)
	assert.Empty(t, refs)
}
