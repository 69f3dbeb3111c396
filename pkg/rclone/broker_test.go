package rclone

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/storagebroker/service/pkg/adapter"
	"github.com/storagebroker/service/pkg/errs"
	"github.com/storagebroker/service/pkg/types"
)

// fakeSystem backs only the paths/markers rclone.Broker needs.
type fakeSystem struct {
	adapter.System
	configDir string
	mountDir  string
	mounted   map[string]bool
	markers   map[string]types.MountOptionsSettings
}

func newFakeSystem(t *testing.T) *fakeSystem {
	return &fakeSystem{
		configDir: t.TempDir(),
		mountDir:  t.TempDir(),
		mounted:   map[string]bool{},
		markers:   map[string]types.MountOptionsSettings{},
	}
}

func (f *fakeSystem) ConfigPathForUID(scope types.ConfigScope, uid uint32) (string, error) {
	return filepath.Join(f.configDir, string(scope)+".conf"), nil
}

func (f *fakeSystem) MountPointForUID(scope types.ConfigScope, uid uint32, remoteName string) (string, error) {
	return filepath.Join(f.mountDir, string(scope), remoteName), nil
}

func (f *fakeSystem) IsMounted(mountPoint string) (bool, error) {
	return f.mounted[mountPoint], nil
}

func (f *fakeSystem) ReadMountMarkers(context.Context) ([]types.MountOptionsSettings, error) {
	out := make([]types.MountOptionsSettings, 0, len(f.markers))
	for _, m := range f.markers {
		out = append(out, m)
	}
	return out, nil
}

func (f *fakeSystem) WriteMountMarker(_ context.Context, device string, opts types.MountOptionsSettings) error {
	f.markers[device] = opts
	return nil
}

func (f *fakeSystem) RemoveMountMarker(_ context.Context, device string) error {
	delete(f.markers, device)
	return nil
}

func TestBroker_CreateListGetDeleteRemote(t *testing.T) {
	sys := newFakeSystem(t)
	b := NewBroker(sys, nil)
	ctx := context.Background()

	err := b.CreateRemote(ctx, types.RcloneRemoteConfig{
		Name:       "work",
		RemoteType: "sftp",
		Scope:      types.ScopeUser,
		Options:    map[string]string{"host": "example.com", "pass": "hunter2"},
	}, 1000)
	require.NoError(t, err)

	err = b.CreateRemote(ctx, types.RcloneRemoteConfig{Name: "work", RemoteType: "sftp", Scope: types.ScopeUser}, 1000)
	require.Error(t, err)
	assert.Equal(t, errs.InvalidArgs, errs.As(err))

	list, err := b.ListRemotes(ctx, 1000)
	require.NoError(t, err)
	require.Len(t, list.Remotes, 1)
	assert.Equal(t, "work", list.Remotes[0].Name)
	assert.True(t, list.Remotes[0].HasSecrets)

	remote, err := b.GetRemote(ctx, "work", types.ScopeUser, 1000)
	require.NoError(t, err)
	assert.Equal(t, "sftp", remote.RemoteType)

	require.NoError(t, b.DeleteRemote(ctx, "work", types.ScopeUser, 1000))
	_, err = b.GetRemote(ctx, "work", types.ScopeUser, 1000)
	require.Error(t, err)
	assert.Equal(t, errs.NotFound, errs.As(err))
}

func TestBroker_MountOnBootRoundTrip(t *testing.T) {
	sys := newFakeSystem(t)
	b := NewBroker(sys, nil)
	ctx := context.Background()

	enabled, err := b.GetMountOnBoot(ctx, "work", types.ScopeUser)
	require.NoError(t, err)
	assert.False(t, enabled)

	require.NoError(t, b.SetMountOnBoot(ctx, "work", types.ScopeUser, true))
	enabled, err = b.GetMountOnBoot(ctx, "work", types.ScopeUser)
	require.NoError(t, err)
	assert.True(t, enabled)

	require.NoError(t, b.SetMountOnBoot(ctx, "work", types.ScopeUser, false))
	enabled, err = b.GetMountOnBoot(ctx, "work", types.ScopeUser)
	require.NoError(t, err)
	assert.False(t, enabled)
}

func TestBroker_GetMountStatus(t *testing.T) {
	sys := newFakeSystem(t)
	b := NewBroker(sys, nil)
	ctx := context.Background()

	status, err := b.GetMountStatus(ctx, "work", types.ScopeUser, 1000)
	require.NoError(t, err)
	assert.False(t, status.Mounted)

	mountPoint, _ := sys.MountPointForUID(types.ScopeUser, 1000, "work")
	sys.mounted[mountPoint] = true

	status, err = b.GetMountStatus(ctx, "work", types.ScopeUser, 1000)
	require.NoError(t, err)
	assert.True(t, status.Mounted)
}
