package handlers

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/storagebroker/service/pkg/adapter"
	"github.com/storagebroker/service/pkg/auth"
	"github.com/storagebroker/service/pkg/errs"
	"github.com/storagebroker/service/pkg/policy"
	"github.com/storagebroker/service/pkg/rclone"
	"github.com/storagebroker/service/pkg/signalbus"
	"github.com/storagebroker/service/pkg/types"
)

func newTestRclone(t *testing.T, sys *fakeRcloneSystem, denied ...string) *Rclone {
	t.Helper()
	backend := auth.NewStubBackend()
	for _, a := range denied {
		backend.Denied[a] = true
	}
	gate := auth.New(backend, auth.StaticResolver{UID: 1000})
	bus := signalbus.New()
	bus.Start()
	t.Cleanup(bus.Stop)
	return NewRclone(rclone.NewBroker(sys, nil), gate, bus)
}

// fakeRcloneSystem mirrors pkg/rclone's own unexported broker_test.go
// test double, duplicated here since this package cannot reach into
// another package's _test.go file.
type fakeRcloneSystem struct {
	adapter.System
	configDir string
	mountDir  string
	mounted   map[string]bool
	markers   map[string]types.MountOptionsSettings
}

func newFakeRcloneSystem(t *testing.T) *fakeRcloneSystem {
	t.Helper()
	return &fakeRcloneSystem{
		configDir: t.TempDir(),
		mountDir:  t.TempDir(),
		mounted:   map[string]bool{},
		markers:   map[string]types.MountOptionsSettings{},
	}
}

func (f *fakeRcloneSystem) ConfigPathForUID(scope types.ConfigScope, uid uint32) (string, error) {
	return filepath.Join(f.configDir, string(scope)+".conf"), nil
}

func (f *fakeRcloneSystem) MountPointForUID(scope types.ConfigScope, uid uint32, remoteName string) (string, error) {
	return filepath.Join(f.mountDir, string(scope), remoteName), nil
}

func (f *fakeRcloneSystem) IsMounted(mountPoint string) (bool, error) {
	return f.mounted[mountPoint], nil
}

func (f *fakeRcloneSystem) ReadMountMarkers(context.Context) ([]types.MountOptionsSettings, error) {
	out := make([]types.MountOptionsSettings, 0, len(f.markers))
	for _, m := range f.markers {
		out = append(out, m)
	}
	return out, nil
}

func (f *fakeRcloneSystem) WriteMountMarker(_ context.Context, device string, opts types.MountOptionsSettings) error {
	f.markers[device] = opts
	return nil
}

func (f *fakeRcloneSystem) RemoveMountMarker(_ context.Context, device string) error {
	delete(f.markers, device)
	return nil
}

func TestRclone_CreateRemote_RequiresElevatedActionForSystemScope(t *testing.T) {
	sys := newFakeRcloneSystem(t)
	h := newTestRclone(t, sys, policy.ActionName(rcloneDomain, "system-create-remote"))

	err := h.CreateRemote(context.Background(), types.RcloneRemoteConfig{
		Name: "backup", RemoteType: "local", Scope: types.ScopeSystem,
	})
	require.Error(t, err)
	assert.Equal(t, errs.NotAuthorized, errs.As(err))
}

func TestRclone_CreateThenListRemote(t *testing.T) {
	sys := newFakeRcloneSystem(t)
	h := newTestRclone(t, sys)

	err := h.CreateRemote(context.Background(), types.RcloneRemoteConfig{
		Name: "backup", RemoteType: "local", Scope: types.ScopeUser,
	})
	require.NoError(t, err)

	list, err := h.ListRemotes(context.Background(), 1000)
	require.NoError(t, err)
	require.Len(t, list.Remotes, 1)
	assert.Equal(t, "backup", list.Remotes[0].Name)
}

func TestRclone_SupportedRemoteTypes(t *testing.T) {
	h := newTestRclone(t, newFakeRcloneSystem(t))
	assert.Contains(t, h.SupportedRemoteTypes(), "sftp")
}
