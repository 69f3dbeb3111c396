package handlers

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/storagebroker/service/pkg/adapter"
	"github.com/storagebroker/service/pkg/adapter/udisks"
	"github.com/storagebroker/service/pkg/auth"
	"github.com/storagebroker/service/pkg/errs"
	"github.com/storagebroker/service/pkg/policy"
	"github.com/storagebroker/service/pkg/signalbus"
	"github.com/storagebroker/service/pkg/types"
)

// fakeSys backs only the System methods Filesystems needs.
type fakeSys struct {
	adapter.System
	supported map[string]bool
	markers   map[string]types.MountOptionsSettings
	blocking  []types.ProcessRef
}

func newFakeSys() *fakeSys {
	return &fakeSys{supported: map[string]bool{"ext4": true, "xfs": true}, markers: map[string]types.MountOptionsSettings{}}
}

func (f *fakeSys) SupportedFilesystemTypes(context.Context) (map[string]bool, error) { return f.supported, nil }
func (f *fakeSys) GetUsage(context.Context, string) (types.UsageResult, error) {
	return types.UsageResult{Size: 100, Used: 40, Available: 60, Percent: 40}, nil
}
func (f *fakeSys) FindBlockingProcesses(context.Context, string) ([]types.ProcessRef, error) {
	return f.blocking, nil
}
func (f *fakeSys) ReadMountMarkers(context.Context) ([]types.MountOptionsSettings, error) {
	out := make([]types.MountOptionsSettings, 0, len(f.markers))
	for _, m := range f.markers {
		out = append(out, m)
	}
	return out, nil
}
func (f *fakeSys) WriteMountMarker(_ context.Context, device string, opts types.MountOptionsSettings) error {
	f.markers[device] = opts
	return nil
}
func (f *fakeSys) RemoveMountMarker(_ context.Context, device string) error {
	delete(f.markers, device)
	return nil
}

// busyOnceDaemon wraps a Fake so the first Unmount call fails with
// DeviceBusy and subsequent calls succeed, exercising Unmount's
// kill-and-retry path.
type busyOnceDaemon struct {
	*udisks.Fake
	unmountCalls int
}

func (d *busyOnceDaemon) Unmount(ctx context.Context, objectPath string, force bool) error {
	d.unmountCalls++
	if d.unmountCalls == 1 {
		return errs.New(errs.DeviceBusy, filesystemsDomain, "target busy")
	}
	return d.Fake.Unmount(ctx, objectPath, force)
}

func newTestFilesystems(t *testing.T, daemon adapter.BlockDaemon, sys *fakeSys, denied ...string) *Filesystems {
	t.Helper()
	backend := auth.NewStubBackend()
	for _, action := range denied {
		backend.Denied[action] = true
	}
	gate := auth.New(backend, auth.StaticResolver{UID: 1000})
	bus := signalbus.New()
	bus.Start()
	t.Cleanup(bus.Stop)

	h, err := NewFilesystems(context.Background(), daemon, sys, gate, bus)
	require.NoError(t, err)
	return h
}

func seedVolume(daemon *udisks.Fake) {
	daemon.AddDisk(types.Disk{Device: "/dev/sda", ObjectPath: "/org/storagebroker/Service1/Disks/sda"}, []types.Volume{
		{ObjectPath: "/org/storagebroker/Service1/Volumes/sda1", DevicePath: "/dev/sda1", Variant: types.VariantFilesystem, IDType: "ext4"},
	})
}

func TestFilesystems_Format_ValidatesSupportedType(t *testing.T) {
	daemon := udisks.NewFake()
	seedVolume(daemon)
	h := newTestFilesystems(t, daemon, newFakeSys())

	err := h.Format(context.Background(), "sda1", "zfs", "data", types.MountOptionsSettings{})
	require.Error(t, err)
	assert.Equal(t, errs.NotSupported, errs.As(err))

	require.NoError(t, h.Format(context.Background(), "sda1", "ext4", "data", types.MountOptionsSettings{}))
}

func TestFilesystems_ListFilesystems_ExcludesLuks(t *testing.T) {
	daemon := udisks.NewFake()
	daemon.AddDisk(types.Disk{Device: "/dev/sdb", ObjectPath: "/org/storagebroker/Service1/Disks/sdb"}, []types.Volume{
		{ObjectPath: "/org/storagebroker/Service1/Volumes/sdb1", DevicePath: "/dev/sdb1", IDType: "ext4"},
		{ObjectPath: "/org/storagebroker/Service1/Volumes/sdb2", DevicePath: "/dev/sdb2", IDType: "crypto_LUKS"},
	})
	h := newTestFilesystems(t, daemon, newFakeSys())

	fs, err := h.ListFilesystems(context.Background())
	require.NoError(t, err)
	require.Len(t, fs, 1)
	assert.Equal(t, "ext4", fs[0].IDType)
}

func TestFilesystems_MountThenUnmount(t *testing.T) {
	daemon := udisks.NewFake()
	seedVolume(daemon)
	h := newTestFilesystems(t, daemon, newFakeSys())

	path, err := h.Mount(context.Background(), "sda1", "", nil)
	require.NoError(t, err)
	assert.NotEmpty(t, path)

	result, err := h.Unmount(context.Background(), "sda1", false, false)
	require.NoError(t, err)
	assert.True(t, result.Success)
}

func TestFilesystems_Unmount_BusyWithoutKillReportsBlocking(t *testing.T) {
	daemon := &busyOnceDaemon{Fake: udisks.NewFake()}
	seedVolume(daemon.Fake)
	sys := newFakeSys()
	sys.blocking = []types.ProcessRef{{PID: 4242, Command: "some-app"}}
	h := newTestFilesystems(t, daemon, sys)

	_, err := h.Mount(context.Background(), "sda1", "", nil)
	require.NoError(t, err)

	result, err := h.Unmount(context.Background(), "sda1", false, false)
	require.NoError(t, err)
	assert.False(t, result.Success)
	require.Len(t, result.BlockingProcesses, 1)
	assert.Equal(t, 4242, result.BlockingProcesses[0].PID)
}

func TestFilesystems_EditMountOptions_DedupesTokens(t *testing.T) {
	daemon := udisks.NewFake()
	seedVolume(daemon)
	h := newTestFilesystems(t, daemon, newFakeSys())

	settings := types.MountOptionsSettings{NoAuto: true}
	err := h.EditMountOptions(context.Background(), "sda1", settings, []string{"noauto", "rw"})
	require.NoError(t, err)

	got, err := h.GetMountOptions(context.Background(), "sda1")
	require.NoError(t, err)
	assert.Equal(t, []string{"/dev/sda1", "noauto", "rw"}, got.RawOptions)
}

func TestFilesystems_TakeOwnership_RequiresMounted(t *testing.T) {
	daemon := udisks.NewFake()
	seedVolume(daemon)
	h := newTestFilesystems(t, daemon, newFakeSys())

	err := h.TakeOwnership(context.Background(), "sda1", true)
	require.Error(t, err)
	assert.Equal(t, errs.InvalidArgs, errs.As(err))
}

func TestFilesystems_TakeOwnership_ChownsMountedVolume(t *testing.T) {
	daemon := udisks.NewFake()
	seedVolume(daemon)
	h := newTestFilesystems(t, daemon, newFakeSys())

	_, err := h.Mount(context.Background(), "sda1", "", nil)
	require.NoError(t, err)

	require.NoError(t, h.TakeOwnership(context.Background(), "sda1", true))
}

func TestFilesystems_Format_DeniedByGate(t *testing.T) {
	daemon := udisks.NewFake()
	seedVolume(daemon)
	h := newTestFilesystems(t, daemon, newFakeSys(), policy.ActionName(filesystemsDomain, "format"))

	err := h.Format(context.Background(), "sda1", "ext4", "data", types.MountOptionsSettings{})
	require.Error(t, err)
	assert.Equal(t, errs.NotAuthorized, errs.As(err))
}
