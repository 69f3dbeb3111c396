package handlers

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/storagebroker/service/pkg/adapter/udisks"
	"github.com/storagebroker/service/pkg/auth"
	"github.com/storagebroker/service/pkg/errs"
	"github.com/storagebroker/service/pkg/policy"
	"github.com/storagebroker/service/pkg/signalbus"
	"github.com/storagebroker/service/pkg/types"
)

func newTestDisks(t *testing.T, denied ...string) (*Disks, *udisks.Fake) {
	t.Helper()
	daemon := udisks.NewFake()
	backend := auth.NewStubBackend()
	for _, action := range denied {
		backend.Denied[action] = true
	}
	gate := auth.New(backend, auth.StaticResolver{UID: 1000})
	bus := signalbus.New()
	bus.Start()
	t.Cleanup(bus.Stop)
	return NewDisks(daemon, gate, bus), daemon
}

func seedDisk(daemon *udisks.Fake) types.Disk {
	disk := types.Disk{
		Device:      "/dev/sda",
		ID:          "stable-id-1",
		ObjectPath:  "/org/storagebroker/Service1/Disks/sda",
		Size:        256_000_000_000,
		Ejectable:   true,
		CanPowerOff: true,
	}
	daemon.AddDisk(disk, nil)
	return disk
}

func TestDisks_ListAndGetDiskInfo(t *testing.T) {
	h, daemon := newTestDisks(t)
	seedDisk(daemon)

	disks, err := h.ListDisks(context.Background())
	require.NoError(t, err)
	require.Len(t, disks, 1)

	got, err := h.GetDiskInfo(context.Background(), "sda")
	require.NoError(t, err)
	assert.Equal(t, "/dev/sda", got.Device)

	_, err = h.GetDiskInfo(context.Background(), "sdz")
	require.Error(t, err)
	assert.Equal(t, errs.NotFound, errs.As(err))
}

func TestDisks_ListVolumes_FlattensAndSetsParentPath(t *testing.T) {
	h, daemon := newTestDisks(t)
	seedDisk(daemon)

	child := &types.Volume{ObjectPath: "/org/storagebroker/Service1/Volumes/sda1", DevicePath: "/dev/sda1", Variant: types.VariantFilesystem}
	daemon.AddDisk(types.Disk{Device: "/dev/sdb", ObjectPath: "/org/storagebroker/Service1/Disks/sdb"}, []types.Volume{
		{ObjectPath: "/org/storagebroker/Service1/Volumes/sdb1", DevicePath: "/dev/sdb1", Variant: types.VariantPartition, Children: []*types.Volume{child}},
	})

	flat, err := h.ListVolumes(context.Background(), "/dev/sdb")
	require.NoError(t, err)
	require.Len(t, flat, 2)
	assert.Equal(t, "/dev/sdb", flat[0].ParentPath)
	assert.Nil(t, flat[0].Children)
	assert.Equal(t, "/org/storagebroker/Service1/Volumes/sdb1", flat[1].ParentPath)
}

func TestDisks_Eject_RequiresEjectable(t *testing.T) {
	h, daemon := newTestDisks(t)
	daemon.AddDisk(types.Disk{Device: "/dev/sr0", ObjectPath: "/org/storagebroker/Service1/Disks/sr0", Ejectable: false}, nil)

	err := h.Eject(context.Background(), "sr0")
	require.Error(t, err)
	assert.Equal(t, errs.NotSupported, errs.As(err))
}

func TestDisks_Eject_DeniedByGate(t *testing.T) {
	h, daemon := newTestDisks(t, policy.ActionName(disksDomain, "eject"))
	seedDisk(daemon)

	err := h.Eject(context.Background(), "sda")
	require.Error(t, err)
	assert.Equal(t, errs.NotAuthorized, errs.As(err))
}

func TestDisks_PowerOff_Succeeds(t *testing.T) {
	h, daemon := newTestDisks(t)
	seedDisk(daemon)

	require.NoError(t, h.PowerOff(context.Background(), "sda"))

	_, err := h.GetDiskInfo(context.Background(), "sda")
	require.Error(t, err)
	assert.Equal(t, errs.NotFound, errs.As(err))
}

func TestDisks_StartSmartTest_ValidatesKind(t *testing.T) {
	h, daemon := newTestDisks(t)
	seedDisk(daemon)

	require.NoError(t, h.StartSmartTest(context.Background(), "sda", "short"))

	err := h.StartSmartTest(context.Background(), "sda", "bogus")
	require.Error(t, err)
	assert.Equal(t, errs.InvalidArgs, errs.As(err))
}

func TestDisks_Remove_LoopBacked_DeletesRatherThanPowersOff(t *testing.T) {
	h, daemon := newTestDisks(t)
	daemon.AddDisk(types.Disk{
		Device:     "/dev/loop0",
		ObjectPath: "/org/storagebroker/Service1/Disks/loop0",
		IsLoop:     true,
	}, nil)

	require.NoError(t, h.Remove(context.Background(), "loop0"))
}
