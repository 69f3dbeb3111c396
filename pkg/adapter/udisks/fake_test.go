package udisks

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/storagebroker/service/pkg/errs"
	"github.com/storagebroker/service/pkg/types"
)

func seedDisk(f *Fake) {
	f.AddDisk(types.Disk{
		Device:      "/dev/sda",
		ID:          "ata-WDC-1",
		ObjectPath:  "/org/storagebroker/Service1/Disks/sda",
		Size:        1_048_576_000,
		Ejectable:   true,
		CanPowerOff: true,
	}, nil)
}

func TestFake_ListAndGetDisk(t *testing.T) {
	f := NewFake()
	seedDisk(f)
	ctx := context.Background()

	disks, err := f.ListDisks(ctx)
	require.NoError(t, err)
	require.Len(t, disks, 1)

	d, err := f.GetDisk(ctx, "sda")
	require.NoError(t, err)
	assert.Equal(t, "/dev/sda", d.Device)

	_, err = f.GetDisk(ctx, "sdz")
	require.Error(t, err)
	assert.Equal(t, errs.NotFound, errs.As(err))
}

func TestFake_PartitionLifecycle(t *testing.T) {
	f := NewFake()
	seedDisk(f)
	ctx := context.Background()

	require.NoError(t, f.CreatePartitionTable(ctx, "sda", "gpt"))
	v, err := f.CreatePartition(ctx, "sda", 1_048_576, 524_288_000, "0fc63daf-8483-4772-8e79-3d69d8477de4", "root")
	require.NoError(t, err)
	assert.Equal(t, types.VariantPartition, v.Variant)

	vols, err := f.ListVolumes(ctx, "sda")
	require.NoError(t, err)
	require.Len(t, vols, 1)

	require.NoError(t, f.Format(ctx, v.ObjectPath, "ext4", "root", types.MountOptionsSettings{}))
	mp, err := f.Mount(ctx, v.ObjectPath, nil)
	require.NoError(t, err)
	assert.NotEmpty(t, mp)

	require.NoError(t, f.Unmount(ctx, v.ObjectPath, false))
	require.NoError(t, f.DeletePartition(ctx, v.ObjectPath))

	vols, err = f.ListVolumes(ctx, "sda")
	require.NoError(t, err)
	assert.Empty(t, vols)
}

func TestFake_EjectRequiresEjectable(t *testing.T) {
	f := NewFake()
	f.AddDisk(types.Disk{Device: "/dev/sdb", ObjectPath: "/org/storagebroker/Service1/Disks/sdb"}, nil)

	err := f.Eject(context.Background(), "sdb")
	require.Error(t, err)
	assert.Equal(t, errs.NotSupported, errs.As(err))
}

func TestFake_SubscribeInterfaces_SeesAddAndRemove(t *testing.T) {
	f := NewFake()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	events, err := f.SubscribeInterfaces(ctx)
	require.NoError(t, err)

	seedDisk(f)
	added := <-events
	assert.Equal(t, "added", string(added.Kind))

	f.RemoveDisk("/dev/sda")
	removed := <-events
	assert.Equal(t, "removed", string(removed.Kind))
}
