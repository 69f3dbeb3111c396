package client

import (
	"context"

	"github.com/godbus/dbus/v5"

	"github.com/storagebroker/service/pkg/types"
)

const (
	disksPath  = dbus.ObjectPath("/org/storagebroker/Service1/Disks")
	disksIface = BusName + ".Disks"
)

// Disks is the UI-facing proxy for the Disks handler interface.
type Disks struct {
	c *dbus.Conn
}

func (d *Disks) ListDisks(ctx context.Context) ([]types.Disk, error) {
	return callJSON[[]types.Disk](ctx, d.c, disksPath, disksIface, "ListDisks")
}

func (d *Disks) GetDiskInfo(ctx context.Context, identifier string) (types.Disk, error) {
	return callJSON[types.Disk](ctx, d.c, disksPath, disksIface, "GetDiskInfo", identifier)
}

func (d *Disks) ListVolumes(ctx context.Context, diskDevice string) ([]types.Volume, error) {
	return callJSON[[]types.Volume](ctx, d.c, disksPath, disksIface, "ListVolumes", diskDevice)
}

func (d *Disks) GetVolumeInfo(ctx context.Context, diskDevice, identifier string) (types.Volume, error) {
	return callJSON[types.Volume](ctx, d.c, disksPath, disksIface, "GetVolumeInfo", diskDevice, identifier)
}

func (d *Disks) GetSmartStatus(ctx context.Context, device string) (types.SmartInfo, error) {
	return callJSON[types.SmartInfo](ctx, d.c, disksPath, disksIface, "GetSmartStatus", device)
}

func (d *Disks) GetSmartAttributes(ctx context.Context, device string) ([]types.SmartAttribute, error) {
	return callJSON[[]types.SmartAttribute](ctx, d.c, disksPath, disksIface, "GetSmartAttributes", device)
}

func (d *Disks) StartSmartTest(ctx context.Context, device, kind string) error {
	return callVoid(ctx, d.c, disksPath, disksIface, "StartSmartTest", device, kind)
}

func (d *Disks) Eject(ctx context.Context, device string) error {
	return callVoid(ctx, d.c, disksPath, disksIface, "Eject", device)
}

func (d *Disks) PowerOff(ctx context.Context, device string) error {
	return callVoid(ctx, d.c, disksPath, disksIface, "PowerOff", device)
}

func (d *Disks) StandbyNow(ctx context.Context, device string) error {
	return callVoid(ctx, d.c, disksPath, disksIface, "StandbyNow", device)
}

func (d *Disks) Wakeup(ctx context.Context, device string) error {
	return callVoid(ctx, d.c, disksPath, disksIface, "Wakeup", device)
}

func (d *Disks) Remove(ctx context.Context, device string) error {
	return callVoid(ctx, d.c, disksPath, disksIface, "Remove", device)
}

func (d *Disks) CreatePartitionTable(ctx context.Context, device, kind string) error {
	return callVoid(ctx, d.c, disksPath, disksIface, "CreatePartitionTable", device, kind)
}

func (d *Disks) CreatePartition(ctx context.Context, device string, offset, size uint64, typeID, label string) (types.Volume, error) {
	return callJSON[types.Volume](ctx, d.c, disksPath, disksIface, "CreatePartition", device, offset, size, typeID, label)
}

func (d *Disks) DeletePartition(ctx context.Context, objectPath string) error {
	return callVoid(ctx, d.c, disksPath, disksIface, "DeletePartition", objectPath)
}

func (d *Disks) ResizePartition(ctx context.Context, objectPath string, newSize uint64) error {
	return callVoid(ctx, d.c, disksPath, disksIface, "ResizePartition", objectPath, newSize)
}
