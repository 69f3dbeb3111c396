package client

import (
	"context"

	"github.com/godbus/dbus/v5"

	"github.com/storagebroker/service/pkg/types"
)

const (
	btrfsPath  = dbus.ObjectPath("/org/storagebroker/Service1/Btrfs")
	btrfsIface = BusName + ".Btrfs"
)

// Btrfs is the UI-facing proxy for the Btrfs handler interface.
type Btrfs struct {
	c *dbus.Conn
}

func (b *Btrfs) ListSubvolumes(ctx context.Context, mountPoint string) ([]string, error) {
	var subs []string
	err := callScalar(ctx, b.c, btrfsPath, btrfsIface, "ListSubvolumes", &subs, mountPoint)
	return subs, err
}

func (b *Btrfs) GetSubvolumeUsage(ctx context.Context, mountPoint, name string) (types.UsageResult, error) {
	return callJSON[types.UsageResult](ctx, b.c, btrfsPath, btrfsIface, "GetSubvolumeUsage", mountPoint, name)
}

func (b *Btrfs) CreateSubvolume(ctx context.Context, objectPath, name string) error {
	return callVoid(ctx, b.c, btrfsPath, btrfsIface, "CreateSubvolume", objectPath, name)
}

func (b *Btrfs) DeleteSubvolume(ctx context.Context, objectPath, name string) error {
	return callVoid(ctx, b.c, btrfsPath, btrfsIface, "DeleteSubvolume", objectPath, name)
}

func (b *Btrfs) GetDefaultSubvolume(ctx context.Context, mountPoint string) (string, error) {
	var name string
	err := callScalar(ctx, b.c, btrfsPath, btrfsIface, "GetDefaultSubvolume", &name, mountPoint)
	return name, err
}

func (b *Btrfs) SetDefaultSubvolume(ctx context.Context, mountPoint, name string) error {
	return callVoid(ctx, b.c, btrfsPath, btrfsIface, "SetDefaultSubvolume", mountPoint, name)
}

func (b *Btrfs) SetReadOnly(ctx context.Context, mountPoint, name string, readOnly bool) error {
	return callVoid(ctx, b.c, btrfsPath, btrfsIface, "SetReadOnly", mountPoint, name, readOnly)
}
