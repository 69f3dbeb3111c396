package client

import (
	"context"

	"github.com/godbus/dbus/v5"

	"github.com/storagebroker/service/pkg/types"
)

const (
	logicalPath  = dbus.ObjectPath("/org/storagebroker/Service1/Logical")
	logicalIface = BusName + ".Logical"
)

// Logical is the UI-facing proxy for the Logical handler interface:
// LVM logical volume activation and MD array lifecycle/sync actions.
type Logical struct {
	c *dbus.Conn
}

func (l *Logical) ActivateLogicalVolume(ctx context.Context, objectPath string) error {
	return callVoid(ctx, l.c, logicalPath, logicalIface, "ActivateLogicalVolume", objectPath)
}

func (l *Logical) DeactivateLogicalVolume(ctx context.Context, objectPath string) error {
	return callVoid(ctx, l.c, logicalPath, logicalIface, "DeactivateLogicalVolume", objectPath)
}

func (l *Logical) StartArray(ctx context.Context, objectPath string) error {
	return callVoid(ctx, l.c, logicalPath, logicalIface, "StartArray", objectPath)
}

func (l *Logical) StopArray(ctx context.Context, objectPath string) error {
	return callVoid(ctx, l.c, logicalPath, logicalIface, "StopArray", objectPath)
}

func (l *Logical) RequestSyncAction(ctx context.Context, objectPath, action string) (types.CheckResult, error) {
	return callJSON[types.CheckResult](ctx, l.c, logicalPath, logicalIface, "RequestSyncAction", objectPath, action)
}

func (l *Logical) CreateLogicalVolume(ctx context.Context, vgObjectPath, name string, size uint64) (types.Volume, error) {
	return callJSON[types.Volume](ctx, l.c, logicalPath, logicalIface, "CreateLogicalVolume", vgObjectPath, name, size)
}

func (l *Logical) DeleteLogicalVolume(ctx context.Context, objectPath string) error {
	return callVoid(ctx, l.c, logicalPath, logicalIface, "DeleteLogicalVolume", objectPath)
}
