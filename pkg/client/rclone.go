package client

import (
	"context"

	"github.com/godbus/dbus/v5"

	"github.com/storagebroker/service/pkg/types"
)

const (
	rclonePath  = dbus.ObjectPath("/org/storagebroker/Service1/Rclone")
	rcloneIface = BusName + ".Rclone"
)

// Rclone is the UI-facing proxy for the Rclone handler interface:
// remote CRUD, mount lifecycle, and the System/User scope split that
// routes privileged mounts through the elevated-action pattern.
type Rclone struct {
	c *dbus.Conn
}

func (r *Rclone) ListRemotes(ctx context.Context, callerUID uint32) (types.RcloneRemoteList, error) {
	return callJSON[types.RcloneRemoteList](ctx, r.c, rclonePath, rcloneIface, "ListRemotes", callerUID)
}

func (r *Rclone) GetRemote(ctx context.Context, name string, scope types.ConfigScope, callerUID uint32) (types.RcloneRemoteConfig, error) {
	return callJSON[types.RcloneRemoteConfig](ctx, r.c, rclonePath, rcloneIface, "GetRemote", name, string(scope), callerUID)
}

func (r *Rclone) CreateRemote(ctx context.Context, remote types.RcloneRemoteConfig) error {
	return callVoid(ctx, r.c, rclonePath, rcloneIface, "CreateRemote", encodeJSON(remote))
}

func (r *Rclone) UpdateRemote(ctx context.Context, name string, remote types.RcloneRemoteConfig) error {
	return callVoid(ctx, r.c, rclonePath, rcloneIface, "UpdateRemote", name, encodeJSON(remote))
}

func (r *Rclone) DeleteRemote(ctx context.Context, name string, scope types.ConfigScope) error {
	return callVoid(ctx, r.c, rclonePath, rcloneIface, "DeleteRemote", name, string(scope))
}

func (r *Rclone) Mount(ctx context.Context, name string, scope types.ConfigScope) error {
	return callVoid(ctx, r.c, rclonePath, rcloneIface, "Mount", name, string(scope))
}

func (r *Rclone) Unmount(ctx context.Context, name string, scope types.ConfigScope) error {
	return callVoid(ctx, r.c, rclonePath, rcloneIface, "Unmount", name, string(scope))
}

func (r *Rclone) GetMountStatus(ctx context.Context, name string, scope types.ConfigScope, callerUID uint32) (types.MountStatusResult, error) {
	return callJSON[types.MountStatusResult](ctx, r.c, rclonePath, rcloneIface, "GetMountStatus", name, string(scope), callerUID)
}

func (r *Rclone) TestRemote(ctx context.Context, name string, scope types.ConfigScope, callerUID uint32) (types.TestResult, error) {
	return callJSON[types.TestResult](ctx, r.c, rclonePath, rcloneIface, "TestRemote", name, string(scope), callerUID)
}

func (r *Rclone) GetMountOnBoot(ctx context.Context, name string, scope types.ConfigScope) (bool, error) {
	var enabled bool
	err := callScalar(ctx, r.c, rclonePath, rcloneIface, "GetMountOnBoot", &enabled, name, string(scope))
	return enabled, err
}

func (r *Rclone) SetMountOnBoot(ctx context.Context, name string, scope types.ConfigScope, enabled bool) error {
	return callVoid(ctx, r.c, rclonePath, rcloneIface, "SetMountOnBoot", name, string(scope), enabled)
}

func (r *Rclone) SupportedRemoteTypes(ctx context.Context) ([]string, error) {
	var kinds []string
	err := callScalar(ctx, r.c, rclonePath, rcloneIface, "SupportedRemoteTypes", &kinds)
	return kinds, err
}
