package client

import (
	"context"

	"github.com/godbus/dbus/v5"

	"github.com/storagebroker/service/pkg/types"
)

const (
	filesystemsPath  = dbus.ObjectPath("/org/storagebroker/Service1/Filesystems")
	filesystemsIface = BusName + ".Filesystems"
)

// Filesystems is the UI-facing proxy for the Filesystems handler
// interface.
type Filesystems struct {
	c *dbus.Conn
}

func (f *Filesystems) GetSupportedFilesystems(ctx context.Context) (map[string]bool, error) {
	return callJSON[map[string]bool](ctx, f.c, filesystemsPath, filesystemsIface, "GetSupportedFilesystems")
}

func (f *Filesystems) ListFilesystems(ctx context.Context) ([]types.Volume, error) {
	return callJSON[[]types.Volume](ctx, f.c, filesystemsPath, filesystemsIface, "ListFilesystems")
}

func (f *Filesystems) Format(ctx context.Context, device, fsType, label string, opts types.MountOptionsSettings) error {
	return callVoid(ctx, f.c, filesystemsPath, filesystemsIface, "Format", device, fsType, label, encodeJSON(opts))
}

func (f *Filesystems) Mount(ctx context.Context, device, mountPoint string, options []string) (string, error) {
	var path string
	err := callScalar(ctx, f.c, filesystemsPath, filesystemsIface, "Mount", &path, device, mountPoint, encodeJSON(options))
	return path, err
}

func (f *Filesystems) Unmount(ctx context.Context, device string, force, killProcesses bool) (types.UnmountResult, error) {
	return callJSON[types.UnmountResult](ctx, f.c, filesystemsPath, filesystemsIface, "Unmount", device, force, killProcesses)
}

func (f *Filesystems) GetBlockingProcesses(ctx context.Context, device string) ([]types.ProcessRef, error) {
	return callJSON[[]types.ProcessRef](ctx, f.c, filesystemsPath, filesystemsIface, "GetBlockingProcesses", device)
}

func (f *Filesystems) Check(ctx context.Context, device string, repair bool) (types.CheckResult, error) {
	return callJSON[types.CheckResult](ctx, f.c, filesystemsPath, filesystemsIface, "Check", device, repair)
}

func (f *Filesystems) SetLabel(ctx context.Context, device, label string) error {
	return callVoid(ctx, f.c, filesystemsPath, filesystemsIface, "SetLabel", device, label)
}

func (f *Filesystems) GetUsage(ctx context.Context, mountPoint string) (types.UsageResult, error) {
	return callJSON[types.UsageResult](ctx, f.c, filesystemsPath, filesystemsIface, "GetUsage", mountPoint)
}

func (f *Filesystems) GetMountOptions(ctx context.Context, device string) (types.MountOptionsSettings, error) {
	return callJSON[types.MountOptionsSettings](ctx, f.c, filesystemsPath, filesystemsIface, "GetMountOptions", device)
}

func (f *Filesystems) DefaultMountOptions(ctx context.Context, device string) (types.MountOptionsSettings, error) {
	return callJSON[types.MountOptionsSettings](ctx, f.c, filesystemsPath, filesystemsIface, "DefaultMountOptions", device)
}

func (f *Filesystems) EditMountOptions(ctx context.Context, device string, settings types.MountOptionsSettings, extraTokens []string) error {
	return callVoid(ctx, f.c, filesystemsPath, filesystemsIface, "EditMountOptions", device, encodeJSON(settings), encodeJSON(extraTokens))
}

func (f *Filesystems) TakeOwnership(ctx context.Context, device string, recursive bool) error {
	return callVoid(ctx, f.c, filesystemsPath, filesystemsIface, "TakeOwnership", device, recursive)
}
