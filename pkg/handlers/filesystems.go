package handlers

import (
	"context"
	"syscall"
	"time"

	"github.com/storagebroker/service/pkg/adapter"
	"github.com/storagebroker/service/pkg/auth"
	"github.com/storagebroker/service/pkg/errs"
	"github.com/storagebroker/service/pkg/policy"
	"github.com/storagebroker/service/pkg/signalbus"
	"github.com/storagebroker/service/pkg/types"
)

const filesystemsDomain = "filesystems"

// Filesystems authorizes and delegates filesystem-level operations.
// The supported-filesystem set is probed once at construction time:
// one-time capability detection up front rather than on every call.
type Filesystems struct {
	daemon    adapter.BlockDaemon
	sys       adapter.System
	gate      *auth.Gate
	bus       *signalbus.Bus
	supported map[string]bool
}

// NewFilesystems probes sys for the detected mkfs tool set and builds a
// Filesystems handler.
func NewFilesystems(ctx context.Context, daemon adapter.BlockDaemon, sys adapter.System, gate *auth.Gate, bus *signalbus.Bus) (*Filesystems, error) {
	supported, err := sys.SupportedFilesystemTypes(ctx)
	if err != nil {
		return nil, err
	}
	return &Filesystems{daemon: daemon, sys: sys, gate: gate, bus: bus, supported: supported}, nil
}

// GetSupportedFilesystems returns the mkfs tool set detected at startup.
func (h *Filesystems) GetSupportedFilesystems() map[string]bool {
	return h.supported
}

// ListFilesystems returns every volume across every disk that carries a
// real filesystem tag, excluding crypto_LUKS containers.
func (h *Filesystems) ListFilesystems(ctx context.Context) ([]types.Volume, error) {
	all, err := h.allVolumes(ctx)
	if err != nil {
		return nil, err
	}
	var out []types.Volume
	for _, v := range all {
		if v.IDType != "" && v.IDType != "crypto_LUKS" {
			out = append(out, v)
		}
	}
	return out, nil
}

// allVolumes flattens the volume tree of every disk into one list.
func (h *Filesystems) allVolumes(ctx context.Context) ([]types.Volume, error) {
	disks, err := h.daemon.ListDisks(ctx)
	if err != nil {
		return nil, err
	}
	var out []types.Volume
	for _, d := range disks {
		tree, err := h.daemon.ListVolumes(ctx, d.Device)
		if err != nil {
			return nil, err
		}
		out = append(out, flattenVolumes(d.Device, tree)...)
	}
	return out, nil
}

func flattenVolumes(parent string, vols []types.Volume) []types.Volume {
	var out []types.Volume
	for _, v := range vols {
		children := v.Children
		v.ParentPath = parent
		v.Children = nil
		out = append(out, v)
		out = append(out, flattenVolumes(v.ObjectPath, derefAll(children))...)
	}
	return out
}

// resolveVolume matches identifier (device path, path tail, object
// path, or an active mount point) against every known volume.
func (h *Filesystems) resolveVolume(ctx context.Context, identifier string) (types.Volume, error) {
	all, err := h.allVolumes(ctx)
	if err != nil {
		return types.Volume{}, err
	}
	for _, v := range all {
		id := policy.DeviceIdentity{Device: v.DevicePath, ObjectPath: v.ObjectPath}
		if id.Matches(identifier) {
			return v, nil
		}
		for _, mp := range v.MountPoints {
			if mp == identifier {
				return v, nil
			}
		}
	}
	return types.Volume{}, errs.New(errs.NotFound, filesystemsDomain, "volume %q not found", identifier)
}

// Format validates fsType against the detected set and delegates to the
// daemon. auth_admin-equivalent: always goes through the gate.
func (h *Filesystems) Format(ctx context.Context, device, fsType, label string, opts types.MountOptionsSettings) error {
	if _, err := h.gate.Authorize(ctx, filesystemsDomain, policy.ActionName(filesystemsDomain, "format")); err != nil {
		return err
	}
	if err := policy.ValidateFilesystemType(filesystemsDomain, fsType, h.supported); err != nil {
		return err
	}
	v, err := h.resolveVolume(ctx, device)
	if err != nil {
		return err
	}
	if err := h.daemon.Format(ctx, v.ObjectPath, fsType, label, opts); err != nil {
		return err
	}
	h.bus.Emit(signalbus.Formatted, v.ObjectPath, v.DevicePath, fsType)
	return nil
}

// Mount mounts device, returning the actual mount path the daemon chose.
func (h *Filesystems) Mount(ctx context.Context, device, mountPoint string, options []string) (string, error) {
	if _, err := h.gate.Authorize(ctx, filesystemsDomain, policy.ActionName(filesystemsDomain, "mount")); err != nil {
		return "", err
	}
	v, err := h.resolveVolume(ctx, device)
	if err != nil {
		return "", err
	}
	path, err := h.daemon.Mount(ctx, v.ObjectPath, options)
	if err != nil {
		return "", err
	}
	h.bus.Emit(signalbus.Mounted, v.ObjectPath, v.DevicePath, path)
	return path, nil
}

// Unmount follows a busy/kill state diagram: an ordinary unmount is
// attempted first; on a device-busy error, blocking processes are
// discovered, and if killProcesses is set (and itself authorized
// through the gate), each is signalled and the unmount retried once
// after a brief wait.
func (h *Filesystems) Unmount(ctx context.Context, device string, force, killProcesses bool) (types.UnmountResult, error) {
	if _, err := h.gate.Authorize(ctx, filesystemsDomain, policy.ActionName(filesystemsDomain, "unmount")); err != nil {
		return types.UnmountResult{}, err
	}
	v, err := h.resolveVolume(ctx, device)
	if err != nil {
		return types.UnmountResult{}, err
	}

	err = h.daemon.Unmount(ctx, v.ObjectPath, force)
	if err == nil {
		h.bus.Emit(signalbus.Unmounted, v.ObjectPath, v.DevicePath)
		return types.UnmountResult{Success: true}, nil
	}
	if errs.As(err) != errs.DeviceBusy {
		return types.UnmountResult{}, err
	}

	procs, procErr := h.findBlocking(ctx, v)
	if procErr != nil {
		return types.UnmountResult{}, procErr
	}
	if !killProcesses {
		return types.UnmountResult{Success: false, Error: err.Error(), BlockingProcesses: procs}, nil
	}

	if _, authErr := h.gate.Authorize(ctx, filesystemsDomain, policy.ActionName(filesystemsDomain, "kill-processes")); authErr != nil {
		return types.UnmountResult{}, authErr
	}
	if sigErr := signalProcesses(procs); sigErr != nil {
		return types.UnmountResult{}, errs.Wrap(errs.IOError, filesystemsDomain, sigErr)
	}
	time.Sleep(200 * time.Millisecond)

	if retryErr := h.daemon.Unmount(ctx, v.ObjectPath, force); retryErr != nil {
		return types.UnmountResult{Success: false, Error: retryErr.Error(), BlockingProcesses: procs}, nil
	}
	h.bus.Emit(signalbus.Unmounted, v.ObjectPath, v.DevicePath)
	return types.UnmountResult{Success: true}, nil
}

// GetBlockingProcesses exposes Unmount's discovery step as a read-only
// call.
func (h *Filesystems) GetBlockingProcesses(ctx context.Context, device string) ([]types.ProcessRef, error) {
	v, err := h.resolveVolume(ctx, device)
	if err != nil {
		return nil, err
	}
	return h.findBlocking(ctx, v)
}

func (h *Filesystems) findBlocking(ctx context.Context, v types.Volume) ([]types.ProcessRef, error) {
	for _, mp := range v.MountPoints {
		procs, err := h.sys.FindBlockingProcesses(ctx, mp)
		if err != nil {
			return nil, err
		}
		return procs, nil
	}
	return nil, nil
}

// Check runs an fsck-equivalent pass, optionally repairing.
func (h *Filesystems) Check(ctx context.Context, device string, repair bool) (types.CheckResult, error) {
	if repair {
		if _, err := h.gate.Authorize(ctx, filesystemsDomain, policy.ActionName(filesystemsDomain, "check-repair")); err != nil {
			return types.CheckResult{}, err
		}
	}
	v, err := h.resolveVolume(ctx, device)
	if err != nil {
		return types.CheckResult{}, err
	}
	return h.daemon.Check(ctx, v.ObjectPath, repair)
}

// SetLabel relabels a filesystem.
func (h *Filesystems) SetLabel(ctx context.Context, device, label string) error {
	if _, err := h.gate.Authorize(ctx, filesystemsDomain, policy.ActionName(filesystemsDomain, "set-label")); err != nil {
		return err
	}
	v, err := h.resolveVolume(ctx, device)
	if err != nil {
		return err
	}
	return h.daemon.SetLabel(ctx, v.ObjectPath, label)
}

// GetUsage returns the statvfs-derived usage of an active mount point.
func (h *Filesystems) GetUsage(ctx context.Context, mountPoint string) (types.UsageResult, error) {
	return h.sys.GetUsage(ctx, mountPoint)
}

// GetMountOptions returns the persisted fstab-equivalent record for
// device, or DefaultMountOptions's shape if none has been saved yet.
func (h *Filesystems) GetMountOptions(ctx context.Context, device string) (types.MountOptionsSettings, error) {
	markers, err := h.sys.ReadMountMarkers(ctx)
	if err != nil {
		return types.MountOptionsSettings{}, err
	}
	v, err := h.resolveVolume(ctx, device)
	if err != nil {
		return types.MountOptionsSettings{}, err
	}
	for _, m := range markers {
		if len(m.RawOptions) > 0 && m.RawOptions[0] == v.DevicePath {
			return m, nil
		}
	}
	return h.DefaultMountOptions(ctx, device)
}

// DefaultMountOptions derives the baseline settings a freshly-seen
// volume gets: auto-mounted, auth required, visible in the UI.
func (h *Filesystems) DefaultMountOptions(ctx context.Context, device string) (types.MountOptionsSettings, error) {
	v, err := h.resolveVolume(ctx, device)
	if err != nil {
		return types.MountOptionsSettings{}, err
	}
	return types.MountOptionsSettings{
		NoAuto:       false,
		AuthRequired: true,
		UIVisible:    true,
		DisplayName:  v.Label,
		RawOptions:   []string{v.DevicePath},
	}, nil
}

// EditMountOptions reassembles the fstab opts string by toggling known
// tokens and stable-deduping the rest, then persists the result as
// device's marker.
func (h *Filesystems) EditMountOptions(ctx context.Context, device string, settings types.MountOptionsSettings, extraTokens []string) error {
	if _, err := h.gate.Authorize(ctx, filesystemsDomain, policy.ActionName(filesystemsDomain, "edit-mount-options")); err != nil {
		return err
	}
	v, err := h.resolveVolume(ctx, device)
	if err != nil {
		return err
	}
	known := mountOptionTokens(settings)
	settings.RawOptions = append([]string{v.DevicePath}, policy.StableDedupTokens(known, extraTokens)...)
	if err := h.daemon.SetMountOptions(ctx, v.ObjectPath, settings); err != nil {
		return err
	}
	return h.sys.WriteMountMarker(ctx, v.DevicePath, settings)
}

func mountOptionTokens(s types.MountOptionsSettings) []string {
	var tokens []string
	if s.NoAuto {
		tokens = append(tokens, "noauto")
	}
	if s.AuthRequired {
		tokens = append(tokens, "x-storagebroker-auth")
	}
	if s.UIVisible {
		tokens = append(tokens, "x-gvfs-show")
	}
	return tokens
}

// TakeOwnership chowns a mounted filesystem's tree to the calling user,
// optionally recursively.
func (h *Filesystems) TakeOwnership(ctx context.Context, device string, recursive bool) error {
	if _, err := h.gate.Authorize(ctx, filesystemsDomain, policy.ActionName(filesystemsDomain, "take-ownership")); err != nil {
		return err
	}
	v, err := h.resolveVolume(ctx, device)
	if err != nil {
		return err
	}
	if len(v.MountPoints) == 0 {
		return errs.New(errs.InvalidArgs, filesystemsDomain, "device %q is not mounted", device)
	}
	return h.daemon.TakeFilesystemOwnership(ctx, v.ObjectPath, recursive)
}

// signalProcesses sends SIGTERM to every blocking process, the
// signal-each-pid-and-retry step of the unmount-busy path.
func signalProcesses(procs []types.ProcessRef) error {
	for _, p := range procs {
		if err := syscall.Kill(p.PID, syscall.SIGTERM); err != nil {
			return err
		}
	}
	return nil
}
