// Package handlers implements the per-domain request handlers: thin
// methods that authorize through pkg/auth.Gate, delegate to
// pkg/adapter, and emit pkg/signalbus signals on success.
package handlers

import (
	"context"
	"fmt"

	"github.com/storagebroker/service/pkg/adapter"
	"github.com/storagebroker/service/pkg/auth"
	"github.com/storagebroker/service/pkg/errs"
	"github.com/storagebroker/service/pkg/policy"
	"github.com/storagebroker/service/pkg/signalbus"
	"github.com/storagebroker/service/pkg/types"
)

const disksDomain = "disks"

// Disks authorizes and delegates top-level disk operations.
type Disks struct {
	daemon adapter.BlockDaemon
	gate   *auth.Gate
	bus    *signalbus.Bus
}

// NewDisks builds a Disks handler.
func NewDisks(daemon adapter.BlockDaemon, gate *auth.Gate, bus *signalbus.Bus) *Disks {
	return &Disks{daemon: daemon, gate: gate, bus: bus}
}

// ListDisks returns every disk the daemon currently knows about.
func (h *Disks) ListDisks(ctx context.Context) ([]types.Disk, error) {
	return h.daemon.ListDisks(ctx)
}

// GetDiskInfo resolves identifier (canonical path, path tail, or stable
// id) against the daemon's disk set.
func (h *Disks) GetDiskInfo(ctx context.Context, identifier string) (types.Disk, error) {
	disks, err := h.daemon.ListDisks(ctx)
	if err != nil {
		return types.Disk{}, err
	}
	return policy.FindDevice(disksDomain, identifier, disks, func(d types.Disk) policy.DeviceIdentity {
		return policy.DeviceIdentity{Device: d.Device, ID: d.ID, ObjectPath: d.ObjectPath}
	})
}

// ListVolumes flattens the recursive volume tree under diskDevice,
// populating ParentPath on every entry and clearing Children.
func (h *Disks) ListVolumes(ctx context.Context, diskDevice string) ([]types.Volume, error) {
	tree, err := h.daemon.ListVolumes(ctx, diskDevice)
	if err != nil {
		return nil, err
	}
	var flat []types.Volume
	var walk func(parent string, vols []types.Volume)
	walk = func(parent string, vols []types.Volume) {
		for _, v := range vols {
			children := v.Children
			v.ParentPath = parent
			v.Children = nil
			flat = append(flat, v)
			walk(v.ObjectPath, derefAll(children))
		}
	}
	walk(diskDevice, tree)
	return flat, nil
}

func derefAll(vols []*types.Volume) []types.Volume {
	out := make([]types.Volume, len(vols))
	for i, v := range vols {
		out[i] = *v
	}
	return out
}

// GetVolumeInfo resolves identifier against the flattened volume set of
// diskDevice.
func (h *Disks) GetVolumeInfo(ctx context.Context, diskDevice, identifier string) (types.Volume, error) {
	vols, err := h.ListVolumes(ctx, diskDevice)
	if err != nil {
		return types.Volume{}, err
	}
	return policy.FindDevice(disksDomain, identifier, vols, func(v types.Volume) policy.DeviceIdentity {
		return policy.DeviceIdentity{Device: v.DevicePath, ObjectPath: v.ObjectPath}
	})
}

// GetSmartStatus returns the normalized SMART snapshot for device, or a
// NotSupported error if the device doesn't report SMART data.
func (h *Disks) GetSmartStatus(ctx context.Context, device string) (types.SmartInfo, error) {
	info, err := h.daemon.GetSmartInfo(ctx, device)
	if err != nil {
		return types.SmartInfo{}, err
	}
	if info.DeviceType == "" {
		return types.SmartInfo{}, errs.New(errs.NotSupported, disksDomain, "device %q does not report SMART data", device)
	}
	return info, nil
}

// GetSmartAttributes returns just the attribute list of device's SMART
// snapshot.
func (h *Disks) GetSmartAttributes(ctx context.Context, device string) ([]types.SmartAttribute, error) {
	info, err := h.GetSmartStatus(ctx, device)
	if err != nil {
		return nil, err
	}
	return info.Attributes, nil
}

// StartSmartTest kicks off an asynchronous short or extended self-test;
// completion is observed by polling GetSmartStatus.
func (h *Disks) StartSmartTest(ctx context.Context, device, kind string) error {
	if _, err := h.gate.Authorize(ctx, disksDomain, policy.ActionName(disksDomain, "start-smart-test")); err != nil {
		return err
	}
	if kind != "short" && kind != "extended" {
		return errs.New(errs.InvalidArgs, disksDomain, "self-test kind must be \"short\" or \"extended\", got %q", kind)
	}
	return h.daemon.StartSmartTest(ctx, device, kind)
}

// Eject physically ejects removable media, failing fast if the disk
// isn't ejectable. It does not unmount the disk's volumes first.
func (h *Disks) Eject(ctx context.Context, device string) error {
	if _, err := h.gate.Authorize(ctx, disksDomain, policy.ActionName(disksDomain, "eject")); err != nil {
		return err
	}
	disk, err := h.GetDiskInfo(ctx, device)
	if err != nil {
		return err
	}
	if !disk.Ejectable {
		return errs.New(errs.NotSupported, disksDomain, "device %q is not ejectable", device)
	}
	return h.daemon.Eject(ctx, disk.Device)
}

// PowerOff spins down and powers off device, failing fast if the disk
// lacks the capability.
func (h *Disks) PowerOff(ctx context.Context, device string) error {
	if _, err := h.gate.Authorize(ctx, disksDomain, policy.ActionName(disksDomain, "power-off")); err != nil {
		return err
	}
	disk, err := h.GetDiskInfo(ctx, device)
	if err != nil {
		return err
	}
	if !disk.CanPowerOff {
		return errs.New(errs.NotSupported, disksDomain, "device %q cannot be powered off", device)
	}
	return h.daemon.PowerOff(ctx, disk.Device)
}

// StandbyNow requests an immediate spin-down.
func (h *Disks) StandbyNow(ctx context.Context, device string) error {
	if _, err := h.gate.Authorize(ctx, disksDomain, policy.ActionName(disksDomain, "standby")); err != nil {
		return err
	}
	disk, err := h.GetDiskInfo(ctx, device)
	if err != nil {
		return err
	}
	return h.daemon.StandbyNow(ctx, disk.Device)
}

// Wakeup requests an immediate spin-up.
func (h *Disks) Wakeup(ctx context.Context, device string) error {
	if _, err := h.gate.Authorize(ctx, disksDomain, policy.ActionName(disksDomain, "wakeup")); err != nil {
		return err
	}
	disk, err := h.GetDiskInfo(ctx, device)
	if err != nil {
		return err
	}
	return h.daemon.Wakeup(ctx, disk.Device)
}

// Remove is a composite teardown: unmount every child post-order, lock
// any unlocked LUKS children, then either delete the backing loop
// device or power the disk off.
func (h *Disks) Remove(ctx context.Context, device string) error {
	if _, err := h.gate.Authorize(ctx, disksDomain, policy.ActionName(disksDomain, "remove")); err != nil {
		return err
	}
	disk, err := h.GetDiskInfo(ctx, device)
	if err != nil {
		return err
	}
	vols, err := h.daemon.ListVolumes(ctx, disk.Device)
	if err != nil {
		return err
	}
	if err := h.teardownPostOrder(ctx, vols); err != nil {
		return err
	}

	switch {
	case disk.IsLoop:
		return h.daemon.DeleteLoopDevice(ctx, disk.Device)
	case disk.CanPowerOff:
		return h.daemon.PowerOff(ctx, disk.Device)
	default:
		return errs.New(errs.NotSupported, disksDomain, "device %q has no supported removal path", device)
	}
}

func (h *Disks) teardownPostOrder(ctx context.Context, vols []types.Volume) error {
	for _, v := range vols {
		if err := h.teardownPostOrder(ctx, derefAll(v.Children)); err != nil {
			return err
		}
		if v.Variant == types.VariantCryptoContainer {
			if err := h.daemon.LockLuks(ctx, v.ObjectPath); err != nil && errs.As(err) != errs.NotFound {
				return fmt.Errorf("lock %s during removal: %w", v.ObjectPath, err)
			}
			continue
		}
		if len(v.MountPoints) > 0 {
			if err := h.daemon.Unmount(ctx, v.ObjectPath, true); err != nil && errs.As(err) != errs.NotFound {
				return fmt.Errorf("unmount %s during removal: %w", v.ObjectPath, err)
			}
		}
	}
	return nil
}

// CreatePartitionTable authorizes then delegates to the daemon.
func (h *Disks) CreatePartitionTable(ctx context.Context, device, kind string) error {
	if _, err := h.gate.Authorize(ctx, disksDomain, policy.ActionName(disksDomain, "create-partition-table")); err != nil {
		return err
	}
	disk, err := h.GetDiskInfo(ctx, device)
	if err != nil {
		return err
	}
	return h.daemon.CreatePartitionTable(ctx, disk.Device, kind)
}

// CreatePartition authorizes then delegates to the daemon.
func (h *Disks) CreatePartition(ctx context.Context, device string, offset, size uint64, typeID, label string) (types.Volume, error) {
	if _, err := h.gate.Authorize(ctx, disksDomain, policy.ActionName(disksDomain, "create-partition")); err != nil {
		return types.Volume{}, err
	}
	disk, err := h.GetDiskInfo(ctx, device)
	if err != nil {
		return types.Volume{}, err
	}
	return h.daemon.CreatePartition(ctx, disk.Device, offset, size, typeID, label)
}

// DeletePartition authorizes then delegates to the daemon.
func (h *Disks) DeletePartition(ctx context.Context, objectPath string) error {
	if _, err := h.gate.Authorize(ctx, disksDomain, policy.ActionName(disksDomain, "delete-partition")); err != nil {
		return err
	}
	return h.daemon.DeletePartition(ctx, objectPath)
}

// ResizePartition authorizes then delegates to the daemon.
func (h *Disks) ResizePartition(ctx context.Context, objectPath string, newSize uint64) error {
	if _, err := h.gate.Authorize(ctx, disksDomain, policy.ActionName(disksDomain, "resize-partition")); err != nil {
		return err
	}
	return h.daemon.ResizePartition(ctx, objectPath, newSize)
}
