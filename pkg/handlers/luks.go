package handlers

import (
	"context"

	"github.com/storagebroker/service/pkg/adapter"
	"github.com/storagebroker/service/pkg/auth"
	"github.com/storagebroker/service/pkg/errs"
	"github.com/storagebroker/service/pkg/metrics"
	"github.com/storagebroker/service/pkg/policy"
	"github.com/storagebroker/service/pkg/signalbus"
	"github.com/storagebroker/service/pkg/types"
)

const luksDomain = "luks"

// Luks authorizes and delegates LUKS container operations. Passphrases
// pass straight through to the daemon and are never logged or
// persisted by this handler.
type Luks struct {
	daemon adapter.BlockDaemon
	sys    adapter.System
	gate   *auth.Gate
	bus    *signalbus.Bus
}

// NewLuks builds a Luks handler.
func NewLuks(daemon adapter.BlockDaemon, sys adapter.System, gate *auth.Gate, bus *signalbus.Bus) *Luks {
	return &Luks{daemon: daemon, sys: sys, gate: gate, bus: bus}
}

func (h *Luks) resolveVolume(ctx context.Context, identifier string) (types.Volume, error) {
	disks, err := h.daemon.ListDisks(ctx)
	if err != nil {
		return types.Volume{}, err
	}
	var all []types.Volume
	for _, d := range disks {
		tree, err := h.daemon.ListVolumes(ctx, d.Device)
		if err != nil {
			return types.Volume{}, err
		}
		all = append(all, flattenVolumes(d.Device, tree)...)
	}
	return policy.FindDevice(luksDomain, identifier, all, func(v types.Volume) policy.DeviceIdentity {
		return policy.DeviceIdentity{Device: v.DevicePath, ObjectPath: v.ObjectPath}
	})
}

// Format encrypts device in place, creating a new LUKS container.
func (h *Luks) Format(ctx context.Context, device, passphrase, version string) (types.Volume, error) {
	if _, err := h.gate.Authorize(ctx, luksDomain, policy.ActionName(luksDomain, "format")); err != nil {
		return types.Volume{}, err
	}
	if version != "luks1" && version != "luks2" {
		return types.Volume{}, errs.New(errs.InvalidArgs, luksDomain, "unknown LUKS version %q", version)
	}
	v, err := h.resolveVolume(ctx, device)
	if err != nil {
		return types.Volume{}, err
	}
	container, err := h.daemon.CreateLuks(ctx, v.ObjectPath, passphrase, types.EncryptionOptionsSettings{})
	if err != nil {
		return types.Volume{}, err
	}
	h.bus.Emit(signalbus.ContainerCreated, container.ObjectPath, v.DevicePath)
	return container, nil
}

// Unlock opens a LUKS container, returning the cleartext device path.
func (h *Luks) Unlock(ctx context.Context, device, passphrase string) (string, error) {
	if _, err := h.gate.Authorize(ctx, luksDomain, policy.ActionName(luksDomain, "unlock")); err != nil {
		return "", err
	}
	v, err := h.resolveVolume(ctx, device)
	if err != nil {
		return "", err
	}
	cleartext, err := h.daemon.UnlockLuks(ctx, v.ObjectPath, passphrase)
	if err != nil {
		return "", err
	}
	metrics.UnlockedContainersTotal.Inc()
	h.bus.Emit(signalbus.ContainerUnlocked, v.ObjectPath, v.DevicePath, cleartext.DevicePath)
	return cleartext.DevicePath, nil
}

// Lock closes an unlocked cleartext device.
func (h *Luks) Lock(ctx context.Context, cleartextDevice string) error {
	if _, err := h.gate.Authorize(ctx, luksDomain, policy.ActionName(luksDomain, "lock")); err != nil {
		return err
	}
	v, err := h.resolveVolume(ctx, cleartextDevice)
	if err != nil {
		return err
	}
	if err := h.daemon.LockLuks(ctx, v.ObjectPath); err != nil {
		return err
	}
	metrics.UnlockedContainersTotal.Dec()
	h.bus.Emit(signalbus.ContainerLocked, v.ObjectPath, cleartextDevice)
	return nil
}

// ChangePassphrase swaps a LUKS container's passphrase.
func (h *Luks) ChangePassphrase(ctx context.Context, device, current, next string) error {
	if _, err := h.gate.Authorize(ctx, luksDomain, policy.ActionName(luksDomain, "change-passphrase")); err != nil {
		return err
	}
	v, err := h.resolveVolume(ctx, device)
	if err != nil {
		return err
	}
	return h.daemon.ChangeLuksPassphrase(ctx, v.ObjectPath, current, next)
}

// GetEncryptionOptions returns the persisted crypttab-equivalent
// settings for device, or a fresh default if none has been saved.
func (h *Luks) GetEncryptionOptions(ctx context.Context, device string) (types.EncryptionOptionsSettings, error) {
	v, err := h.resolveVolume(ctx, device)
	if err != nil {
		return types.EncryptionOptionsSettings{}, err
	}
	markers, err := h.sys.ReadMountMarkers(ctx)
	if err != nil {
		return types.EncryptionOptionsSettings{}, err
	}
	for _, m := range markers {
		if len(m.RawOptions) > 0 && m.RawOptions[0] == v.DevicePath {
			return types.EncryptionOptionsSettings{
				NoAuto:       m.NoAuto,
				AuthRequired: m.AuthRequired,
				UIVisible:    m.UIVisible,
				DisplayName:  m.DisplayName,
				Icon:         m.Icon,
				SymbolicIcon: m.SymbolicIcon,
				RawOptions:   m.RawOptions,
			}, nil
		}
	}
	return h.DefaultEncryptionOptions(ctx, device)
}

// DefaultEncryptionOptions derives the baseline crypttab-equivalent
// settings for a freshly-created container.
func (h *Luks) DefaultEncryptionOptions(ctx context.Context, device string) (types.EncryptionOptionsSettings, error) {
	v, err := h.resolveVolume(ctx, device)
	if err != nil {
		return types.EncryptionOptionsSettings{}, err
	}
	return types.EncryptionOptionsSettings{AuthRequired: true, UIVisible: true, RawOptions: []string{v.DevicePath}}, nil
}

// SetEncryptionOptions persists a crypttab-equivalent record for device,
// mirroring filesystems.go's fstab marker handling.
func (h *Luks) SetEncryptionOptions(ctx context.Context, device string, settings types.EncryptionOptionsSettings, extraTokens []string) error {
	if _, err := h.gate.Authorize(ctx, luksDomain, policy.ActionName(luksDomain, "set-encryption-options")); err != nil {
		return err
	}
	v, err := h.resolveVolume(ctx, device)
	if err != nil {
		return err
	}
	var known []string
	if settings.NoAuto {
		known = append(known, "noauto")
	}
	if settings.AuthRequired {
		known = append(known, "x-storagebroker-auth")
	}
	if settings.UIVisible {
		known = append(known, "x-gvfs-show")
	}
	settings.RawOptions = append([]string{v.DevicePath}, policy.StableDedupTokens(known, extraTokens)...)
	if err := h.daemon.SetEncryptionOptions(ctx, v.ObjectPath, settings); err != nil {
		return err
	}
	return h.sys.WriteMountMarker(ctx, v.DevicePath, types.MountOptionsSettings{
		NoAuto:       settings.NoAuto,
		AuthRequired: settings.AuthRequired,
		UIVisible:    settings.UIVisible,
		DisplayName:  settings.DisplayName,
		Icon:         settings.Icon,
		SymbolicIcon: settings.SymbolicIcon,
		RawOptions:   settings.RawOptions,
	})
}
