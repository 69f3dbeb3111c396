package handlers

import (
	"context"

	"github.com/storagebroker/service/pkg/auth"
	"github.com/storagebroker/service/pkg/policy"
	"github.com/storagebroker/service/pkg/rclone"
	"github.com/storagebroker/service/pkg/signalbus"
	"github.com/storagebroker/service/pkg/types"
)

const rcloneDomain = "rclone"

// Rclone is a gate wrapper over pkg/rclone.Broker. System-scope
// mutations require a higher-privilege action than user-scope ones;
// the caller UID the gate resolves is what the broker uses to locate
// the caller's own config/mount paths.
type Rclone struct {
	broker *rclone.Broker
	gate   *auth.Gate
	bus    *signalbus.Bus
}

// NewRclone builds an Rclone handler.
func NewRclone(broker *rclone.Broker, gate *auth.Gate, bus *signalbus.Bus) *Rclone {
	return &Rclone{broker: broker, gate: gate, bus: bus}
}

func (h *Rclone) authorize(ctx context.Context, verb string, scope types.ConfigScope) (uint32, error) {
	action := policy.ActionName(rcloneDomain, verb)
	if scope == types.ScopeSystem {
		action = policy.ActionName(rcloneDomain, "system-"+verb)
	}
	info, err := h.gate.Authorize(ctx, rcloneDomain, action)
	return info.UID, err
}

// ListRemotes is a plain read scoped to the caller's own uid.
func (h *Rclone) ListRemotes(ctx context.Context, callerUID uint32) (types.RcloneRemoteList, error) {
	return h.broker.ListRemotes(ctx, callerUID)
}

// GetRemote is a plain read.
func (h *Rclone) GetRemote(ctx context.Context, name string, scope types.ConfigScope, callerUID uint32) (types.RcloneRemoteConfig, error) {
	return h.broker.GetRemote(ctx, name, scope, callerUID)
}

// CreateRemote authorizes (system scope requiring the elevated action)
// then creates a new remote.
func (h *Rclone) CreateRemote(ctx context.Context, remote types.RcloneRemoteConfig) error {
	uid, err := h.authorize(ctx, "create-remote", remote.Scope)
	if err != nil {
		return err
	}
	return h.broker.CreateRemote(ctx, remote, uid)
}

// UpdateRemote authorizes then mutates an existing remote's options.
func (h *Rclone) UpdateRemote(ctx context.Context, name string, remote types.RcloneRemoteConfig) error {
	uid, err := h.authorize(ctx, "update-remote", remote.Scope)
	if err != nil {
		return err
	}
	return h.broker.UpdateRemote(ctx, name, remote, uid)
}

// DeleteRemote authorizes then removes a remote.
func (h *Rclone) DeleteRemote(ctx context.Context, name string, scope types.ConfigScope) error {
	uid, err := h.authorize(ctx, "delete-remote", scope)
	if err != nil {
		return err
	}
	return h.broker.DeleteRemote(ctx, name, scope, uid)
}

// Mount authorizes then mounts a remote, emitting MountChanged.
func (h *Rclone) Mount(ctx context.Context, name string, scope types.ConfigScope) error {
	uid, err := h.authorize(ctx, "mount", scope)
	if err != nil {
		return err
	}
	if err := h.broker.Mount(ctx, name, scope, uid); err != nil {
		return err
	}
	h.bus.Emit(signalbus.MountChanged, name, name, string(scope), "Mounted")
	return nil
}

// Unmount authorizes then unmounts a remote, emitting MountChanged.
func (h *Rclone) Unmount(ctx context.Context, name string, scope types.ConfigScope) error {
	uid, err := h.authorize(ctx, "unmount", scope)
	if err != nil {
		return err
	}
	if err := h.broker.Unmount(ctx, name, scope, uid); err != nil {
		return err
	}
	h.bus.Emit(signalbus.MountChanged, name, name, string(scope), "Unmounted")
	return nil
}

// GetMountStatus is a plain read.
func (h *Rclone) GetMountStatus(ctx context.Context, name string, scope types.ConfigScope, callerUID uint32) (types.MountStatusResult, error) {
	return h.broker.GetMountStatus(ctx, name, scope, callerUID)
}

// TestRemote is a plain, side-effect-free probe.
func (h *Rclone) TestRemote(ctx context.Context, name string, scope types.ConfigScope, callerUID uint32) (types.TestResult, error) {
	return h.broker.TestRemote(ctx, name, scope, callerUID)
}

// GetMountOnBoot is a plain read.
func (h *Rclone) GetMountOnBoot(ctx context.Context, name string, scope types.ConfigScope) (bool, error) {
	return h.broker.GetMountOnBoot(ctx, name, scope)
}

// SetMountOnBoot authorizes then flips the persisted boot-mount marker.
func (h *Rclone) SetMountOnBoot(ctx context.Context, name string, scope types.ConfigScope, enabled bool) error {
	if _, err := h.authorize(ctx, "set-mount-on-boot", scope); err != nil {
		return err
	}
	return h.broker.SetMountOnBoot(ctx, name, scope, enabled)
}

// SupportedRemoteTypes is the static provider registry list.
func (h *Rclone) SupportedRemoteTypes() []string {
	return rclone.SupportedRemoteTypes()
}
