package handlers

import (
	"context"

	"github.com/storagebroker/service/pkg/adapter"
	"github.com/storagebroker/service/pkg/auth"
	"github.com/storagebroker/service/pkg/policy"
	"github.com/storagebroker/service/pkg/types"
)

const btrfsDomain = "btrfs"

// Btrfs covers subvolume enumeration, per-subvolume usage,
// default-subvolume marker, the read-only property, and deletion. As
// with Logical, these are domain-standard shell-outs rather than core
// behavior, so the handler is a thin pass-through over the adapter.
type Btrfs struct {
	daemon adapter.BlockDaemon
	gate   *auth.Gate
}

// NewBtrfs builds a Btrfs handler.
func NewBtrfs(daemon adapter.BlockDaemon, gate *auth.Gate) *Btrfs {
	return &Btrfs{daemon: daemon, gate: gate}
}

func (h *Btrfs) authorize(ctx context.Context, verb string) error {
	_, err := h.gate.Authorize(ctx, btrfsDomain, policy.ActionName(btrfsDomain, verb))
	return err
}

// ListSubvolumes enumerates subvolumes under mountPoint.
func (h *Btrfs) ListSubvolumes(ctx context.Context, mountPoint string) ([]string, error) {
	return h.daemon.ListBtrfsSubvolumes(ctx, mountPoint)
}

// GetSubvolumeUsage returns per-subvolume usage under mountPoint.
func (h *Btrfs) GetSubvolumeUsage(ctx context.Context, mountPoint, name string) (types.UsageResult, error) {
	return h.daemon.GetBtrfsSubvolumeUsage(ctx, mountPoint, name)
}

// CreateSubvolume authorizes then creates a new subvolume.
func (h *Btrfs) CreateSubvolume(ctx context.Context, objectPath, name string) error {
	if err := h.authorize(ctx, "create-subvolume"); err != nil {
		return err
	}
	return h.daemon.CreateBtrfsSubvolume(ctx, objectPath, name)
}

// DeleteSubvolume authorizes then removes a subvolume, including ones
// already tombstoned by a prior deletion.
func (h *Btrfs) DeleteSubvolume(ctx context.Context, objectPath, name string) error {
	if err := h.authorize(ctx, "delete-subvolume"); err != nil {
		return err
	}
	return h.daemon.DeleteBtrfsSubvolume(ctx, objectPath, name)
}

// GetDefaultSubvolume returns the subvolume mounted by default under
// mountPoint.
func (h *Btrfs) GetDefaultSubvolume(ctx context.Context, mountPoint string) (string, error) {
	return h.daemon.GetDefaultBtrfsSubvolume(ctx, mountPoint)
}

// SetDefaultSubvolume authorizes then marks name as the default
// subvolume under mountPoint.
func (h *Btrfs) SetDefaultSubvolume(ctx context.Context, mountPoint, name string) error {
	if err := h.authorize(ctx, "set-default-subvolume"); err != nil {
		return err
	}
	return h.daemon.SetDefaultBtrfsSubvolume(ctx, mountPoint, name)
}

// SetReadOnly authorizes then toggles a subvolume's read-only property.
func (h *Btrfs) SetReadOnly(ctx context.Context, mountPoint, name string, readOnly bool) error {
	if err := h.authorize(ctx, "set-read-only"); err != nil {
		return err
	}
	return h.daemon.SetBtrfsSubvolumeReadOnly(ctx, mountPoint, name, readOnly)
}
