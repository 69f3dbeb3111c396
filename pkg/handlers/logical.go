package handlers

import (
	"context"

	"github.com/storagebroker/service/pkg/adapter"
	"github.com/storagebroker/service/pkg/auth"
	"github.com/storagebroker/service/pkg/errs"
	"github.com/storagebroker/service/pkg/policy"
	"github.com/storagebroker/service/pkg/types"
)

const logicalDomain = "logical"

// Logical covers the LVM/MD-RAID operations: thin authorization
// wrappers over the adapter, sharing the disks/luks handlers' shape.
// These are domain-standard shell-outs, so the handler stays a direct
// pass-through rather than modeling LVM/MD state itself.
type Logical struct {
	daemon adapter.BlockDaemon
	gate   *auth.Gate
}

// NewLogical builds a Logical handler.
func NewLogical(daemon adapter.BlockDaemon, gate *auth.Gate) *Logical {
	return &Logical{daemon: daemon, gate: gate}
}

func (h *Logical) authorize(ctx context.Context, verb string) error {
	_, err := h.gate.Authorize(ctx, logicalDomain, policy.ActionName(logicalDomain, verb))
	return err
}

// ActivateLogicalVolume brings an inactive LV online.
func (h *Logical) ActivateLogicalVolume(ctx context.Context, objectPath string) error {
	if err := h.authorize(ctx, "activate-lv"); err != nil {
		return err
	}
	return h.daemon.ActivateLogicalVolume(ctx, objectPath)
}

// DeactivateLogicalVolume takes an LV offline.
func (h *Logical) DeactivateLogicalVolume(ctx context.Context, objectPath string) error {
	if err := h.authorize(ctx, "deactivate-lv"); err != nil {
		return err
	}
	return h.daemon.DeactivateLogicalVolume(ctx, objectPath)
}

// StartArray assembles and starts an MD array.
func (h *Logical) StartArray(ctx context.Context, objectPath string) error {
	if err := h.authorize(ctx, "start-array"); err != nil {
		return err
	}
	return h.daemon.StartArray(ctx, objectPath)
}

// StopArray stops an MD array.
func (h *Logical) StopArray(ctx context.Context, objectPath string) error {
	if err := h.authorize(ctx, "stop-array"); err != nil {
		return err
	}
	return h.daemon.StopArray(ctx, objectPath)
}

// RequestSyncAction kicks off a check or repair resync on an MD array.
func (h *Logical) RequestSyncAction(ctx context.Context, objectPath, action string) (types.CheckResult, error) {
	if action != "check" && action != "repair" {
		return types.CheckResult{}, errs.New(errs.InvalidArgs, logicalDomain, "unknown sync action %q", action)
	}
	if err := h.authorize(ctx, "request-sync-action"); err != nil {
		return types.CheckResult{}, err
	}
	return h.daemon.RequestSyncAction(ctx, objectPath, action)
}

// CreateLogicalVolume carves a new LV out of vgObjectPath.
func (h *Logical) CreateLogicalVolume(ctx context.Context, vgObjectPath, name string, size uint64) (types.Volume, error) {
	if err := h.authorize(ctx, "create-lv"); err != nil {
		return types.Volume{}, err
	}
	return h.daemon.CreateLogicalVolume(ctx, vgObjectPath, name, size)
}

// DeleteLogicalVolume removes an LV.
func (h *Logical) DeleteLogicalVolume(ctx context.Context, objectPath string) error {
	if err := h.authorize(ctx, "delete-lv"); err != nil {
		return err
	}
	return h.daemon.DeleteLogicalVolume(ctx, objectPath)
}
