package handlers

import (
	"context"

	"github.com/storagebroker/service/pkg/auth"
	"github.com/storagebroker/service/pkg/imageengine"
	"github.com/storagebroker/service/pkg/policy"
	"github.com/storagebroker/service/pkg/types"
)

const imageDomain = "image"

// Image is an authorization wrapper around the cancellable
// imageengine.Engine. The engine itself holds no opinion on who may
// call it — every begin-method here checks the gate before handing off
// to the engine's background task.
type Image struct {
	engine *imageengine.Engine
	gate   *auth.Gate
}

// NewImage builds an Image handler over an already-constructed engine.
func NewImage(engine *imageengine.Engine, gate *auth.Gate) *Image {
	return &Image{engine: engine, gate: gate}
}

func (h *Image) authorize(ctx context.Context, verb string) error {
	_, err := h.gate.Authorize(ctx, imageDomain, policy.ActionName(imageDomain, verb))
	return err
}

// BackupDrive authorizes then starts a whole-disk backup, returning the
// new operation id immediately.
func (h *Image) BackupDrive(ctx context.Context, objectPath, destinationPath string) (string, error) {
	if err := h.authorize(ctx, "backup-drive"); err != nil {
		return "", err
	}
	return h.engine.BackupDrive(ctx, objectPath, destinationPath)
}

// BackupPartition authorizes then starts a single-partition backup.
func (h *Image) BackupPartition(ctx context.Context, objectPath, destinationPath string) (string, error) {
	if err := h.authorize(ctx, "backup-partition"); err != nil {
		return "", err
	}
	return h.engine.BackupPartition(ctx, objectPath, destinationPath)
}

// RestoreDrive authorizes then starts a whole-disk restore.
func (h *Image) RestoreDrive(ctx context.Context, objectPath, imagePath string) (string, error) {
	if err := h.authorize(ctx, "restore-drive"); err != nil {
		return "", err
	}
	return h.engine.RestoreDrive(ctx, objectPath, imagePath)
}

// RestorePartition authorizes then starts a single-partition restore.
func (h *Image) RestorePartition(ctx context.Context, objectPath, imagePath string) (string, error) {
	if err := h.authorize(ctx, "restore-partition"); err != nil {
		return "", err
	}
	return h.engine.RestorePartition(ctx, objectPath, imagePath)
}

// LoopSetup authorizes then attaches imagePath as a loop device.
func (h *Image) LoopSetup(ctx context.Context, imagePath string) (string, error) {
	if err := h.authorize(ctx, "loop-setup"); err != nil {
		return "", err
	}
	return h.engine.LoopSetup(ctx, imagePath)
}

// CancelOperation is read/write on the registry only; it is authorized
// under its own cancel-operation action, separate from the
// begin-methods' actions.
func (h *Image) CancelOperation(ctx context.Context, operationID string) error {
	if err := h.authorize(ctx, "cancel-operation"); err != nil {
		return err
	}
	return h.engine.CancelOperation(operationID)
}

// GetOperationStatus is a plain read: no gate check, mirroring the
// Disks/Filesystems read methods that require no authorization.
func (h *Image) GetOperationStatus(operationID string) (types.ImageOperationStatus, error) {
	return h.engine.GetOperationStatus(operationID)
}

// ListActiveOperations is a plain read.
func (h *Image) ListActiveOperations() []types.ImageOperationStatus {
	return h.engine.ListActiveOperations()
}
