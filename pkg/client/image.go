package client

import (
	"context"

	"github.com/godbus/dbus/v5"

	"github.com/storagebroker/service/pkg/types"
)

const (
	imageObjPath = dbus.ObjectPath("/org/storagebroker/Service1/Image")
	imageIface   = BusName + ".Image"
)

// Image is the UI-facing proxy for the Image handler interface: drive
// and partition backup/restore, loop device setup, and the cancellable
// operation registry that backs the progress dialogs.
type Image struct {
	c *dbus.Conn
}

func (i *Image) BackupDrive(ctx context.Context, objectPath, destinationPath string) (string, error) {
	var id string
	err := callScalar(ctx, i.c, imageObjPath, imageIface, "BackupDrive", &id, objectPath, destinationPath)
	return id, err
}

func (i *Image) BackupPartition(ctx context.Context, objectPath, destinationPath string) (string, error) {
	var id string
	err := callScalar(ctx, i.c, imageObjPath, imageIface, "BackupPartition", &id, objectPath, destinationPath)
	return id, err
}

func (i *Image) RestoreDrive(ctx context.Context, objectPath, imagePath string) (string, error) {
	var id string
	err := callScalar(ctx, i.c, imageObjPath, imageIface, "RestoreDrive", &id, objectPath, imagePath)
	return id, err
}

func (i *Image) RestorePartition(ctx context.Context, objectPath, imagePath string) (string, error) {
	var id string
	err := callScalar(ctx, i.c, imageObjPath, imageIface, "RestorePartition", &id, objectPath, imagePath)
	return id, err
}

func (i *Image) LoopSetup(ctx context.Context, imagePath string) (string, error) {
	var device string
	err := callScalar(ctx, i.c, imageObjPath, imageIface, "LoopSetup", &device, imagePath)
	return device, err
}

func (i *Image) CancelOperation(ctx context.Context, operationID string) error {
	return callVoid(ctx, i.c, imageObjPath, imageIface, "CancelOperation", operationID)
}

func (i *Image) GetOperationStatus(ctx context.Context, operationID string) (types.ImageOperationStatus, error) {
	return callJSON[types.ImageOperationStatus](ctx, i.c, imageObjPath, imageIface, "GetOperationStatus", operationID)
}

func (i *Image) ListActiveOperations(ctx context.Context) ([]types.ImageOperationStatus, error) {
	return callJSON[[]types.ImageOperationStatus](ctx, i.c, imageObjPath, imageIface, "ListActiveOperations")
}
