package busserver

import (
	"context"

	"github.com/godbus/dbus/v5"

	"github.com/storagebroker/service/pkg/handlers"
)

type dbusImage struct {
	h      *handlers.Image
	ctxFor func(dbus.Sender) context.Context
}

func (d *dbusImage) BackupDrive(sender dbus.Sender, objectPath, destinationPath string) (string, *dbus.Error) {
	id, err := d.h.BackupDrive(d.ctxFor(sender), objectPath, destinationPath)
	if err != nil {
		return "", dbusErr(err)
	}
	return id, nil
}

func (d *dbusImage) BackupPartition(sender dbus.Sender, objectPath, destinationPath string) (string, *dbus.Error) {
	id, err := d.h.BackupPartition(d.ctxFor(sender), objectPath, destinationPath)
	if err != nil {
		return "", dbusErr(err)
	}
	return id, nil
}

func (d *dbusImage) RestoreDrive(sender dbus.Sender, objectPath, imagePath string) (string, *dbus.Error) {
	id, err := d.h.RestoreDrive(d.ctxFor(sender), objectPath, imagePath)
	if err != nil {
		return "", dbusErr(err)
	}
	return id, nil
}

func (d *dbusImage) RestorePartition(sender dbus.Sender, objectPath, imagePath string) (string, *dbus.Error) {
	id, err := d.h.RestorePartition(d.ctxFor(sender), objectPath, imagePath)
	if err != nil {
		return "", dbusErr(err)
	}
	return id, nil
}

func (d *dbusImage) LoopSetup(sender dbus.Sender, imagePath string) (string, *dbus.Error) {
	device, err := d.h.LoopSetup(d.ctxFor(sender), imagePath)
	if err != nil {
		return "", dbusErr(err)
	}
	return device, nil
}

func (d *dbusImage) CancelOperation(sender dbus.Sender, operationID string) *dbus.Error {
	return dbusErr(d.h.CancelOperation(d.ctxFor(sender), operationID))
}

func (d *dbusImage) GetOperationStatus(operationID string) (string, *dbus.Error) {
	status, err := d.h.GetOperationStatus(operationID)
	if err != nil {
		return "", dbusErr(err)
	}
	return encode(status)
}

func (d *dbusImage) ListActiveOperations() (string, *dbus.Error) {
	return encode(d.h.ListActiveOperations())
}
