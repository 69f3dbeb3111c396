package busserver

import (
	"context"

	"github.com/godbus/dbus/v5"

	"github.com/storagebroker/service/pkg/handlers"
)

type dbusLogical struct {
	h      *handlers.Logical
	ctxFor func(dbus.Sender) context.Context
}

func (d *dbusLogical) ActivateLogicalVolume(sender dbus.Sender, objectPath string) *dbus.Error {
	return dbusErr(d.h.ActivateLogicalVolume(d.ctxFor(sender), objectPath))
}

func (d *dbusLogical) DeactivateLogicalVolume(sender dbus.Sender, objectPath string) *dbus.Error {
	return dbusErr(d.h.DeactivateLogicalVolume(d.ctxFor(sender), objectPath))
}

func (d *dbusLogical) StartArray(sender dbus.Sender, objectPath string) *dbus.Error {
	return dbusErr(d.h.StartArray(d.ctxFor(sender), objectPath))
}

func (d *dbusLogical) StopArray(sender dbus.Sender, objectPath string) *dbus.Error {
	return dbusErr(d.h.StopArray(d.ctxFor(sender), objectPath))
}

func (d *dbusLogical) RequestSyncAction(sender dbus.Sender, objectPath, action string) (string, *dbus.Error) {
	result, err := d.h.RequestSyncAction(d.ctxFor(sender), objectPath, action)
	if err != nil {
		return "", dbusErr(err)
	}
	return encode(result)
}

func (d *dbusLogical) CreateLogicalVolume(sender dbus.Sender, vgObjectPath, name string, size uint64) (string, *dbus.Error) {
	vol, err := d.h.CreateLogicalVolume(d.ctxFor(sender), vgObjectPath, name, size)
	if err != nil {
		return "", dbusErr(err)
	}
	return encode(vol)
}

func (d *dbusLogical) DeleteLogicalVolume(sender dbus.Sender, objectPath string) *dbus.Error {
	return dbusErr(d.h.DeleteLogicalVolume(d.ctxFor(sender), objectPath))
}
