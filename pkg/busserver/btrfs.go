package busserver

import (
	"context"

	"github.com/godbus/dbus/v5"

	"github.com/storagebroker/service/pkg/handlers"
)

type dbusBtrfs struct {
	h      *handlers.Btrfs
	ctxFor func(dbus.Sender) context.Context
}

func (d *dbusBtrfs) ListSubvolumes(sender dbus.Sender, mountPoint string) ([]string, *dbus.Error) {
	subs, err := d.h.ListSubvolumes(d.ctxFor(sender), mountPoint)
	if err != nil {
		return nil, dbusErr(err)
	}
	return subs, nil
}

func (d *dbusBtrfs) GetSubvolumeUsage(sender dbus.Sender, mountPoint, name string) (string, *dbus.Error) {
	usage, err := d.h.GetSubvolumeUsage(d.ctxFor(sender), mountPoint, name)
	if err != nil {
		return "", dbusErr(err)
	}
	return encode(usage)
}

func (d *dbusBtrfs) CreateSubvolume(sender dbus.Sender, objectPath, name string) *dbus.Error {
	return dbusErr(d.h.CreateSubvolume(d.ctxFor(sender), objectPath, name))
}

func (d *dbusBtrfs) DeleteSubvolume(sender dbus.Sender, objectPath, name string) *dbus.Error {
	return dbusErr(d.h.DeleteSubvolume(d.ctxFor(sender), objectPath, name))
}

func (d *dbusBtrfs) GetDefaultSubvolume(sender dbus.Sender, mountPoint string) (string, *dbus.Error) {
	name, err := d.h.GetDefaultSubvolume(d.ctxFor(sender), mountPoint)
	if err != nil {
		return "", dbusErr(err)
	}
	return name, nil
}

func (d *dbusBtrfs) SetDefaultSubvolume(sender dbus.Sender, mountPoint, name string) *dbus.Error {
	return dbusErr(d.h.SetDefaultSubvolume(d.ctxFor(sender), mountPoint, name))
}

func (d *dbusBtrfs) SetReadOnly(sender dbus.Sender, mountPoint, name string, readOnly bool) *dbus.Error {
	return dbusErr(d.h.SetReadOnly(d.ctxFor(sender), mountPoint, name, readOnly))
}
