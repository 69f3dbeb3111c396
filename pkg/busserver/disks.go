package busserver

import (
	"context"

	"github.com/godbus/dbus/v5"

	"github.com/storagebroker/service/pkg/handlers"
)

// dbusDisks is the bus-facing wrapper around handlers.Disks: scalar
// arguments travel as typed D-Bus values, Disk/Volume/SmartAttribute
// payloads as JSON strings.
type dbusDisks struct {
	h      *handlers.Disks
	ctxFor func(dbus.Sender) context.Context
}

func (d *dbusDisks) ListDisks(sender dbus.Sender) (string, *dbus.Error) {
	disks, err := d.h.ListDisks(d.ctxFor(sender))
	if err != nil {
		return "", dbusErr(err)
	}
	return encode(disks)
}

func (d *dbusDisks) GetDiskInfo(sender dbus.Sender, identifier string) (string, *dbus.Error) {
	disk, err := d.h.GetDiskInfo(d.ctxFor(sender), identifier)
	if err != nil {
		return "", dbusErr(err)
	}
	return encode(disk)
}

func (d *dbusDisks) ListVolumes(sender dbus.Sender, diskDevice string) (string, *dbus.Error) {
	vols, err := d.h.ListVolumes(d.ctxFor(sender), diskDevice)
	if err != nil {
		return "", dbusErr(err)
	}
	return encode(vols)
}

func (d *dbusDisks) GetVolumeInfo(sender dbus.Sender, diskDevice, identifier string) (string, *dbus.Error) {
	vol, err := d.h.GetVolumeInfo(d.ctxFor(sender), diskDevice, identifier)
	if err != nil {
		return "", dbusErr(err)
	}
	return encode(vol)
}

func (d *dbusDisks) GetSmartStatus(sender dbus.Sender, device string) (string, *dbus.Error) {
	info, err := d.h.GetSmartStatus(d.ctxFor(sender), device)
	if err != nil {
		return "", dbusErr(err)
	}
	return encode(info)
}

func (d *dbusDisks) GetSmartAttributes(sender dbus.Sender, device string) (string, *dbus.Error) {
	attrs, err := d.h.GetSmartAttributes(d.ctxFor(sender), device)
	if err != nil {
		return "", dbusErr(err)
	}
	return encode(attrs)
}

func (d *dbusDisks) StartSmartTest(sender dbus.Sender, device, kind string) *dbus.Error {
	return dbusErr(d.h.StartSmartTest(d.ctxFor(sender), device, kind))
}

func (d *dbusDisks) Eject(sender dbus.Sender, device string) *dbus.Error {
	return dbusErr(d.h.Eject(d.ctxFor(sender), device))
}

func (d *dbusDisks) PowerOff(sender dbus.Sender, device string) *dbus.Error {
	return dbusErr(d.h.PowerOff(d.ctxFor(sender), device))
}

func (d *dbusDisks) StandbyNow(sender dbus.Sender, device string) *dbus.Error {
	return dbusErr(d.h.StandbyNow(d.ctxFor(sender), device))
}

func (d *dbusDisks) Wakeup(sender dbus.Sender, device string) *dbus.Error {
	return dbusErr(d.h.Wakeup(d.ctxFor(sender), device))
}

func (d *dbusDisks) Remove(sender dbus.Sender, device string) *dbus.Error {
	return dbusErr(d.h.Remove(d.ctxFor(sender), device))
}

func (d *dbusDisks) CreatePartitionTable(sender dbus.Sender, device, kind string) *dbus.Error {
	return dbusErr(d.h.CreatePartitionTable(d.ctxFor(sender), device, kind))
}

func (d *dbusDisks) CreatePartition(sender dbus.Sender, device string, offset, size uint64, typeID, label string) (string, *dbus.Error) {
	vol, err := d.h.CreatePartition(d.ctxFor(sender), device, offset, size, typeID, label)
	if err != nil {
		return "", dbusErr(err)
	}
	return encode(vol)
}

func (d *dbusDisks) DeletePartition(sender dbus.Sender, objectPath string) *dbus.Error {
	return dbusErr(d.h.DeletePartition(d.ctxFor(sender), objectPath))
}

func (d *dbusDisks) ResizePartition(sender dbus.Sender, objectPath string, newSize uint64) *dbus.Error {
	return dbusErr(d.h.ResizePartition(d.ctxFor(sender), objectPath, newSize))
}
