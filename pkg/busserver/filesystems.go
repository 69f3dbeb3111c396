package busserver

import (
	"context"

	"github.com/godbus/dbus/v5"

	"github.com/storagebroker/service/pkg/handlers"
	"github.com/storagebroker/service/pkg/types"
)

type dbusFilesystems struct {
	h      *handlers.Filesystems
	ctxFor func(dbus.Sender) context.Context
}

func (d *dbusFilesystems) GetSupportedFilesystems() (string, *dbus.Error) {
	return encode(d.h.GetSupportedFilesystems())
}

func (d *dbusFilesystems) ListFilesystems(sender dbus.Sender) (string, *dbus.Error) {
	vols, err := d.h.ListFilesystems(d.ctxFor(sender))
	if err != nil {
		return "", dbusErr(err)
	}
	return encode(vols)
}

func (d *dbusFilesystems) Format(sender dbus.Sender, device, fsType, label, optionsJSON string) *dbus.Error {
	opts, derr := decode[types.MountOptionsSettings](optionsJSON)
	if derr != nil {
		return derr
	}
	return dbusErr(d.h.Format(d.ctxFor(sender), device, fsType, label, opts))
}

func (d *dbusFilesystems) Mount(sender dbus.Sender, device, mountPoint, optionsJSON string) (string, *dbus.Error) {
	options, derr := decode[[]string](optionsJSON)
	if derr != nil {
		return "", derr
	}
	path, err := d.h.Mount(d.ctxFor(sender), device, mountPoint, options)
	if err != nil {
		return "", dbusErr(err)
	}
	return path, nil
}

func (d *dbusFilesystems) Unmount(sender dbus.Sender, device string, force, killProcesses bool) (string, *dbus.Error) {
	result, err := d.h.Unmount(d.ctxFor(sender), device, force, killProcesses)
	if err != nil {
		return "", dbusErr(err)
	}
	return encode(result)
}

func (d *dbusFilesystems) GetBlockingProcesses(sender dbus.Sender, device string) (string, *dbus.Error) {
	procs, err := d.h.GetBlockingProcesses(d.ctxFor(sender), device)
	if err != nil {
		return "", dbusErr(err)
	}
	return encode(procs)
}

func (d *dbusFilesystems) Check(sender dbus.Sender, device string, repair bool) (string, *dbus.Error) {
	result, err := d.h.Check(d.ctxFor(sender), device, repair)
	if err != nil {
		return "", dbusErr(err)
	}
	return encode(result)
}

func (d *dbusFilesystems) SetLabel(sender dbus.Sender, device, label string) *dbus.Error {
	return dbusErr(d.h.SetLabel(d.ctxFor(sender), device, label))
}

func (d *dbusFilesystems) GetUsage(sender dbus.Sender, mountPoint string) (string, *dbus.Error) {
	usage, err := d.h.GetUsage(d.ctxFor(sender), mountPoint)
	if err != nil {
		return "", dbusErr(err)
	}
	return encode(usage)
}

func (d *dbusFilesystems) GetMountOptions(sender dbus.Sender, device string) (string, *dbus.Error) {
	opts, err := d.h.GetMountOptions(d.ctxFor(sender), device)
	if err != nil {
		return "", dbusErr(err)
	}
	return encode(opts)
}

func (d *dbusFilesystems) DefaultMountOptions(sender dbus.Sender, device string) (string, *dbus.Error) {
	opts, err := d.h.DefaultMountOptions(d.ctxFor(sender), device)
	if err != nil {
		return "", dbusErr(err)
	}
	return encode(opts)
}

func (d *dbusFilesystems) EditMountOptions(sender dbus.Sender, device, settingsJSON, extraTokensJSON string) *dbus.Error {
	settings, derr := decode[types.MountOptionsSettings](settingsJSON)
	if derr != nil {
		return derr
	}
	extra, derr := decode[[]string](extraTokensJSON)
	if derr != nil {
		return derr
	}
	return dbusErr(d.h.EditMountOptions(d.ctxFor(sender), device, settings, extra))
}

func (d *dbusFilesystems) TakeOwnership(sender dbus.Sender, device string, recursive bool) *dbus.Error {
	return dbusErr(d.h.TakeOwnership(d.ctxFor(sender), device, recursive))
}
