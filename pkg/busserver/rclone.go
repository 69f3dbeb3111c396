package busserver

import (
	"context"

	"github.com/godbus/dbus/v5"

	"github.com/storagebroker/service/pkg/handlers"
	"github.com/storagebroker/service/pkg/policy"
	"github.com/storagebroker/service/pkg/types"
)

const rcloneDbusDomain = "rclone"

type dbusRclone struct {
	h      *handlers.Rclone
	ctxFor func(dbus.Sender) context.Context
}

func (d *dbusRclone) ListRemotes(sender dbus.Sender, callerUID uint32) (string, *dbus.Error) {
	list, err := d.h.ListRemotes(d.ctxFor(sender), callerUID)
	if err != nil {
		return "", dbusErr(err)
	}
	return encode(list)
}

func (d *dbusRclone) GetRemote(sender dbus.Sender, name, scope string, callerUID uint32) (string, *dbus.Error) {
	s, perr := policy.ParseScope(rcloneDbusDomain, scope)
	if perr != nil {
		return "", dbusErr(perr)
	}
	remote, err := d.h.GetRemote(d.ctxFor(sender), name, s, callerUID)
	if err != nil {
		return "", dbusErr(err)
	}
	return encode(remote)
}

func (d *dbusRclone) CreateRemote(sender dbus.Sender, remoteJSON string) *dbus.Error {
	remote, derr := decode[types.RcloneRemoteConfig](remoteJSON)
	if derr != nil {
		return derr
	}
	return dbusErr(d.h.CreateRemote(d.ctxFor(sender), remote))
}

func (d *dbusRclone) UpdateRemote(sender dbus.Sender, name, remoteJSON string) *dbus.Error {
	remote, derr := decode[types.RcloneRemoteConfig](remoteJSON)
	if derr != nil {
		return derr
	}
	return dbusErr(d.h.UpdateRemote(d.ctxFor(sender), name, remote))
}

func (d *dbusRclone) DeleteRemote(sender dbus.Sender, name, scope string) *dbus.Error {
	s, perr := policy.ParseScope(rcloneDbusDomain, scope)
	if perr != nil {
		return dbusErr(perr)
	}
	return dbusErr(d.h.DeleteRemote(d.ctxFor(sender), name, s))
}

func (d *dbusRclone) Mount(sender dbus.Sender, name, scope string) *dbus.Error {
	s, perr := policy.ParseScope(rcloneDbusDomain, scope)
	if perr != nil {
		return dbusErr(perr)
	}
	return dbusErr(d.h.Mount(d.ctxFor(sender), name, s))
}

func (d *dbusRclone) Unmount(sender dbus.Sender, name, scope string) *dbus.Error {
	s, perr := policy.ParseScope(rcloneDbusDomain, scope)
	if perr != nil {
		return dbusErr(perr)
	}
	return dbusErr(d.h.Unmount(d.ctxFor(sender), name, s))
}

func (d *dbusRclone) GetMountStatus(sender dbus.Sender, name, scope string, callerUID uint32) (string, *dbus.Error) {
	s, perr := policy.ParseScope(rcloneDbusDomain, scope)
	if perr != nil {
		return "", dbusErr(perr)
	}
	status, err := d.h.GetMountStatus(d.ctxFor(sender), name, s, callerUID)
	if err != nil {
		return "", dbusErr(err)
	}
	return encode(status)
}

func (d *dbusRclone) TestRemote(sender dbus.Sender, name, scope string, callerUID uint32) (string, *dbus.Error) {
	s, perr := policy.ParseScope(rcloneDbusDomain, scope)
	if perr != nil {
		return "", dbusErr(perr)
	}
	result, err := d.h.TestRemote(d.ctxFor(sender), name, s, callerUID)
	if err != nil {
		return "", dbusErr(err)
	}
	return encode(result)
}

func (d *dbusRclone) GetMountOnBoot(sender dbus.Sender, name, scope string) (bool, *dbus.Error) {
	s, perr := policy.ParseScope(rcloneDbusDomain, scope)
	if perr != nil {
		return false, dbusErr(perr)
	}
	enabled, err := d.h.GetMountOnBoot(d.ctxFor(sender), name, s)
	if err != nil {
		return false, dbusErr(err)
	}
	return enabled, nil
}

func (d *dbusRclone) SetMountOnBoot(sender dbus.Sender, name, scope string, enabled bool) *dbus.Error {
	s, perr := policy.ParseScope(rcloneDbusDomain, scope)
	if perr != nil {
		return dbusErr(perr)
	}
	return dbusErr(d.h.SetMountOnBoot(d.ctxFor(sender), name, s, enabled))
}

func (d *dbusRclone) SupportedRemoteTypes() []string {
	return d.h.SupportedRemoteTypes()
}
