package busserver

import (
	"context"

	"github.com/godbus/dbus/v5"

	"github.com/storagebroker/service/pkg/handlers"
	"github.com/storagebroker/service/pkg/types"
)

type dbusLuks struct {
	h      *handlers.Luks
	ctxFor func(dbus.Sender) context.Context
}

func (d *dbusLuks) Format(sender dbus.Sender, device, passphrase, version string) (string, *dbus.Error) {
	vol, err := d.h.Format(d.ctxFor(sender), device, passphrase, version)
	if err != nil {
		return "", dbusErr(err)
	}
	return encode(vol)
}

func (d *dbusLuks) Unlock(sender dbus.Sender, device, passphrase string) (string, *dbus.Error) {
	cleartext, err := d.h.Unlock(d.ctxFor(sender), device, passphrase)
	if err != nil {
		return "", dbusErr(err)
	}
	return cleartext, nil
}

func (d *dbusLuks) Lock(sender dbus.Sender, cleartextDevice string) *dbus.Error {
	return dbusErr(d.h.Lock(d.ctxFor(sender), cleartextDevice))
}

func (d *dbusLuks) ChangePassphrase(sender dbus.Sender, device, current, next string) *dbus.Error {
	return dbusErr(d.h.ChangePassphrase(d.ctxFor(sender), device, current, next))
}

func (d *dbusLuks) GetEncryptionOptions(sender dbus.Sender, device string) (string, *dbus.Error) {
	opts, err := d.h.GetEncryptionOptions(d.ctxFor(sender), device)
	if err != nil {
		return "", dbusErr(err)
	}
	return encode(opts)
}

func (d *dbusLuks) DefaultEncryptionOptions(sender dbus.Sender, device string) (string, *dbus.Error) {
	opts, err := d.h.DefaultEncryptionOptions(d.ctxFor(sender), device)
	if err != nil {
		return "", dbusErr(err)
	}
	return encode(opts)
}

func (d *dbusLuks) SetEncryptionOptions(sender dbus.Sender, device, settingsJSON, extraTokensJSON string) *dbus.Error {
	settings, derr := decode[types.EncryptionOptionsSettings](settingsJSON)
	if derr != nil {
		return derr
	}
	extra, derr := decode[[]string](extraTokensJSON)
	if derr != nil {
		return derr
	}
	return dbusErr(d.h.SetEncryptionOptions(d.ctxFor(sender), device, settings, extra))
}
