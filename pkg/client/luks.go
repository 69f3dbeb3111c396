package client

import (
	"context"

	"github.com/godbus/dbus/v5"

	"github.com/storagebroker/service/pkg/types"
)

const (
	luksPath  = dbus.ObjectPath("/org/storagebroker/Service1/Luks")
	luksIface = BusName + ".Luks"
)

// Luks is the UI-facing proxy for the Luks handler interface.
type Luks struct {
	c *dbus.Conn
}

func (l *Luks) Format(ctx context.Context, device, passphrase, version string) (types.Volume, error) {
	return callJSON[types.Volume](ctx, l.c, luksPath, luksIface, "Format", device, passphrase, version)
}

func (l *Luks) Unlock(ctx context.Context, device, passphrase string) (string, error) {
	var cleartext string
	err := callScalar(ctx, l.c, luksPath, luksIface, "Unlock", &cleartext, device, passphrase)
	return cleartext, err
}

func (l *Luks) Lock(ctx context.Context, cleartextDevice string) error {
	return callVoid(ctx, l.c, luksPath, luksIface, "Lock", cleartextDevice)
}

func (l *Luks) ChangePassphrase(ctx context.Context, device, current, next string) error {
	return callVoid(ctx, l.c, luksPath, luksIface, "ChangePassphrase", device, current, next)
}

func (l *Luks) GetEncryptionOptions(ctx context.Context, device string) (types.EncryptionOptionsSettings, error) {
	return callJSON[types.EncryptionOptionsSettings](ctx, l.c, luksPath, luksIface, "GetEncryptionOptions", device)
}

func (l *Luks) DefaultEncryptionOptions(ctx context.Context, device string) (types.EncryptionOptionsSettings, error) {
	return callJSON[types.EncryptionOptionsSettings](ctx, l.c, luksPath, luksIface, "DefaultEncryptionOptions", device)
}

func (l *Luks) SetEncryptionOptions(ctx context.Context, device string, settings types.EncryptionOptionsSettings, extraTokens []string) error {
	return callVoid(ctx, l.c, luksPath, luksIface, "SetEncryptionOptions", device, encodeJSON(settings), encodeJSON(extraTokens))
}
