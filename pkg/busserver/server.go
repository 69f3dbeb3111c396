// Package busserver wires the per-domain handlers in pkg/handlers onto
// a real D-Bus connection: one object path per handler under the
// broker's bus name, every non-trivial payload carried as a UTF-8 JSON
// string so the wire schema stays independent of the bus IDL, and the
// signal bus bridged onto real D-Bus signal emission. One Go type per
// registered service, a thin per-method wrapper around the domain
// logic; the transport itself follows github.com/godbus/dbus/v5.
package busserver

import (
	"context"
	"encoding/json"

	"github.com/godbus/dbus/v5"

	"github.com/storagebroker/service/pkg/errs"
	"github.com/storagebroker/service/pkg/handlers"
	"github.com/storagebroker/service/pkg/log"
	"github.com/storagebroker/service/pkg/signalbus"
)

// BusName is the well-known name the service requests at startup.
const BusName = "org.storagebroker.Service1"

const (
	pathDisks       = "/org/storagebroker/Service1/Disks"
	pathFilesystems = "/org/storagebroker/Service1/Filesystems"
	pathLuks        = "/org/storagebroker/Service1/Luks"
	pathImage       = "/org/storagebroker/Service1/Image"
	pathRclone      = "/org/storagebroker/Service1/Rclone"
	pathLogical     = "/org/storagebroker/Service1/Logical"
	pathBtrfs       = "/org/storagebroker/Service1/Btrfs"
)

const (
	ifaceDisks       = BusName + ".Disks"
	ifaceFilesystems = BusName + ".Filesystems"
	ifaceLuks        = BusName + ".Luks"
	ifaceImage       = BusName + ".Image"
	ifaceRclone      = BusName + ".Rclone"
	ifaceLogical     = BusName + ".Logical"
	ifaceBtrfs       = BusName + ".Btrfs"
)

// Handlers bundles the seven domain handlers a Server exports.
type Handlers struct {
	Disks       *handlers.Disks
	Filesystems *handlers.Filesystems
	Luks        *handlers.Luks
	Image       *handlers.Image
	Rclone      *handlers.Rclone
	Logical     *handlers.Logical
	Btrfs       *handlers.Btrfs
}

// Server exports Handlers on conn and bridges bus's signals onto real
// D-Bus signal emission until Run's context is cancelled.
type Server struct {
	conn *dbus.Conn
	h    Handlers
	bus  *signalbus.Bus
}

// New builds a Server over an already-connected conn.
func New(conn *dbus.Conn, h Handlers, bus *signalbus.Bus) *Server {
	return &Server{conn: conn, h: h, bus: bus}
}

// Export registers every handler's D-Bus object and requests BusName.
// Must be called once, before Run.
func (s *Server) Export() error {
	ctxFor := func(sender dbus.Sender) context.Context {
		return context.WithValue(context.Background(), senderKey{}, sender)
	}

	exports := []struct {
		obj   interface{}
		path  dbus.ObjectPath
		iface string
	}{
		{&dbusDisks{h: s.h.Disks, ctxFor: ctxFor}, pathDisks, ifaceDisks},
		{&dbusFilesystems{h: s.h.Filesystems, ctxFor: ctxFor}, pathFilesystems, ifaceFilesystems},
		{&dbusLuks{h: s.h.Luks, ctxFor: ctxFor}, pathLuks, ifaceLuks},
		{&dbusImage{h: s.h.Image, ctxFor: ctxFor}, pathImage, ifaceImage},
		{&dbusRclone{h: s.h.Rclone, ctxFor: ctxFor}, pathRclone, ifaceRclone},
		{&dbusLogical{h: s.h.Logical, ctxFor: ctxFor}, pathLogical, ifaceLogical},
		{&dbusBtrfs{h: s.h.Btrfs, ctxFor: ctxFor}, pathBtrfs, ifaceBtrfs},
	}
	for _, e := range exports {
		if err := s.conn.Export(e.obj, e.path, e.iface); err != nil {
			return err
		}
	}

	reply, err := s.conn.RequestName(BusName, dbus.NameFlagDoNotQueue)
	if err != nil {
		return err
	}
	if reply != dbus.RequestNameReplyPrimaryOwner {
		return errs.New(errs.Internal, "busserver", "bus name %q already owned", BusName)
	}
	return nil
}

// Run drains the signal bus and re-emits each signal as a real D-Bus
// signal on its owning object path until ctx is cancelled.
func (s *Server) Run(ctx context.Context) {
	sub := s.bus.Subscribe()
	defer s.bus.Unsubscribe(sub)
	logger := log.WithComponent("busserver")

	for {
		select {
		case <-ctx.Done():
			return
		case sig, ok := <-sub:
			if !ok {
				return
			}
			iface := signalInterface(sig.Name)
			if err := s.conn.Emit(dbus.ObjectPath(sig.Path), iface+"."+string(sig.Name), sig.Args...); err != nil {
				logger.Warn().Err(err).Str("signal", string(sig.Name)).Msg("failed to emit D-Bus signal")
			}
		}
	}
}

// signalInterface names the handler interface that owns a given signal.
func signalInterface(name signalbus.Name) string {
	switch name {
	case signalbus.DiskAdded, signalbus.DiskRemoved:
		return ifaceDisks
	case signalbus.FormatProgress, signalbus.Formatted, signalbus.Mounted, signalbus.Unmounted:
		return ifaceFilesystems
	case signalbus.ContainerCreated, signalbus.ContainerUnlocked, signalbus.ContainerLocked:
		return ifaceLuks
	case signalbus.OperationStarted, signalbus.OperationProgress, signalbus.OperationCompleted:
		return ifaceImage
	case signalbus.MountChanged:
		return ifaceRclone
	default:
		return BusName
	}
}

type senderKey struct{}

// senderResolver implements auth.SenderResolver over a live bus
// connection: it asks the bus daemon itself, via the standard
// GetConnectionUnixUser call, for the UID behind the message sender
// stashed in ctx by each dbus wrapper method.
type senderResolver struct {
	conn *dbus.Conn
}

// NewSenderResolver builds the auth.SenderResolver Gate instances use
// when wired to a real bus connection.
func NewSenderResolver(conn *dbus.Conn) *senderResolver {
	return &senderResolver{conn: conn}
}

func (r *senderResolver) CallerUID(ctx context.Context) (uint32, error) {
	sender, ok := ctx.Value(senderKey{}).(dbus.Sender)
	if !ok || sender == "" {
		return 0, errs.New(errs.Internal, "busserver", "no D-Bus sender in context")
	}
	var uid uint32
	err := r.conn.BusObject().CallWithContext(ctx, "org.freedesktop.DBus.GetConnectionUnixUser", 0, sender).Store(&uid)
	if err != nil {
		return 0, err
	}
	return uid, nil
}

// --- JSON marshal/unmarshal helpers shared by every dbus* wrapper ---

func dbusErr(err error) *dbus.Error {
	if err == nil {
		return nil
	}
	return dbus.NewError(errs.BusName(errs.As(err)), []interface{}{err.Error()})
}

func encode(v any) (string, *dbus.Error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", dbusErr(errs.Wrap(errs.Internal, "busserver", err))
	}
	return string(b), nil
}

func decode[T any](s string) (T, *dbus.Error) {
	var v T
	if err := json.Unmarshal([]byte(s), &v); err != nil {
		var zero T
		return zero, dbusErr(errs.New(errs.InvalidArgs, "busserver", "invalid JSON argument: %v", err))
	}
	return v, nil
}
