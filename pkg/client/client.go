// Package client implements the UI-facing client library: strongly
// typed proxies for each handler interface, JSON decode, one shared
// bus connection. One Go type wrapping the transport connection,
// method-per-call, a context timeout per call, connecting to
// busserver.BusName over the D-Bus session/system bus — the bus's own
// peer credentials are the transport's trust boundary, the policy gate
// does the rest.
package client

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/godbus/dbus/v5"
)

// BusName is the well-known name the service publishes itself under.
const BusName = "org.storagebroker.Service1"

const callTimeout = 30 * time.Second

// Client owns the shared bus connection every domain proxy calls
// through.
type Client struct {
	conn *dbus.Conn

	Disks       *Disks
	Filesystems *Filesystems
	Luks        *Luks
	Image       *Image
	Rclone      *Rclone
	Logical     *Logical
	Btrfs       *Btrfs
}

// Dial connects to the system bus and builds every domain proxy over
// it. Callers needing the session bus (e.g. integration tests running
// a user-scoped fake service) should use NewFromConn with a
// dbus.ConnectSessionBus-backed conn instead.
func Dial(ctx context.Context) (*Client, error) {
	conn, err := dbus.ConnectSystemBus(dbus.WithContext(ctx))
	if err != nil {
		return nil, fmt.Errorf("connect to system bus: %w", err)
	}
	return newClient(conn), nil
}

// NewFromConn builds a Client over an already-established connection,
// used by tests wiring up a private bus.
func NewFromConn(conn *dbus.Conn) *Client {
	return newClient(conn)
}

func newClient(conn *dbus.Conn) *Client {
	return &Client{
		conn:        conn,
		Disks:       &Disks{c: conn},
		Filesystems: &Filesystems{c: conn},
		Luks:        &Luks{c: conn},
		Image:       &Image{c: conn},
		Rclone:      &Rclone{c: conn},
		Logical:     &Logical{c: conn},
		Btrfs:       &Btrfs{c: conn},
	}
}

// Close releases the underlying bus connection.
func (c *Client) Close() error {
	return c.conn.Close()
}

// Conn exposes the shared bus connection for callers that need to
// subscribe to signals directly, e.g. pkg/ui's signal-driven refresh.
func (c *Client) Conn() *dbus.Conn {
	return c.conn
}

// object returns the remote object at path under the service's
// well-known name.
func object(conn *dbus.Conn, path dbus.ObjectPath) dbus.BusObject {
	return conn.Object(BusName, path)
}

// callJSON invokes iface.method on the object at path, bounding the
// round trip by callTimeout, and decodes the single JSON-string reply
// into T.
func callJSON[T any](ctx context.Context, conn *dbus.Conn, path dbus.ObjectPath, iface, method string, args ...any) (T, error) {
	var zero T
	ctx, cancel := context.WithTimeout(ctx, callTimeout)
	defer cancel()
	var raw string
	call := object(conn, path).CallWithContext(ctx, iface+"."+method, 0, args...)
	if call.Err != nil {
		return zero, call.Err
	}
	if err := call.Store(&raw); err != nil {
		return zero, err
	}
	var out T
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return zero, fmt.Errorf("decode %s reply: %w", method, err)
	}
	return out, nil
}

// callVoid invokes iface.method on the object at path, bounding the
// round trip by callTimeout, and discards any reply, surfacing only
// the call error.
func callVoid(ctx context.Context, conn *dbus.Conn, path dbus.ObjectPath, iface, method string, args ...any) error {
	ctx, cancel := context.WithTimeout(ctx, callTimeout)
	defer cancel()
	return object(conn, path).CallWithContext(ctx, iface+"."+method, 0, args...).Err
}

// callScalar invokes iface.method on the object at path, bounding the
// round trip by callTimeout, and stores the single scalar reply
// directly into out (no JSON decode) — used for methods whose reply
// is already a native D-Bus type, e.g. a plain device path string.
func callScalar(ctx context.Context, conn *dbus.Conn, path dbus.ObjectPath, iface, method string, out any, args ...any) error {
	ctx, cancel := context.WithTimeout(ctx, callTimeout)
	defer cancel()
	return object(conn, path).CallWithContext(ctx, iface+"."+method, 0, args...).Store(out)
}

// encodeJSON marshals v for a handler method whose argument is a JSON
// string, e.g. MountOptionsSettings or RcloneRemoteConfig.
func encodeJSON(v any) string {
	b, _ := json.Marshal(v)
	return string(b)
}
