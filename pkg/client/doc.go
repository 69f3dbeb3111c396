/*
Package client provides a Go client library for the storage broker's
D-Bus API.

The client package wraps the bus interfaces exported by pkg/busserver
with a convenient, idiomatic Go interface: one proxy type per handler
domain, each method decoding the handler's JSON-string reply back into
a pkg/types struct.

# Architecture

	┌──────────────────── APPLICATION CODE ──────────────────────┐
	│                                                              │
	│  import "github.com/storagebroker/service/pkg/client"       │
	│                                                              │
	│  c, err := client.Dial(ctx)                                 │
	│  disks, err := c.Disks.ListDisks(ctx)                        │
	│                                                              │
	└──────────────────┬───────────────────────────────────────┘
	                   │
	┌──────────────────▼──── pkg/client ─────────────────────────┐
	│                                                              │
	│  ┌──────────────────────────────────────────────┐          │
	│  │     Disks / Filesystems / Luks / Image /      │          │
	│  │     Rclone / Logical / Btrfs proxies           │          │
	│  │  - One Go method per handler operation         │          │
	│  │  - JSON decode of structured payloads          │          │
	│  │  - Per-call timeout via context.WithTimeout    │          │
	│  └──────────────────┬───────────────────────────┘          │
	│                     │                                        │
	│  ┌──────────────────▼───────────────────────────┐          │
	│  │         github.com/godbus/dbus/v5              │          │
	│  │  - System bus connection                        │          │
	│  │  - CallWithContext per method                   │          │
	│  └──────────────────┬───────────────────────────┘          │
	└─────────────────────┼────────────────────────────────────┘
	                      │ D-Bus (system bus)
	                      ▼
	           org.storagebroker.Service1

# Usage

Connecting:

	c, err := client.Dial(ctx)
	if err != nil {
		log.Fatal(err)
	}
	defer c.Close()

Listing disks:

	disks, err := c.Disks.ListDisks(ctx)
	if err != nil {
		log.Fatal(err)
	}
	for _, d := range disks {
		fmt.Printf("- %s (%d bytes)\n", d.Device, d.Size)
	}

Formatting a filesystem:

	err := c.Filesystems.Format(ctx, "/dev/sdb1", "ext4", "data", types.MountOptionsSettings{})

Unlocking a LUKS container:

	cleartext, err := c.Luks.Unlock(ctx, "/dev/sdb1", passphrase)

# Error handling

Every proxy method returns the *dbus.Error the bus call produced,
carrying the org.storagebroker.Service1.Error.* name set by the
server's error mapping; callers that need to branch on error kind
should match against that name rather than parsing message text.

# Thread safety

A *Client wraps a single *dbus.Conn, which is safe for concurrent use;
the proxies hold no mutable state of their own.
*/
package client
