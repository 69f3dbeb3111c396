package ui

import (
	"context"

	"github.com/godbus/dbus/v5"
	"github.com/jesseduffield/gocui"

	"github.com/storagebroker/service/pkg/types"
)

// subscribeSignals adds a match on every signal pkg/busserver re-emits
// and keeps State (and the rendered views) in sync for as long as ctx
// is live. One goroutine, started from Gui.Run.
func (gui *Gui) subscribeSignals(ctx context.Context) {
	conn := gui.client.Conn()
	if err := conn.AddMatchSignal(dbus.WithMatchInterface("org.storagebroker.Service1.Disks")); err != nil {
		gui.log.Error("subscribe Disks signals: %v", err)
	}
	if err := conn.AddMatchSignal(dbus.WithMatchInterface("org.storagebroker.Service1.Filesystems")); err != nil {
		gui.log.Error("subscribe Filesystems signals: %v", err)
	}
	if err := conn.AddMatchSignal(dbus.WithMatchInterface("org.storagebroker.Service1.Luks")); err != nil {
		gui.log.Error("subscribe Luks signals: %v", err)
	}
	if err := conn.AddMatchSignal(dbus.WithMatchInterface("org.storagebroker.Service1.Image")); err != nil {
		gui.log.Error("subscribe Image signals: %v", err)
	}
	if err := conn.AddMatchSignal(dbus.WithMatchInterface("org.storagebroker.Service1.Rclone")); err != nil {
		gui.log.Error("subscribe Rclone signals: %v", err)
	}

	ch := make(chan *dbus.Signal, 64)
	conn.Signal(ch)
	defer conn.RemoveSignal(ch)

	for {
		select {
		case <-ctx.Done():
			return
		case sig, ok := <-ch:
			if !ok {
				return
			}
			gui.handleSignal(ctx, sig)
		}
	}
}

func (gui *Gui) handleSignal(ctx context.Context, sig *dbus.Signal) {
	member := signalMember(sig.Name)

	switch member {
	case "DiskAdded", "DiskRemoved":
		if err := gui.refreshTree(ctx); err != nil {
			gui.log.Error("refresh tree after %s: %v", member, err)
		}
	case "Formatted", "Mounted", "Unmounted":
		if err := gui.refreshTree(ctx); err != nil {
			gui.log.Error("refresh tree after %s: %v", member, err)
		}
	case "OperationStarted", "OperationProgress", "OperationCompleted":
		gui.handleOperationSignal(member, sig.Body)
		gui.g.Update(func(*gocui.Gui) error {
			gui.renderStatus()
			return nil
		})
	default:
		// ContainerCreated/Unlocked/Locked and MountChanged only
		// affect panels this UI doesn't render a dedicated view for
		// yet; a tree refresh still picks up the resulting volume
		// changes.
		if err := gui.refreshTree(ctx); err != nil {
			gui.log.Error("refresh tree after %s: %v", member, err)
		}
	}
}

// signalMember strips the interface prefix pkg/busserver.Server.Run
// attaches, leaving the bare signalbus.Name.
func signalMember(full string) string {
	for i := len(full) - 1; i >= 0; i-- {
		if full[i] == '.' {
			return full[i+1:]
		}
	}
	return full
}

func (gui *Gui) handleOperationSignal(member string, body []interface{}) {
	switch member {
	case "OperationStarted":
		if len(body) < 4 {
			return
		}
		id, _ := body[0].(string)
		kind, _ := body[1].(string)
		source, _ := body[2].(string)
		destination, _ := body[3].(string)
		gui.State.upsertOperation(types.ImageOperationStatus{
			OperationID: id,
			Kind:        types.ImageOperationKind(kind),
			Source:      source,
			Destination: destination,
		})
	case "OperationProgress":
		if len(body) < 4 {
			return
		}
		id, _ := body[0].(string)
		completed, _ := body[1].(uint64)
		total, _ := body[2].(uint64)
		speed, _ := body[3].(uint64)
		existing := gui.operationOrZero(id)
		existing.OperationID = id
		existing.Completed = completed
		existing.Total = total
		existing.SpeedBps = speed
		gui.State.upsertOperation(existing)
	case "OperationCompleted":
		if len(body) < 3 {
			return
		}
		id, _ := body[0].(string)
		existing := gui.operationOrZero(id)
		existing.OperationID = id
		existing.IsFinished = true
		gui.State.upsertOperation(existing)
	}
}

func (gui *Gui) operationOrZero(id string) types.ImageOperationStatus {
	for _, op := range gui.State.Operations() {
		if op.OperationID == id {
			return op
		}
	}
	return types.ImageOperationStatus{}
}
