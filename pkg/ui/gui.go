// Package ui is the companion UI process's core: a gocui terminal
// interface rendering the drive tree and segment-accurate volume bar,
// a Volume/Usage/BTRFS tab surface, destructive-action confirmation
// dialogs, a task manager for long-running image operations, and a
// signal subscription that keeps the tree live as the service emits
// D-Bus signals.
//
// Structured around a Gui type wrapping *gocui.Gui, a Views struct of
// named panels, and a NewGui/Run split, scoped to this broker's
// disk/volume domain. Uses stdlib sync and time rather than extra
// concurrency-helper dependencies — noted in DESIGN.md.
package ui

import (
	"context"
	"fmt"

	"github.com/jesseduffield/gocui"

	"github.com/storagebroker/service/pkg/client"
	"github.com/storagebroker/service/pkg/log"
)

// Gui wraps the gocui Gui object that handles rendering and input, the
// storage broker client, and the UI's own view of the drive tree.
type Gui struct {
	g      *gocui.Gui
	client *client.Client
	log    zlog

	Views Views
	State *State

	taskManager *TaskManager
}

// zlog is the narrow logging surface ui needs, satisfied by
// pkg/log's component logger.
type zlog interface {
	Info(format string, args ...any)
	Error(format string, args ...any)
}

// componentLogger adapts pkg/log.Logger to zlog without pulling gocui
// into pkg/log's own dependency surface.
type componentLogger struct {
	name string
}

func (c componentLogger) Info(format string, args ...any) {
	log.WithComponent(c.name).Info().Msg(fmt.Sprintf(format, args...))
}

func (c componentLogger) Error(format string, args ...any) {
	log.WithComponent(c.name).Error().Msg(fmt.Sprintf(format, args...))
}

// NewGui builds a Gui over an already-dialed client. Call Run to start
// rendering.
func NewGui(c *client.Client) *Gui {
	return &Gui{
		client:      c,
		log:         componentLogger{name: "ui"},
		State:       newState(),
		taskManager: NewTaskManager(),
	}
}

// Run creates the terminal UI, performs the initial tree fetch, starts
// the signal subscription, and blocks in gocui's main loop until the
// user quits or an unrecoverable error occurs.
func (gui *Gui) Run(ctx context.Context) error {
	defer gui.taskManager.Close()

	g, err := gocui.NewGui(gocui.OutputTrue, false, gocui.NORMAL, false, map[rune]string{})
	if err != nil {
		return err
	}
	defer g.Close()
	gui.g = g
	g.Mouse = true

	if err := gui.createAllViews(); err != nil {
		return err
	}
	g.SetManager(gocui.ManagerFunc(gui.layout))

	if err := gui.keybindings(); err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if err := gui.refreshTree(ctx); err != nil {
		gui.log.Error("initial tree refresh: %v", err)
	}
	go gui.subscribeSignals(ctx)

	err = g.MainLoop()
	if err == gocui.ErrQuit {
		return nil
	}
	return err
}

// quit stops the main loop; bound to 'q' and Ctrl-C.
func (gui *Gui) quit(g *gocui.Gui, v *gocui.View) error {
	return gocui.ErrQuit
}
