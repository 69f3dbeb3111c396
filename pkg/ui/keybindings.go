package ui

import (
	"context"

	"github.com/jesseduffield/gocui"
)

// keybindings wires global navigation and the tree's device/volume
// selection and destructive-action shortcuts as a flat list of
// SetKeybinding calls.
func (gui *Gui) keybindings() error {
	g := gui.g

	if err := g.SetKeybinding("", 'q', gocui.ModNone, gui.quit); err != nil {
		return err
	}
	if err := g.SetKeybinding("", gocui.KeyCtrlC, gocui.ModNone, gui.quit); err != nil {
		return err
	}
	if err := g.SetKeybinding("", gocui.KeyTab, gocui.ModNone, gui.handleCycleTab); err != nil {
		return err
	}

	if err := g.SetKeybinding(viewTree, gocui.KeyArrowDown, gocui.ModNone, gui.handleTreeDown); err != nil {
		return err
	}
	if err := g.SetKeybinding(viewTree, gocui.KeyArrowUp, gocui.ModNone, gui.handleTreeUp); err != nil {
		return err
	}
	if err := g.SetKeybinding(viewTree, gocui.KeyEnter, gocui.ModNone, gui.handleTreeSelect); err != nil {
		return err
	}
	if err := g.SetKeybinding(viewTree, 'd', gocui.ModNone, gui.handleDeletePartition); err != nil {
		return err
	}
	if err := g.SetKeybinding(viewTree, 'u', gocui.ModNone, gui.handleUnmount); err != nil {
		return err
	}

	return nil
}

func (gui *Gui) handleCycleTab(g *gocui.Gui, v *gocui.View) error {
	gui.State.CycleTab()
	g.Update(func(g *gocui.Gui) error {
		gui.renderMain()
		return nil
	})
	return nil
}

func (gui *Gui) handleTreeDown(g *gocui.Gui, v *gocui.View) error {
	return v.SetCursor(cursorMoved(v, 1))
}

func (gui *Gui) handleTreeUp(g *gocui.Gui, v *gocui.View) error {
	return v.SetCursor(cursorMoved(v, -1))
}

func cursorMoved(v *gocui.View, delta int) (int, int) {
	cx, cy := v.Cursor()
	next := cy + delta
	if next < 0 {
		next = 0
	}
	return cx, next
}

// handleTreeSelect resolves the currently highlighted tree line to a
// disk device (selecting it as the active disk) or, on an indented
// line, a volume within it.
func (gui *Gui) handleTreeSelect(g *gocui.Gui, v *gocui.View) error {
	_, cy := v.Cursor()

	disks := gui.State.Disks()
	row := 0
	for _, d := range disks {
		if row == cy {
			gui.State.Select(d.Device, "")
			break
		}
		row++
		for _, vol := range gui.State.Volumes(d.Device) {
			if row == cy {
				gui.State.Select(d.Device, vol.ObjectPath)
				break
			}
			row++
		}
	}

	g.Update(func(g *gocui.Gui) error {
		gui.renderMain()
		return nil
	})
	return nil
}

// handleDeletePartition confirms before calling DeletePartition on the
// selected volume — a destructive, irreversible action.
func (gui *Gui) handleDeletePartition(g *gocui.Gui, v *gocui.View) error {
	_, volumePath := gui.State.Selected()
	if volumePath == "" {
		return nil
	}
	return gui.createConfirmationPanel(
		"Delete partition",
		"This will permanently delete the selected partition. Continue?",
		func() error {
			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()
			return gui.client.Disks.DeletePartition(ctx, volumePath)
		},
	)
}

// handleUnmount confirms before calling Unmount on the selected
// volume.
func (gui *Gui) handleUnmount(g *gocui.Gui, v *gocui.View) error {
	diskDevice, volumePath := gui.State.Selected()
	if volumePath == "" {
		return nil
	}
	var devicePath string
	for _, vol := range gui.State.Volumes(diskDevice) {
		if vol.ObjectPath == volumePath {
			devicePath = vol.DevicePath
			break
		}
	}
	if devicePath == "" {
		return nil
	}
	return gui.createConfirmationPanel(
		"Unmount volume",
		"Unmount the selected volume?",
		func() error {
			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()
			_, err := gui.client.Filesystems.Unmount(ctx, devicePath, false, false)
			return err
		},
	)
}
