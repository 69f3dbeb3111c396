package ui

import (
	"strings"

	"github.com/jesseduffield/gocui"
)

// Destructive operations (delete partition, unmount) route through a
// confirmation dialog before the client call fires: a
// show/close/keybinding shape wrapping this broker's mutating
// Disks/Filesystems calls.

func (gui *Gui) wrappedConfirmationFunction(action func() error) func(*gocui.Gui, *gocui.View) error {
	return func(g *gocui.Gui, v *gocui.View) error {
		if err := gui.closeConfirmationPrompt(); err != nil {
			return err
		}
		if action != nil {
			if err := action(); err != nil {
				return gui.createErrorPanel(err.Error())
			}
		}
		return nil
	}
}

func (gui *Gui) closeConfirmationPrompt() error {
	gui.g.DeleteViewKeybindings(viewConfirmation)
	gui.Views.Confirmation.Visible = false
	_, err := gui.g.SetCurrentView(viewTree)
	return err
}

// createConfirmationPanel shows prompt and wires 'y'/Enter to confirm,
// 'n'/Esc to cancel.
func (gui *Gui) createConfirmationPanel(title, prompt string, confirm func() error) error {
	gui.Views.Confirmation.Title = title
	gui.Views.Confirmation.Visible = true
	gui.Views.Confirmation.Clear()
	gui.Views.Confirmation.Wrap = true

	gui.g.Update(func(g *gocui.Gui) error {
		_, writeErr := gui.Views.Confirmation.Write([]byte(strings.TrimSpace(prompt)))
		if writeErr != nil {
			return writeErr
		}
		if _, err := g.SetCurrentView(viewConfirmation); err != nil {
			return err
		}
		return gui.setConfirmationKeybindings(confirm)
	})
	return nil
}

func (gui *Gui) setConfirmationKeybindings(confirm func() error) error {
	wrapped := gui.wrappedConfirmationFunction(confirm)
	cancel := gui.wrappedConfirmationFunction(nil)

	if err := gui.g.SetKeybinding(viewConfirmation, gocui.KeyEnter, gocui.ModNone, wrapped); err != nil {
		return err
	}
	if err := gui.g.SetKeybinding(viewConfirmation, 'y', gocui.ModNone, wrapped); err != nil {
		return err
	}
	if err := gui.g.SetKeybinding(viewConfirmation, gocui.KeyEsc, gocui.ModNone, cancel); err != nil {
		return err
	}
	if err := gui.g.SetKeybinding(viewConfirmation, 'n', gocui.ModNone, cancel); err != nil {
		return err
	}
	return nil
}

// createErrorPanel reuses the confirmation dialog, with no confirm
// action, to surface a failed operation's error to the user.
func (gui *Gui) createErrorPanel(message string) error {
	return gui.createConfirmationPanel("Error", message, nil)
}
