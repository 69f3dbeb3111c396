package ui

import "github.com/jesseduffield/gocui"

// View names, used as gocui view identifiers.
const (
	viewTree          = "tree"
	viewMain          = "main"
	viewStatus        = "status"
	viewConfirmation  = "confirmation"
	viewSegmentLegend = "legend"
)

// Views holds every panel the UI renders, populated once in
// createAllViews and referenced by name thereafter.
type Views struct {
	Tree         *gocui.View
	Main         *gocui.View
	Status       *gocui.View
	Legend       *gocui.View
	Confirmation *gocui.View
}

func (gui *Gui) createAllViews() error {
	createView := func(name string) (*gocui.View, error) {
		// Placeholder coordinates; layout() repositions every view on
		// each render and SetView is idempotent for an existing name.
		view, err := gui.g.SetView(name, 0, 0, 1, 1, 0)
		if err != nil && err != gocui.ErrUnknownView {
			return nil, err
		}
		return view, nil
	}

	var err error
	if gui.Views.Tree, err = createView(viewTree); err != nil {
		return err
	}
	gui.Views.Tree.Title = "Drives"
	gui.Views.Tree.Highlight = true
	gui.Views.Tree.SelBgColor = gocui.ColorBlue

	if gui.Views.Main, err = createView(viewMain); err != nil {
		return err
	}
	gui.Views.Main.Title = "Volume"
	gui.Views.Main.Wrap = true

	if gui.Views.Legend, err = createView(viewSegmentLegend); err != nil {
		return err
	}
	gui.Views.Legend.Frame = false

	if gui.Views.Status, err = createView(viewStatus); err != nil {
		return err
	}
	gui.Views.Status.Frame = false

	if gui.Views.Confirmation, err = createView(viewConfirmation); err != nil {
		return err
	}
	gui.Views.Confirmation.Title = "Confirm"
	gui.Views.Confirmation.Visible = false

	if _, err := gui.g.SetCurrentView(viewTree); err != nil {
		return err
	}
	return nil
}
