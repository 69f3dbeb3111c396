package ui

import "github.com/jesseduffield/gocui"

// layout positions every view on each render: a drive tree down the
// left third, the tab surface (main + segment legend) filling the
// rest, and a one-line status bar pinned to the bottom.
func (gui *Gui) layout(g *gocui.Gui) error {
	width, height := g.Size()
	if width < 10 || height < 6 {
		return nil
	}

	treeWidth := width / 3
	statusHeight := 1
	mainBottom := height - statusHeight - 1

	if _, err := g.SetView(viewTree, 0, 0, treeWidth, mainBottom, 0); err != nil && err != gocui.ErrUnknownView {
		return err
	}

	legendHeight := 2
	if _, err := g.SetView(viewMain, treeWidth+1, 0, width-1, mainBottom-legendHeight, 0); err != nil && err != gocui.ErrUnknownView {
		return err
	}
	if _, err := g.SetView(viewSegmentLegend, treeWidth+1, mainBottom-legendHeight+1, width-1, mainBottom, 0); err != nil && err != gocui.ErrUnknownView {
		return err
	}

	if _, err := g.SetView(viewStatus, 0, height-statusHeight-1, width-1, height-1, 0); err != nil && err != gocui.ErrUnknownView {
		return err
	}

	if gui.Views.Confirmation.Visible {
		x0, y0, x1, y1 := gui.confirmationDimensions()
		if _, err := g.SetView(viewConfirmation, x0, y0, x1, y1, 0); err != nil && err != gocui.ErrUnknownView {
			return err
		}
	}

	return nil
}

func (gui *Gui) confirmationDimensions() (int, int, int, int) {
	width, height := gui.g.Size()
	panelWidth := width / 2
	panelHeight := height / 4
	return width/2 - panelWidth/2,
		height/2 - panelHeight/2,
		width/2 + panelWidth/2,
		height/2 + panelHeight/2
}
