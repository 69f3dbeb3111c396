package ui

import (
	"context"
	"fmt"
	"strings"

	"github.com/jesseduffield/gocui"

	"github.com/storagebroker/service/pkg/types"
)

// refreshTree re-fetches every disk and its flattened volumes from the
// client and re-renders the tree panel. Called on startup and whenever
// a DiskAdded/DiskRemoved signal arrives.
func (gui *Gui) refreshTree(ctx context.Context) error {
	disks, err := gui.client.Disks.ListDisks(ctx)
	if err != nil {
		return fmt.Errorf("list disks: %w", err)
	}
	gui.State.setDisks(disks)

	for _, d := range disks {
		vols, err := gui.client.Disks.ListVolumes(ctx, d.Device)
		if err != nil {
			gui.log.Error("list volumes for %s: %v", d.Device, err)
			continue
		}
		gui.State.setVolumes(d.Device, vols)
	}

	gui.g.Update(func(*gocui.Gui) error {
		gui.renderTree()
		gui.renderMain()
		gui.renderStatus()
		return nil
	})
	return nil
}

// renderTree writes the drive/volume tree into the tree view. Not
// safe to call outside a gocui.Gui.Update callback.
func (gui *Gui) renderTree() {
	gui.Views.Tree.Clear()
	disks := gui.State.Disks()
	for _, d := range disks {
		fmt.Fprintf(gui.Views.Tree, "%s  %s\n", d.Device, formatBytes(d.Size))
		for _, v := range gui.State.Volumes(d.Device) {
			fmt.Fprintf(gui.Views.Tree, "  %s\n", volumeLabel(v))
		}
	}
}

func volumeLabel(v types.Volume) string {
	label := v.Label
	if label == "" {
		label = v.IDType
	}
	if label == "" {
		label = string(v.Variant)
	}
	return fmt.Sprintf("%s %s (%s)", v.DevicePath, formatBytes(v.Size), label)
}

// formatBytes renders a byte count in the nearest IEC unit. Hand
// rolled rather than pulled from a formatting library: none of the
// retrieval pack's repos depend on one, and the conversion is a single
// loop with no edge-case subtlety worth a dependency for.
func formatBytes(n uint64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := uint64(unit), 0
	for v := n / unit; v >= unit; v /= unit {
		div *= unit
		exp++
	}
	units := "KMGTPE"
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), units[exp])
}

// renderMain writes the content for the currently active tab, for
// whichever disk/volume is selected. Not safe to call outside a
// gocui.Gui.Update callback.
func (gui *Gui) renderMain() {
	gui.Views.Main.Clear()
	gui.Views.Legend.Clear()

	device, volumePath := gui.State.Selected()
	if device == "" {
		disks := gui.State.Disks()
		if len(disks) == 0 {
			fmt.Fprintln(gui.Views.Main, "No disks detected.")
			return
		}
		device = disks[0].Device
	}

	var disk types.Disk
	for _, d := range gui.State.Disks() {
		if d.Device == device {
			disk = d
			break
		}
	}
	vols := gui.State.Volumes(device)

	gui.Views.Main.Title = fmt.Sprintf("%s — %s", device, gui.State.ActiveTab())
	fmt.Fprintln(gui.Views.Legend, segmentLegend())
	mainWidth, _ := gui.Views.Main.Size()
	bar := renderSegmentBar(volumesToSegments(disk.Size, vols), mainWidth)
	fmt.Fprintln(gui.Views.Main, bar)
	fmt.Fprintln(gui.Views.Main, strings.Repeat("-", len(bar)))

	switch gui.State.ActiveTab() {
	case TabVolume:
		gui.renderVolumeTab(vols, volumePath)
	case TabUsage:
		gui.renderUsageTab(vols, volumePath)
	case TabBtrfs:
		gui.renderBtrfsTab(vols, volumePath)
	}
}

func (gui *Gui) renderVolumeTab(vols []types.Volume, selected string) {
	for _, v := range vols {
		marker := "  "
		if v.ObjectPath == selected {
			marker = "> "
		}
		fmt.Fprintf(gui.Views.Main, "%s%s\n", marker, volumeLabel(v))
		if len(v.MountPoints) > 0 {
			fmt.Fprintf(gui.Views.Main, "    mounted at %s\n", strings.Join(v.MountPoints, ", "))
		}
	}
}

func (gui *Gui) renderUsageTab(vols []types.Volume, selected string) {
	for _, v := range vols {
		if v.ObjectPath != selected {
			continue
		}
		if v.UsedBytes == nil {
			fmt.Fprintln(gui.Views.Main, "not mounted — usage unavailable")
			return
		}
		percent := float64(*v.UsedBytes) / float64(v.Size) * 100
		fmt.Fprintf(gui.Views.Main, "used %s of %s (%.1f%%)\n",
			formatBytes(*v.UsedBytes), formatBytes(v.Size), percent)
		return
	}
	fmt.Fprintln(gui.Views.Main, "select a volume to see usage")
}

func (gui *Gui) renderBtrfsTab(vols []types.Volume, selected string) {
	for _, v := range vols {
		if v.ObjectPath != selected {
			continue
		}
		if v.IDType != "btrfs" {
			fmt.Fprintln(gui.Views.Main, "selected volume is not a BTRFS filesystem")
			return
		}
		fmt.Fprintln(gui.Views.Main, "BTRFS filesystem (subvolumes are not listed in this view)")
		return
	}
	fmt.Fprintln(gui.Views.Main, "select a BTRFS volume")
}

func (gui *Gui) renderStatus() {
	gui.Views.Status.Clear()
	ops := gui.State.Operations()
	if len(ops) == 0 {
		fmt.Fprint(gui.Views.Status, " q: quit   tab: switch tab   enter: select")
		return
	}
	var parts []string
	for _, op := range ops {
		if op.IsFinished {
			continue
		}
		pct := 0.0
		if op.Total > 0 {
			pct = float64(op.Completed) / float64(op.Total) * 100
		}
		parts = append(parts, fmt.Sprintf("%s %.0f%%", op.OperationID, pct))
	}
	fmt.Fprint(gui.Views.Status, " "+strings.Join(parts, " | "))
}
