// storage-ctl is the unprivileged command-line client: every
// subcommand dials the broker over the bus via pkg/client and prints a
// plain-text table or status line. `storage-ctl ui` instead launches
// the terminal UI from pkg/ui. One cobra command per operation,
// Printf-formatted tables, "✓ <verb>ed: <name>" confirmation lines on
// success, errors wrapped with fmt.Errorf.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/storagebroker/service/pkg/client"
	"github.com/storagebroker/service/pkg/types"
	"github.com/storagebroker/service/pkg/ui"
)

var Version = "dev"

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:     "storage-ctl",
	Short:   "Command-line client for the storage broker",
	Version: Version,
}

func init() {
	rootCmd.AddCommand(diskCmd, volumeCmd, fsCmd, luksCmd, uiCmd)
}

func dial(cmd *cobra.Command) (*client.Client, context.Context, context.CancelFunc, error) {
	ctx, cancel := context.WithCancel(context.Background())
	c, err := client.Dial(ctx)
	if err != nil {
		cancel()
		return nil, nil, nil, fmt.Errorf("connect to storage broker: %w", err)
	}
	return c, ctx, cancel, nil
}

// --- disk ---

var diskCmd = &cobra.Command{
	Use:   "disk",
	Short: "Manage disks",
}

var diskListCmd = &cobra.Command{
	Use:   "list",
	Short: "List disks",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, ctx, cancel, err := dial(cmd)
		if err != nil {
			return err
		}
		defer cancel()
		defer c.Close()

		disks, err := c.Disks.ListDisks(ctx)
		if err != nil {
			return fmt.Errorf("list disks: %w", err)
		}
		if len(disks) == 0 {
			fmt.Println("No disks found")
			return nil
		}

		fmt.Printf("%-16s %-12s %-24s %s\n", "DEVICE", "SIZE", "MODEL", "REMOVABLE")
		for _, d := range disks {
			fmt.Printf("%-16s %-12s %-24s %v\n",
				d.Device, formatBytes(d.Size), truncate(d.Model, 24), d.Removable)
		}
		return nil
	},
}

var diskEjectCmd = &cobra.Command{
	Use:   "eject DEVICE",
	Short: "Eject a removable disk",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, ctx, cancel, err := dial(cmd)
		if err != nil {
			return err
		}
		defer cancel()
		defer c.Close()

		if err := c.Disks.Eject(ctx, args[0]); err != nil {
			return fmt.Errorf("eject %s: %w", args[0], err)
		}
		fmt.Printf("✓ Ejected: %s\n", args[0])
		return nil
	},
}

var diskPowerOffCmd = &cobra.Command{
	Use:   "poweroff DEVICE",
	Short: "Power off a disk",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, ctx, cancel, err := dial(cmd)
		if err != nil {
			return err
		}
		defer cancel()
		defer c.Close()

		if err := c.Disks.PowerOff(ctx, args[0]); err != nil {
			return fmt.Errorf("power off %s: %w", args[0], err)
		}
		fmt.Printf("✓ Powered off: %s\n", args[0])
		return nil
	},
}

func init() {
	diskCmd.AddCommand(diskListCmd, diskEjectCmd, diskPowerOffCmd)
}

// --- volume ---

var volumeCmd = &cobra.Command{
	Use:   "volume",
	Short: "Manage volumes",
}

var volumeListCmd = &cobra.Command{
	Use:   "list DEVICE",
	Short: "List volumes on a disk",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, ctx, cancel, err := dial(cmd)
		if err != nil {
			return err
		}
		defer cancel()
		defer c.Close()

		vols, err := c.Disks.ListVolumes(ctx, args[0])
		if err != nil {
			return fmt.Errorf("list volumes on %s: %w", args[0], err)
		}
		if len(vols) == 0 {
			fmt.Println("No volumes found")
			return nil
		}

		fmt.Printf("%-16s %-12s %-10s %-20s %s\n", "DEVICE", "SIZE", "FSTYPE", "LABEL", "MOUNTED AT")
		for _, v := range vols {
			mounted := "-"
			if len(v.MountPoints) > 0 {
				mounted = v.MountPoints[0]
			}
			fmt.Printf("%-16s %-12s %-10s %-20s %s\n",
				v.DevicePath, formatBytes(v.Size), v.IDType, truncate(v.Label, 20), mounted)
		}
		return nil
	},
}

var volumeDeleteCmd = &cobra.Command{
	Use:   "delete OBJECT_PATH",
	Short: "Delete a partition",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, ctx, cancel, err := dial(cmd)
		if err != nil {
			return err
		}
		defer cancel()
		defer c.Close()

		if err := c.Disks.DeletePartition(ctx, args[0]); err != nil {
			return fmt.Errorf("delete partition %s: %w", args[0], err)
		}
		fmt.Printf("✓ Partition deleted: %s\n", args[0])
		return nil
	},
}

func init() {
	volumeCmd.AddCommand(volumeListCmd, volumeDeleteCmd)
}

// --- filesystem ---

var fsCmd = &cobra.Command{
	Use:   "fs",
	Short: "Manage filesystems",
}

var fsFormatCmd = &cobra.Command{
	Use:   "format DEVICE TYPE",
	Short: "Format a volume",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		label, _ := cmd.Flags().GetString("label")
		c, ctx, cancel, err := dial(cmd)
		if err != nil {
			return err
		}
		defer cancel()
		defer c.Close()

		if err := c.Filesystems.Format(ctx, args[0], args[1], label, types.MountOptionsSettings{}); err != nil {
			return fmt.Errorf("format %s as %s: %w", args[0], args[1], err)
		}
		fmt.Printf("✓ Formatted: %s (%s)\n", args[0], args[1])
		return nil
	},
}

var fsMountCmd = &cobra.Command{
	Use:   "mount DEVICE",
	Short: "Mount a volume",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, ctx, cancel, err := dial(cmd)
		if err != nil {
			return err
		}
		defer cancel()
		defer c.Close()

		mountPoint, err := c.Filesystems.Mount(ctx, args[0], "", nil)
		if err != nil {
			return fmt.Errorf("mount %s: %w", args[0], err)
		}
		fmt.Printf("✓ Mounted: %s at %s\n", args[0], mountPoint)
		return nil
	},
}

var fsUnmountCmd = &cobra.Command{
	Use:   "unmount DEVICE",
	Short: "Unmount a volume",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		force, _ := cmd.Flags().GetBool("force")
		c, ctx, cancel, err := dial(cmd)
		if err != nil {
			return err
		}
		defer cancel()
		defer c.Close()

		result, err := c.Filesystems.Unmount(ctx, args[0], force, force)
		if err != nil {
			return fmt.Errorf("unmount %s: %w", args[0], err)
		}
		if len(result.BlockingProcesses) > 0 {
			fmt.Printf("Unmount blocked by %d process(es); rerun with --force\n", len(result.BlockingProcesses))
			return nil
		}
		fmt.Printf("✓ Unmounted: %s\n", args[0])
		return nil
	},
}

func init() {
	fsFormatCmd.Flags().String("label", "", "Filesystem label")
	fsUnmountCmd.Flags().Bool("force", false, "Force unmount, killing blocking processes")
	fsCmd.AddCommand(fsFormatCmd, fsMountCmd, fsUnmountCmd)
}

// --- luks ---

var luksCmd = &cobra.Command{
	Use:   "luks",
	Short: "Manage LUKS containers",
}

var luksUnlockCmd = &cobra.Command{
	Use:   "unlock DEVICE",
	Short: "Unlock a LUKS container (passphrase given with --passphrase)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		passphrase, _ := cmd.Flags().GetString("passphrase")
		c, ctx, cancel, err := dial(cmd)
		if err != nil {
			return err
		}
		defer cancel()
		defer c.Close()

		clearDevice, err := c.Luks.Unlock(ctx, args[0], passphrase)
		if err != nil {
			return fmt.Errorf("unlock %s: %w", args[0], err)
		}
		fmt.Printf("✓ Unlocked: %s -> %s\n", args[0], clearDevice)
		return nil
	},
}

var luksLockCmd = &cobra.Command{
	Use:   "lock DEVICE",
	Short: "Lock a LUKS container",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, ctx, cancel, err := dial(cmd)
		if err != nil {
			return err
		}
		defer cancel()
		defer c.Close()

		if err := c.Luks.Lock(ctx, args[0]); err != nil {
			return fmt.Errorf("lock %s: %w", args[0], err)
		}
		fmt.Printf("✓ Locked: %s\n", args[0])
		return nil
	},
}

func init() {
	luksUnlockCmd.Flags().String("passphrase", "", "Passphrase (insecure; intended for scripting/testing)")
	luksCmd.AddCommand(luksUnlockCmd, luksLockCmd)
}

// --- ui ---

var uiCmd = &cobra.Command{
	Use:   "ui",
	Short: "Launch the terminal UI",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, ctx, cancel, err := dial(cmd)
		if err != nil {
			return err
		}
		defer cancel()
		defer c.Close()

		return ui.NewGui(c).Run(ctx)
	},
}

// --- shared formatting helpers ---

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	if max <= 3 {
		return s[:max]
	}
	return s[:max-3] + "..."
}

func formatBytes(n uint64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%dB", n)
	}
	div, exp := uint64(unit), 0
	for x := n / unit; x >= unit; x /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f%ciB", float64(n)/float64(div), "KMGTPE"[exp])
}
