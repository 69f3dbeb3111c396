package rclone

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
	"syscall"
	"time"

	"github.com/storagebroker/service/pkg/errs"
	"github.com/storagebroker/service/pkg/types"
)

// CLI shells out to the rclone binary for the operations that have no
// plain-file equivalent: mounting, unmounting, and connectivity
// testing. Uses os/exec.CommandContext with combined stdout/stderr
// captured and the caller's context for cancellation; no timeout of
// its own is set. Every call waits for its command to exit; the mount
// stays up after that because rclone is started with --daemon.
type CLI struct {
	// BinaryPath is the rclone executable; defaults to "rclone" (PATH
	// lookup) when empty.
	BinaryPath string
}

func (c *CLI) binary() string {
	if c.BinaryPath != "" {
		return c.BinaryPath
	}
	return "rclone"
}

// Mount starts `rclone mount` as a detached background process bound
// to mountPoint and returns once the mount completes or fails;
// following the Rust RCloneCli::mount, this spawns a daemonized mount
// rather than waiting for the process to exit.
func (c *CLI) Mount(ctx context.Context, remoteName, mountPoint, configPath string) error {
	cmd := exec.CommandContext(ctx, c.binary(),
		"mount",
		fmt.Sprintf("%s:", remoteName),
		mountPoint,
		"--config", configPath,
		"--daemon",
	)
	cmd.SysProcAttr = &syscall.SysProcAttr{Setsid: true}
	if out, err := cmd.CombinedOutput(); err != nil {
		return errs.Wrap(errs.IOError, "rclone", fmt.Errorf("rclone mount %s: %w: %s", remoteName, err, strings.TrimSpace(string(out))))
	}
	return nil
}

// Unmount runs `fusermount -u` against mountPoint, the standard way to
// tear down a FUSE mount created by `rclone mount --daemon`.
func (c *CLI) Unmount(ctx context.Context, mountPoint string) error {
	cmd := exec.CommandContext(ctx, "fusermount", "-u", mountPoint)
	if out, err := cmd.CombinedOutput(); err != nil {
		return errs.Wrap(errs.IOError, "rclone", fmt.Errorf("unmount %s: %w: %s", mountPoint, err, strings.TrimSpace(string(out))))
	}
	return nil
}

// TestRemote runs `rclone lsd` against name and reports success,
// message, and round-trip latency, mirroring RCloneCli::test_remote.
func (c *CLI) TestRemote(ctx context.Context, remoteName, configPath string) (types.TestResult, error) {
	start := time.Now()
	cmd := exec.CommandContext(ctx, c.binary(),
		"lsd",
		fmt.Sprintf("%s:", remoteName),
		"--config", configPath,
		"--max-depth", "1",
	)
	out, err := cmd.CombinedOutput()
	latency := time.Since(start).Milliseconds()
	if err != nil {
		return types.TestResult{
			Success:   false,
			Message:   strings.TrimSpace(string(out)),
			LatencyMs: latency,
		}, nil
	}
	return types.TestResult{Success: true, Message: "ok", LatencyMs: latency}, nil
}
