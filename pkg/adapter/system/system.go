// Package system implements adapter.System: host facilities with no
// daemon object behind them — statvfs usage, the process table scan
// that finds what's blocking an unmount, mkfs tool detection, and
// per-uid RClone config/mount path resolution.
package system

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/exec"
	"os/user"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"syscall"

	"github.com/moby/sys/mountinfo"

	"github.com/storagebroker/service/pkg/errs"
	"github.com/storagebroker/service/pkg/types"
)

// mkfsProbe names the CLI tool that backs each supported filesystem
// type; detection just checks each is on PATH.
var mkfsProbe = map[string]string{
	"ext4":  "mkfs.ext4",
	"ext3":  "mkfs.ext3",
	"xfs":   "mkfs.xfs",
	"btrfs": "mkfs.btrfs",
	"vfat":  "mkfs.vfat",
	"ntfs":  "mkfs.ntfs",
	"f2fs":  "mkfs.f2fs",
}

// System is the default adapter.System implementation.
type System struct {
	MountMarkersPath string // e.g. /etc/storagebroker/mount-on-boot.conf

	mu      sync.Mutex
	markers map[string]types.MountOptionsSettings
}

// New returns a System adapter persisting mount-on-boot markers at
// markersPath.
func New(markersPath string) *System {
	return &System{MountMarkersPath: markersPath, markers: map[string]types.MountOptionsSettings{}}
}

// GetUsage runs statvfs on mountPoint.
func (s *System) GetUsage(_ context.Context, mountPoint string) (types.UsageResult, error) {
	var stat syscall.Statfs_t
	if err := syscall.Statfs(mountPoint, &stat); err != nil {
		return types.UsageResult{}, errs.Wrap(errs.IOError, "filesystems", fmt.Errorf("statfs %s: %w", mountPoint, err))
	}
	size := stat.Blocks * uint64(stat.Bsize)
	free := stat.Bfree * uint64(stat.Bsize)
	used := size - free
	var percent float64
	if size > 0 {
		percent = float64(used) / float64(size) * 100
	}
	return types.UsageResult{Size: size, Used: used, Available: free, Percent: percent}, nil
}

// FindBlockingProcesses scans /proc for processes with an open file or
// cwd under mountPoint, the information Filesystems.Unmount's
// UnmountResult.BlockingProcesses reports on a busy-device failure.
func (s *System) FindBlockingProcesses(_ context.Context, mountPoint string) ([]types.ProcessRef, error) {
	entries, err := os.ReadDir("/proc")
	if err != nil {
		return nil, errs.Wrap(errs.IOError, "filesystems", fmt.Errorf("read /proc: %w", err))
	}

	var refs []types.ProcessRef
	for _, e := range entries {
		pid, err := strconv.Atoi(e.Name())
		if err != nil {
			continue
		}
		if processHoldsPath(pid, mountPoint) {
			refs = append(refs, types.ProcessRef{PID: pid, Command: processComm(pid)})
		}
	}
	return refs, nil
}

func processHoldsPath(pid int, mountPoint string) bool {
	if held, err := linkUnder(fmt.Sprintf("/proc/%d/cwd", pid), mountPoint); err == nil && held {
		return true
	}
	fdDir := fmt.Sprintf("/proc/%d/fd", pid)
	fds, err := os.ReadDir(fdDir)
	if err != nil {
		return false
	}
	for _, fd := range fds {
		if held, err := linkUnder(filepath.Join(fdDir, fd.Name()), mountPoint); err == nil && held {
			return true
		}
	}
	return false
}

func linkUnder(linkPath, mountPoint string) (bool, error) {
	target, err := os.Readlink(linkPath)
	if err != nil {
		return false, err
	}
	return target == mountPoint || strings.HasPrefix(target, mountPoint+"/"), nil
}

func processComm(pid int) string {
	data, err := os.ReadFile(fmt.Sprintf("/proc/%d/comm", pid))
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(data))
}

// SupportedFilesystemTypes probes PATH for each known mkfs tool.
func (s *System) SupportedFilesystemTypes(context.Context) (map[string]bool, error) {
	out := make(map[string]bool, len(mkfsProbe))
	for fsType, bin := range mkfsProbe {
		_, err := exec.LookPath(bin)
		out[fsType] = err == nil
	}
	return out, nil
}

// HomeDirForUID mirrors get_home_for_uid: a passwd lookup by numeric
// uid, not $HOME (the caller's uid may differ from the broker's own).
func (s *System) HomeDirForUID(uid uint32) (string, error) {
	u, err := user.LookupId(strconv.FormatUint(uint64(uid), 10))
	if err != nil {
		return "", errs.Wrap(errs.Internal, "rclone", fmt.Errorf("lookup uid %d: %w", uid, err))
	}
	return u.HomeDir, nil
}

// ConfigPathForUID mirrors get_config_path_for_uid: User scope resolves
// against the caller's own home directory, System scope is fixed.
func (s *System) ConfigPathForUID(scope types.ConfigScope, uid uint32) (string, error) {
	if scope == types.ScopeSystem {
		return "/etc/rclone/rclone.conf", nil
	}
	home, err := s.HomeDirForUID(uid)
	if err != nil {
		return "/etc/rclone/rclone.conf", nil //nolint:nilerr // Rust falls back to the System path on lookup failure
	}
	return filepath.Join(home, ".config/rclone/rclone.conf"), nil
}

// MountPointForUID mirrors get_mount_point_for_uid.
func (s *System) MountPointForUID(scope types.ConfigScope, uid uint32, remoteName string) (string, error) {
	if scope == types.ScopeSystem {
		return filepath.Join("/mnt", remoteName), nil
	}
	home, err := s.HomeDirForUID(uid)
	if err != nil {
		return filepath.Join("/mnt", remoteName), nil //nolint:nilerr
	}
	return filepath.Join(home, "mnt", remoteName), nil
}

// IsMounted reports whether target appears in /proc/self/mountinfo,
// using moby/sys/mountinfo rather than scraping the file by hand.
func (s *System) IsMounted(target string) (bool, error) {
	mounted, err := mountinfo.Mounted(target)
	if err != nil {
		return false, errs.Wrap(errs.IOError, "rclone", fmt.Errorf("check mount status of %s: %w", target, err))
	}
	return mounted, nil
}

// ReadMountMarkers returns every mount-on-boot marker recorded at
// MountMarkersPath, the one piece of state this broker persists
// (fstab/crypttab row equivalents, not a UDisks2 mirror).
func (s *System) ReadMountMarkers(context.Context) ([]types.MountOptionsSettings, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.loadMarkersLocked(); err != nil {
		return nil, err
	}
	out := make([]types.MountOptionsSettings, 0, len(s.markers))
	for _, m := range s.markers {
		out = append(out, m)
	}
	return out, nil
}

func (s *System) loadMarkersLocked() error {
	s.markers = map[string]types.MountOptionsSettings{}
	f, err := os.Open(s.MountMarkersPath)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return errs.Wrap(errs.IOError, "disks", fmt.Errorf("read mount markers: %w", err))
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.SplitN(line, "\t", 2)
		if len(fields) != 2 {
			continue
		}
		var opts types.MountOptionsSettings
		opts.RawOptions = strings.Split(fields[1], ",")
		s.markers[fields[0]] = opts
	}
	return nil
}

// WriteMountMarker adds or replaces the marker for device.
func (s *System) WriteMountMarker(_ context.Context, device string, opts types.MountOptionsSettings) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.loadMarkersLocked(); err != nil {
		return err
	}
	s.markers[device] = opts
	return s.saveMarkersLocked()
}

// RemoveMountMarker deletes the marker for device, if present.
func (s *System) RemoveMountMarker(_ context.Context, device string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.loadMarkersLocked(); err != nil {
		return err
	}
	delete(s.markers, device)
	return s.saveMarkersLocked()
}

func (s *System) saveMarkersLocked() error {
	if s.MountMarkersPath == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(s.MountMarkersPath), 0o755); err != nil {
		return errs.Wrap(errs.IOError, "disks", fmt.Errorf("create mount marker dir: %w", err))
	}
	f, err := os.Create(s.MountMarkersPath)
	if err != nil {
		return errs.Wrap(errs.IOError, "disks", fmt.Errorf("write mount markers: %w", err))
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	for device, opts := range s.markers {
		fmt.Fprintf(w, "%s\t%s\n", device, strings.Join(opts.RawOptions, ","))
	}
	return w.Flush()
}
