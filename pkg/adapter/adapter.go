// Package adapter defines the two boundary interfaces the handlers are
// built against: BlockDaemon (the OS block-device daemon the broker
// mediates with, UDisks2-shaped) and System (host facilities that have
// no daemon object — statvfs usage, blocking-process discovery, mkfs
// tool detection, mount-on-boot markers). Concrete implementations live
// in pkg/adapter/udisks and pkg/adapter/system; handlers only ever see
// these interfaces.
package adapter

import (
	"context"
	"io"

	"github.com/storagebroker/service/pkg/types"
)

// BlockDaemon is the subset of UDisks2-like functionality the broker's
// handlers drive. Every method that mutates state is only ever called
// after the caller has already passed the authorization gate.
type BlockDaemon interface {
	ListDisks(ctx context.Context) ([]types.Disk, error)
	GetDisk(ctx context.Context, device string) (types.Disk, error)
	ListVolumes(ctx context.Context, diskDevice string) ([]types.Volume, error)
	GetSmartInfo(ctx context.Context, device string) (types.SmartInfo, error)
	StartSmartTest(ctx context.Context, device, kind string) error

	Eject(ctx context.Context, device string) error
	PowerOff(ctx context.Context, device string) error
	StandbyNow(ctx context.Context, device string) error
	Wakeup(ctx context.Context, device string) error

	CreatePartitionTable(ctx context.Context, device, kind string) error
	CreatePartition(ctx context.Context, device string, offset, size uint64, typeID, label string) (types.Volume, error)
	DeletePartition(ctx context.Context, objectPath string) error
	ResizePartition(ctx context.Context, objectPath string, newSize uint64) error

	Format(ctx context.Context, objectPath, fsType, label string, opts types.MountOptionsSettings) error
	Mount(ctx context.Context, objectPath string, options []string) (string, error)
	Unmount(ctx context.Context, objectPath string, force bool) error
	Check(ctx context.Context, objectPath string, repair bool) (types.CheckResult, error)
	SetLabel(ctx context.Context, objectPath, label string) error
	SetMountOptions(ctx context.Context, objectPath string, opts types.MountOptionsSettings) error

	// TakeFilesystemOwnership chowns a mounted filesystem's tree to the
	// calling user, mirroring UDisks2's Filesystem.TakeOwnership.
	TakeFilesystemOwnership(ctx context.Context, objectPath string, recursive bool) error

	CreateLuks(ctx context.Context, objectPath, passphrase string, opts types.EncryptionOptionsSettings) (types.Volume, error)
	UnlockLuks(ctx context.Context, objectPath, passphrase string) (types.Volume, error)
	LockLuks(ctx context.Context, objectPath string) error
	ChangeLuksPassphrase(ctx context.Context, objectPath, oldPass, newPass string) error
	SetEncryptionOptions(ctx context.Context, objectPath string, opts types.EncryptionOptionsSettings) error

	CreateLogicalVolume(ctx context.Context, vgObjectPath, name string, size uint64) (types.Volume, error)
	DeleteLogicalVolume(ctx context.Context, objectPath string) error
	ActivateLogicalVolume(ctx context.Context, objectPath string) error
	DeactivateLogicalVolume(ctx context.Context, objectPath string) error

	StartArray(ctx context.Context, objectPath string) error
	StopArray(ctx context.Context, objectPath string) error
	RequestSyncAction(ctx context.Context, objectPath, action string) (types.CheckResult, error)

	CreateBtrfsSubvolume(ctx context.Context, objectPath, name string) error
	DeleteBtrfsSubvolume(ctx context.Context, objectPath, name string) error
	ListBtrfsSubvolumes(ctx context.Context, mountPoint string) ([]string, error)
	GetBtrfsSubvolumeUsage(ctx context.Context, mountPoint, name string) (types.UsageResult, error)
	GetDefaultBtrfsSubvolume(ctx context.Context, mountPoint string) (string, error)
	SetDefaultBtrfsSubvolume(ctx context.Context, mountPoint, name string) error
	SetBtrfsSubvolumeReadOnly(ctx context.Context, mountPoint, name string, readOnly bool) error

	// OpenForBackup/OpenForRestore return a privileged, already-opened
	// file handle onto the whole disk or partition identified by
	// objectPath, for the image engine's chunked copy loop, along with
	// the device's current size in bytes — OpenForRestore's size lets
	// the engine fail fast when an image is larger than its destination
	// instead of truncating mid-copy.
	OpenForBackup(ctx context.Context, objectPath string) (io.ReadCloser, uint64, error)
	OpenForRestore(ctx context.Context, objectPath string) (io.WriteCloser, uint64, error)

	// LoopSetup attaches imagePath as a loop device and returns its
	// object path, mirroring disks_dbus::loop_setup.
	LoopSetup(ctx context.Context, imagePath string) (string, error)

	// DeleteLoopDevice detaches a loop device previously created by
	// LoopSetup, identified by its whole-disk device name.
	DeleteLoopDevice(ctx context.Context, device string) error

	// SubscribeInterfaces streams InterfacesAdded/InterfacesRemoved
	// style events for the hot-plug bridge. The returned channel is
	// closed when ctx is cancelled.
	SubscribeInterfaces(ctx context.Context) (<-chan InterfaceEvent, error)
}

// InterfaceEventKind tags whether a hot-plug event is an addition or
// removal.
type InterfaceEventKind string

const (
	InterfaceAdded   InterfaceEventKind = "added"
	InterfaceRemoved InterfaceEventKind = "removed"
)

// InterfaceEvent is one daemon-side object lifecycle event.
type InterfaceEvent struct {
	Kind       InterfaceEventKind
	ObjectPath string
	IsDisk     bool
}

// System is host-level functionality with no daemon object behind it.
type System interface {
	GetUsage(ctx context.Context, mountPoint string) (types.UsageResult, error)
	FindBlockingProcesses(ctx context.Context, mountPoint string) ([]types.ProcessRef, error)
	SupportedFilesystemTypes(ctx context.Context) (map[string]bool, error)
	IsMounted(mountPoint string) (bool, error)

	// RClone config/mount helpers, scoped per caller uid.
	HomeDirForUID(uid uint32) (string, error)
	ConfigPathForUID(scope types.ConfigScope, uid uint32) (string, error)
	MountPointForUID(scope types.ConfigScope, uid uint32, remoteName string) (string, error)

	// MountOnBoot marker read/write (fstab/crypttab-equivalent rows),
	// the one piece of state this broker persists.
	ReadMountMarkers(ctx context.Context) ([]types.MountOptionsSettings, error)
	WriteMountMarker(ctx context.Context, device string, opts types.MountOptionsSettings) error
	RemoveMountMarker(ctx context.Context, device string) error
}
