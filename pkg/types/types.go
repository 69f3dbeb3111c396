// Package types holds the wire-level structs shared by the service's
// handlers and the UI client: disks, volumes, partitions, SMART data,
// mount/encryption option records, RClone remote configs, and
// long-running image operations. Exported structs round-trip through
// JSON in the camelCase shape the bus payload contract documents.
package types

import "time"

// Disk identifies a physical or virtual whole device. Disks are value
// snapshots: the service never mutates one in place, it only hands out
// fresh copies on each query.
type Disk struct {
	Device             string   `json:"device"`
	ID                 string   `json:"id"`
	ObjectPath         string   `json:"objectPath"`
	Model              string   `json:"model,omitempty"`
	Vendor             string   `json:"vendor,omitempty"`
	Serial             string   `json:"serial,omitempty"`
	Revision           string   `json:"revision,omitempty"`
	Size               uint64   `json:"size"`
	Removable          bool     `json:"removable"`
	Ejectable          bool     `json:"ejectable"`
	CanPowerOff        bool     `json:"canPowerOff"`
	IsOptical          bool     `json:"isOptical"`
	HasMedia           bool     `json:"hasMedia"`
	IsLoop             bool     `json:"isLoop"`
	BackingFile        string   `json:"backingFile,omitempty"`
	PartitionTableKind string   `json:"partitionTableKind,omitempty"` // "gpt" | "dos" | "empty" | ""
	ConnectionBus      string   `json:"connectionBus,omitempty"`
	MediaCompatibility []string `json:"mediaCompatibility,omitempty"`
}

// VolumeVariant tags the kind of logical entity a Volume represents.
type VolumeVariant string

const (
	VariantPartition         VolumeVariant = "Partition"
	VariantFilesystem        VolumeVariant = "Filesystem"
	VariantCryptoContainer   VolumeVariant = "CryptoContainer"
	VariantLvmPhysicalVolume VolumeVariant = "LvmPhysicalVolume"
	VariantLvmLogicalVolume  VolumeVariant = "LvmLogicalVolume"
	VariantBlock             VolumeVariant = "Block"
)

// Volume is a node in the logical storage tree rooted at a Disk.
// ParentPath is populated for flat listings (ListVolumes); Children is
// cleared in that mode.
type Volume struct {
	ObjectPath  string        `json:"objectPath"`
	DevicePath  string        `json:"devicePath"`
	Variant     VolumeVariant `json:"variant"`
	Size        uint64        `json:"size"`
	Offset      uint64        `json:"offset"`
	Label       string        `json:"label,omitempty"`
	UUID        string        `json:"uuid,omitempty"`
	IDType      string        `json:"idType,omitempty"` // e.g. "ext4", "LVM2_member", "crypto_LUKS"
	MountPoints []string      `json:"mountPoints,omitempty"`
	UsedBytes   *uint64       `json:"usedBytes,omitempty"`
	ParentPath  string        `json:"parentPath,omitempty"`
	Children    []*Volume     `json:"children,omitempty"`
}

// Partition flag bits, OR-combined into Partition.Flags.
const (
	PartitionFlagLegacyBIOSBootable uint32 = 1 << iota
	PartitionFlagSystem
	PartitionFlagHidden
)

// Partition describes an extent within a disk's partition table.
type Partition struct {
	Number   int    `json:"number"` // 1-based
	Offset   uint64 `json:"offset"`
	Size     uint64 `json:"size"`
	Flags    uint32 `json:"flags"`
	TypeID   string `json:"typeId"` // GUID (GPT) or hex byte (MBR)
	TypeName string `json:"typeName"`
	FsTag    string `json:"fsTag,omitempty"`
}

// SegmentKind tags a Segment's role in the drive layout.
type SegmentKind string

const (
	SegmentFreeSpace SegmentKind = "FreeSpace"
	SegmentReserved  SegmentKind = "Reserved"
	SegmentPartition SegmentKind = "Partition"
)

// Segment is one entry of a segmentation run's output.
type Segment struct {
	Kind        SegmentKind `json:"kind"`
	Offset      uint64      `json:"offset"`
	Size        uint64      `json:"size"`
	PartitionID *int        `json:"partitionId,omitempty"`
}

// AnomalyKind names the ways a segmentation input can be malformed.
type AnomalyKind string

const (
	AnomalyOverlapsPrevious AnomalyKind = "PartitionOverlapsPrevious"
	AnomalyStartsPastDisk   AnomalyKind = "PartitionStartsPastDisk"
	AnomalyEndPastDisk      AnomalyKind = "PartitionEndPastDisk"
)

// Anomaly records one malformed-input finding from segmentation.
type Anomaly struct {
	Kind        AnomalyKind `json:"kind"`
	PartitionID int         `json:"partitionId"`
	PreviousEnd uint64      `json:"previousEnd,omitempty"`
}

// SmartDeviceType tags which SMART data shape a device reports.
type SmartDeviceType string

const (
	SmartNVMe SmartDeviceType = "NVMe"
	SmartATA  SmartDeviceType = "ATA"
)

// SmartAttribute is one named attribute in a SMART report.
type SmartAttribute struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// SmartInfo is a SMART status snapshot, normalized to Celsius and hours
// regardless of whether the underlying device reports NVMe or ATA units.
type SmartInfo struct {
	DeviceType     SmartDeviceType  `json:"deviceType"`
	UpdatedAt      time.Time        `json:"updatedAt"`
	TemperatureC   float64          `json:"temperatureC"`
	PowerOnHours   uint64           `json:"powerOnHours"`
	SelfTestStatus string           `json:"selfTestStatus"`
	Attributes     []SmartAttribute `json:"attributes"`
}

// MountOptionsSettings is the declarative fstab-row record for a device:
// known flags broken out, everything else kept as raw trailing options.
type MountOptionsSettings struct {
	NoAuto       bool     `json:"noAuto"`
	AuthRequired bool     `json:"authRequired"`
	UIVisible    bool     `json:"uiVisible"`
	DisplayName  string   `json:"displayName,omitempty"`
	Icon         string   `json:"icon,omitempty"`
	SymbolicIcon string   `json:"symbolicIcon,omitempty"`
	RawOptions   []string `json:"rawOptions,omitempty"` // device path, then known-flag and extra tokens, stable-deduped, original order
}

// EncryptionOptionsSettings is the crypttab analogue of MountOptionsSettings.
type EncryptionOptionsSettings struct {
	NoAuto       bool     `json:"noAuto"`
	AuthRequired bool     `json:"authRequired"`
	UIVisible    bool     `json:"uiVisible"`
	DisplayName  string   `json:"displayName,omitempty"`
	Icon         string   `json:"icon,omitempty"`
	SymbolicIcon string   `json:"symbolicIcon,omitempty"`
	RawOptions   []string `json:"rawOptions,omitempty"`
}

// ConfigScope distinguishes a per-user RClone remote from a machine-wide one.
type ConfigScope string

const (
	ScopeUser   ConfigScope = "User"
	ScopeSystem ConfigScope = "System"
)

// RcloneRemoteConfig is one configured RClone remote.
type RcloneRemoteConfig struct {
	Name       string            `json:"name"`
	RemoteType string            `json:"remoteType"`
	Scope      ConfigScope       `json:"scope"`
	Options    map[string]string `json:"options"`
	HasSecrets bool              `json:"hasSecrets"`
}

// RcloneRemoteList is the combined result of Rclone.ListRemotes: every
// remote found in both the caller's user config and the system config,
// plus the paths they were read from (empty if that config doesn't
// exist yet).
type RcloneRemoteList struct {
	Remotes          []RcloneRemoteConfig `json:"remotes"`
	UserConfigPath   string               `json:"userConfigPath,omitempty"`
	SystemConfigPath string               `json:"systemConfigPath,omitempty"`
}

// ImageOperationKind tags the four long-running image operations.
type ImageOperationKind string

const (
	OpBackupDrive      ImageOperationKind = "BackupDrive"
	OpBackupPartition  ImageOperationKind = "BackupPartition"
	OpRestoreDrive     ImageOperationKind = "RestoreDrive"
	OpRestorePartition ImageOperationKind = "RestorePartition"
)

// OperationProgress is the shared, mutex-guarded progress record for a
// running image operation.
type OperationProgress struct {
	Completed      uint64    `json:"bytesCompleted"`
	Total          uint64    `json:"totalBytes"`
	SpeedBps       uint64    `json:"speedBytesPerSec"`
	StartedAt      time.Time `json:"startedAt"`
	ElapsedSeconds uint64    `json:"elapsedSeconds"`
}

// ImageOperationStatus is the JSON shape GetOperationStatus and
// ListActiveOperations return for one operation.
type ImageOperationStatus struct {
	OperationID string             `json:"operationId"`
	Kind        ImageOperationKind `json:"operationType"`
	Source      string             `json:"source"`
	Destination string             `json:"destination"`
	OperationProgress
	IsFinished bool `json:"isFinished"`
}

// UnmountResult is the structured outcome of a Filesystems.Unmount call.
type UnmountResult struct {
	Success           bool         `json:"success"`
	Error             string       `json:"error,omitempty"`
	BlockingProcesses []ProcessRef `json:"blockingProcesses,omitempty"`
}

// ProcessRef identifies a process holding a mount point open.
type ProcessRef struct {
	PID     int    `json:"pid"`
	Command string `json:"command"`
}

// CheckResult is the outcome of a Filesystems.Check call.
type CheckResult struct {
	Clean    bool   `json:"clean"`
	Repaired bool   `json:"repaired"`
	Message  string `json:"message,omitempty"`
}

// UsageResult is the statvfs-derived usage of a mounted filesystem.
type UsageResult struct {
	Size      uint64  `json:"size"`
	Used      uint64  `json:"used"`
	Available uint64  `json:"available"`
	Percent   float64 `json:"percent"`
}

// MountStatusResult reports whether a configured remote is currently mounted.
type MountStatusResult struct {
	Name      string      `json:"name"`
	Scope     ConfigScope `json:"scope"`
	Mounted   bool        `json:"mounted"`
	MountPath string      `json:"mountPath,omitempty"`
}

// TestResult is the outcome of Rclone.TestRemote.
type TestResult struct {
	Success   bool   `json:"success"`
	Message   string `json:"message"`
	LatencyMs int64  `json:"latencyMs"`
}
