// Package udisks provides BlockDaemon implementations: Fake, an
// in-memory daemon used by handler tests and headless development, and
// Client, a real github.com/godbus/dbus/v5 connection to the host's
// UDisks2-compatible block daemon.
package udisks

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"

	"github.com/storagebroker/service/pkg/adapter"
	"github.com/storagebroker/service/pkg/errs"
	"github.com/storagebroker/service/pkg/types"
)

// Fake is a deterministic in-memory BlockDaemon: enough behavior to
// drive handler unit tests against realistic seed scenarios without a
// real daemon or root privileges.
type Fake struct {
	mu              sync.Mutex
	disks           map[string]types.Disk
	volumes         map[string][]types.Volume // keyed by disk device
	byPath          map[string]*types.Volume  // keyed by object path, shared storage with volumes
	events          chan adapter.InterfaceEvent
	btrfsSubvolumes map[string][]string // keyed by mount point
	btrfsDefaults   map[string]string   // keyed by mount point
}

// NewFake returns an empty Fake daemon.
func NewFake() *Fake {
	return &Fake{
		disks:           map[string]types.Disk{},
		volumes:         map[string][]types.Volume{},
		byPath:          map[string]*types.Volume{},
		events:          make(chan adapter.InterfaceEvent, 64),
		btrfsSubvolumes: map[string][]string{},
		btrfsDefaults:   map[string]string{},
	}
}

// AddDisk registers a disk (and its volumes) for tests to query.
func (f *Fake) AddDisk(d types.Disk, vols []types.Volume) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.disks[d.Device] = d
	stored := make([]types.Volume, len(vols))
	copy(stored, vols)
	f.volumes[d.Device] = stored
	for i := range stored {
		f.byPath[stored[i].ObjectPath] = &stored[i]
	}
	f.events <- adapter.InterfaceEvent{Kind: adapter.InterfaceAdded, ObjectPath: d.ObjectPath, IsDisk: true}
}

// RemoveDisk drops a disk from the fake daemon and emits a removal event.
func (f *Fake) RemoveDisk(device string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	d, ok := f.disks[device]
	if !ok {
		return
	}
	for _, v := range f.volumes[device] {
		delete(f.byPath, v.ObjectPath)
	}
	delete(f.disks, device)
	delete(f.volumes, device)
	f.events <- adapter.InterfaceEvent{Kind: adapter.InterfaceRemoved, ObjectPath: d.ObjectPath, IsDisk: true}
}

func (f *Fake) ListDisks(context.Context) ([]types.Disk, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]types.Disk, 0, len(f.disks))
	for _, d := range f.disks {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Device < out[j].Device })
	return out, nil
}

func (f *Fake) GetDisk(_ context.Context, device string) (types.Disk, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	d, ok := f.resolveDisk(device)
	if !ok {
		return types.Disk{}, errs.New(errs.NotFound, "disks", "disk %q not found", device)
	}
	return d, nil
}

func (f *Fake) resolveDisk(identifier string) (types.Disk, bool) {
	if d, ok := f.disks[identifier]; ok {
		return d, true
	}
	tail := identifier
	if idx := strings.LastIndex(identifier, "/"); idx != -1 {
		tail = identifier[idx+1:]
	}
	for _, d := range f.disks {
		if d.ID == identifier || d.ObjectPath == identifier {
			return d, true
		}
		if dtail := strings.TrimPrefix(d.Device, "/dev/"); dtail == tail {
			return d, true
		}
	}
	return types.Disk{}, false
}

func (f *Fake) ListVolumes(_ context.Context, diskDevice string) ([]types.Volume, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	d, ok := f.resolveDisk(diskDevice)
	if !ok {
		return nil, errs.New(errs.NotFound, "disks", "disk %q not found", diskDevice)
	}
	vols := f.volumes[d.Device]
	out := make([]types.Volume, len(vols))
	copy(out, vols)
	return out, nil
}

func (f *Fake) GetSmartInfo(_ context.Context, device string) (types.SmartInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.resolveDisk(device); !ok {
		return types.SmartInfo{}, errs.New(errs.NotFound, "disks", "disk %q not found", device)
	}
	return types.SmartInfo{DeviceType: types.SmartATA, SelfTestStatus: "PASSED"}, nil
}

func (f *Fake) StartSmartTest(_ context.Context, device, kind string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.resolveDisk(device); !ok {
		return errs.New(errs.NotFound, "disks", "disk %q not found", device)
	}
	if kind != "short" && kind != "extended" {
		return errs.New(errs.InvalidArgs, "disks", "unknown self-test kind %q", kind)
	}
	return nil
}

func (f *Fake) Eject(_ context.Context, device string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	d, ok := f.resolveDisk(device)
	if !ok {
		return errs.New(errs.NotFound, "disks", "disk %q not found", device)
	}
	if !d.Ejectable {
		return errs.New(errs.NotSupported, "disks", "disk %q is not ejectable", device)
	}
	d.HasMedia = false
	f.disks[d.Device] = d
	return nil
}

func (f *Fake) PowerOff(_ context.Context, device string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	d, ok := f.resolveDisk(device)
	if !ok {
		return errs.New(errs.NotFound, "disks", "disk %q not found", device)
	}
	if !d.CanPowerOff {
		return errs.New(errs.NotSupported, "disks", "disk %q cannot be powered off", device)
	}
	delete(f.disks, d.Device)
	delete(f.volumes, d.Device)
	return nil
}

func (f *Fake) StandbyNow(_ context.Context, device string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.resolveDisk(device); !ok {
		return errs.New(errs.NotFound, "disks", "disk %q not found", device)
	}
	return nil
}

func (f *Fake) Wakeup(_ context.Context, device string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.resolveDisk(device); !ok {
		return errs.New(errs.NotFound, "disks", "disk %q not found", device)
	}
	return nil
}

func (f *Fake) DeleteLoopDevice(_ context.Context, device string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	d, ok := f.resolveDisk(device)
	if !ok {
		return errs.New(errs.NotFound, "disks", "disk %q not found", device)
	}
	if !d.IsLoop {
		return errs.New(errs.InvalidArgs, "disks", "device %q is not a loop device", device)
	}
	delete(f.disks, d.Device)
	delete(f.volumes, d.Device)
	return nil
}

func (f *Fake) CreatePartitionTable(_ context.Context, device, kind string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	d, ok := f.resolveDisk(device)
	if !ok {
		return errs.New(errs.NotFound, "disks", "disk %q not found", device)
	}
	d.PartitionTableKind = kind
	f.disks[d.Device] = d
	f.volumes[d.Device] = nil
	return nil
}

func (f *Fake) CreatePartition(_ context.Context, device string, offset, size uint64, typeID, label string) (types.Volume, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	d, ok := f.resolveDisk(device)
	if !ok {
		return types.Volume{}, errs.New(errs.NotFound, "disks", "disk %q not found", device)
	}
	n := len(f.volumes[d.Device]) + 1
	v := types.Volume{
		ObjectPath: fmt.Sprintf("%s/part%d", d.ObjectPath, n),
		DevicePath: fmt.Sprintf("%s%d", d.Device, n),
		Variant:    types.VariantPartition,
		Size:       size,
		Offset:     offset,
		Label:      label,
		ParentPath: d.ObjectPath,
	}
	f.volumes[d.Device] = append(f.volumes[d.Device], v)
	f.byPath[v.ObjectPath] = &v
	_ = typeID
	return v, nil
}

func (f *Fake) volumeByPath(objectPath string) (*types.Volume, error) {
	v, ok := f.byPath[objectPath]
	if !ok {
		return nil, errs.New(errs.NotFound, "disks", "volume %q not found", objectPath)
	}
	return v, nil
}

func (f *Fake) DeletePartition(_ context.Context, objectPath string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, err := f.volumeByPath(objectPath); err != nil {
		return err
	}
	for dev, vols := range f.volumes {
		for i, v := range vols {
			if v.ObjectPath == objectPath {
				f.volumes[dev] = append(vols[:i], vols[i+1:]...)
				delete(f.byPath, objectPath)
				return nil
			}
		}
	}
	return errs.New(errs.NotFound, "disks", "volume %q not found", objectPath)
}

func (f *Fake) ResizePartition(_ context.Context, objectPath string, newSize uint64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	v, err := f.volumeByPath(objectPath)
	if err != nil {
		return err
	}
	v.Size = newSize
	return nil
}

func (f *Fake) Format(_ context.Context, objectPath, fsType, label string, _ types.MountOptionsSettings) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	v, err := f.volumeByPath(objectPath)
	if err != nil {
		return err
	}
	v.Variant = types.VariantFilesystem
	v.IDType = fsType
	v.Label = label
	return nil
}

func (f *Fake) Mount(_ context.Context, objectPath string, _ []string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	v, err := f.volumeByPath(objectPath)
	if err != nil {
		return "", err
	}
	mp := fmt.Sprintf("/run/media/storagebroker/%s", strings.TrimPrefix(v.DevicePath, "/dev/"))
	v.MountPoints = append(v.MountPoints, mp)
	return mp, nil
}

func (f *Fake) Unmount(_ context.Context, objectPath string, _ bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	v, err := f.volumeByPath(objectPath)
	if err != nil {
		return err
	}
	v.MountPoints = nil
	return nil
}

func (f *Fake) Check(context.Context, string, bool) (types.CheckResult, error) {
	return types.CheckResult{Clean: true}, nil
}

func (f *Fake) SetLabel(_ context.Context, objectPath, label string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	v, err := f.volumeByPath(objectPath)
	if err != nil {
		return err
	}
	v.Label = label
	return nil
}

func (f *Fake) SetMountOptions(context.Context, string, types.MountOptionsSettings) error { return nil }

// TakeFilesystemOwnership only checks that the volume is mounted; no
// ownership change is recorded, as there is no real filesystem tree to
// chown.
func (f *Fake) TakeFilesystemOwnership(_ context.Context, objectPath string, recursive bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	v, err := f.volumeByPath(objectPath)
	if err != nil {
		return err
	}
	if len(v.MountPoints) == 0 {
		return errs.New(errs.InvalidArgs, "filesystems", "device %q is not mounted", objectPath)
	}
	return nil
}

func (f *Fake) CreateLuks(_ context.Context, objectPath, _ string, _ types.EncryptionOptionsSettings) (types.Volume, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	v, err := f.volumeByPath(objectPath)
	if err != nil {
		return types.Volume{}, err
	}
	v.Variant = types.VariantCryptoContainer
	v.IDType = "crypto_LUKS"
	return *v, nil
}

func (f *Fake) UnlockLuks(_ context.Context, objectPath, _ string) (types.Volume, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	v, err := f.volumeByPath(objectPath)
	if err != nil {
		return types.Volume{}, err
	}
	clear := types.Volume{
		ObjectPath: v.ObjectPath + "/cleartext",
		DevicePath: v.DevicePath + "_crypt",
		Variant:    types.VariantFilesystem,
		Size:       v.Size,
		ParentPath: v.ObjectPath,
	}
	f.byPath[clear.ObjectPath] = &clear
	return clear, nil
}

func (f *Fake) LockLuks(_ context.Context, objectPath string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.byPath, objectPath+"/cleartext")
	return nil
}

func (f *Fake) ChangeLuksPassphrase(context.Context, string, string, string) error { return nil }
func (f *Fake) SetEncryptionOptions(context.Context, string, types.EncryptionOptionsSettings) error {
	return nil
}

func (f *Fake) CreateLogicalVolume(_ context.Context, vgObjectPath, name string, size uint64) (types.Volume, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	v := types.Volume{
		ObjectPath: vgObjectPath + "/" + name,
		DevicePath: "/dev/mapper/" + name,
		Variant:    types.VariantLvmLogicalVolume,
		Size:       size,
		ParentPath: vgObjectPath,
		Label:      name,
	}
	f.byPath[v.ObjectPath] = &v
	return v, nil
}

func (f *Fake) DeleteLogicalVolume(_ context.Context, objectPath string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, err := f.volumeByPath(objectPath); err != nil {
		return err
	}
	delete(f.byPath, objectPath)
	return nil
}

func (f *Fake) ActivateLogicalVolume(_ context.Context, objectPath string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, err := f.volumeByPath(objectPath)
	return err
}

func (f *Fake) DeactivateLogicalVolume(_ context.Context, objectPath string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, err := f.volumeByPath(objectPath)
	return err
}

func (f *Fake) StartArray(_ context.Context, objectPath string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, err := f.volumeByPath(objectPath)
	return err
}

func (f *Fake) StopArray(_ context.Context, objectPath string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, err := f.volumeByPath(objectPath)
	return err
}

func (f *Fake) RequestSyncAction(_ context.Context, objectPath, action string) (types.CheckResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, err := f.volumeByPath(objectPath); err != nil {
		return types.CheckResult{}, err
	}
	return types.CheckResult{Clean: true, Repaired: action == "repair"}, nil
}

func (f *Fake) CreateBtrfsSubvolume(_ context.Context, mountPoint, name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.btrfsSubvolumes[mountPoint] = append(f.btrfsSubvolumes[mountPoint], name)
	return nil
}

func (f *Fake) DeleteBtrfsSubvolume(_ context.Context, mountPoint, name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	subs := f.btrfsSubvolumes[mountPoint]
	for i, s := range subs {
		if s == name {
			f.btrfsSubvolumes[mountPoint] = append(subs[:i], subs[i+1:]...)
			return nil
		}
	}
	return errs.New(errs.NotFound, "btrfs", "subvolume %q not found under %q", name, mountPoint)
}

func (f *Fake) ListBtrfsSubvolumes(_ context.Context, mountPoint string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.btrfsSubvolumes[mountPoint]))
	copy(out, f.btrfsSubvolumes[mountPoint])
	return out, nil
}

func (f *Fake) GetBtrfsSubvolumeUsage(_ context.Context, mountPoint, name string) (types.UsageResult, error) {
	return types.UsageResult{}, nil
}

func (f *Fake) GetDefaultBtrfsSubvolume(_ context.Context, mountPoint string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.btrfsDefaults[mountPoint], nil
}

func (f *Fake) SetDefaultBtrfsSubvolume(_ context.Context, mountPoint, name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.btrfsDefaults == nil {
		f.btrfsDefaults = map[string]string{}
	}
	f.btrfsDefaults[mountPoint] = name
	return nil
}

func (f *Fake) SetBtrfsSubvolumeReadOnly(_ context.Context, mountPoint, name string, readOnly bool) error {
	return nil
}

func (f *Fake) OpenForBackup(context.Context, string) (io.ReadCloser, uint64, error) {
	return nil, 0, errs.New(errs.NotSupported, "image", "Fake daemon does not back real block devices")
}

func (f *Fake) OpenForRestore(context.Context, string) (io.WriteCloser, uint64, error) {
	return nil, 0, errs.New(errs.NotSupported, "image", "Fake daemon does not back real block devices")
}

func (f *Fake) LoopSetup(_ context.Context, imagePath string) (string, error) {
	name := strings.TrimSuffix(strings.TrimPrefix(imagePath, "/"), ".img")
	return fmt.Sprintf("/org/storagebroker/Service1/Disks/loop-%s", name), nil
}

func (f *Fake) SubscribeInterfaces(ctx context.Context) (<-chan adapter.InterfaceEvent, error) {
	out := make(chan adapter.InterfaceEvent, 64)
	go func() {
		defer close(out)
		for {
			select {
			case <-ctx.Done():
				return
			case e, ok := <-f.events:
				if !ok {
					return
				}
				select {
				case out <- e:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}
