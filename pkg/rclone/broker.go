package rclone

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/storagebroker/service/pkg/adapter"
	"github.com/storagebroker/service/pkg/errs"
	"github.com/storagebroker/service/pkg/types"
)

// Broker resolves per-caller config/mount paths via adapter.System and
// drives the CLI, assembling the RcloneRemoteConfig/RcloneRemoteList
// wire shapes the rclone.go handler exposes.
type Broker struct {
	sys adapter.System
	cli *CLI
}

// NewBroker builds a Broker. cli may be nil to use default settings.
func NewBroker(sys adapter.System, cli *CLI) *Broker {
	if cli == nil {
		cli = &CLI{}
	}
	return &Broker{sys: sys, cli: cli}
}

func (b *Broker) existingConfigPath(scope types.ConfigScope, callerUID uint32) (string, bool, error) {
	path, err := b.sys.ConfigPathForUID(scope, callerUID)
	if err != nil {
		return "", false, err
	}
	if _, statErr := os.Stat(path); statErr != nil {
		return path, false, nil
	}
	return path, true, nil
}

func remoteFromOptions(name string, scope types.ConfigScope, opts RemoteOptions) types.RcloneRemoteConfig {
	remoteType := opts["type"]
	if remoteType == "" {
		remoteType = "unknown"
	}
	options := make(map[string]string, len(opts))
	for k, v := range opts {
		if k == "type" {
			continue
		}
		options[k] = v
	}
	return types.RcloneRemoteConfig{
		Name:       name,
		RemoteType: remoteType,
		Scope:      scope,
		Options:    options,
		HasSecrets: HasSecrets(remoteType, opts),
	}
}

func (b *Broker) listScope(scope types.ConfigScope, callerUID uint32) ([]types.RcloneRemoteConfig, string, error) {
	path, exists, err := b.existingConfigPath(scope, callerUID)
	if err != nil || !exists {
		return nil, "", err
	}
	cfg, err := readConfig(path)
	if err != nil {
		return nil, path, err
	}
	out := make([]types.RcloneRemoteConfig, 0, len(cfg))
	for name, opts := range cfg {
		out = append(out, remoteFromOptions(name, scope, opts))
	}
	return out, path, nil
}

// ListRemotes returns every remote configured in both the caller's
// user config and the system config.
func (b *Broker) ListRemotes(_ context.Context, callerUID uint32) (types.RcloneRemoteList, error) {
	userRemotes, userPath, err := b.listScope(types.ScopeUser, callerUID)
	if err != nil {
		return types.RcloneRemoteList{}, err
	}
	systemRemotes, systemPath, err := b.listScope(types.ScopeSystem, 0)
	if err != nil {
		return types.RcloneRemoteList{}, err
	}
	remotes := make([]types.RcloneRemoteConfig, 0, len(userRemotes)+len(systemRemotes))
	remotes = append(remotes, userRemotes...)
	remotes = append(remotes, systemRemotes...)
	return types.RcloneRemoteList{
		Remotes:          remotes,
		UserConfigPath:   userPath,
		SystemConfigPath: systemPath,
	}, nil
}

// GetRemote returns one remote's full configuration.
func (b *Broker) GetRemote(_ context.Context, name string, scope types.ConfigScope, callerUID uint32) (types.RcloneRemoteConfig, error) {
	path, exists, err := b.existingConfigPath(scope, callerUID)
	if err != nil {
		return types.RcloneRemoteConfig{}, err
	}
	if !exists {
		return types.RcloneRemoteConfig{}, errs.New(errs.NotFound, "rclone", "config file not found")
	}
	cfg, err := readConfig(path)
	if err != nil {
		return types.RcloneRemoteConfig{}, err
	}
	opts, ok := cfg[name]
	if !ok {
		return types.RcloneRemoteConfig{}, errs.New(errs.NotFound, "rclone", "remote %q not found", name)
	}
	return remoteFromOptions(name, scope, opts), nil
}

// CreateRemote adds a new remote, failing if one by that name already
// exists in the target scope's config.
func (b *Broker) CreateRemote(_ context.Context, remote types.RcloneRemoteConfig, callerUID uint32) error {
	path, err := b.sys.ConfigPathForUID(remote.Scope, callerUID)
	if err != nil {
		return err
	}
	cfg, err := readConfig(path)
	if err != nil {
		return err
	}
	if _, exists := cfg[remote.Name]; exists {
		return errs.New(errs.InvalidArgs, "rclone", "remote %q already exists", remote.Name)
	}
	cfg[remote.Name] = optionsWithType(remote)
	return writeConfig(path, cfg)
}

// UpdateRemote replaces an existing remote's configuration.
func (b *Broker) UpdateRemote(_ context.Context, name string, remote types.RcloneRemoteConfig, callerUID uint32) error {
	path, err := b.sys.ConfigPathForUID(remote.Scope, callerUID)
	if err != nil {
		return err
	}
	cfg, err := readConfig(path)
	if err != nil {
		return err
	}
	if _, exists := cfg[name]; !exists {
		return errs.New(errs.NotFound, "rclone", "remote %q not found", name)
	}
	delete(cfg, name)
	cfg[remote.Name] = optionsWithType(remote)
	return writeConfig(path, cfg)
}

func optionsWithType(remote types.RcloneRemoteConfig) RemoteOptions {
	opts := RemoteOptions{"type": remote.RemoteType}
	for k, v := range remote.Options {
		if strings.EqualFold(k, "type") {
			continue
		}
		opts[k] = v
	}
	return opts
}

// DeleteRemote removes a remote's configuration.
func (b *Broker) DeleteRemote(_ context.Context, name string, scope types.ConfigScope, callerUID uint32) error {
	path, err := b.sys.ConfigPathForUID(scope, callerUID)
	if err != nil {
		return err
	}
	cfg, err := readConfig(path)
	if err != nil {
		return err
	}
	if _, exists := cfg[name]; !exists {
		return errs.New(errs.NotFound, "rclone", "remote %q not found", name)
	}
	delete(cfg, name)
	return writeConfig(path, cfg)
}

// Mount mounts a configured remote at its per-scope mount point.
func (b *Broker) Mount(ctx context.Context, name string, scope types.ConfigScope, callerUID uint32) error {
	configPath, err := b.sys.ConfigPathForUID(scope, callerUID)
	if err != nil {
		return err
	}
	mountPoint, err := b.sys.MountPointForUID(scope, callerUID, name)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(mountPoint, 0o755); err != nil {
		return errs.Wrap(errs.IOError, "rclone", fmt.Errorf("create mount point %s: %w", mountPoint, err))
	}
	return b.cli.Mount(ctx, name, mountPoint, configPath)
}

// Unmount tears down a remote's mount.
func (b *Broker) Unmount(ctx context.Context, name string, scope types.ConfigScope, callerUID uint32) error {
	mountPoint, err := b.sys.MountPointForUID(scope, callerUID, name)
	if err != nil {
		return err
	}
	return b.cli.Unmount(ctx, mountPoint)
}

// GetMountStatus reports whether a remote is currently mounted.
func (b *Broker) GetMountStatus(_ context.Context, name string, scope types.ConfigScope, callerUID uint32) (types.MountStatusResult, error) {
	mountPoint, err := b.sys.MountPointForUID(scope, callerUID, name)
	if err != nil {
		return types.MountStatusResult{}, err
	}
	mounted, err := b.sys.IsMounted(mountPoint)
	if err != nil {
		return types.MountStatusResult{}, err
	}
	return types.MountStatusResult{Name: name, Scope: scope, Mounted: mounted, MountPath: mountPoint}, nil
}

// TestRemote checks connectivity/authentication for a configured
// remote.
func (b *Broker) TestRemote(ctx context.Context, name string, scope types.ConfigScope, callerUID uint32) (types.TestResult, error) {
	configPath, exists, err := b.existingConfigPath(scope, callerUID)
	if err != nil {
		return types.TestResult{}, err
	}
	if !exists {
		return types.TestResult{}, errs.New(errs.NotFound, "rclone", "config file not found")
	}
	return b.cli.TestRemote(ctx, name, configPath)
}

// mountOnBootKey folds scope and remote name into the single string
// key adapter.System's mount-marker store keys on; System's marker
// store was designed for block devices, but the tab-separated
// device->options shape generalizes cleanly to "rclone remotes" too.
func mountOnBootKey(scope types.ConfigScope, name string) string {
	return fmt.Sprintf("rclone:%s:%s", scope, name)
}

// GetMountOnBoot reports whether a remote is marked to mount at boot.
func (b *Broker) GetMountOnBoot(ctx context.Context, name string, scope types.ConfigScope) (bool, error) {
	markers, err := b.sys.ReadMountMarkers(ctx)
	if err != nil {
		return false, err
	}
	key := mountOnBootKey(scope, name)
	for _, m := range markers {
		if len(m.RawOptions) > 0 && m.RawOptions[0] == key {
			return true, nil
		}
	}
	return false, nil
}

// SetMountOnBoot enables or disables mounting a remote at boot.
func (b *Broker) SetMountOnBoot(ctx context.Context, name string, scope types.ConfigScope, enabled bool) error {
	key := mountOnBootKey(scope, name)
	if !enabled {
		return b.sys.RemoveMountMarker(ctx, key)
	}
	return b.sys.WriteMountMarker(ctx, key, types.MountOptionsSettings{RawOptions: []string{key}})
}
