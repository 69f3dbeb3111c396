// Package policy holds the per-domain helpers shared by handlers:
// config-scope parsing, remote-name/device-name validation, and device
// identifier matching. Keeping this logic here, rather than duplicated
// per handler, is what keeps handlers thin.
package policy

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/storagebroker/service/pkg/errs"
	"github.com/storagebroker/service/pkg/types"
)

var remoteNamePattern = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// ParseScope converts a wire-level scope string into a types.ConfigScope,
// rejecting anything else as InvalidArgs.
func ParseScope(domain, scope string) (types.ConfigScope, error) {
	switch types.ConfigScope(scope) {
	case types.ScopeUser:
		return types.ScopeUser, nil
	case types.ScopeSystem:
		return types.ScopeSystem, nil
	default:
		return "", errs.New(errs.InvalidArgs, domain, "unknown scope %q", scope)
	}
}

// ValidateRemoteName checks the `[A-Za-z0-9_-]+` charset invariant for
// an rclone remote name.
func ValidateRemoteName(domain, name string) error {
	if name == "" || !remoteNamePattern.MatchString(name) {
		return errs.New(errs.InvalidArgs, domain, "remote name %q must match [A-Za-z0-9_-]+", name)
	}
	return nil
}

// ValidateRemoteType checks a requested remote type against the set of
// types the provider registry knows about.
func ValidateRemoteType(domain, remoteType string, supported []string) error {
	for _, t := range supported {
		if t == remoteType {
			return nil
		}
	}
	return errs.New(errs.InvalidArgs, domain, "unsupported remote type %q", remoteType)
}

// ValidateFilesystemType checks a requested mkfs type against the set
// detected at startup.
func ValidateFilesystemType(domain, fsType string, supported map[string]bool) error {
	if !supported[fsType] {
		return errs.New(errs.NotSupported, domain, "no mkfs tool available for filesystem type %q", fsType)
	}
	return nil
}

// DeviceIdentity is a disk/volume's canonical identity, against which a
// client-supplied device identifier is resolved. Every method taking a
// device accepts: canonical path (/dev/sda), path tail (sda), stable ID,
// or the daemon's object path — matched deterministically.
type DeviceIdentity struct {
	Device     string
	ID         string
	ObjectPath string
}

// Matches reports whether the caller-supplied identifier resolves to
// this identity.
func (d DeviceIdentity) Matches(identifier string) bool {
	if identifier == "" {
		return false
	}
	if d.Device == identifier || d.ObjectPath == identifier || d.ID == identifier {
		return true
	}
	tail := tailSegment(d.Device)
	return tail != "" && tail == identifier
}

func tailSegment(path string) string {
	idx := strings.LastIndex(path, "/")
	if idx == -1 {
		return path
	}
	return path[idx+1:]
}

// FindDevice scans identities in order and returns the first match,
// surfacing NotFound (not Internal) when nothing matches — callers rely
// on this distinction for the SMART/eject/etc. error-kind invariant.
func FindDevice[T any](domain, identifier string, items []T, identity func(T) DeviceIdentity) (T, error) {
	for _, item := range items {
		if identity(item).Matches(identifier) {
			return item, nil
		}
	}
	var zero T
	return zero, errs.New(errs.NotFound, domain, "device %q not found", identifier)
}

// StableDedupTokens appends extra tokens onto known ones, preserving
// original relative order and dropping any token already present — the
// reassembly rule MountOptionsSettings/EncryptionOptionsSettings both
// rely on.
func StableDedupTokens(known []string, extra []string) []string {
	seen := make(map[string]bool, len(known)+len(extra))
	out := make([]string, 0, len(known)+len(extra))
	for _, t := range known {
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	for _, t := range extra {
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	return out
}

// ActionName builds the reverse-domain policy-action name handlers pass
// to the authorization gate, e.g. ActionName("filesystem", "format") ->
// "org.storagebroker.filesystem-format".
func ActionName(domain, verb string) string {
	return fmt.Sprintf("org.storagebroker.%s-%s", domain, verb)
}
