// Package rclone implements the RClone config broker internals: the
// provider registry, the rclone.conf INI codec, and the per-scope
// broker that resolves config/mount paths and drives the rclone
// binary. The set of known provider types and their secret-bearing
// options are modeled as an explicit, named Go type rather than a
// scattered ad hoc check through the handler.
package rclone

// ProviderOption describes one configuration key a remote type
// accepts.
type ProviderOption struct {
	Name   string
	Secure bool // true if a configured value counts toward HasSecrets
}

// Provider is the static shape of one supported RClone remote type.
type Provider struct {
	RemoteType string
	Options    []ProviderOption
}

// providers is the static registry backing rclone_provider/
// supported_remote_types. Kept deliberately small: only the option
// names whose secrecy actually matters for HasSecrets need listing —
// rclone itself validates the rest.
var providers = map[string]Provider{
	"local": {
		RemoteType: "local",
		Options:    nil,
	},
	"sftp": {
		RemoteType: "sftp",
		Options: []ProviderOption{
			{Name: "host"},
			{Name: "user"},
			{Name: "port"},
			{Name: "pass", Secure: true},
			{Name: "key_file"},
			{Name: "key_pem", Secure: true},
		},
	},
	"s3": {
		RemoteType: "s3",
		Options: []ProviderOption{
			{Name: "provider"},
			{Name: "region"},
			{Name: "access_key_id", Secure: true},
			{Name: "secret_access_key", Secure: true},
			{Name: "session_token", Secure: true},
			{Name: "endpoint"},
		},
	},
	"drive": {
		RemoteType: "drive",
		Options: []ProviderOption{
			{Name: "client_id"},
			{Name: "client_secret", Secure: true},
			{Name: "token", Secure: true},
			{Name: "root_folder_id"},
		},
	},
	"ftp": {
		RemoteType: "ftp",
		Options: []ProviderOption{
			{Name: "host"},
			{Name: "user"},
			{Name: "port"},
			{Name: "pass", Secure: true},
		},
	},
	"webdav": {
		RemoteType: "webdav",
		Options: []ProviderOption{
			{Name: "url"},
			{Name: "vendor"},
			{Name: "user"},
			{Name: "pass", Secure: true},
			{Name: "bearer_token", Secure: true},
		},
	},
}

// LookupProvider returns the static Provider for remoteType, if known.
func LookupProvider(remoteType string) (Provider, bool) {
	p, ok := providers[remoteType]
	return p, ok
}

// SupportedRemoteTypes returns every remote type the registry knows
// about, mirroring supported_remote_types().
func SupportedRemoteTypes() []string {
	out := make([]string, 0, len(providers))
	for name := range providers {
		out = append(out, name)
	}
	return out
}

// HasSecrets reports whether options contains a non-empty value for
// any of remoteType's secure option keys — the mechanism
// RcloneRemoteConfig.HasSecrets is derived from, carried over directly
// from the Rust handler's rclone_provider(&remote_type).is_some_and(...)
// closure.
func HasSecrets(remoteType string, options map[string]string) bool {
	provider, ok := LookupProvider(remoteType)
	if !ok {
		return false
	}
	for _, opt := range provider.Options {
		if !opt.Secure {
			continue
		}
		if v, ok := options[opt.Name]; ok && v != "" {
			return true
		}
	}
	return false
}
