package rclone

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/storagebroker/service/pkg/errs"
)

// RemoteOptions is the raw key/value set for one remote section of an
// rclone.conf file, "type" included.
type RemoteOptions map[string]string

// readConfig parses an rclone.conf-style INI file: `[name]` section
// headers followed by `key = value` lines. No third-party INI library
// is wired here — the pack's retrieval set carries no general-purpose
// INI codec (only an unexported AWS SDK internal/ini package), and
// rclone.conf's format is simple enough that a small hand-rolled
// scanner is the more honest choice than bending an unrelated library
// to the task; see DESIGN.md.
func readConfig(path string) (map[string]RemoteOptions, error) {
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return map[string]RemoteOptions{}, nil
	}
	if err != nil {
		return nil, errs.Wrap(errs.IOError, "rclone", fmt.Errorf("open %s: %w", path, err))
	}
	defer f.Close()

	out := map[string]RemoteOptions{}
	var section string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") || strings.HasPrefix(line, ";") {
			continue
		}
		if strings.HasPrefix(line, "[") && strings.HasSuffix(line, "]") {
			section = strings.TrimSpace(line[1 : len(line)-1])
			if _, ok := out[section]; !ok {
				out[section] = RemoteOptions{}
			}
			continue
		}
		if section == "" {
			continue
		}
		key, value, found := strings.Cut(line, "=")
		if !found {
			continue
		}
		out[section][strings.TrimSpace(key)] = strings.TrimSpace(value)
	}
	if err := scanner.Err(); err != nil {
		return nil, errs.Wrap(errs.IOError, "rclone", fmt.Errorf("scan %s: %w", path, err))
	}
	return out, nil
}

// writeConfig serializes remotes back to path in the same `[name]` /
// `key = value` shape, with sections and keys in stable sorted order
// so repeated writes produce a deterministic diff.
func writeConfig(path string, remotes map[string]RemoteOptions) error {
	names := make([]string, 0, len(remotes))
	for name := range remotes {
		names = append(names, name)
	}
	sort.Strings(names)

	var b strings.Builder
	for _, name := range names {
		fmt.Fprintf(&b, "[%s]\n", name)
		opts := remotes[name]
		keys := make([]string, 0, len(opts))
		for k := range opts {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Fprintf(&b, "%s = %s\n", k, opts[k])
		}
		b.WriteByte('\n')
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return errs.Wrap(errs.IOError, "rclone", fmt.Errorf("create config dir for %s: %w", path, err))
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, []byte(b.String()), 0o600); err != nil {
		return errs.Wrap(errs.IOError, "rclone", fmt.Errorf("write %s: %w", tmp, err))
	}
	if err := os.Rename(tmp, path); err != nil {
		return errs.Wrap(errs.IOError, "rclone", fmt.Errorf("rename %s: %w", tmp, err))
	}
	return nil
}
