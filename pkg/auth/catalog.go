package auth

import (
	"context"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// action is one entry in the action catalog file.
type action struct {
	Name         string `yaml:"name"`
	Description  string `yaml:"description"`
	AlwaysPrompt bool   `yaml:"alwaysPrompt"`
}

type catalogFile struct {
	Actions []action `yaml:"actions"`
}

// CatalogBackend is a PolicyBackend backed by the static action catalog
// file pkg/policy/actions.yaml publishes as a side-channel. It has no
// real prompter: actions marked alwaysPrompt are denied outright absent
// one, everything else in the catalog is authorized, and names outside
// the catalog are denied as unknown. A deployment wanting an actual
// interactive prompt wires its own PolicyBackend in front of (or
// instead of) this one; this type only gives storage-serviced a
// catalog-driven default instead of StubBackend's allow-everything
// stance.
type CatalogBackend struct {
	alwaysPrompt map[string]bool
	known        map[string]bool
}

// LoadCatalog parses the YAML action catalog at path.
func LoadCatalog(path string) (*CatalogBackend, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read action catalog: %w", err)
	}
	var cf catalogFile
	if err := yaml.Unmarshal(data, &cf); err != nil {
		return nil, fmt.Errorf("parse action catalog: %w", err)
	}
	cb := &CatalogBackend{
		alwaysPrompt: make(map[string]bool, len(cf.Actions)),
		known:        make(map[string]bool, len(cf.Actions)),
	}
	for _, a := range cf.Actions {
		cb.known[a.Name] = true
		if a.AlwaysPrompt {
			cb.alwaysPrompt[a.Name] = true
		}
	}
	return cb, nil
}

func (c *CatalogBackend) Check(_ context.Context, _ uint32, action string) (Verdict, error) {
	if !c.known[action] {
		return Denied, nil
	}
	if c.alwaysPrompt[action] {
		return Interactive, nil
	}
	return Authorized, nil
}
