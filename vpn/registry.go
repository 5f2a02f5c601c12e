// Package vpn provides WireGuard tunnel lifecycle management.
// This file contains the Registry, the persisted list of known tunnels.
package vpn

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/yllada/wg-manager/common"
)

// TunnelEntry is a registered tunnel. ConfigPath may be empty for entries
// restored from a file that recorded no path.
type TunnelEntry struct {
	Name       string
	ConfigPath string
}

// Registry is the ordered set of known tunnels.
// Mutations are in memory only; call Persist to write them out.
// Registry is not safe for concurrent use.
type Registry struct {
	entries []TunnelEntry
	file    string
}

// NewRegistry creates an empty registry persisted at file.
func NewRegistry(file string) *Registry {
	return &Registry{file: file}
}

// File returns the path the registry persists to.
func (r *Registry) File() string {
	return r.file
}

// Add registers a tunnel. Names are compared exactly.
func (r *Registry) Add(name, configPath string) error {
	if r.index(name) >= 0 {
		return fmt.Errorf("%w: %s", common.ErrDuplicateName, name)
	}
	r.entries = append(r.entries, TunnelEntry{Name: name, ConfigPath: configPath})
	return nil
}

// Remove unregisters a tunnel.
func (r *Registry) Remove(name string) error {
	i := r.index(name)
	if i < 0 {
		return fmt.Errorf("%w: %s", common.ErrTunnelNotFound, name)
	}
	r.entries = append(r.entries[:i], r.entries[i+1:]...)
	return nil
}

// Get retrieves a tunnel by name.
func (r *Registry) Get(name string) (TunnelEntry, error) {
	i := r.index(name)
	if i < 0 {
		return TunnelEntry{}, fmt.Errorf("%w: %s", common.ErrTunnelNotFound, name)
	}
	return r.entries[i], nil
}

// List returns all tunnels in insertion order.
func (r *Registry) List() []TunnelEntry {
	out := make([]TunnelEntry, len(r.entries))
	copy(out, r.entries)
	return out
}

func (r *Registry) index(name string) int {
	for i, e := range r.entries {
		if e.Name == name {
			return i
		}
	}
	return -1
}

// snapshot and restoreSnapshot let callers undo a mutation whose persist failed.
func (r *Registry) snapshot() []TunnelEntry {
	return r.List()
}

func (r *Registry) restoreSnapshot(entries []TunnelEntry) {
	r.entries = entries
}

// Persist writes the registry as a flat YAML mapping of name to path,
// keeping insertion order.
func (r *Registry) Persist() error {
	doc := &yaml.Node{Kind: yaml.MappingNode}
	for _, e := range r.entries {
		doc.Content = append(doc.Content,
			&yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: e.Name},
			&yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: e.ConfigPath},
		)
	}

	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("%w: serializing: %v", common.ErrRegistrySave, err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("%w: serializing: %v", common.ErrRegistrySave, err)
	}

	if err := os.MkdirAll(filepath.Dir(r.file), 0700); err != nil {
		return fmt.Errorf("%w: %v", common.ErrRegistrySave, err)
	}
	if err := common.WriteFileAtomic(r.file, buf.Bytes(), 0600); err != nil {
		return fmt.Errorf("%w: %s: %v", common.ErrRegistrySave, r.file, err)
	}
	return nil
}

// Restore replaces the in-memory entries with the persisted ones.
// A missing file yields an empty registry.
func (r *Registry) Restore() error {
	data, err := os.ReadFile(r.file)
	if err != nil {
		if os.IsNotExist(err) {
			r.entries = nil
			return nil
		}
		return fmt.Errorf("%w: %v", common.ErrRegistryLoad, err)
	}

	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("%w: %s: %v", common.ErrRegistryLoad, r.file, err)
	}

	// An empty file decodes to a zero node.
	if doc.Kind == 0 {
		r.entries = nil
		return nil
	}
	if doc.Kind != yaml.DocumentNode || len(doc.Content) != 1 {
		return fmt.Errorf("%w: %s: unexpected document structure", common.ErrRegistryLoad, r.file)
	}

	root := doc.Content[0]
	if root.Kind == yaml.ScalarNode && root.Tag == "!!null" {
		r.entries = nil
		return nil
	}
	if root.Kind != yaml.MappingNode {
		return fmt.Errorf("%w: %s: line %d: expected a mapping of tunnel name to config path", common.ErrRegistryLoad, r.file, root.Line)
	}

	entries := make([]TunnelEntry, 0, len(root.Content)/2)
	seen := make(map[string]bool, len(root.Content)/2)
	for i := 0; i+1 < len(root.Content); i += 2 {
		key, val := root.Content[i], root.Content[i+1]
		if key.Kind != yaml.ScalarNode || key.Value == "" {
			return fmt.Errorf("%w: %s: line %d: tunnel name must be a non-empty string", common.ErrRegistryLoad, r.file, key.Line)
		}
		if seen[key.Value] {
			return fmt.Errorf("%w: %s: line %d: duplicate tunnel %q", common.ErrRegistryLoad, r.file, key.Line, key.Value)
		}
		path := ""
		switch {
		case val.Kind == yaml.ScalarNode && val.Tag == "!!null":
		case val.Kind == yaml.ScalarNode:
			path = val.Value
		default:
			return fmt.Errorf("%w: %s: line %d: config path for %q must be a string", common.ErrRegistryLoad, r.file, val.Line, key.Value)
		}
		seen[key.Value] = true
		entries = append(entries, TunnelEntry{Name: key.Value, ConfigPath: path})
	}

	r.entries = entries
	return nil
}
