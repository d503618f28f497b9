// Package registry is the component template library: per-type render
// template names, prop defaults and field limits. Built-in entries ship with
// the binary; a directory of TOML or JSON files can add or override types and
// is optionally watched for changes.
package registry

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/BurntSushi/toml"
	"github.com/charmbracelet/log"

	"mediakit/internal/domain"
	"mediakit/internal/logging"
)

//go:embed builtin.toml
var builtin []byte

// Field describes one prop of a component type. The core never interprets
// props; limits are informational for the editor panels.
type Field struct {
	Kind     string `toml:"kind" json:"kind"`
	Required bool   `toml:"required" json:"required,omitempty"`
	Min      *int   `toml:"min" json:"min,omitempty"`
	Max      *int   `toml:"max" json:"max,omitempty"`
}

// Schema is one component type.
type Schema struct {
	Type     string           `toml:"type" json:"type"`
	Name     string           `toml:"name" json:"name"`
	Category string           `toml:"category" json:"category"`
	Template string           `toml:"template" json:"template"`
	Defaults map[string]any   `toml:"defaults" json:"defaults"`
	Fields   map[string]Field `toml:"fields" json:"fields,omitempty"`
	Source   string           `toml:"-" json:"source"`
}

type file struct {
	Component []Schema `toml:"component" json:"component"`
}

// Registry maps component types to schemas. Safe for concurrent use.
type Registry struct {
	dir    string
	logger *log.Logger

	mu      sync.RWMutex
	schemas map[string]Schema

	watchMu sync.Mutex
	watch   *watcher
}

// New creates a registry over dir. An empty dir serves only the built-in
// library. Call Load before use.
func New(dir string, logger *log.Logger) *Registry {
	return &Registry{
		dir:     dir,
		logger:  logging.OrDiscard(logger).WithPrefix("registry"),
		schemas: make(map[string]Schema),
	}
}

// Load (re)reads the built-in library and then every *.toml and *.json file in
// the directory, in name order. A later definition of a type replaces an
// earlier one. Malformed files are skipped with a warning; the previous
// schemas stay in place only when the built-in library itself fails.
func (r *Registry) Load() error {
	next := make(map[string]Schema)
	if err := decodeInto(next, builtin, ".toml", "builtin"); err != nil {
		return fmt.Errorf("load builtin templates: %w", err)
	}

	if r.dir != "" {
		entries, err := os.ReadDir(r.dir)
		if err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("read template dir: %w", err)
		}
		for _, e := range entries {
			ext := strings.ToLower(filepath.Ext(e.Name()))
			if e.IsDir() || (ext != ".toml" && ext != ".json") {
				continue
			}
			path := filepath.Join(r.dir, e.Name())
			data, err := os.ReadFile(path)
			if err != nil {
				r.logger.Warn("template file unreadable", "path", path, "err", err)
				continue
			}
			if err := decodeInto(next, data, ext, e.Name()); err != nil {
				r.logger.Warn("template file skipped", "path", path, "err", err)
			}
		}
	}

	r.mu.Lock()
	r.schemas = next
	r.mu.Unlock()
	r.logger.Debug("templates loaded", "types", len(next), "dir", r.dir)
	return nil
}

func decodeInto(dst map[string]Schema, data []byte, ext, source string) error {
	var f file
	switch ext {
	case ".toml":
		if _, err := toml.Decode(string(data), &f); err != nil {
			return fmt.Errorf("decode %s: %w", source, err)
		}
	case ".json":
		// A JSON file holds either {"component": [...]} or a bare array.
		if err := json.Unmarshal(data, &f); err != nil {
			var list []Schema
			if err2 := json.Unmarshal(data, &list); err2 != nil {
				return fmt.Errorf("decode %s: %w", source, err)
			}
			f.Component = list
		}
	}
	staged := make(map[string]Schema, len(f.Component))
	for i, s := range f.Component {
		if s.Type == "" {
			return domain.Validationf("%s: component %d has no type", source, i)
		}
		if s.Template == "" {
			s.Template = s.Type
		}
		if s.Name == "" {
			s.Name = s.Type
		}
		if s.Defaults == nil {
			s.Defaults = map[string]any{}
		}
		s.Source = source
		staged[s.Type] = s
	}
	for t, s := range staged {
		dst[t] = s
	}
	return nil
}

// Schema returns the schema for typ.
func (r *Registry) Schema(typ string) (Schema, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.schemas[typ]
	if ok {
		s.Defaults = domain.CloneMap(s.Defaults)
	}
	return s, ok
}

// Has reports whether typ is registered.
func (r *Registry) Has(typ string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.schemas[typ]
	return ok
}

// Types returns every registered type, sorted.
func (r *Registry) Types() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.schemas))
	for t := range r.schemas {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

// Defaults returns a copy of the prop defaults for typ, or nil.
func (r *Registry) Defaults(typ string) map[string]any {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.schemas[typ]
	if !ok {
		return nil
	}
	return domain.CloneMap(s.Defaults)
}

// Template returns the render template name for typ.
func (r *Registry) Template(typ string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.schemas[typ]
	if !ok {
		return "", false
	}
	return s.Template, true
}
