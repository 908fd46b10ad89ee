package schema

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"sigs.k8s.io/yaml"
)

// Registry holds the validated table configs, keyed by config name.
type Registry struct {
	mu     sync.RWMutex
	tables map[string]*TableConfig
}

func NewRegistry() *Registry {
	return &Registry{tables: make(map[string]*TableConfig)}
}

// ValidateFunc runs additional validation on a decoded config before it is
// registered. The engine supplies resolver-based reference checks here.
type ValidateFunc func(*TableConfig) error

// LoadDir reads every .yaml/.yml/.json file in dir, validates each config and
// replaces the registry contents atomically. Any invalid config aborts the
// whole load: misconfiguration fails at startup, never at request time.
func (r *Registry) LoadDir(dir string, validate ValidateFunc) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("table config dir: %w", err)
	}

	tables := make(map[string]*TableConfig)

	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(e.Name()))
		if ext != ".yaml" && ext != ".yml" && ext != ".json" {
			continue
		}
		path := filepath.Join(dir, e.Name())
		cfg, err := LoadFile(path, validate)
		if err != nil {
			return err
		}
		if _, dup := tables[cfg.Name]; dup {
			return fmt.Errorf("%s: duplicate table config %q", path, cfg.Name)
		}
		tables[cfg.Name] = cfg
	}

	r.mu.Lock()
	r.tables = tables
	r.mu.Unlock()

	return nil
}

// LoadFileInto decodes and validates a single config file and registers it.
func (r *Registry) LoadFileInto(path string, validate ValidateFunc) (*TableConfig, error) {
	cfg, err := LoadFile(path, validate)
	if err != nil {
		return nil, err
	}
	r.mu.Lock()
	r.tables[cfg.Name] = cfg
	r.mu.Unlock()
	return cfg, nil
}

// LoadFile decodes one config file and runs structural plus extra validation.
func LoadFile(path string, validate ValidateFunc) (*TableConfig, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read table config: %w", err)
	}
	var cfg TableConfig
	if err := yaml.UnmarshalStrict(raw, &cfg); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if validate != nil {
		if err := validate(&cfg); err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
	}
	return &cfg, nil
}

// Get returns the config registered under name, or nil.
func (r *Registry) Get(name string) *TableConfig {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.tables[name]
}

// Names returns the registered config names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.tables))
	for n := range r.tables {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
