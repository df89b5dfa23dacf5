// Package catalog holds the read-only table of action commands the planner may request.
package catalog

import (
	_ "embed"
	"errors"
	"fmt"
	"maps"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed default_catalog.yaml
var defaultCatalog []byte

var (
	errEmptyCatalog  = errors.New("catalog has no commands")
	errEmptyName     = errors.New("command name is empty")
	errDuplicateName = errors.New("duplicate command name")
)

// Entry describes one action command.
type Entry struct {
	Name        string            `yaml:"name"`
	Category    string            `yaml:"category"`
	Description string            `yaml:"description"`
	Params      map[string]string `yaml:"params"`
}

type file struct {
	Commands []Entry `yaml:"commands"`
}

// Catalog is an immutable, ordered set of commands. Safe for concurrent reads.
type Catalog struct {
	entries []Entry
	index   map[string]int
}

// Default returns the catalog embedded in the binary.
func Default() (*Catalog, error) {
	return Parse(defaultCatalog)
}

// Load reads a catalog file. An empty path selects the embedded catalog.
func Load(path string) (*Catalog, error) {
	if path == "" {
		return Default()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog %s: %w", path, err)
	}
	c, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("catalog %s: %w", path, err)
	}
	return c, nil
}

// Parse decodes a YAML catalog document.
func Parse(data []byte) (*Catalog, error) {
	var f file
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("decode catalog: %w", err)
	}
	return New(f.Commands)
}

// New builds a catalog from entries, rejecting empty and duplicate names.
func New(entries []Entry) (*Catalog, error) {
	if len(entries) == 0 {
		return nil, errEmptyCatalog
	}
	c := &Catalog{
		entries: make([]Entry, 0, len(entries)),
		index:   make(map[string]int, len(entries)),
	}
	for i, e := range entries {
		e.Name = strings.TrimSpace(e.Name)
		if e.Name == "" {
			return nil, fmt.Errorf("entry %d: %w", i, errEmptyName)
		}
		if _, ok := c.index[e.Name]; ok {
			return nil, fmt.Errorf("%w: %s", errDuplicateName, e.Name)
		}
		e.Params = maps.Clone(e.Params)
		c.index[e.Name] = len(c.entries)
		c.entries = append(c.entries, e)
	}
	return c, nil
}

// Has reports whether name is a catalog command.
func (c *Catalog) Has(name string) bool {
	_, ok := c.index[name]
	return ok
}

// Get returns the entry for name. The returned Params map must not be modified.
func (c *Catalog) Get(name string) (Entry, bool) {
	i, ok := c.index[name]
	if !ok {
		return Entry{}, false
	}
	return c.entries[i], true
}

// Names returns command names in catalog order.
func (c *Catalog) Names() []string {
	names := make([]string, len(c.entries))
	for i, e := range c.entries {
		names[i] = e.Name
	}
	return names
}

// Entries returns a copy of all entries in catalog order.
func (c *Catalog) Entries() []Entry {
	out := make([]Entry, len(c.entries))
	copy(out, c.entries)
	return out
}

// Len returns the number of commands.
func (c *Catalog) Len() int {
	return len(c.entries)
}
