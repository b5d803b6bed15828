package features

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// ErrNotFound is returned when a feature id is not registered.
var ErrNotFound = errors.New("feature not found")

// Catalog is an immutable set of feature descriptors keyed by id.
type Catalog struct {
	byID map[string]Descriptor
	ids  []string
}

// NewCatalog validates and freezes the given descriptors.
func NewCatalog(descs ...Descriptor) (*Catalog, error) {
	c := &Catalog{byID: make(map[string]Descriptor, len(descs))}
	for _, d := range descs {
		d.ID = strings.TrimSpace(d.ID)
		if err := validate(d); err != nil {
			return nil, err
		}
		if _, dup := c.byID[d.ID]; dup {
			return nil, fmt.Errorf("feature %q registered twice", d.ID)
		}
		c.byID[d.ID] = d.clone()
		c.ids = append(c.ids, d.ID)
	}
	sort.Strings(c.ids)
	return c, nil
}

func validate(d Descriptor) error {
	if d.ID == "" {
		return errors.New("feature id required")
	}
	switch d.Tier {
	case Public, Authenticated, Premium:
		if d.Demo != nil {
			return fmt.Errorf("feature %q: demo limits set on %s tier", d.ID, d.Tier)
		}
	case Demo:
		if d.Demo == nil {
			return nil
		}
		if d.Demo.MaxGenerations < 0 {
			return fmt.Errorf("feature %q: max_generations must be >= 0", d.ID)
		}
		if v := d.Demo.MaxDurationSeconds; v != nil && *v <= 0 {
			return fmt.Errorf("feature %q: max_duration_seconds must be > 0", d.ID)
		}
		if v := d.Demo.MaxResolution; v != nil && *v <= 0 {
			return fmt.Errorf("feature %q: max_resolution must be > 0", d.ID)
		}
	default:
		return fmt.Errorf("feature %q: unknown access tier %d", d.ID, int(d.Tier))
	}
	return nil
}

// Lookup returns the descriptor for id.
func (c *Catalog) Lookup(id string) (Descriptor, error) {
	if c != nil {
		if d, ok := c.byID[id]; ok {
			return d.clone(), nil
		}
	}
	return Descriptor{}, fmt.Errorf("%w: %q", ErrNotFound, id)
}

// All lists every descriptor ordered by id.
func (c *Catalog) All() []Descriptor {
	if c == nil {
		return nil
	}
	out := make([]Descriptor, 0, len(c.ids))
	for _, id := range c.ids {
		out = append(out, c.byID[id].clone())
	}
	return out
}

type catalogFile struct {
	Features []Descriptor `yaml:"features"`
}

// LoadFile reads a YAML catalog of the form
//
//	features:
//	  - id: brandAnalysis
//	    access_tier: demo
//	    demo_limits: {max_generations: 3, watermark_required: true}
func LoadFile(path string) (*Catalog, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}
	return Parse(b)
}

// Parse builds a catalog from YAML bytes.
func Parse(b []byte) (*Catalog, error) {
	var f catalogFile
	if err := yaml.Unmarshal(b, &f); err != nil {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}
	if len(f.Features) == 0 {
		return nil, errors.New("catalog has no features")
	}
	return NewCatalog(f.Features...)
}
