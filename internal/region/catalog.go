package region

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"github.com/banglabot/quest-service/internal/platform/envconfig"
)

//go:embed regions.yaml
var defaultCatalogYAML []byte

// Catalog is the immutable, validated set of regions.
type Catalog struct {
	order []string
	byID  map[string]Region
}

type catalogFile struct {
	Regions []Region `yaml:"regions" toml:"regions"`
}

// Default returns the built-in catalog.
func Default() (*Catalog, error) {
	return Parse(defaultCatalogYAML)
}

// LoadFile reads a catalog from a YAML or TOML file (chosen by extension), or the built-in
// catalog when path is empty.
func LoadFile(path string) (*Catalog, error) {
	if strings.TrimSpace(path) == "" {
		return Default()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read region catalog: %w", err)
	}
	if strings.EqualFold(filepath.Ext(path), ".toml") {
		return ParseTOML(data)
	}
	return Parse(data)
}

// ParseTOML decodes and validates a TOML catalog made of [[regions]] tables.
func ParseTOML(data []byte) (*Catalog, error) {
	var file catalogFile
	if err := toml.Unmarshal(data, &file); err != nil {
		return nil, configErr("", fmt.Errorf("%w: %v", ErrInvalidCatalog, err))
	}
	return New(file.Regions)
}

// Parse decodes and validates a YAML catalog.
func Parse(data []byte) (*Catalog, error) {
	var file catalogFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, configErr("", fmt.Errorf("%w: %v", ErrInvalidCatalog, err))
	}
	return New(file.Regions)
}

// New validates regions and builds a catalog preserving their order.
func New(regions []Region) (*Catalog, error) {
	if len(regions) == 0 {
		return nil, configErr("", fmt.Errorf("%w: no regions", ErrInvalidCatalog))
	}

	c := &Catalog{
		order: make([]string, 0, len(regions)),
		byID:  make(map[string]Region, len(regions)),
	}
	for _, r := range regions {
		r.ID = strings.TrimSpace(r.ID)
		r.UnlockRequirement = strings.TrimSpace(r.UnlockRequirement)
		if err := envconfig.Validate(r); err != nil {
			return nil, configErr(r.ID, fmt.Errorf("%w: %v", ErrInvalidCatalog, err))
		}
		if _, dup := c.byID[r.ID]; dup {
			return nil, configErr(r.ID, fmt.Errorf("%w: duplicate id", ErrInvalidCatalog))
		}
		c.order = append(c.order, r.ID)
		c.byID[r.ID] = r
	}

	for _, id := range c.order {
		req := c.byID[id].UnlockRequirement
		if req == "" {
			continue
		}
		if _, ok := c.byID[req]; !ok {
			return nil, configErr(id, fmt.Errorf("%w: requirement %q", ErrUnknownRegion, req))
		}
	}

	if err := c.checkCycles(); err != nil {
		return nil, err
	}
	return c, nil
}

// checkCycles walks each requirement chain. Every region has at most one prerequisite,
// so a chain that revisits a region is a cycle.
func (c *Catalog) checkCycles() error {
	for _, start := range c.order {
		seen := map[string]bool{start: true}
		for cur := c.byID[start].UnlockRequirement; cur != ""; cur = c.byID[cur].UnlockRequirement {
			if seen[cur] {
				return configErr(start, ErrDependencyCycle)
			}
			seen[cur] = true
		}
	}
	return nil
}

// Get returns a region by ID.
func (c *Catalog) Get(id string) (Region, error) {
	r, ok := c.byID[id]
	if !ok {
		return Region{}, configErr(id, ErrUnknownRegion)
	}
	return r, nil
}

// Len returns the number of regions.
func (c *Catalog) Len() int { return len(c.order) }

// Regions returns every region in map order.
func (c *Catalog) Regions() []Region {
	out := make([]Region, 0, len(c.order))
	for _, id := range c.order {
		out = append(out, c.byID[id])
	}
	return out
}

// IsUnlocked reports whether the region is selectable given the user's progress.
//
// Only the direct prerequisite is checked, not the whole chain. This is sufficient because a
// region can only be completed after it was unlocked, so completion of the prerequisite
// implies its own prerequisites were completed first. New rejects cycles, which keeps that
// induction well-founded. Progress written outside the quest flow can break the assumption.
func (c *Catalog) IsUnlocked(id string, progress ProgressView) (bool, error) {
	r, ok := c.byID[id]
	if !ok {
		return false, configErr(id, ErrUnknownRegion)
	}
	if r.UnlockRequirement == "" {
		return true, nil
	}
	if progress == nil {
		return false, nil
	}
	return progress.Completed(r.UnlockRequirement), nil
}

// Statuses builds the map screen view for every region.
func (c *Catalog) Statuses(progress ProgressView) []Status {
	out := make([]Status, 0, len(c.order))
	for _, id := range c.order {
		r := c.byID[id]
		unlocked, _ := c.IsUnlocked(id, progress)
		st := Status{Region: r, Unlocked: unlocked}
		if progress != nil {
			st.Complete = progress.Completed(id)
			st.Progress = progress.Fraction(id)
		}
		if !unlocked {
			st.LockedBy = c.byID[r.UnlockRequirement].Name
		}
		out = append(out, st)
	}
	return out
}
