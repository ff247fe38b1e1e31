package catalog

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// Entry is one (region, village) pair from the catalog.
type Entry struct {
	Region  string
	Village string
}

// Catalog is the fixed village -> region mapping. It is loaded once at
// startup and never mutated; reload is a deploy-time concern.
type Catalog struct {
	byVillage map[string]Entry // keyed by normalized village name
	entries   []Entry          // regions asc, villages asc within region
}

// New builds a catalog from a region -> villages mapping.
func New(regions map[string][]string) *Catalog {
	c := &Catalog{byVillage: make(map[string]Entry)}
	for region, villages := range regions {
		for _, village := range villages {
			e := Entry{Region: region, Village: village}
			c.byVillage[Normalize(village)] = e
			c.entries = append(c.entries, e)
		}
	}
	sort.Slice(c.entries, func(i, j int) bool {
		if c.entries[i].Region != c.entries[j].Region {
			return c.entries[i].Region < c.entries[j].Region
		}
		return c.entries[i].Village < c.entries[j].Village
	})
	return c
}

// Load reads a YAML catalog file of the form:
//
//	regions:
//	  North of 466: [Orange Blossom Gardens, Silver Lake]
//	  South of 44: [Fenney, DeLuna]
func Load(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog file: %w", err)
	}

	var doc struct {
		Regions map[string][]string `yaml:"regions"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}
	if len(doc.Regions) == 0 {
		return nil, fmt.Errorf("catalog %s defines no regions", path)
	}

	return New(doc.Regions), nil
}

// Normalize canonicalizes a village name for lookup: trimmed, lower-cased,
// inner whitespace collapsed.
func Normalize(village string) string {
	return strings.Join(strings.Fields(strings.ToLower(village)), " ")
}

// RegionOf resolves a village name to its region. Lookup is
// case-insensitive and whitespace-trimmed.
func (c *Catalog) RegionOf(village string) (string, bool) {
	e, ok := c.byVillage[Normalize(village)]
	if !ok {
		return "", false
	}
	return e.Region, true
}

// Lookup resolves a village name to its catalog entry, giving both the
// region and the catalog's canonical spelling of the village.
func (c *Catalog) Lookup(village string) (Entry, bool) {
	e, ok := c.byVillage[Normalize(village)]
	return e, ok
}

// AllVillages returns every (region, village) pair, regions alphabetically
// and villages alphabetically within each region. This drives the zero-fill
// shape of snapshots.
func (c *Catalog) AllVillages() []Entry {
	out := make([]Entry, len(c.entries))
	copy(out, c.entries)
	return out
}

// Len reports the number of villages in the catalog.
func (c *Catalog) Len() int {
	return len(c.entries)
}
