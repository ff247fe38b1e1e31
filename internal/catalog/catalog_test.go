package catalog

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testCatalog() *Catalog {
	return New(map[string][]string{
		"North": {"Lakeview", "Oakwood"},
		"South": {"Brownwood"},
	})
}

func TestRegionOf(t *testing.T) {
	c := testCatalog()

	tests := []struct {
		name    string
		village string
		region  string
		ok      bool
	}{
		{"exact match", "Lakeview", "North", true},
		{"case insensitive", "lakeview", "North", true},
		{"trailing whitespace", "Lakeview  ", "North", true},
		{"mixed case and padding", "  BROWNWOOD ", "South", true},
		{"unknown village", "Nowhere", "", false},
		{"empty", "", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			region, ok := c.RegionOf(tt.village)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.region, region)
		})
	}
}

func TestLookupReturnsCanonicalSpelling(t *testing.T) {
	c := testCatalog()

	e, ok := c.Lookup("  lakeview ")
	require.True(t, ok)
	assert.Equal(t, "Lakeview", e.Village)
	assert.Equal(t, "North", e.Region)
}

func TestAllVillagesOrdering(t *testing.T) {
	c := New(map[string][]string{
		"South": {"Brownwood"},
		"North": {"Oakwood", "Lakeview"},
	})

	expected := []Entry{
		{Region: "North", Village: "Lakeview"},
		{Region: "North", Village: "Oakwood"},
		{Region: "South", Village: "Brownwood"},
	}
	assert.Equal(t, expected, c.AllVillages())
}

func TestAllVillagesCopyIsIndependent(t *testing.T) {
	c := testCatalog()

	got := c.AllVillages()
	got[0].Village = "mutated"

	assert.Equal(t, "Lakeview", c.AllVillages()[0].Village)
}

func TestNormalizeCollapsesWhitespace(t *testing.T) {
	assert.Equal(t, "orange blossom gardens", Normalize("  Orange   Blossom Gardens "))
	assert.Equal(t, "", Normalize("   "))
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "catalog.yaml")

	data := `regions:
  North:
    - Lakeview
    - Oakwood
  South:
    - Brownwood
`
	require.NoError(t, os.WriteFile(path, []byte(data), 0o600))

	c, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 3, c.Len())

	region, ok := c.RegionOf("brownwood")
	require.True(t, ok)
	assert.Equal(t, "South", region)
}

func TestLoadErrors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	path := filepath.Join(t.TempDir(), "empty.yaml")
	require.NoError(t, os.WriteFile(path, []byte("regions: {}\n"), 0o600))
	_, err = Load(path)
	assert.Error(t, err)
}
