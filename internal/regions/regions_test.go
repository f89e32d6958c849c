package regions

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNamesStartWithGlobalOverview(t *testing.T) {
	t.Parallel()

	names := Default().Names()
	require.Equal(t, GlobalOverview, names[0])
	require.Equal(t, "Latin America & Caribbean", names[1])
	require.Len(t, names, len(builtin)+1)
}

func TestRegionFor(t *testing.T) {
	t.Parallel()

	c := Default()
	require.Equal(t, "Sub-Saharan Africa", c.RegionFor("Kenya"))
	require.Equal(t, "South Asia", c.RegionFor("Nepal"))
	// Malta appears twice; the first region wins.
	require.Equal(t, "Europe & Central Asia", c.RegionFor("Malta"))
	require.Equal(t, GlobalOverview, c.RegionFor("Atlantis"))
}

func TestPromptListsFirstTenCountries(t *testing.T) {
	t.Parallel()

	p := Default().Prompt("Sub-Saharan Africa", "")
	require.Contains(t, p, "Angola, Benin, Botswana, Burkina Faso, Burundi, Cabo Verde, Cameroon, "+
		"Central African Republic, Chad, Comoros\n")
	require.NotContains(t, p, "Congo")
	for _, header := range []string{"Current Drought Conditions:", "Food Security and Production:", "Water Resources:", "Food Prices:"} {
		require.Contains(t, p, header)
	}
	require.Less(t, strings.Index(p, "Current Drought Conditions:"), strings.Index(p, "Food Prices:"))
}

func TestPromptGlobalOverview(t *testing.T) {
	t.Parallel()

	p := Default().Prompt(GlobalOverview, "")
	require.Contains(t, p, "countries in this region: all countries worldwide")
}

func TestPromptCustomRequest(t *testing.T) {
	t.Parallel()

	p := Default().Prompt("South Asia", "  Focus on wheat prices.  ")
	require.Contains(t, p, "User's specific request: Focus on wheat prices.\n")
	require.Contains(t, p, "plain text without any headlines")
	require.NotContains(t, p, "Food Security and Production:")
	require.Contains(t, p, "Afghanistan, Bangladesh, Bhutan, India, Maldives, Nepal, Pakistan, Sri Lanka")
}

func TestPromptBlankCustomUsesSections(t *testing.T) {
	t.Parallel()

	p := Default().Prompt("South Asia", "   ")
	require.Contains(t, p, "Food Security and Production:")
}

func TestLoadFromYAML(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "regions.yaml")
	doc := `
regions:
  - name: Horn of Africa
    countries: [Ethiopia, Somalia, Kenya, Djibouti]
  - name: Sahel
    countries: [Mali, Niger, Chad]
`
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o600))

	c, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, []string{GlobalOverview, "Horn of Africa", "Sahel"}, c.Names())
	require.Equal(t, "Sahel", c.RegionFor("Chad"))
	require.Equal(t, []string{"Mali", "Niger", "Chad"}, c.Countries("Sahel"))
	require.Nil(t, c.Countries("South Asia"))
}

func TestLoadRejectsBadFiles(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	empty := filepath.Join(dir, "empty.yaml")
	require.NoError(t, os.WriteFile(empty, []byte("regions: []\n"), 0o600))
	_, err := Load(empty)
	require.ErrorIs(t, err, ErrEmptyCatalog)

	unnamed := filepath.Join(dir, "unnamed.yaml")
	require.NoError(t, os.WriteFile(unnamed, []byte("regions:\n  - countries: [Chad]\n"), 0o600))
	_, err = Load(unnamed)
	require.Error(t, err)

	_, err = Load(filepath.Join(dir, "missing.yaml"))
	require.Error(t, err)

	c, err := Load("")
	require.NoError(t, err)
	require.Equal(t, Default().Names(), c.Names())
}
