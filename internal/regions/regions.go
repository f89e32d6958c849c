// Package regions maps World Bank regions to countries and builds the
// region-scoped system prompt for a bulletin.
package regions

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// GlobalOverview is the pseudo-region covering every country.
const GlobalOverview = "Global Overview"

// promptCountries is how many countries are named in a regional prompt.
const promptCountries = 10

// ErrEmptyCatalog is returned when a regions file defines no regions.
var ErrEmptyCatalog = errors.New("regions file defines no regions")

// Region is a named group of countries.
type Region struct {
	Name      string   `yaml:"name" json:"name"`
	Countries []string `yaml:"countries" json:"countries"`
}

// Catalog is an ordered, read-only set of regions.
type Catalog struct {
	regions []Region
	index   map[string]int
}

// Default returns the built-in World Bank catalog.
func Default() *Catalog {
	return newCatalog(builtin)
}

// Load reads a YAML regions file. An empty path yields Default.
//
//	regions:
//	  - name: South Asia
//	    countries: [India, Nepal]
func Load(path string) (*Catalog, error) {
	if path == "" {
		return Default(), nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read regions file: %w", err)
	}
	var doc struct {
		Regions []Region `yaml:"regions"`
	}
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("parse regions file: %w", err)
	}
	if len(doc.Regions) == 0 {
		return nil, ErrEmptyCatalog
	}
	for i, r := range doc.Regions {
		if strings.TrimSpace(r.Name) == "" {
			return nil, fmt.Errorf("regions file: entry %d has no name", i)
		}
	}
	return newCatalog(doc.Regions), nil
}

func newCatalog(regions []Region) *Catalog {
	c := &Catalog{
		regions: make([]Region, 0, len(regions)),
		index:   make(map[string]int, len(regions)),
	}
	for _, r := range regions {
		if _, dup := c.index[r.Name]; dup {
			continue
		}
		c.index[r.Name] = len(c.regions)
		c.regions = append(c.regions, Region{Name: r.Name, Countries: append([]string(nil), r.Countries...)})
	}
	return c
}

// Names lists GlobalOverview followed by every region in catalog order.
func (c *Catalog) Names() []string {
	names := make([]string, 0, len(c.regions)+1)
	names = append(names, GlobalOverview)
	for _, r := range c.regions {
		names = append(names, r.Name)
	}
	return names
}

// Countries returns the countries of a region, or nil when unknown.
func (c *Catalog) Countries(region string) []string {
	idx, ok := c.index[region]
	if !ok {
		return nil
	}
	return append([]string(nil), c.regions[idx].Countries...)
}

// RegionFor returns the first region listing country, or GlobalOverview.
func (c *Catalog) RegionFor(country string) string {
	for _, r := range c.regions {
		for _, name := range r.Countries {
			if name == country {
				return r.Name
			}
		}
	}
	return GlobalOverview
}

// Prompt builds the regional system prompt. A non-blank custom prompt asks for
// plain prose answering the user's request; otherwise the four-section
// analysis is requested.
func (c *Catalog) Prompt(region, custom string) string {
	countriesText := "all countries worldwide"
	if region != GlobalOverview {
		countries := c.Countries(region)
		if len(countries) > promptCountries {
			countries = countries[:promptCountries]
		}
		countriesText = strings.Join(countries, ", ")
	}

	var b strings.Builder
	fmt.Fprintf(&b, "You are analyzing information specifically for the %s region.\n\n", region)
	fmt.Fprintf(&b, "Focus ONLY on information relevant to countries in this region: %s\n\n", countriesText)
	if custom = strings.TrimSpace(custom); custom != "" {
		fmt.Fprintf(&b, "User's specific request: %s\n\n", custom)
		fmt.Fprintf(&b, "For the %s region, provide analysis based on the user's request while maintaining "+
			"focus on regional relevance. Provide the output as plain text without any headlines, "+
			"numbered sections, or formatting.", region)
		return b.String()
	}
	fmt.Fprintf(&b, "For the %s region, provide a comprehensive analysis using EXACTLY these four section "+
		"headers in this exact order:\n\n", region)
	b.WriteString("Current Drought Conditions: [Your analysis of current drought status, severity, affected " +
		"areas, and climate patterns in the region]\n\n")
	b.WriteString("Food Security and Production: [Your analysis of agricultural production status, food " +
		"availability, and food security challenges in the region]\n\n")
	b.WriteString("Water Resources: [Your analysis of water availability, quality, access, and water-related " +
		"challenges in the region]\n\n")
	b.WriteString("Food Prices: [Your analysis of current food price trends, inflation, and market conditions " +
		"affecting food affordability in the region]\n\n")
	fmt.Fprintf(&b, "IMPORTANT: You MUST use these exact section headers with colons. Do not add any additional "+
		"formatting, numbering, or other headers. Extract and synthesize information that is specifically "+
		"relevant to %s. If information is not clearly related to this region, exclude it from your analysis.", region)
	return b.String()
}
