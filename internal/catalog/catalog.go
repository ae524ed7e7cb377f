// Package catalog describes the product categories a dataset is generated
// from and that menus are offered from when no dataset is loaded.
package catalog

import (
	_ "embed"
	"os"
	"sort"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

//go:embed default.yaml
var defaultYAML []byte

// Catalog is an ordered list of categories.
type Catalog struct {
	Categories []Category `yaml:"categories"`
}

// Category groups products that share a plausible price range.
type Category struct {
	Name     string  `yaml:"name"`
	PriceMin float64 `yaml:"price_min"`
	PriceMax float64 `yaml:"price_max"`
	// Sensitivity is an anchor for price elasticity. Informational only.
	Sensitivity float64  `yaml:"sensitivity,omitempty"`
	Products    []string `yaml:"products"`
}

// Default returns the built-in catalog.
func Default() *Catalog {
	c, err := Parse(defaultYAML)
	if err != nil {
		panic(err)
	}
	return c
}

// Load reads a catalog from a YAML file. An empty path yields Default().
func Load(path string) (*Catalog, error) {
	if path == "" {
		return Default(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "catalog: read %s", path)
	}
	return Parse(data)
}

// Parse decodes and validates a YAML catalog document.
func Parse(data []byte) (*Catalog, error) {
	var c Catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, eris.Wrap(err, "catalog: parse")
	}
	if err := c.validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

func (c *Catalog) validate() error {
	if len(c.Categories) == 0 {
		return eris.New("catalog: no categories")
	}
	seen := make(map[string]string)
	for _, cat := range c.Categories {
		if cat.Name == "" {
			return eris.New("catalog: category without a name")
		}
		if cat.PriceMin <= 0 || cat.PriceMax < cat.PriceMin {
			return eris.Errorf("catalog: category %q has invalid price range [%g, %g]", cat.Name, cat.PriceMin, cat.PriceMax)
		}
		if len(cat.Products) == 0 {
			return eris.Errorf("catalog: category %q has no products", cat.Name)
		}
		for _, p := range cat.Products {
			if other, ok := seen[p]; ok {
				return eris.Errorf("catalog: product %q listed in both %q and %q", p, other, cat.Name)
			}
			seen[p] = cat.Name
		}
	}
	return nil
}

// CategoryOf returns the category a product belongs to.
func (c *Catalog) CategoryOf(product string) (Category, bool) {
	for _, cat := range c.Categories {
		for _, p := range cat.Products {
			if p == product {
				return cat, true
			}
		}
	}
	return Category{}, false
}

// ProductsByCategory returns category name -> product names.
func (c *Catalog) ProductsByCategory() map[string][]string {
	out := make(map[string][]string, len(c.Categories))
	for _, cat := range c.Categories {
		out[cat.Name] = append([]string(nil), cat.Products...)
	}
	return out
}

// CategoryNames returns the sorted category names.
func (c *Catalog) CategoryNames() []string {
	names := make([]string, 0, len(c.Categories))
	for _, cat := range c.Categories {
		names = append(names, cat.Name)
	}
	sort.Strings(names)
	return names
}

// ProductCount returns the number of products across all categories.
func (c *Catalog) ProductCount() int {
	n := 0
	for _, cat := range c.Categories {
		n += len(cat.Products)
	}
	return n
}
