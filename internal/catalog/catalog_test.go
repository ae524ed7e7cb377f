package catalog

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	t.Parallel()

	c := Default()
	require.Len(t, c.Categories, 4)
	assert.Equal(t, 80, c.ProductCount())
	assert.Equal(t, []string{
		"Home & Kitchen", "Laptops & Computers", "Smartphones & Tablets", "Wearables & Gadgets",
	}, c.CategoryNames())

	cat, ok := c.CategoryOf("Dell XPS 15")
	require.True(t, ok)
	assert.Equal(t, "Laptops & Computers", cat.Name)
	assert.Equal(t, 500.0, cat.PriceMin)
	assert.Equal(t, 2800.0, cat.PriceMax)

	_, ok = c.CategoryOf("Unknown Gizmo")
	assert.False(t, ok)
}

func TestProductsByCategory_Copies(t *testing.T) {
	t.Parallel()

	c := Default()
	m := c.ProductsByCategory()
	m["Home & Kitchen"][0] = "mutated"
	assert.Equal(t, "Dyson V15 Detect", c.Categories[3].Products[0])
}

func TestLoad_EmptyPathIsDefault(t *testing.T) {
	t.Parallel()

	c, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 80, c.ProductCount())
}

func TestLoad_File(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "catalog.yaml")
	doc := `
categories:
  - name: Tools
    price_min: 10
    price_max: 20
    products: [Widget, Sprocket]
`
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o644))

	c, err := Load(path)
	require.NoError(t, err)
	require.Len(t, c.Categories, 1)
	assert.Equal(t, []string{"Widget", "Sprocket"}, c.Categories[0].Products)
}

func TestLoad_MissingFile(t *testing.T) {
	t.Parallel()

	_, err := Load("/nonexistent/catalog.yaml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "catalog: read")
}

func TestParse_Invalid(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		doc  string
		want string
	}{
		{"empty", `categories: []`, "no categories"},
		{"bad range", "categories:\n  - name: A\n    price_min: 20\n    price_max: 10\n    products: [x]\n", "invalid price range"},
		{"no products", "categories:\n  - name: A\n    price_min: 1\n    price_max: 2\n", "has no products"},
		{"duplicate", "categories:\n  - name: A\n    price_min: 1\n    price_max: 2\n    products: [x]\n  - name: B\n    price_min: 1\n    price_max: 2\n    products: [x]\n", "listed in both"},
		{"not yaml", "categories: [", "catalog: parse"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := Parse([]byte(tt.doc))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}
