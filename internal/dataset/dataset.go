// Package dataset loads the reference dataset of historical observations
// used to train the demand estimator and to derive price bands.
package dataset

import (
	"math"
	"sort"

	"github.com/rotisserie/eris"

	"github.com/sells-group/pricer/internal/model"
)

// Dataset is an immutable set of historical observations. It is safe for
// concurrent readers.
type Dataset struct {
	obs        []model.Observation
	categories []string
	products   map[string][]string
}

// New builds a Dataset from observations. The slice is copied. An empty set
// is reported as model.ErrDatasetUnavailable.
func New(obs []model.Observation) (*Dataset, error) {
	if len(obs) == 0 {
		return nil, eris.Wrap(model.ErrDatasetUnavailable, "dataset: no observations")
	}

	d := &Dataset{
		obs:      append([]model.Observation(nil), obs...),
		products: make(map[string][]string),
	}

	seen := make(map[string]bool)
	for _, o := range d.obs {
		cat := o.ProductCategory
		if _, ok := d.products[cat]; !ok {
			d.categories = append(d.categories, cat)
			d.products[cat] = nil
		}
		key := cat + "\x00" + o.ProductName
		if !seen[key] {
			seen[key] = true
			d.products[cat] = append(d.products[cat], o.ProductName)
		}
	}
	sort.Strings(d.categories)

	return d, nil
}

// Len returns the number of observations.
func (d *Dataset) Len() int {
	return len(d.obs)
}

// Observations returns a copy of the observations in load order.
func (d *Dataset) Observations() []model.Observation {
	return append([]model.Observation(nil), d.obs...)
}

// At returns the i-th observation.
func (d *Dataset) At(i int) model.Observation {
	return d.obs[i]
}

// Categories returns the sorted product categories.
func (d *Dataset) Categories() []string {
	return append([]string(nil), d.categories...)
}

// ProductsByCategory maps each category to its products in first-seen order.
func (d *Dataset) ProductsByCategory() map[string][]string {
	out := make(map[string][]string, len(d.products))
	for cat, names := range d.products {
		out[cat] = append([]string(nil), names...)
	}
	return out
}

// ProductCount returns the number of distinct products.
func (d *Dataset) ProductCount() int {
	seen := make(map[string]bool)
	for _, o := range d.obs {
		seen[o.ProductName] = true
	}
	return len(seen)
}

// PriceRange returns the min and max unit price over observations matching
// keep. ok is false when nothing matched.
func (d *Dataset) PriceRange(keep func(model.Observation) bool) (lo, hi float64, ok bool) {
	lo, hi = math.Inf(1), math.Inf(-1)
	for _, o := range d.obs {
		if keep != nil && !keep(o) {
			continue
		}
		ok = true
		lo = math.Min(lo, o.UnitPrice)
		hi = math.Max(hi, o.UnitPrice)
	}
	if !ok {
		return 0, 0, false
	}
	return lo, hi, true
}
