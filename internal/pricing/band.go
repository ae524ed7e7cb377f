// Package pricing resolves realistic price bands and searches them for the
// profit-maximizing unit price.
package pricing

import (
	"sort"

	"github.com/sells-group/pricer/internal/dataset"
	"github.com/sells-group/pricer/internal/model"
)

// BandResolver returns the price band to search for a product.
type BandResolver interface {
	Resolve(product string) model.PriceBand
}

// Resolver derives price bands from a reference dataset. Bands are computed
// once at construction; the dataset is immutable so they never go stale.
type Resolver struct {
	bands  map[string]model.PriceBand
	global model.PriceBand
}

// NewResolver computes the per-product and global unit price ranges.
func NewResolver(ds *dataset.Dataset) *Resolver {
	r := &Resolver{bands: make(map[string]model.PriceBand)}

	lo, hi, _ := ds.PriceRange(nil)
	r.global = model.PriceBand{Min: lo, Max: hi, Fallback: true}

	for i := range ds.Len() {
		o := ds.At(i)
		b, ok := r.bands[o.ProductName]
		if !ok {
			r.bands[o.ProductName] = model.PriceBand{Product: o.ProductName, Min: o.UnitPrice, Max: o.UnitPrice}
			continue
		}
		b.Min = min(b.Min, o.UnitPrice)
		b.Max = max(b.Max, o.UnitPrice)
		r.bands[o.ProductName] = b
	}
	return r
}

// Resolve returns the product's observed price band, or the dataset-wide
// band marked Fallback when the product has no observations. It never fails.
func (r *Resolver) Resolve(product string) model.PriceBand {
	if b, ok := r.bands[product]; ok {
		return b
	}
	b := r.global
	b.Product = product
	return b
}

// Global returns the dataset-wide band.
func (r *Resolver) Global() model.PriceBand {
	return r.global
}

// Bands returns every product band sorted by product name.
func (r *Resolver) Bands() []model.PriceBand {
	out := make([]model.PriceBand, 0, len(r.bands))
	for _, b := range r.bands {
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Product < out[j].Product })
	return out
}
