package dataset

import (
	"math"
	"math/rand/v2"

	"github.com/sells-group/pricer/internal/catalog"
	"github.com/sells-group/pricer/internal/model"
)

// GenerateOptions configures the synthetic dataset generator.
type GenerateOptions struct {
	Seed            uint64
	SamplesPerMonth int
}

// Generate synthesizes observations for every catalog product. Each product
// gets its own base price, price elasticity and base demand level; demand
// follows a yearly seasonal curve, reacts to competitor prices and gets
// uplifts for promotions, holidays and weekends, plus gaussian noise.
// Quantities are rounded and clipped at zero.
func Generate(cat *catalog.Catalog, opts GenerateOptions) []model.Observation {
	if opts.SamplesPerMonth <= 0 {
		opts.SamplesPerMonth = 12
	}
	r := rand.New(rand.NewPCG(opts.Seed, opts.Seed^0x9e3779b97f4a7c15))

	uniform := func(lo, hi float64) float64 { return lo + r.Float64()*(hi-lo) }
	normal := func(mean, std float64) float64 { return mean + std*r.NormFloat64() }
	flag := func(p float64) int {
		if r.Float64() < p {
			return 1
		}
		return 0
	}

	var obs []model.Observation
	for _, c := range cat.Categories {
		for _, product := range c.Products {
			basePrice := uniform(c.PriceMin*1.1, c.PriceMax*0.9)
			elasticity := uniform(0.8, 2.5)
			baseDemand := float64(1000 + r.IntN(1500))

			for month := 1; month <= 12; month++ {
				seasonal := 1.0 + 0.25*math.Sin(2*math.Pi*float64(month-1)/12.0)

				for range opts.SamplesPerMonth {
					price := clip(normal(basePrice, basePrice*0.15), c.PriceMin, c.PriceMax)
					promotion := flag(0.3)
					holiday := flag(0.12)
					weekend := flag(0.35)

					comp1 := price * uniform(0.85, 1.15)
					comp2 := price * uniform(0.85, 1.15)
					comp3 := price * uniform(0.85, 1.15)

					demand := baseDemand*seasonal -
						elasticity*price +
						(comp1+comp2+comp3)*0.03 +
						float64(promotion)*250 + float64(holiday)*150 + float64(weekend)*70 +
						normal(0, 50)

					obs = append(obs, model.Observation{
						FeatureRow: model.NewFeatureRow(
							product, c.Name, promotion, price, comp1, comp2, comp3,
							holiday, weekend, month,
						),
						Qty: math.Max(0, math.Round(demand)),
					})
				}
			}
		}
	}
	return obs
}

func clip(v, lo, hi float64) float64 {
	return math.Min(math.Max(v, lo), hi)
}
