package pricing

import (
	"context"
	"strings"

	"github.com/rotisserie/eris"
	"gonum.org/v1/gonum/floats"

	"github.com/sells-group/pricer/internal/estimate"
	"github.com/sells-group/pricer/internal/model"
)

// DefaultGridPoints is the number of candidate prices evaluated per search.
const DefaultGridPoints = 50

// NegativeDemandPolicy decides what happens to negative demand predictions.
type NegativeDemandPolicy string

const (
	// PolicyKeep passes predictions through unchanged.
	PolicyKeep NegativeDemandPolicy = "keep"
	// PolicyClamp floors predictions at zero.
	PolicyClamp NegativeDemandPolicy = "clamp"
)

// ParsePolicy parses a policy name. Empty means PolicyKeep.
func ParsePolicy(s string) (NegativeDemandPolicy, error) {
	switch NegativeDemandPolicy(strings.ToLower(strings.TrimSpace(s))) {
	case "", PolicyKeep:
		return PolicyKeep, nil
	case PolicyClamp:
		return PolicyClamp, nil
	default:
		return "", eris.Errorf("pricing: unknown negative demand policy %q", s)
	}
}

// Apply maps a raw prediction through the policy.
func (p NegativeDemandPolicy) Apply(demand float64) float64 {
	if p == PolicyClamp && demand < 0 {
		return 0
	}
	return demand
}

// SearchOptions configures a Searcher.
type SearchOptions struct {
	GridPoints int
	Policy     NegativeDemandPolicy
}

// Searcher finds the profit-maximizing price on an evenly spaced grid over
// a product's price band.
type Searcher struct {
	predictor estimate.Predictor
	resolver  BandResolver
	points    int
	policy    NegativeDemandPolicy
}

// NewSearcher builds a Searcher. A zero GridPoints means DefaultGridPoints;
// anything below two is rejected.
func NewSearcher(p estimate.Predictor, r BandResolver, opts SearchOptions) (*Searcher, error) {
	if opts.GridPoints == 0 {
		opts.GridPoints = DefaultGridPoints
	}
	if opts.GridPoints < 2 {
		return nil, eris.Errorf("pricing: grid points must be at least 2, got %d", opts.GridPoints)
	}
	if opts.Policy == "" {
		opts.Policy = PolicyKeep
	}
	return &Searcher{predictor: p, resolver: r, points: opts.GridPoints, policy: opts.Policy}, nil
}

// Policy returns the negative demand policy the searcher applies.
func (s *Searcher) Policy() NegativeDemandPolicy {
	return s.policy
}

// Search evaluates every grid price in the product's band with a single
// batch prediction, where each row is base with its unit price replaced.
// The optimum is the first grid point of maximal profit, so ties resolve to
// the lowest price. The optimum is rounded to two decimals; the curves are
// not. A band with Min == Max yields a degenerate grid of identical prices.
func (s *Searcher) Search(ctx context.Context, base model.FeatureRow, unitCost float64, product string) (*model.OptimizationResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, eris.Wrap(err, "pricing: search cancelled")
	}

	band := s.resolver.Resolve(product)
	prices := floats.Span(make([]float64, s.points), band.Min, band.Max)
	prices[len(prices)-1] = band.Max

	rows := make([]model.FeatureRow, len(prices))
	for i, p := range prices {
		rows[i] = base.WithPrice(p)
	}

	demand, err := s.predictor.Predict(rows)
	if err != nil {
		return nil, eris.Wrap(err, "pricing: predict grid")
	}
	if len(demand) != len(prices) {
		return nil, eris.Errorf("pricing: predictor returned %d values for %d prices", len(demand), len(prices))
	}

	profit := make([]float64, len(prices))
	for i := range demand {
		demand[i] = s.policy.Apply(demand[i])
		profit[i] = (prices[i] - unitCost) * demand[i]
	}

	best := floats.MaxIdx(profit)
	return &model.OptimizationResult{
		OptimalPrice:  Round2(prices[best]),
		OptimalDemand: Round2(demand[best]),
		MaxProfit:     Round2(profit[best]),
		PriceRange:    prices,
		DemandCurve:   demand,
		ProfitCurve:   profit,
		Band:          band,
	}, nil
}
