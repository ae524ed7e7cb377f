package model

import (
	"encoding/json"
	"time"
)

// Observation is one historical row of the reference dataset.
type Observation struct {
	FeatureRow
	Qty float64 `json:"qty"`
}

// UnmarshalJSON decodes the row and the quantity. Without it the embedded
// row's decoder would be promoted and Qty dropped.
func (o *Observation) UnmarshalJSON(data []byte) error {
	if err := o.FeatureRow.UnmarshalJSON(data); err != nil {
		return err
	}
	var q struct {
		Qty float64 `json:"qty"`
	}
	if err := json.Unmarshal(data, &q); err != nil {
		return err
	}
	o.Qty = q.Qty
	return nil
}

// PriceBand is the realistic [Min, Max] unit price interval for a product.
// Fallback is set when the product had no observations and the band spans
// the whole dataset.
type PriceBand struct {
	Product  string  `json:"product"`
	Min      float64 `json:"min_price"`
	Max      float64 `json:"max_price"`
	Fallback bool    `json:"fallback"`
}

// OptimizationResult is the outcome of a price search. The optimum is rounded
// for presentation; the three curves are parallel and unrounded.
type OptimizationResult struct {
	OptimalPrice  float64   `json:"optimal_price"`
	OptimalDemand float64   `json:"optimal_demand"`
	MaxProfit     float64   `json:"max_profit"`
	PriceRange    []float64 `json:"price_range"`
	DemandCurve   []float64 `json:"demand_curve"`
	ProfitCurve   []float64 `json:"profit_curve"`
	Band          PriceBand `json:"band"`
}

// Scenario is a caller-supplied feature row plus the unit cost to price
// against.
type Scenario struct {
	Row      FeatureRow `json:"row"`
	UnitCost float64    `json:"unit_cost"`
}

// UserPrediction is the evaluation of the caller's own price.
type UserPrediction struct {
	Demand  float64 `json:"demand"`
	Revenue float64 `json:"revenue"`
	Profit  float64 `json:"profit"`
}

// OptimalPrediction is the best grid point.
type OptimalPrediction struct {
	OptimalPrice  float64 `json:"optimal_price"`
	OptimalDemand float64 `json:"optimal_demand"`
	MaxProfit     float64 `json:"max_profit"`
}

// PlotData carries the full-precision curve for charting.
type PlotData struct {
	Prices []float64 `json:"prices"`
	Demand []float64 `json:"demand"`
	Profit []float64 `json:"profit"`
}

// Response is the orchestrator's answer to a scenario.
type Response struct {
	UserPrediction    UserPrediction    `json:"user_prediction"`
	OptimalPrediction OptimalPrediction `json:"optimal_prediction"`
	PlotData          PlotData          `json:"plot_data"`
}

// Evaluation is a recorded scenario and its response.
type Evaluation struct {
	ID        string    `json:"id"`
	Scenario  Scenario  `json:"scenario"`
	Response  Response  `json:"response"`
	CreatedAt time.Time `json:"created_at"`
}
