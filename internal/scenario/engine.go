package scenario

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/pricer/internal/catalog"
	"github.com/sells-group/pricer/internal/dataset"
	"github.com/sells-group/pricer/internal/estimate"
	"github.com/sells-group/pricer/internal/metrics"
	"github.com/sells-group/pricer/internal/model"
	"github.com/sells-group/pricer/internal/pricing"
)

// History receives every successful evaluation.
type History interface {
	RecordEvaluation(ctx context.Context, ev *model.Evaluation) error
}

// Menu lists the categories and products a caller can choose from.
type Menu struct {
	Categories         []string            `json:"product_categories"`
	ProductsByCategory map[string][]string `json:"products_by_category"`
}

// Options configures an Engine.
type Options struct {
	Search  pricing.SearchOptions
	History History
	Metrics metrics.Recorder
}

// Engine is the inference context shared by every request: a fitted
// predictor, the price bands of the reference dataset and the searcher
// over them. It is built once and never mutated.
type Engine struct {
	predictor estimate.Predictor
	resolver  *pricing.Resolver
	searcher  *pricing.Searcher
	menu      Menu
	history   History
	metrics   metrics.Recorder
	cause     error
}

// NewEngine builds a ready engine over a trained predictor and its dataset.
func NewEngine(p estimate.Predictor, ds *dataset.Dataset, opts Options) (*Engine, error) {
	if p == nil || ds == nil {
		return nil, eris.New("scenario: engine needs a predictor and a dataset")
	}
	resolver := pricing.NewResolver(ds)
	searcher, err := pricing.NewSearcher(p, resolver, opts.Search)
	if err != nil {
		return nil, err
	}
	return &Engine{
		predictor: p,
		resolver:  resolver,
		searcher:  searcher,
		menu:      Menu{Categories: ds.Categories(), ProductsByCategory: ds.ProductsByCategory()},
		history:   opts.History,
		metrics:   recorderOrNoOp(opts.Metrics),
	}, nil
}

// Unavailable builds an engine that refuses every evaluation with
// model.ErrNotTrained. Menus come from cat when it is non-nil.
func Unavailable(cause error, cat *catalog.Catalog, rec metrics.Recorder) *Engine {
	e := &Engine{cause: cause, metrics: recorderOrNoOp(rec)}
	if cat != nil {
		e.menu = Menu{Categories: cat.CategoryNames(), ProductsByCategory: cat.ProductsByCategory()}
	}
	return e
}

func recorderOrNoOp(r metrics.Recorder) metrics.Recorder {
	if r == nil {
		return metrics.NoOp{}
	}
	return r
}

// Ready reports whether the engine can evaluate scenarios.
func (e *Engine) Ready() bool {
	return e.cause == nil
}

// Cause is the reason an unavailable engine is not ready.
func (e *Engine) Cause() error {
	return e.cause
}

// Catalog returns the selection menu.
func (e *Engine) Catalog() Menu {
	out := Menu{
		Categories:         append([]string(nil), e.menu.Categories...),
		ProductsByCategory: make(map[string][]string, len(e.menu.ProductsByCategory)),
	}
	for k, v := range e.menu.ProductsByCategory {
		out.ProductsByCategory[k] = append([]string(nil), v...)
	}
	return out
}

// Band returns the price band a search for product would use.
func (e *Engine) Band(product string) (model.PriceBand, error) {
	if !e.Ready() {
		return model.PriceBand{}, model.ErrNotTrained
	}
	return e.resolver.Resolve(product), nil
}

// Bands returns the band of every product in the dataset.
func (e *Engine) Bands() ([]model.PriceBand, error) {
	if !e.Ready() {
		return nil, model.ErrNotTrained
	}
	return e.resolver.Bands(), nil
}

// Handle evaluates the scenario at the caller's own price, then searches the
// product's price band for the optimum under the same context. The caller's
// price is evaluated exactly as given.
func (e *Engine) Handle(ctx context.Context, sc model.Scenario) (*model.Response, error) {
	ev, err := e.Evaluate(ctx, sc)
	if err != nil {
		return nil, err
	}
	return &ev.Response, nil
}

// Evaluate is Handle returning the full recorded evaluation.
func (e *Engine) Evaluate(ctx context.Context, sc model.Scenario) (*model.Evaluation, error) {
	if !e.Ready() {
		e.metrics.Failure(ctx, metrics.KindNotTrained)
		return nil, model.ErrNotTrained
	}
	if err := Validate(sc); err != nil {
		e.metrics.Failure(ctx, metrics.KindValidation)
		return nil, err
	}

	start := time.Now()
	resp, band, err := e.evaluate(ctx, sc)
	if err != nil {
		kind := metrics.KindInternal
		if model.IsValidation(err) {
			kind = metrics.KindValidation
		}
		e.metrics.Failure(ctx, kind)
		return nil, err
	}
	elapsed := time.Since(start)

	e.metrics.Evaluation(ctx, metrics.Evaluation{
		Product:  sc.Row.ProductName,
		Fallback: band.Fallback,
		Duration: elapsed,
		Uplift:   resp.OptimalPrediction.MaxProfit - resp.UserPrediction.Profit,
	})
	zap.L().Debug("scenario evaluated",
		zap.String("product", sc.Row.ProductName),
		zap.Float64("unit_price", sc.Row.UnitPrice),
		zap.Float64("optimal_price", resp.OptimalPrediction.OptimalPrice),
		zap.Bool("fallback_band", band.Fallback),
		zap.Duration("elapsed", elapsed),
	)

	ev := &model.Evaluation{Scenario: sc, Response: *resp}
	if e.history != nil {
		if err := e.history.RecordEvaluation(ctx, ev); err != nil {
			zap.L().Warn("record evaluation failed", zap.Error(err))
		}
	}
	return ev, nil
}

func (e *Engine) evaluate(ctx context.Context, sc model.Scenario) (*model.Response, model.PriceBand, error) {
	row := sc.Row
	pred, err := e.predictor.Predict([]model.FeatureRow{row})
	if err != nil {
		return nil, model.PriceBand{}, eris.Wrap(err, "scenario: predict user price")
	}
	if len(pred) != 1 {
		return nil, model.PriceBand{}, eris.Errorf("scenario: predictor returned %d values for 1 row", len(pred))
	}
	demand := e.searcher.Policy().Apply(pred[0])
	revenue := row.UnitPrice * demand
	profit := (row.UnitPrice - sc.UnitCost) * demand

	base := model.NewFeatureRowBuilder().From(row, model.FieldUnitPrice).Partial()
	res, err := e.searcher.Search(ctx, base, sc.UnitCost, row.ProductName)
	if err != nil {
		return nil, model.PriceBand{}, eris.Wrap(err, "scenario: search")
	}

	return &model.Response{
		UserPrediction: model.UserPrediction{
			Demand:  pricing.Round2(demand),
			Revenue: pricing.Round2(revenue),
			Profit:  pricing.Round2(profit),
		},
		OptimalPrediction: model.OptimalPrediction{
			OptimalPrice:  res.OptimalPrice,
			OptimalDemand: res.OptimalDemand,
			MaxProfit:     res.MaxProfit,
		},
		PlotData: model.PlotData{
			Prices: res.PriceRange,
			Demand: res.DemandCurve,
			Profit: res.ProfitCurve,
		},
	}, res.Band, nil
}
