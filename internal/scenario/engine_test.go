package scenario

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/pricer/internal/catalog"
	"github.com/sells-group/pricer/internal/dataset"
	"github.com/sells-group/pricer/internal/metrics"
	"github.com/sells-group/pricer/internal/model"
	"github.com/sells-group/pricer/internal/pricing"
)

// linearPredictor predicts demand = 100 - 2*price and counts calls.
type linearPredictor struct {
	calls atomic.Int32
}

func (p *linearPredictor) Predict(rows []model.FeatureRow) ([]float64, error) {
	p.calls.Add(1)
	out := make([]float64, len(rows))
	for i, r := range rows {
		if err := r.Validate(); err != nil {
			return nil, err
		}
		out[i] = 100 - 2*r.UnitPrice
	}
	return out, nil
}

type fakeHistory struct {
	mu  sync.Mutex
	evs []*model.Evaluation
	err error
}

func (h *fakeHistory) RecordEvaluation(_ context.Context, ev *model.Evaluation) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.err != nil {
		return h.err
	}
	ev.ID = "ev-1"
	h.evs = append(h.evs, ev)
	return nil
}

type fakeRecorder struct {
	metrics.NoOp
	mu       sync.Mutex
	evals    []metrics.Evaluation
	failures []string
}

func (r *fakeRecorder) Evaluation(_ context.Context, e metrics.Evaluation) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.evals = append(r.evals, e)
}

func (r *fakeRecorder) Failure(_ context.Context, kind string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failures = append(r.failures, kind)
}

func testDataset(t *testing.T) *dataset.Dataset {
	t.Helper()
	var obs []model.Observation
	for _, p := range []float64{8, 10, 15} {
		obs = append(obs, model.Observation{
			FeatureRow: model.NewFeatureRow("Widget", "Tools", 0, p, p, p, p, 0, 0, 1),
			Qty:        100 - 2*p,
		})
	}
	obs = append(obs, model.Observation{
		FeatureRow: model.NewFeatureRow("Kettle", "Kitchen", 0, 40, 40, 40, 40, 0, 0, 1),
		Qty:        20,
	})
	ds, err := dataset.New(obs)
	require.NoError(t, err)
	return ds
}

func scenario(product string, price, cost float64) model.Scenario {
	return model.Scenario{
		Row:      model.NewFeatureRow(product, "Tools", 0, price, price, price, price, 0, 0, 6),
		UnitCost: cost,
	}
}

func newEngine(t *testing.T, opts Options) (*Engine, *linearPredictor) {
	t.Helper()
	p := &linearPredictor{}
	e, err := NewEngine(p, testDataset(t), opts)
	require.NoError(t, err)
	return e, p
}

func TestEngine_Handle(t *testing.T) {
	t.Parallel()

	e, p := newEngine(t, Options{})
	resp, err := e.Handle(context.Background(), scenario("Widget", 11.37, 5))
	require.NoError(t, err)

	// The caller's price is evaluated as given, not snapped to the grid.
	assert.Equal(t, 77.26, resp.UserPrediction.Demand)
	assert.Equal(t, 878.45, resp.UserPrediction.Revenue)
	assert.Equal(t, 492.15, resp.UserPrediction.Profit)

	require.Len(t, resp.PlotData.Prices, pricing.DefaultGridPoints)
	assert.Equal(t, 8.0, resp.PlotData.Prices[0])
	assert.Equal(t, 15.0, resp.PlotData.Prices[len(resp.PlotData.Prices)-1])
	assert.NotContains(t, resp.PlotData.Prices, 11.37)

	// profit = (p - 5)(100 - 2p) peaks at p = 27.5, beyond the band, so the
	// optimum is the band's upper edge.
	assert.Equal(t, 15.0, resp.OptimalPrediction.OptimalPrice)
	assert.Equal(t, 70.0, resp.OptimalPrediction.OptimalDemand)
	assert.Equal(t, 700.0, resp.OptimalPrediction.MaxProfit)

	assert.Equal(t, int32(2), p.calls.Load())
}

func TestEngine_InvalidScenarioNeverReachesModel(t *testing.T) {
	t.Parallel()

	rec := &fakeRecorder{}
	e, p := newEngine(t, Options{Metrics: rec})

	partial := model.Scenario{Row: model.NewFeatureRowBuilder().ProductName("Widget").Partial(), UnitCost: 1}
	_, err := e.Handle(context.Background(), partial)
	assert.True(t, model.IsValidation(err))

	bad := scenario("Widget", 10, 1)
	bad.Row.Holiday = 3
	_, err = e.Handle(context.Background(), bad)
	ve, ok := model.AsValidation(err)
	require.True(t, ok)
	assert.Equal(t, model.FieldHoliday, ve.Field)

	assert.Equal(t, int32(0), p.calls.Load())
	assert.Equal(t, []string{metrics.KindValidation, metrics.KindValidation}, rec.failures)
}

func TestEngine_UnknownProductUsesGlobalBand(t *testing.T) {
	t.Parallel()

	rec := &fakeRecorder{}
	e, _ := newEngine(t, Options{Metrics: rec})

	resp, err := e.Handle(context.Background(), scenario("Hovercraft", 20, 1))
	require.NoError(t, err)
	assert.Equal(t, 8.0, resp.PlotData.Prices[0])
	assert.Equal(t, 40.0, resp.PlotData.Prices[len(resp.PlotData.Prices)-1])

	require.Len(t, rec.evals, 1)
	assert.True(t, rec.evals[0].Fallback)
	assert.Equal(t, "Hovercraft", rec.evals[0].Product)

	band, err := e.Band("Hovercraft")
	require.NoError(t, err)
	assert.True(t, band.Fallback)
}

func TestEngine_RecordsHistory(t *testing.T) {
	t.Parallel()

	h := &fakeHistory{}
	e, _ := newEngine(t, Options{History: h})

	ev, err := e.Evaluate(context.Background(), scenario("Widget", 10, 2))
	require.NoError(t, err)
	assert.Equal(t, "ev-1", ev.ID)
	require.Len(t, h.evs, 1)
	assert.Equal(t, "Widget", h.evs[0].Scenario.Row.ProductName)
}

func TestEngine_HistoryFailureIsNotFatal(t *testing.T) {
	t.Parallel()

	e, _ := newEngine(t, Options{History: &fakeHistory{err: errors.New("db down")}})
	resp, err := e.Handle(context.Background(), scenario("Widget", 10, 2))
	require.NoError(t, err)
	assert.NotNil(t, resp)
}

func TestEngine_ClampPolicyAppliesToUserPoint(t *testing.T) {
	t.Parallel()

	e, _ := newEngine(t, Options{Search: pricing.SearchOptions{Policy: pricing.PolicyClamp}})
	resp, err := e.Handle(context.Background(), scenario("Widget", 60, 2))
	require.NoError(t, err)
	assert.Equal(t, 0.0, resp.UserPrediction.Demand)
	assert.Equal(t, 0.0, resp.UserPrediction.Profit)

	keep, _ := newEngine(t, Options{})
	resp, err = keep.Handle(context.Background(), scenario("Widget", 60, 2))
	require.NoError(t, err)
	assert.Equal(t, -20.0, resp.UserPrediction.Demand)
}

func TestEngine_Concurrent(t *testing.T) {
	t.Parallel()

	e, _ := newEngine(t, Options{})
	want, err := e.Handle(context.Background(), scenario("Widget", 12, 3))
	require.NoError(t, err)

	var wg sync.WaitGroup
	for range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			got, err := e.Handle(context.Background(), scenario("Widget", 12, 3))
			assert.NoError(t, err)
			assert.Equal(t, want, got)
		}()
	}
	wg.Wait()
}

func TestEngine_CatalogAndBands(t *testing.T) {
	t.Parallel()

	e, _ := newEngine(t, Options{})
	menu := e.Catalog()
	assert.Equal(t, []string{"Kitchen", "Tools"}, menu.Categories)
	assert.Equal(t, []string{"Widget"}, menu.ProductsByCategory["Tools"])

	menu.ProductsByCategory["Tools"][0] = "mutated"
	assert.Equal(t, []string{"Widget"}, e.Catalog().ProductsByCategory["Tools"])

	bands, err := e.Bands()
	require.NoError(t, err)
	require.Len(t, bands, 2)
	assert.Equal(t, model.PriceBand{Product: "Widget", Min: 8, Max: 15}, bands[1])
}

func TestUnavailable(t *testing.T) {
	t.Parallel()

	rec := &fakeRecorder{}
	cause := model.ErrDatasetUnavailable
	e := Unavailable(cause, catalog.Default(), rec)

	assert.False(t, e.Ready())
	assert.Equal(t, cause, e.Cause())

	_, err := e.Handle(context.Background(), scenario("Widget", 10, 1))
	assert.ErrorIs(t, err, model.ErrNotTrained)
	assert.Equal(t, []string{metrics.KindNotTrained}, rec.failures)

	_, err = e.Band("Widget")
	assert.ErrorIs(t, err, model.ErrNotTrained)
	_, err = e.Bands()
	assert.ErrorIs(t, err, model.ErrNotTrained)

	menu := e.Catalog()
	assert.Len(t, menu.Categories, 4)

	empty := Unavailable(cause, nil, nil)
	assert.Empty(t, empty.Catalog().Categories)
}

func TestNewEngine_Errors(t *testing.T) {
	t.Parallel()

	_, err := NewEngine(nil, testDataset(t), Options{})
	assert.Error(t, err)

	_, err = NewEngine(&linearPredictor{}, testDataset(t), Options{Search: pricing.SearchOptions{GridPoints: 1}})
	assert.Error(t, err)
}

func TestEngine_CancelledContext(t *testing.T) {
	t.Parallel()

	e, _ := newEngine(t, Options{})
	ctx, cancel := context.WithTimeout(context.Background(), time.Nanosecond)
	defer cancel()
	time.Sleep(time.Millisecond)

	_, err := e.Handle(ctx, scenario("Widget", 10, 1))
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
