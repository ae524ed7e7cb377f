package model

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFieldsOrder(t *testing.T) {
	t.Parallel()

	assert.Equal(t, []string{
		"product_name", "product_category", "promotion", "unit_price",
		"comp_1", "comp_2", "comp_3", "holiday", "weekend", "month",
	}, Fields)
	assert.Len(t, CategoricalFields, 2)
	assert.Len(t, NumericFields, 8)
	assert.Equal(t, len(Fields), len(CategoricalFields)+len(NumericFields))
	assert.Equal(t, "qty", DatasetColumns[len(DatasetColumns)-1])
}

func TestScenarioFields_CoverSchema(t *testing.T) {
	t.Parallel()

	names := make(map[string]bool)
	for _, s := range ScenarioFields {
		names[s.Name] = true
	}
	for _, f := range Fields {
		assert.True(t, names[f], "scenario fields should include %s", f)
	}
	assert.True(t, names[FieldUnitCost])
	assert.Len(t, ScenarioFields, len(Fields)+1)
}

func TestFieldSpec_Check(t *testing.T) {
	t.Parallel()

	flag := FieldSpec{Name: "promotion", Kind: KindInt, Min: 0, Max: 1}
	price := FieldSpec{Name: "unit_price", Kind: KindFloat, Min: 0, Max: math.MaxFloat64, MinExclusive: true}
	month := FieldSpec{Name: "month", Kind: KindInt, Min: 1, Max: 12}

	tests := []struct {
		name string
		spec FieldSpec
		v    float64
		want string
	}{
		{"flag zero", flag, 0, ""},
		{"flag one", flag, 1, ""},
		{"flag two", flag, 2, "must be at most 1"},
		{"flag negative", flag, -1, "must be at least 0"},
		{"price positive", price, 0.01, ""},
		{"price zero", price, 0, "must be greater than 0"},
		{"price NaN", price, math.NaN(), "must be a finite number"},
		{"price Inf", price, math.Inf(1), "must be a finite number"},
		{"month low", month, 0, "must be at least 1"},
		{"month high", month, 13, "must be at most 12"},
		{"month ok", month, 7, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, tt.spec.Check(tt.v))
		})
	}
}
