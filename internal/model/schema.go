package model

import (
	"math"
	"strconv"
)

// Field names of the feature schema. The order of Fields is the column order
// every prediction input is built in; changing it invalidates trained models.
const (
	FieldProductName     = "product_name"
	FieldProductCategory = "product_category"
	FieldPromotion       = "promotion"
	FieldUnitPrice       = "unit_price"
	FieldComp1           = "comp_1"
	FieldComp2           = "comp_2"
	FieldComp3           = "comp_3"
	FieldHoliday         = "holiday"
	FieldWeekend         = "weekend"
	FieldMonth           = "month"

	// FieldQty is the observed quantity column of the reference dataset.
	FieldQty = "qty"
	// FieldUnitCost is the scenario-only cost input. It is not a feature.
	FieldUnitCost = "unit_cost"
)

// Fields is the canonical ordered feature schema.
var Fields = []string{
	FieldProductName,
	FieldProductCategory,
	FieldPromotion,
	FieldUnitPrice,
	FieldComp1,
	FieldComp2,
	FieldComp3,
	FieldHoliday,
	FieldWeekend,
	FieldMonth,
}

// CategoricalFields are the schema fields that go through one-hot encoding.
var CategoricalFields = []string{FieldProductName, FieldProductCategory}

// NumericFields are the schema fields passed to the regressor as-is, in order.
var NumericFields = []string{
	FieldPromotion,
	FieldUnitPrice,
	FieldComp1,
	FieldComp2,
	FieldComp3,
	FieldHoliday,
	FieldWeekend,
	FieldMonth,
}

// DatasetColumns is the column set of a reference dataset file.
var DatasetColumns = append(append([]string{}, Fields...), FieldQty)

// FieldKind describes how a field is coerced from caller input.
type FieldKind string

const (
	KindString FieldKind = "string"
	KindInt    FieldKind = "int"
	KindFloat  FieldKind = "float"
)

// FieldSpec describes a single input field and its accepted range.
type FieldSpec struct {
	Name string
	Kind FieldKind
	// Min and Max bound numeric values. MinExclusive makes Min a strict bound.
	Min          float64
	Max          float64
	MinExclusive bool
}

// Check reports why v falls outside the field's range, or "" when it is valid.
func (s FieldSpec) Check(v float64) string {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return "must be a finite number"
	}
	if s.MinExclusive && v <= s.Min {
		return "must be greater than " + formatBound(s.Min)
	}
	if !s.MinExclusive && v < s.Min {
		return "must be at least " + formatBound(s.Min)
	}
	if v > s.Max {
		return "must be at most " + formatBound(s.Max)
	}
	return ""
}

func formatBound(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// ScenarioFields lists every field a scenario request must carry, in the
// order they are validated.
var ScenarioFields = []FieldSpec{
	{Name: FieldProductName, Kind: KindString},
	{Name: FieldProductCategory, Kind: KindString},
	{Name: FieldPromotion, Kind: KindInt, Min: 0, Max: 1},
	{Name: FieldUnitCost, Kind: KindFloat, Min: 0, Max: math.MaxFloat64},
	{Name: FieldUnitPrice, Kind: KindFloat, Min: 0, Max: math.MaxFloat64, MinExclusive: true},
	{Name: FieldComp1, Kind: KindFloat, Min: 0, Max: math.MaxFloat64, MinExclusive: true},
	{Name: FieldComp2, Kind: KindFloat, Min: 0, Max: math.MaxFloat64, MinExclusive: true},
	{Name: FieldComp3, Kind: KindFloat, Min: 0, Max: math.MaxFloat64, MinExclusive: true},
	{Name: FieldHoliday, Kind: KindInt, Min: 0, Max: 1},
	{Name: FieldWeekend, Kind: KindInt, Min: 0, Max: 1},
	{Name: FieldMonth, Kind: KindInt, Min: 1, Max: 12},
}
