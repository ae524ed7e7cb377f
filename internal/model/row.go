package model

import (
	"encoding/json"
	"strings"
)

// FeatureRow is one input instance to the demand estimator. Rows are built
// through NewFeatureRow or a FeatureRowBuilder, which record that every schema
// field was supplied; a zero FeatureRow fails Validate.
type FeatureRow struct {
	ProductName     string  `json:"product_name"`
	ProductCategory string  `json:"product_category"`
	Promotion       int     `json:"promotion"`
	UnitPrice       float64 `json:"unit_price"`
	Comp1           float64 `json:"comp_1"`
	Comp2           float64 `json:"comp_2"`
	Comp3           float64 `json:"comp_3"`
	Holiday         int     `json:"holiday"`
	Weekend         int     `json:"weekend"`
	Month           int     `json:"month"`

	set fieldSet
}

// fieldSet is a bitmask over Fields indexes.
type fieldSet uint16

const allFields fieldSet = 1<<10 - 1

func fieldBit(name string) fieldSet {
	for i, f := range Fields {
		if f == name {
			return 1 << i
		}
	}
	return 0
}

// NewFeatureRow builds a complete row with every schema field set.
func NewFeatureRow(product, category string, promotion int, unitPrice, comp1, comp2, comp3 float64, holiday, weekend, month int) FeatureRow {
	return FeatureRow{
		ProductName:     product,
		ProductCategory: category,
		Promotion:       promotion,
		UnitPrice:       unitPrice,
		Comp1:           comp1,
		Comp2:           comp2,
		Comp3:           comp3,
		Holiday:         holiday,
		Weekend:         weekend,
		Month:           month,
		set:             allFields,
	}
}

// Validate returns a *ValidationError listing every schema field that was
// never set on the row.
func (r FeatureRow) Validate() error {
	if r.set == allFields {
		return nil
	}
	var missing []string
	for i, f := range Fields {
		if r.set&(1<<i) == 0 {
			missing = append(missing, f)
		}
	}
	return &ValidationError{
		Field:  missing[0],
		Reason: "missing required field(s): " + strings.Join(missing, ", "),
	}
}

// WithPrice returns a copy of the row with UnitPrice substituted. The copy
// counts unit_price as set.
func (r FeatureRow) WithPrice(price float64) FeatureRow {
	r.UnitPrice = price
	r.set |= fieldBit(FieldUnitPrice)
	return r
}

// Numeric returns the numeric fields in NumericFields order.
func (r FeatureRow) Numeric() []float64 {
	return []float64{
		float64(r.Promotion),
		r.UnitPrice,
		r.Comp1,
		r.Comp2,
		r.Comp3,
		float64(r.Holiday),
		float64(r.Weekend),
		float64(r.Month),
	}
}

// Categorical returns the categorical fields in CategoricalFields order.
func (r FeatureRow) Categorical() []string {
	return []string{r.ProductName, r.ProductCategory}
}

// FeatureRowBuilder assembles a FeatureRow one field at a time.
type FeatureRowBuilder struct {
	row FeatureRow
}

// NewFeatureRowBuilder starts an empty row.
func NewFeatureRowBuilder() *FeatureRowBuilder {
	return &FeatureRowBuilder{}
}

// From seeds the builder with every field of an existing row except the
// ones listed in omit. Used to derive a price-free search context.
func (b *FeatureRowBuilder) From(r FeatureRow, omit ...string) *FeatureRowBuilder {
	b.row = r
	for _, f := range omit {
		b.row.set &^= fieldBit(f)
	}
	return b
}

func (b *FeatureRowBuilder) mark(field string) *FeatureRowBuilder {
	b.row.set |= fieldBit(field)
	return b
}

func (b *FeatureRowBuilder) ProductName(v string) *FeatureRowBuilder {
	b.row.ProductName = v
	return b.mark(FieldProductName)
}

func (b *FeatureRowBuilder) ProductCategory(v string) *FeatureRowBuilder {
	b.row.ProductCategory = v
	return b.mark(FieldProductCategory)
}

func (b *FeatureRowBuilder) Promotion(v int) *FeatureRowBuilder {
	b.row.Promotion = v
	return b.mark(FieldPromotion)
}

func (b *FeatureRowBuilder) UnitPrice(v float64) *FeatureRowBuilder {
	b.row.UnitPrice = v
	return b.mark(FieldUnitPrice)
}

func (b *FeatureRowBuilder) Comp1(v float64) *FeatureRowBuilder {
	b.row.Comp1 = v
	return b.mark(FieldComp1)
}

func (b *FeatureRowBuilder) Comp2(v float64) *FeatureRowBuilder {
	b.row.Comp2 = v
	return b.mark(FieldComp2)
}

func (b *FeatureRowBuilder) Comp3(v float64) *FeatureRowBuilder {
	b.row.Comp3 = v
	return b.mark(FieldComp3)
}

func (b *FeatureRowBuilder) Holiday(v int) *FeatureRowBuilder {
	b.row.Holiday = v
	return b.mark(FieldHoliday)
}

func (b *FeatureRowBuilder) Weekend(v int) *FeatureRowBuilder {
	b.row.Weekend = v
	return b.mark(FieldWeekend)
}

func (b *FeatureRowBuilder) Month(v int) *FeatureRowBuilder {
	b.row.Month = v
	return b.mark(FieldMonth)
}

// Build returns the row, or a *ValidationError when any field is unset.
func (b *FeatureRowBuilder) Build() (FeatureRow, error) {
	if err := b.row.Validate(); err != nil {
		return FeatureRow{}, err
	}
	return b.row, nil
}

// Partial returns the row as built so far without checking completeness.
// The result fails Validate until the missing fields are filled, which is
// how a search context without a price is represented.
func (b *FeatureRowBuilder) Partial() FeatureRow {
	return b.row
}

// UnmarshalJSON decodes a row and marks the fields present in the object as
// set, so a decoded row validates exactly when the document was complete.
func (r *FeatureRow) UnmarshalJSON(data []byte) error {
	type plain FeatureRow
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	var keys map[string]json.RawMessage
	if err := json.Unmarshal(data, &keys); err != nil {
		return err
	}
	*r = FeatureRow(p)
	r.set = 0
	for k := range keys {
		r.set |= fieldBit(k)
	}
	return nil
}
