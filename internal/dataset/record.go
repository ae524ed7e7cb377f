package dataset

import (
	"strconv"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/pricer/internal/model"
)

// columnIndex maps dataset column names to their position in a header row.
type columnIndex map[string]int

// newColumnIndex resolves every dataset column in header. Header names are
// matched case-insensitively after trimming.
func newColumnIndex(header []string) (columnIndex, error) {
	idx := make(columnIndex, len(header))
	for i, h := range header {
		idx[strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))] = i
	}
	var missing []string
	for _, c := range model.DatasetColumns {
		if _, ok := idx[c]; !ok {
			missing = append(missing, c)
		}
	}
	if len(missing) > 0 {
		return nil, eris.Errorf("dataset: header missing column(s): %s", strings.Join(missing, ", "))
	}
	return idx, nil
}

func (c columnIndex) get(record []string, col string) string {
	i := c[col]
	if i >= len(record) {
		return ""
	}
	return strings.TrimSpace(record[i])
}

// parseNumber treats empty and NA-style cells as zero.
func parseNumber(s string) (float64, error) {
	switch strings.ToLower(s) {
	case "", "na", "nan", "null", "none":
		return 0, nil
	}
	return strconv.ParseFloat(s, 64)
}

// parseRecord converts one data row into an observation. line is used for
// error messages only.
func (c columnIndex) parseRecord(record []string, line int) (model.Observation, error) {
	nums := make(map[string]float64, len(model.NumericFields)+1)
	for _, col := range append(append([]string{}, model.NumericFields...), model.FieldQty) {
		v, err := parseNumber(c.get(record, col))
		if err != nil {
			return model.Observation{}, eris.Wrapf(err, "dataset: line %d column %s", line, col)
		}
		nums[col] = v
	}
	return observation(
		c.get(record, model.FieldProductName),
		c.get(record, model.FieldProductCategory),
		nums,
	), nil
}

// observation assembles an observation from already-parsed values.
// Integer fields are truncated the way a float-to-int cast would, and empty
// categorical cells become "0", the same value a zero fill produces.
func observation(product, category string, nums map[string]float64) model.Observation {
	if product == "" {
		product = "0"
	}
	if category == "" {
		category = "0"
	}
	return model.Observation{
		FeatureRow: model.NewFeatureRow(
			product,
			category,
			int(nums[model.FieldPromotion]),
			nums[model.FieldUnitPrice],
			nums[model.FieldComp1],
			nums[model.FieldComp2],
			nums[model.FieldComp3],
			int(nums[model.FieldHoliday]),
			int(nums[model.FieldWeekend]),
			int(nums[model.FieldMonth]),
		),
		Qty: nums[model.FieldQty],
	}
}

// record renders an observation in DatasetColumns order.
func record(o model.Observation) []string {
	f := func(v float64) string { return strconv.FormatFloat(v, 'f', -1, 64) }
	return []string{
		o.ProductName,
		o.ProductCategory,
		strconv.Itoa(o.Promotion),
		f(o.UnitPrice),
		f(o.Comp1),
		f(o.Comp2),
		f(o.Comp3),
		strconv.Itoa(o.Holiday),
		strconv.Itoa(o.Weekend),
		strconv.Itoa(o.Month),
		f(o.Qty),
	}
}
