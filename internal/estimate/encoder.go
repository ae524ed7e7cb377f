package estimate

import (
	"sort"

	"golang.org/x/text/unicode/norm"

	"github.com/sells-group/pricer/internal/model"
)

// Encoder turns a FeatureRow into the numeric vector the forest is trained
// on: one one-hot block per categorical field followed by the numeric fields
// in schema order. Categorical levels are learned at fit time; a value never
// seen during fitting encodes as an all-zero block.
type Encoder struct {
	levels [][]string
	index  []map[string]int
	offset []int
	width  int
}

// FitEncoder learns the categorical levels present in rows.
func FitEncoder(rows []model.FeatureRow) *Encoder {
	seen := make([]map[string]bool, len(model.CategoricalFields))
	for i := range seen {
		seen[i] = make(map[string]bool)
	}
	for _, r := range rows {
		for i, v := range r.Categorical() {
			seen[i][normalize(v)] = true
		}
	}

	e := &Encoder{
		levels: make([][]string, len(seen)),
		index:  make([]map[string]int, len(seen)),
		offset: make([]int, len(seen)),
	}
	for i, s := range seen {
		lv := make([]string, 0, len(s))
		for v := range s {
			lv = append(lv, v)
		}
		sort.Strings(lv)

		e.levels[i] = lv
		e.index[i] = make(map[string]int, len(lv))
		for j, v := range lv {
			e.index[i][v] = j
		}
		e.offset[i] = e.width
		e.width += len(lv)
	}
	e.width += len(model.NumericFields)
	return e
}

// Width is the length of every encoded vector.
func (e *Encoder) Width() int {
	return e.width
}

// Levels returns the learned levels of a categorical field, sorted.
func (e *Encoder) Levels(field string) []string {
	for i, f := range model.CategoricalFields {
		if f == field {
			return append([]string(nil), e.levels[i]...)
		}
	}
	return nil
}

// Known reports whether value was seen for the categorical field at fit time.
func (e *Encoder) Known(field, value string) bool {
	for i, f := range model.CategoricalFields {
		if f == field {
			_, ok := e.index[i][normalize(value)]
			return ok
		}
	}
	return false
}

// Transform encodes one row into a fresh vector.
func (e *Encoder) Transform(r model.FeatureRow) []float64 {
	x := make([]float64, e.width)
	e.transformInto(x, r)
	return x
}

func (e *Encoder) transformInto(x []float64, r model.FeatureRow) {
	for i, v := range r.Categorical() {
		if j, ok := e.index[i][normalize(v)]; ok {
			x[e.offset[i]+j] = 1
		}
	}
	copy(x[e.width-len(model.NumericFields):], r.Numeric())
}

// normalize folds equivalent unicode spellings of a label together.
func normalize(s string) string {
	return norm.NFC.String(s)
}
