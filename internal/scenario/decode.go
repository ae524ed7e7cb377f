// Package scenario turns caller input into validated scenarios and answers
// them with a user-price evaluation plus an optimal price search.
package scenario

import (
	"math"
	"net/url"
	"strings"

	"github.com/spf13/cast"

	"github.com/sells-group/pricer/internal/model"
)

// Decode validates a loosely typed field map (a decoded JSON object or form)
// into a Scenario. Fields are checked in schema order and the first problem
// is returned as a *model.ValidationError naming the field.
func Decode(values map[string]any) (model.Scenario, error) {
	b := model.NewFeatureRowBuilder()
	var unitCost float64

	for _, spec := range model.ScenarioFields {
		raw, ok := values[spec.Name]
		if !ok || raw == nil {
			return model.Scenario{}, model.NewValidationError(spec.Name, "is required")
		}
		if s, isStr := raw.(string); isStr && strings.TrimSpace(s) == "" {
			return model.Scenario{}, model.NewValidationError(spec.Name, "is required")
		}

		switch spec.Kind {
		case model.KindString:
			s, err := cast.ToStringE(raw)
			if err != nil {
				return model.Scenario{}, model.NewValidationError(spec.Name, "must be a string")
			}
			setString(b, spec.Name, strings.TrimSpace(s))

		case model.KindInt:
			f, err := toFloat(raw)
			if err != nil {
				return model.Scenario{}, model.NewValidationError(spec.Name, "must be an integer")
			}
			if f != math.Trunc(f) {
				return model.Scenario{}, model.NewValidationError(spec.Name, "must be an integer")
			}
			if reason := spec.Check(f); reason != "" {
				return model.Scenario{}, model.NewValidationError(spec.Name, reason)
			}
			setInt(b, spec.Name, int(f))

		case model.KindFloat:
			f, err := toFloat(raw)
			if err != nil {
				return model.Scenario{}, model.NewValidationError(spec.Name, "must be a number")
			}
			if reason := spec.Check(f); reason != "" {
				return model.Scenario{}, model.NewValidationError(spec.Name, reason)
			}
			if spec.Name == model.FieldUnitCost {
				unitCost = f
				continue
			}
			setFloat(b, spec.Name, f)
		}
	}

	row, err := b.Build()
	if err != nil {
		return model.Scenario{}, err
	}
	return model.Scenario{Row: row, UnitCost: unitCost}, nil
}

// DecodeForm decodes a submitted form. Only the first value of each key is
// considered.
func DecodeForm(form url.Values) (model.Scenario, error) {
	values := make(map[string]any, len(form))
	for k := range form {
		values[k] = form.Get(k)
	}
	return Decode(values)
}

// Validate re-checks an already typed scenario against the same ranges
// Decode enforces.
func Validate(sc model.Scenario) error {
	if err := sc.Row.Validate(); err != nil {
		return err
	}
	r := sc.Row
	numeric := map[string]float64{
		model.FieldPromotion: float64(r.Promotion),
		model.FieldUnitCost:  sc.UnitCost,
		model.FieldUnitPrice: r.UnitPrice,
		model.FieldComp1:     r.Comp1,
		model.FieldComp2:     r.Comp2,
		model.FieldComp3:     r.Comp3,
		model.FieldHoliday:   float64(r.Holiday),
		model.FieldWeekend:   float64(r.Weekend),
		model.FieldMonth:     float64(r.Month),
	}
	for _, spec := range model.ScenarioFields {
		if spec.Kind == model.KindString {
			v := r.ProductName
			if spec.Name == model.FieldProductCategory {
				v = r.ProductCategory
			}
			if strings.TrimSpace(v) == "" {
				return model.NewValidationError(spec.Name, "is required")
			}
			continue
		}
		if reason := spec.Check(numeric[spec.Name]); reason != "" {
			return model.NewValidationError(spec.Name, reason)
		}
	}
	return nil
}

func toFloat(raw any) (float64, error) {
	if s, ok := raw.(string); ok {
		raw = strings.TrimSpace(s)
	}
	return cast.ToFloat64E(raw)
}

func setString(b *model.FeatureRowBuilder, field, v string) {
	switch field {
	case model.FieldProductName:
		b.ProductName(v)
	case model.FieldProductCategory:
		b.ProductCategory(v)
	}
}

func setInt(b *model.FeatureRowBuilder, field string, v int) {
	switch field {
	case model.FieldPromotion:
		b.Promotion(v)
	case model.FieldHoliday:
		b.Holiday(v)
	case model.FieldWeekend:
		b.Weekend(v)
	case model.FieldMonth:
		b.Month(v)
	}
}

func setFloat(b *model.FeatureRowBuilder, field string, v float64) {
	switch field {
	case model.FieldUnitPrice:
		b.UnitPrice(v)
	case model.FieldComp1:
		b.Comp1(v)
	case model.FieldComp2:
		b.Comp2(v)
	case model.FieldComp3:
		b.Comp3(v)
	}
}
