package methodology

import (
	"fmt"

	"github.com/Knetic/govaluate"
	"github.com/shopspring/decimal"
)

// FormulaInput carries the fixed set of identifiers a custom formula may
// reference. Anything outside this set is rejected at evaluation time.
type FormulaInput struct {
	Share      float64
	TotalArea  float64
	FloorArea  float64
	Residents  float64
	Attributes map[string]float64
}

func (in FormulaInput) parameters() map[string]any {
	params := map[string]any{
		"share":      in.Share,
		"total_area": in.TotalArea,
		"floor_area": in.FloorArea,
		"residents":  in.Residents,
	}
	for name, value := range in.Attributes {
		params[name] = value
	}
	return params
}

// EvaluateFormula evaluates a custom methodology expression against unit
// attributes. The expression language is govaluate's side-effect-free
// arithmetic subset; unknown identifiers, parse failures and non-numeric
// or negative results come back as errors, never panics. The result is a
// share quantity, not a currency amount, so the float round-trip does not
// touch the exact-sum invariant.
func EvaluateFormula(expression string, in FormulaInput) (qty decimal.Decimal, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("methodology: formula %q: %v", expression, r)
		}
	}()

	parsed, err := govaluate.NewEvaluableExpression(expression)
	if err != nil {
		return decimal.Zero, fmt.Errorf("methodology: parse formula %q: %w", expression, err)
	}
	result, err := parsed.Evaluate(in.parameters())
	if err != nil {
		return decimal.Zero, fmt.Errorf("methodology: evaluate formula %q: %w", expression, err)
	}
	value, ok := result.(float64)
	if !ok {
		return decimal.Zero, fmt.Errorf("methodology: formula %q returned non-numeric result %T", expression, result)
	}
	if value < 0 {
		return decimal.Zero, fmt.Errorf("methodology: formula %q produced negative quantity %v", expression, value)
	}
	return decimal.NewFromFloat(value), nil
}
