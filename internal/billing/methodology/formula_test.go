package methodology

import (
	"testing"

	"github.com/shopspring/decimal"

	_ "github.com/domus-erp/domus-erp/testing"
)

func TestEvaluateFormulaArithmetic(t *testing.T) {
	in := FormulaInput{
		FloorArea:  50,
		Residents:  3,
		Attributes: map[string]float64{"chimney_count": 2},
	}
	qty, err := EvaluateFormula("floor_area * 0.5 + chimney_count", in)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !qty.Equal(decimal.NewFromInt(27)) {
		t.Fatalf("expected 27 got %s", qty)
	}
}

func TestEvaluateFormulaUnknownIdentifier(t *testing.T) {
	_, err := EvaluateFormula("elevator_count * 2", FormulaInput{})
	if err == nil {
		t.Fatal("expected error for unknown identifier")
	}
}

func TestEvaluateFormulaParseError(t *testing.T) {
	_, err := EvaluateFormula("floor_area *", FormulaInput{FloorArea: 10})
	if err == nil {
		t.Fatal("expected parse error")
	}
}

func TestEvaluateFormulaRejectsNegativeResult(t *testing.T) {
	_, err := EvaluateFormula("floor_area - 100", FormulaInput{FloorArea: 10})
	if err == nil {
		t.Fatal("expected error for negative quantity")
	}
}
