package sheets

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/Veraticus/contract-sentinel/internal/model"
	"github.com/Veraticus/contract-sentinel/internal/service"
)

// WarningSumMismatch is raised when the item totals disagree with the
// record's own aggregate row.
const WarningSumMismatch = "sum_mismatch"

// CrossCheck compares the sum of item totals with the last positive
// aggregate total. It returns nil when there is nothing to compare or the
// difference is within tolerance.
func CrossCheck(rec *model.ContractRecord, tolerance float64) *service.Warning {
	var expected decimal.Decimal
	found := false
	for i := len(rec.Aggregates) - 1; i >= 0; i-- {
		if rec.Aggregates[i].TotalSum > 0 {
			expected = decimal.NewFromFloat(rec.Aggregates[i].TotalSum)
			found = true
			break
		}
	}
	if !found {
		return nil
	}

	actual := decimal.Zero
	for _, item := range rec.Items {
		actual = actual.Add(decimal.NewFromFloat(item.TotalSum))
	}

	if actual.Sub(expected).Abs().LessThanOrEqual(decimal.NewFromFloat(tolerance)) {
		return nil
	}

	exp, _ := expected.Float64()
	act, _ := actual.Float64()
	return &service.Warning{
		Code:     WarningSumMismatch,
		Message:  fmt.Sprintf("items sum %s differs from stated total %s", actual.StringFixed(2), expected.StringFixed(2)),
		Expected: exp,
		Actual:   act,
	}
}
