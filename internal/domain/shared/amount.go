package shared

import "github.com/shopspring/decimal"

// CreditScale is the number of fractional digits stored for credit amounts
// (NUMERIC(18,2)).
const CreditScale = 2

// FitsCreditScale reports whether v is stored without rounding. Trailing
// zeros beyond the scale are fine: 10.500 fits, 10.005 does not.
func FitsCreditScale(v decimal.Decimal) bool {
	return v.Equal(v.Truncate(CreditScale))
}
