package app

import (
	"github.com/shopspring/decimal"
	"github.com/transfa/bank-service/internal/domain"
)

// Commission returns the fee charged to the sender for moving amount at the given
// rate, rounded half away from zero to the money scale.
func Commission(amount, rate decimal.Decimal) decimal.Decimal {
	if rate.IsZero() {
		return decimal.Zero
	}
	return amount.Mul(rate).Round(domain.MoneyScale)
}

// DebitAmount is what leaves the source account: the nominal amount plus commission.
func DebitAmount(amount, rate decimal.Decimal) decimal.Decimal {
	return amount.Add(Commission(amount, rate))
}
