package payment

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"lmsledger/internal/money"
)

var ErrInvalidFeePercentage = errors.New("fee percentage must be between 0 and 100")

// FeeProvider supplies the platform fee applied to fee-bearing reasons.
type FeeProvider interface {
	FeesPercentage(ctx context.Context) (decimal.Decimal, error)
}

// StaticFees is a FeeProvider backed by configuration.
type StaticFees struct {
	pct decimal.Decimal
}

func NewStaticFees(pct decimal.Decimal) (*StaticFees, error) {
	if err := validateFeePercentage(pct); err != nil {
		return nil, err
	}
	return &StaticFees{pct: pct}, nil
}

func (f *StaticFees) FeesPercentage(context.Context) (decimal.Decimal, error) {
	return f.pct, nil
}

func validateFeePercentage(pct decimal.Decimal) error {
	if pct.IsNegative() || pct.GreaterThan(decimal.NewFromInt(100)) {
		return fmt.Errorf("%w: %s", ErrInvalidFeePercentage, pct)
	}
	return nil
}

// splitFee returns fee and net for amount; net = amount - fee.
func splitFee(amount money.Money, pct decimal.Decimal) (fee, net money.Money) {
	fee = amount.Percent(pct)
	return fee, amount.Sub(fee)
}
