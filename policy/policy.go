/*
Package policy holds the immutable exchange rules applied to every
bridge request: the banned-sender set, the minimum and maximum
exchangeable amount, and the exchange fee ratio.

All amounts are NCG decimals. The rules are fixed at startup.
*/
package policy

import (
	"errors"
	"fmt"

	ethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"

	"github.com/moreal/NineChronicles.EthBridge/common"
)

var (
	ErrBelowMinimum = errors.New("amount is below the minimum exchangeable amount")
	ErrZeroAmount   = errors.New("amount is zero after truncation")
)

type ExchangePolicy struct {
	banned   map[ethcommon.Address]struct{}
	min, max decimal.Decimal
	feeRatio decimal.Decimal
}

func New(banned []ethcommon.Address, min, max, feeRatio decimal.Decimal) (*ExchangePolicy, error) {
	if min.IsNegative() {
		return nil, fmt.Errorf("minimum amount must not be negative, got %s", min)
	}
	if max.LessThan(min) {
		return nil, fmt.Errorf("maximum amount %s is below minimum %s", max, min)
	}
	if feeRatio.IsNegative() || feeRatio.GreaterThanOrEqual(decimal.NewFromInt(1)) {
		return nil, fmt.Errorf("fee ratio must be in [0, 1), got %s", feeRatio)
	}

	set := make(map[ethcommon.Address]struct{}, len(banned))
	for _, addr := range banned {
		set[addr] = struct{}{}
	}
	return &ExchangePolicy{banned: set, min: min, max: max, feeRatio: feeRatio}, nil
}

func (p *ExchangePolicy) IsBanned(addr ethcommon.Address) bool {
	_, ok := p.banned[addr]
	return ok
}

func (p *ExchangePolicy) Min() decimal.Decimal { return p.min }
func (p *ExchangePolicy) Max() decimal.Decimal { return p.max }

// Clamp bounds amount to the exchangeable range. Amounts that truncate
// to zero return ErrZeroAmount, amounts below the minimum return
// ErrBelowMinimum. Amounts above the maximum are cut to the maximum
// with the excess returned for refund.
func (p *ExchangePolicy) Clamp(amount decimal.Decimal) (effective, excess decimal.Decimal, err error) {
	amount = common.FloorNCG(amount)
	if amount.IsZero() {
		return decimal.Zero, decimal.Zero, ErrZeroAmount
	}
	if amount.LessThan(p.min) {
		return decimal.Zero, decimal.Zero, ErrBelowMinimum
	}
	if amount.GreaterThan(p.max) {
		return p.max, amount.Sub(p.max), nil
	}
	return amount, decimal.Zero, nil
}

// Fee computes the exchange fee on an effective amount, truncated to
// NCG precision.
func (p *ExchangePolicy) Fee(amount decimal.Decimal) decimal.Decimal {
	return common.FloorNCG(amount.Mul(p.feeRatio))
}
