/*
Package gasprice shapes the gas price used for Chain-E transactions.

Policies are small pure transformations over a suggested price and are
composed left to right, so a tip multiplier followed by a hard cap
yields min(floor(price * ratio), cap).
*/
package gasprice

import (
	"fmt"
	"math/big"

	"github.com/shopspring/decimal"
)

type Policy interface {
	Apply(price *big.Int) *big.Int
}

// TipPolicy scales the suggested price by a fixed ratio, rounding
// down. A ratio of 1.5 adds a 50% tip.
type TipPolicy struct {
	ratio decimal.Decimal
}

func NewTipPolicy(ratio decimal.Decimal) (*TipPolicy, error) {
	if ratio.IsNegative() {
		return nil, fmt.Errorf("tip ratio must not be negative, got %s", ratio)
	}
	return &TipPolicy{ratio: ratio}, nil
}

func (p *TipPolicy) Apply(price *big.Int) *big.Int {
	return decimal.NewFromBigInt(price, 0).Mul(p.ratio).Floor().BigInt()
}

// LimitPolicy caps the price at a hard maximum.
type LimitPolicy struct {
	cap *big.Int
}

func NewLimitPolicy(cap *big.Int) (*LimitPolicy, error) {
	if cap == nil || cap.Sign() < 0 {
		return nil, fmt.Errorf("price cap must not be negative, got %v", cap)
	}
	return &LimitPolicy{cap: new(big.Int).Set(cap)}, nil
}

func (p *LimitPolicy) Apply(price *big.Int) *big.Int {
	if price.Cmp(p.cap) > 0 {
		return new(big.Int).Set(p.cap)
	}
	return new(big.Int).Set(price)
}

type CompositePolicy struct {
	policies []Policy
}

func NewCompositePolicy(policies ...Policy) *CompositePolicy {
	return &CompositePolicy{policies: policies}
}

func (p *CompositePolicy) Apply(price *big.Int) *big.Int {
	applied := new(big.Int).Set(price)
	for _, policy := range p.policies {
		applied = policy.Apply(applied)
	}
	return applied
}
