package gasprice

import (
	"math/big"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTipPolicy(t *testing.T) {
	_, err := NewTipPolicy(decimal.RequireFromString("-0.5"))
	assert.Error(t, err)

	tip, err := NewTipPolicy(decimal.RequireFromString("1.5"))
	require.NoError(t, err)

	assert.Equal(t, big.NewInt(150), tip.Apply(big.NewInt(100)))
	// 101 * 1.5 = 151.5, rounded down
	assert.Equal(t, big.NewInt(151), tip.Apply(big.NewInt(101)))
	assert.Equal(t, big.NewInt(0), tip.Apply(big.NewInt(0)))
}

func TestLimitPolicy(t *testing.T) {
	_, err := NewLimitPolicy(nil)
	assert.Error(t, err)
	_, err = NewLimitPolicy(big.NewInt(-1))
	assert.Error(t, err)

	limit, err := NewLimitPolicy(big.NewInt(200))
	require.NoError(t, err)

	assert.Equal(t, big.NewInt(150), limit.Apply(big.NewInt(150)))
	assert.Equal(t, big.NewInt(200), limit.Apply(big.NewInt(200)))
	assert.Equal(t, big.NewInt(200), limit.Apply(big.NewInt(500)))
}

func TestLimitPolicyDoesNotAliasInput(t *testing.T) {
	limit, err := NewLimitPolicy(big.NewInt(200))
	require.NoError(t, err)

	price := big.NewInt(100)
	applied := limit.Apply(price)
	applied.SetInt64(999)
	assert.Equal(t, big.NewInt(100), price)
}

func TestCompositePolicyOrder(t *testing.T) {
	tip, err := NewTipPolicy(decimal.RequireFromString("2"))
	require.NoError(t, err)
	limit, err := NewLimitPolicy(big.NewInt(150))
	require.NoError(t, err)

	// tip then cap: 100 -> 200 -> 150
	assert.Equal(t, big.NewInt(150), NewCompositePolicy(tip, limit).Apply(big.NewInt(100)))
	// cap then tip: 100 -> 100 -> 200
	assert.Equal(t, big.NewInt(200), NewCompositePolicy(limit, tip).Apply(big.NewInt(100)))
	// empty composite is identity
	assert.Equal(t, big.NewInt(100), NewCompositePolicy().Apply(big.NewInt(100)))
}

func TestCompositePolicyProperty(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 300
	properties := gopter.NewProperties(parameters)

	properties.Property("tip then cap equals min(floor(p*r), cap)", prop.ForAll(
		func(price int64, ratioTenths int64, cap int64) bool {
			ratio := decimal.New(ratioTenths, -1)
			tip, err := NewTipPolicy(ratio)
			if err != nil {
				return false
			}
			limit, err := NewLimitPolicy(big.NewInt(cap))
			if err != nil {
				return false
			}
			got := NewCompositePolicy(tip, limit).Apply(big.NewInt(price))

			want := decimal.NewFromInt(price).Mul(ratio).Floor().BigInt()
			if want.Cmp(big.NewInt(cap)) > 0 {
				want = big.NewInt(cap)
			}
			return got.Cmp(want) == 0
		},
		gen.Int64Range(0, 1_000_000_000),
		gen.Int64Range(0, 50),
		gen.Int64Range(0, 1_000_000_000),
	))

	properties.TestingRun(t)
}
