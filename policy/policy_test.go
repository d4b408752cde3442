package policy

import (
	"testing"

	ethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/moreal/NineChronicles.EthBridge/common"
)

func TestPolicyValidation(t *testing.T) {
	min := decimal.RequireFromString("0.01")
	max := decimal.NewFromInt(100)
	ratio := decimal.RequireFromString("0.01")

	_, err := New(nil, decimal.NewFromInt(-1), max, ratio)
	assert.Error(t, err)

	_, err = New(nil, max, min, ratio)
	assert.Error(t, err)

	_, err = New(nil, min, max, decimal.NewFromInt(1))
	assert.Error(t, err)

	_, err = New(nil, min, max, decimal.RequireFromString("-0.1"))
	assert.Error(t, err)

	_, err = New(nil, min, max, ratio)
	assert.NoError(t, err)
}

func TestPolicyIsBanned(t *testing.T) {
	banned := common.RandEthAddress()
	p, err := New(nil, decimal.Zero, decimal.NewFromInt(100), decimal.Zero)
	require.NoError(t, err)
	assert.False(t, p.IsBanned(banned))

	p, err = New([]ethcommon.Address{banned}, decimal.Zero, decimal.NewFromInt(100), decimal.Zero)
	require.NoError(t, err)
	assert.True(t, p.IsBanned(banned))
	assert.False(t, p.IsBanned(common.RandEthAddress()))
}

func TestPolicyClamp(t *testing.T) {
	p, err := New(nil,
		decimal.RequireFromString("0.01"),
		decimal.NewFromInt(100),
		decimal.RequireFromString("0.01"))
	require.NoError(t, err)

	for _, tc := range []struct {
		name      string
		amount    string
		effective string
		excess    string
		err       error
	}{
		{name: "within range", amount: "10", effective: "10", excess: "0"},
		{name: "exactly min", amount: "0.01", effective: "0.01", excess: "0"},
		{name: "below min", amount: "0.009", err: ErrZeroAmount},
		{name: "zero", amount: "0", err: ErrZeroAmount},
		{name: "dust between zero and min", amount: "0.0099", err: ErrZeroAmount},
		{name: "exactly max", amount: "100", effective: "100", excess: "0"},
		{name: "over max", amount: "150", effective: "100", excess: "50"},
		{name: "over max with cents", amount: "100.25", effective: "100", excess: "0.25"},
		{name: "sub-cent dust truncated before compare", amount: "0.0199", effective: "0.01", excess: "0"},
	} {
		t.Run(tc.name, func(t *testing.T) {
			effective, excess, err := p.Clamp(decimal.RequireFromString(tc.amount))
			if tc.err != nil {
				assert.ErrorIs(t, err, tc.err)
				return
			}
			require.NoError(t, err)
			assert.True(t, decimal.RequireFromString(tc.effective).Equal(effective), "effective = %s", effective)
			assert.True(t, decimal.RequireFromString(tc.excess).Equal(excess), "excess = %s", excess)
		})
	}
}

func TestPolicyClampBelowMinimum(t *testing.T) {
	p, err := New(nil, decimal.NewFromInt(100), decimal.NewFromInt(5000), decimal.Zero)
	require.NoError(t, err)

	_, _, err = p.Clamp(decimal.RequireFromString("99.99"))
	assert.ErrorIs(t, err, ErrBelowMinimum)

	effective, _, err := p.Clamp(decimal.NewFromInt(100))
	require.NoError(t, err)
	assert.Equal(t, "100", effective.String())
}

func TestPolicyFee(t *testing.T) {
	p, err := New(nil, decimal.Zero, decimal.NewFromInt(1000),
		decimal.RequireFromString("0.01"))
	require.NoError(t, err)

	assert.Equal(t, "1", p.Fee(decimal.NewFromInt(100)).String())
	assert.Equal(t, "0.99", p.Fee(decimal.RequireFromString("99.99")).String())
	// 0.5 * 0.01 = 0.005, truncated down
	assert.Equal(t, "0", p.Fee(decimal.RequireFromString("0.5")).String())
}

func TestPolicyZeroFeeRatio(t *testing.T) {
	p, err := New(nil, decimal.Zero, decimal.NewFromInt(1000), decimal.Zero)
	require.NoError(t, err)
	assert.True(t, p.Fee(decimal.NewFromInt(100)).IsZero())
}

func TestPolicyClampConservation(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	p, err := New(nil,
		decimal.RequireFromString("0.01"),
		decimal.NewFromInt(100),
		decimal.RequireFromString("0.01"))
	require.NoError(t, err)

	properties.Property("effective + excess equals the truncated amount", prop.ForAll(
		func(cents int64) bool {
			amount := decimal.New(cents, -2)
			effective, excess, err := p.Clamp(amount)
			if err != nil {
				return amount.IsZero() || amount.LessThan(p.Min())
			}
			return effective.Add(excess).Equal(amount) &&
				effective.LessThanOrEqual(p.Max()) &&
				!excess.IsNegative()
		},
		gen.Int64Range(0, 100_000_00),
	))

	properties.Property("fee never exceeds the amount", prop.ForAll(
		func(cents int64) bool {
			amount := decimal.New(cents, -2)
			fee := p.Fee(amount)
			return !fee.IsNegative() && fee.LessThanOrEqual(amount)
		},
		gen.Int64Range(0, 100_000_00),
	))

	properties.TestingRun(t)
}
