package common

import (
	"math/big"

	"github.com/shopspring/decimal"
)

// NCGDecimalPlaces is the on-chain precision of the native asset. Amounts
// sent on Chain-N must be a whole multiple of 0.01 NCG.
const NCGDecimalPlaces = 2

// WNCGDecimalPlaces is the ERC-20 precision of the wrapped token.
const WNCGDecimalPlaces = 18

// NCGTicker is the currency ticker carried by transfer actions.
const NCGTicker = "NCG"

// FloorNCG rounds a non-negative amount DOWN to the native asset's two
// decimal places.
func FloorNCG(d decimal.Decimal) decimal.Decimal {
	return d.Truncate(NCGDecimalPlaces)
}

// NCGToBaseUnits scales an NCG amount to the wrapped token's 18-decimal
// base units, flooring to two decimal places first.
func NCGToBaseUnits(d decimal.Decimal) *big.Int {
	return FloorNCG(d).Shift(WNCGDecimalPlaces).BigInt()
}

// BaseUnitsToNCG scales wrapped-token base units down to an NCG amount,
// rounding DOWN to two decimal places. Sub-0.01 remainders are dropped.
func BaseUnitsToNCG(x *big.Int) decimal.Decimal {
	return FloorNCG(decimal.NewFromBigInt(x, -WNCGDecimalPlaces))
}

// NCGToMinorUnits returns the integer carried inside a transfer action's
// fungible-asset value, i.e. the amount scaled by 10^2.
func NCGToMinorUnits(d decimal.Decimal) *big.Int {
	return FloorNCG(d).Shift(NCGDecimalPlaces).BigInt()
}
