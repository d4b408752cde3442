package ninetxmanager

import (
	ethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"

	"github.com/moreal/NineChronicles.EthBridge/bencodex"
	"github.com/moreal/NineChronicles.EthBridge/common"
)

// transferAsset3 builds the canonical plain value of a Chain-N NCG
// transfer action. The inner amount is scaled to minor units, so
// "1.23" NCG becomes the integer 123.
func transferAsset3(sender, recipient, minter ethcommon.Address, amount decimal.Decimal, memo string) ([]byte, error) {
	currency := bencodex.Dict{
		"decimalPlaces": []byte{common.NCGDecimalPlaces},
		"minters":       bencodex.List{minter.Bytes()},
		"ticker":        common.NCGTicker,
	}
	values := bencodex.Dict{
		"amount":    bencodex.List{currency, common.NCGToMinorUnits(amount)},
		"recipient": recipient.Bytes(),
		"sender":    sender.Bytes(),
	}
	if memo != "" {
		values["memo"] = memo
	}
	return bencodex.Encode(bencodex.Dict{
		"type_id": "transfer_asset3",
		"values":  values,
	})
}
