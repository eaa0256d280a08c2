package crossborder

import (
	"math/big"

	"github.com/shopspring/decimal"
)

// currencyPrecisions maps ISO 4217 codes onto the decimal precision of
// their token on the shared ledger. Amounts travel through the protocol
// as decimal strings and only become integer ledger units at the lock
// boundary.
var currencyPrecisions = map[string]int32{
	"ILS": 2,
	"NOK": 4,
	"SEK": 2,
}

// CurrencyPrecision returns the ledger decimal precision for a currency
// code, and whether the currency is supported at all.
func CurrencyPrecision(code string) (int32, bool) {
	p, ok := currencyPrecisions[code]
	return p, ok
}

// AmountToUnits converts a decimal amount string into the ledger's
// integer unit for the currency, rounding at the currency's precision.
// The same conversion runs on every hop, so a disagreement between two
// hops' integer amounts is always a real mismatch, never a rounding
// artifact.
func AmountToUnits(amount, currency string) (*big.Int, error) {
	prec, ok := currencyPrecisions[currency]
	if !ok {
		return nil, Errorf(ErrCodeValidation, "unsupported currency %q", currency)
	}
	d, err := decimal.NewFromString(amount)
	if err != nil {
		return nil, WrapError(ErrCodeValidation, "invalid amount "+amount, err)
	}
	return d.Shift(prec).Round(0).BigInt(), nil
}

// UnitsToAmount renders integer ledger units back into a decimal amount
// string at the currency's precision.
func UnitsToAmount(units *big.Int, currency string) (string, error) {
	prec, ok := currencyPrecisions[currency]
	if !ok {
		return "", Errorf(ErrCodeValidation, "unsupported currency %q", currency)
	}
	return decimal.NewFromBigInt(units, -prec).StringFixed(prec), nil
}
