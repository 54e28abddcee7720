// Package currency converts caller-facing decimal amounts into the integer
// minor units the payment gateway expects.
package currency

import (
	"strings"

	"github.com/shopspring/decimal"

	pkgerrors "github.com/flakex/marketplace-billing/pkg/errors"
)

const (
	zeroDecimalMultiplier int64 = 1
	twoDecimalMultiplier  int64 = 100
)

// Currencies the gateway charges in whole units.
var zeroDecimal = map[string]struct{}{
	"BIF": {}, "CLP": {}, "DJF": {}, "GNF": {}, "JPY": {}, "KMF": {}, "KRW": {}, "MGA": {},
	"PYG": {}, "RWF": {}, "UGX": {}, "VND": {}, "VUV": {}, "XAF": {}, "XOF": {}, "XPF": {},
}

// Currencies charged in hundredths. Three-decimal currencies (BHD, JOD, KWD,
// OMR, TND) are absent and rejected as unsupported.
var twoDecimal = map[string]struct{}{
	"AED": {}, "AFN": {}, "ALL": {}, "AMD": {}, "ANG": {}, "AOA": {}, "ARS": {}, "AUD": {},
	"AWG": {}, "AZN": {}, "BAM": {}, "BBD": {}, "BDT": {}, "BGN": {}, "BMD": {}, "BND": {},
	"BOB": {}, "BRL": {}, "BSD": {}, "BWP": {}, "BYN": {}, "BZD": {}, "CAD": {}, "CDF": {},
	"CHF": {}, "CNY": {}, "COP": {}, "CRC": {}, "CVE": {}, "CZK": {}, "DKK": {}, "DOP": {},
	"DZD": {}, "EGP": {}, "ETB": {}, "EUR": {}, "FJD": {}, "FKP": {}, "GBP": {}, "GEL": {},
	"GIP": {}, "GMD": {}, "GTQ": {}, "GYD": {}, "HKD": {}, "HNL": {}, "HTG": {}, "HUF": {},
	"IDR": {}, "ILS": {}, "INR": {}, "ISK": {}, "JMD": {}, "KES": {}, "KGS": {}, "KHR": {},
	"KYD": {}, "KZT": {}, "LAK": {}, "LBP": {}, "LKR": {}, "LRD": {}, "LSL": {}, "MAD": {},
	"MDL": {}, "MKD": {}, "MMK": {}, "MNT": {}, "MOP": {}, "MUR": {}, "MVR": {}, "MWK": {},
	"MXN": {}, "MYR": {}, "MZN": {}, "NAD": {}, "NGN": {}, "NIO": {}, "NOK": {}, "NPR": {},
	"NZD": {}, "PAB": {}, "PEN": {}, "PGK": {}, "PHP": {}, "PKR": {}, "PLN": {}, "QAR": {},
	"RON": {}, "RSD": {}, "RUB": {}, "SAR": {}, "SBD": {}, "SCR": {}, "SEK": {}, "SGD": {},
	"SHP": {}, "SLE": {}, "SOS": {}, "SRD": {}, "STD": {}, "SZL": {}, "THB": {}, "TJS": {},
	"TOP": {}, "TRY": {}, "TTD": {}, "TWD": {}, "TZS": {}, "UAH": {}, "USD": {}, "UYU": {},
	"UZS": {}, "WST": {}, "XCD": {}, "YER": {}, "ZAR": {}, "ZMW": {},
}

// Normalize upper-cases and trims a currency code.
func Normalize(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

func isZeroDecimal(code string) bool {
	_, ok := zeroDecimal[Normalize(code)]
	return ok
}

// MultiplierFor returns how many minor units make one major unit of code.
func MultiplierFor(code string) (int64, error) {
	normalized := Normalize(code)
	if isZeroDecimal(normalized) {
		return zeroDecimalMultiplier, nil
	}
	if _, ok := twoDecimal[normalized]; ok {
		return twoDecimalMultiplier, nil
	}
	return 0, pkgerrors.New(pkgerrors.CodeValidation, "unsupported currency").
		WithDetails(map[string]string{"currency": code})
}

// ToMinorUnits converts amount into the gateway's integer minor units,
// rounding half to even.
func ToMinorUnits(amount decimal.Decimal, code string) (int64, error) {
	if amount.IsNegative() {
		return 0, pkgerrors.New(pkgerrors.CodeValidation, "amount must not be negative").
			WithDetails(map[string]string{"amount": amount.String()})
	}
	mult, err := MultiplierFor(code)
	if err != nil {
		return 0, err
	}
	return amount.Mul(decimal.NewFromInt(mult)).RoundBank(0).IntPart(), nil
}

// FromMinorUnits converts gateway minor units back into a decimal amount.
func FromMinorUnits(minor int64, code string) (decimal.Decimal, error) {
	mult, err := MultiplierFor(code)
	if err != nil {
		return decimal.Zero, err
	}
	return decimal.NewFromInt(minor).Div(decimal.NewFromInt(mult)), nil
}
