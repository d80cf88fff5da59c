// Rate tables and currency conversion.
//
// A rate table maps every supported currency to its value in units per one
// USD, the reference currency. Conversion pivots through the reference:
// an amount in `from` is worth amount/rate(from) USD, which buys
// amount/rate(from)*rate(to) units of `to`.
package core

import (
	"fmt"
	"math"
	"strings"
)

// RateTable maps each supported currency to units per one USD.
type RateTable map[Currency]float64

// DefaultRates is the table of last resort, used when no feed can be
// reached. Values are fixed and intentionally stale.
func DefaultRates() RateTable {
	return RateTable{USD: 1, GBP: 1.8, EURO: 0.7, ILS: 3.4}
}

// Validate checks that the table carries a positive, finite rate for every
// supported currency. Extra keys are tolerated.
func (rt RateTable) Validate() error {
	for _, c := range Currencies() {
		v, ok := rt[c]
		if !ok {
			return fmt.Errorf("%w: missing %s", ErrInvalidRates, c)
		}
		if math.IsNaN(v) || math.IsInf(v, 0) || v <= 0 {
			return fmt.Errorf("%w: unusable %s rate %v", ErrInvalidRates, c, v)
		}
	}
	return nil
}

// rate resolves a token's entry, treating missing, NaN, infinite or
// negative values as zero so callers can test usability with a single
// comparison.
func (rt RateTable) rate(c Currency) float64 {
	v, ok := rt[c]
	if !ok || math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
		return 0
	}
	return v
}

// normalizeToken upper-cases a currency token; blank means the reference
// currency.
func normalizeToken(c Currency) Currency {
	c = Currency(strings.ToUpper(strings.TrimSpace(string(c))))
	if c == "" {
		return USD
	}
	return c
}

// Convert prices amount from one currency into another through the USD
// reference and rounds to two fraction digits. Tokens are matched
// case-insensitively and a blank token means USD. A currency without a
// usable rate makes the result 0 rather than an error; same-token
// conversions pass the amount through untouched by the table.
func Convert(amount float64, from, to Currency, rates RateTable) float64 {
	if math.IsNaN(amount) || math.IsInf(amount, 0) {
		return 0
	}
	from = normalizeToken(from)
	to = normalizeToken(to)
	if from == to {
		return Round2(amount)
	}
	rf := rates.rate(from)
	rt := rates.rate(to)
	if rf <= 0 || rt <= 0 {
		return 0
	}
	return Round2(amount / rf * rt)
}

// Round2 rounds half away from zero to two fraction digits.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}
