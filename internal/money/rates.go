package money

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Pair is a directed conversion.
type Pair struct {
	From Asset
	To   Asset
}

func (p Pair) String() string {
	return string(p.From) + ":" + string(p.To)
}

// Rates maps a directed pair to the amount of To received per unit of From.
type Rates map[Pair]decimal.Decimal

const reciprocalPrecision = 12

// DefaultRates is the built-in table used when CONVERSION_RATES is unset.
func DefaultRates() Rates {
	r := Rates{
		{USDT, KES}: decimal.NewFromInt(130),
		{BTC, USDT}: decimal.NewFromInt(65000),
		{ETH, USDT}: decimal.NewFromInt(3200),
	}
	return r.WithReciprocals()
}

// ParseRates reads "FROM:TO=rate" entries separated by commas. Reciprocals
// are filled in for pairs that were not given explicitly.
func ParseRates(spec string) (Rates, error) {
	out := Rates{}
	for _, entry := range strings.Split(spec, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		pairPart, ratePart, ok := strings.Cut(entry, "=")
		if !ok {
			return nil, fmt.Errorf("rate entry %q: missing '='", entry)
		}
		fromRaw, toRaw, ok := strings.Cut(pairPart, ":")
		if !ok {
			return nil, fmt.Errorf("rate entry %q: pair must be FROM:TO", entry)
		}
		from, err := ParseAsset(fromRaw)
		if err != nil {
			return nil, fmt.Errorf("rate entry %q: %w", entry, err)
		}
		to, err := ParseAsset(toRaw)
		if err != nil {
			return nil, fmt.Errorf("rate entry %q: %w", entry, err)
		}
		if from == to {
			return nil, fmt.Errorf("rate entry %q: %w", entry, ErrInvalidPair)
		}
		rate, err := ParseAmount(ratePart)
		if err != nil {
			return nil, fmt.Errorf("rate entry %q: %w", entry, err)
		}
		out[Pair{from, to}] = rate
	}
	return out.WithReciprocals(), nil
}

// WithReciprocals returns a copy where every missing inverse pair is derived.
func (r Rates) WithReciprocals() Rates {
	out := make(Rates, len(r)*2)
	for p, rate := range r {
		out[p] = rate
	}
	for p, rate := range r {
		inv := Pair{p.To, p.From}
		if _, exists := out[inv]; exists {
			continue
		}
		out[inv] = decimal.NewFromInt(1).DivRound(rate, reciprocalPrecision)
	}
	return out
}

// Lookup returns the rate for a pair or ErrInvalidPair.
func (r Rates) Lookup(from, to Asset) (decimal.Decimal, error) {
	if from == to {
		return decimal.Zero, fmt.Errorf("%w: %s", ErrInvalidPair, Pair{from, to})
	}
	rate, ok := r[Pair{from, to}]
	if !ok {
		return decimal.Zero, fmt.Errorf("%w: %s", ErrInvalidPair, Pair{from, to})
	}
	return rate, nil
}

// Convert prices amount of from in units of to, truncated to the target scale
// so a conversion never produces more value than the table allows.
func (r Rates) Convert(from, to Asset, amount decimal.Decimal) (decimal.Decimal, error) {
	rate, err := r.Lookup(from, to)
	if err != nil {
		return decimal.Zero, err
	}
	return to.Truncate(amount.Mul(rate)), nil
}
