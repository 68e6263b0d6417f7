package domain

import (
	"fmt"
	"math"
	"regexp"

	"github.com/shopspring/decimal"
)

type Currency string

const (
	CurrencyDOP Currency = "DOP"
	CurrencyUSD Currency = "USD"
	CurrencyEUR Currency = "EUR"
)

var currencyPattern = regexp.MustCompile(`^[A-Z]{3}$`)

// zeroDecimalCurrencies have no minor unit; everything else uses two digits.
var zeroDecimalCurrencies = map[Currency]bool{
	"JPY": true,
	"KRW": true,
	"CLP": true,
}

func (c Currency) IsValid() bool {
	return currencyPattern.MatchString(string(c))
}

func (c Currency) Exponent() int32 {
	if zeroDecimalCurrencies[c] {
		return 0
	}
	return 2
}

// Money is an amount in minor units of its currency.
type Money struct {
	Amount   int64
	Currency Currency
}

func NewMoney(amount int64, currency Currency) Money {
	return Money{Amount: amount, Currency: currency}
}

func (m Money) IsPositive() bool { return m.Amount > 0 }

func (m Money) Add(other Money) (Money, error) {
	if m.Currency != other.Currency {
		return Money{}, fmt.Errorf("Add: %s + %s: %w", m.Currency, other.Currency, ErrCurrencyMismatch)
	}
	if (other.Amount > 0 && m.Amount > math.MaxInt64-other.Amount) ||
		(other.Amount < 0 && m.Amount < math.MinInt64-other.Amount) {
		return Money{}, fmt.Errorf("Add: %d + %d overflows: %w", m.Amount, other.Amount, ErrInvalidAmount)
	}
	return Money{Amount: m.Amount + other.Amount, Currency: m.Currency}, nil
}

func (m Money) Sub(other Money) (Money, error) {
	if m.Currency != other.Currency {
		return Money{}, fmt.Errorf("Sub: %s - %s: %w", m.Currency, other.Currency, ErrCurrencyMismatch)
	}
	if m.Amount < other.Amount {
		return Money{}, fmt.Errorf("Sub: %w", ErrInsufficientFunds)
	}
	return Money{Amount: m.Amount - other.Amount, Currency: m.Currency}, nil
}

// Decimal returns the amount in major units, e.g. 150075 DOP -> 1500.75.
func (m Money) Decimal() decimal.Decimal {
	return decimal.New(m.Amount, -m.Currency.Exponent())
}

func (m Money) String() string {
	return m.Decimal().StringFixed(m.Currency.Exponent()) + " " + string(m.Currency)
}

var maxMinor = decimal.NewFromInt(math.MaxInt64)

// ParseMoney converts a major-unit decimal string into minor units. Values
// that would need a fractional minor unit are rejected rather than rounded.
func ParseMoney(s string, currency Currency) (Money, error) {
	if !currency.IsValid() {
		return Money{}, fmt.Errorf("ParseMoney: %w", ErrInvalidCurrency)
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Money{}, fmt.Errorf("ParseMoney: %q: %w", s, ErrInvalidAmount)
	}
	minor := d.Shift(currency.Exponent())
	if !minor.Equal(minor.Truncate(0)) {
		return Money{}, fmt.Errorf("ParseMoney: %q has more than %d decimals: %w", s, currency.Exponent(), ErrInvalidAmount)
	}
	if !minor.IsPositive() {
		return Money{}, fmt.Errorf("ParseMoney: %w", ErrInvalidAmount)
	}
	if minor.GreaterThan(maxMinor) {
		return Money{}, fmt.Errorf("ParseMoney: %q out of range: %w", s, ErrInvalidAmount)
	}
	return Money{Amount: minor.IntPart(), Currency: currency}, nil
}
