package valueobject

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

var (
	ErrInvalidAmount   = errors.New("amount must be positive")
	ErrInvalidCurrency = errors.New("invalid currency code")
)

// CurrencyStars is the in-chat platform's internal currency. It has no minor unit.
const CurrencyStars = "XTR"

// Money is an amount in minor units of a currency
type Money struct {
	AmountMinor int64
	Currency    string
}

// NewMoney creates a new Money value object
func NewMoney(amountMinor int64, currency string) (Money, error) {
	if amountMinor <= 0 {
		return Money{}, fmt.Errorf("%w: %d", ErrInvalidAmount, amountMinor)
	}
	if !isValidCurrency(currency) {
		return Money{}, fmt.Errorf("%w: %s", ErrInvalidCurrency, currency)
	}
	return Money{AmountMinor: amountMinor, Currency: currency}, nil
}

// isValidCurrency checks if the currency code is valid (3 upper-case letters)
func isValidCurrency(currency string) bool {
	if len(currency) != 3 {
		return false
	}
	for _, c := range currency {
		if c < 'A' || c > 'Z' {
			return false
		}
	}
	return true
}

// exponent returns the number of minor-unit digits of the currency
func exponent(currency string) int32 {
	if currency == CurrencyStars {
		return 0
	}
	return 2
}

// Major returns the amount in major units
func (m Money) Major() decimal.Decimal {
	return decimal.New(m.AmountMinor, -exponent(m.Currency))
}

// String returns a string representation of the money
func (m Money) String() string {
	return fmt.Sprintf("%s %s", m.Major().StringFixed(exponent(m.Currency)), m.Currency)
}
