// Package money implements fixed-scale decimal amounts used throughout the
// ledger. Amounts are never represented as binary floats.
package money

import (
	"database/sql/driver"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Scale is the number of fractional digits every Amount carries (2 = cents).
const Scale = 2

var scaleFactor int64 = 100

// ErrInvalidAmount is returned when a decimal string cannot be parsed as an Amount.
var ErrInvalidAmount = errors.New("money: invalid amount")

// Amount is a signed fixed-scale decimal value labeled with a currency.
// Cents is the integer number of currency subunits (e.g. 10050 == "100.50").
type Amount struct {
	Cents    int64
	Currency string
}

// Zero returns the zero amount in the given currency.
func Zero(currency string) Amount {
	return Amount{Cents: 0, Currency: currency}
}

// New builds an Amount directly from a cents count, e.g. New(10050, "USD") == 100.50 USD.
func New(cents int64, currency string) Amount {
	return Amount{Cents: cents, Currency: currency}
}

// Parse parses a decimal string like "100.00" into an Amount with the given currency.
// It never uses floating point.
func Parse(s, currency string) (Amount, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Amount{}, fmt.Errorf("%w: empty string", ErrInvalidAmount)
	}

	neg := false
	if strings.HasPrefix(s, "-") {
		neg = true
		s = s[1:]
	} else if strings.HasPrefix(s, "+") {
		s = s[1:]
	}

	whole, frac, hasFrac := strings.Cut(s, ".")
	if whole == "" {
		whole = "0"
	}
	if hasFrac {
		if len(frac) > Scale {
			return Amount{}, fmt.Errorf("%w: too many fractional digits in %q", ErrInvalidAmount, s)
		}
		for len(frac) < Scale {
			frac += "0"
		}
	} else {
		frac = strings.Repeat("0", Scale)
	}

	wholeVal, err := strconv.ParseInt(whole, 10, 64)
	if err != nil {
		return Amount{}, fmt.Errorf("%w: %v", ErrInvalidAmount, err)
	}
	fracVal, err := strconv.ParseInt(frac, 10, 64)
	if err != nil {
		return Amount{}, fmt.Errorf("%w: %v", ErrInvalidAmount, err)
	}

	cents := wholeVal*scaleFactor + fracVal
	if neg {
		cents = -cents
	}

	return Amount{Cents: cents, Currency: currency}, nil
}

// String renders the amount as a decimal string without the currency label, e.g. "100.50".
func (a Amount) String() string {
	neg := a.Cents < 0
	cents := a.Cents
	if neg {
		cents = -cents
	}
	whole := cents / scaleFactor
	frac := cents % scaleFactor
	sign := ""
	if neg {
		sign = "-"
	}
	return fmt.Sprintf("%s%d.%02d", sign, whole, frac)
}

// IsPositive reports whether the amount is strictly greater than zero.
func (a Amount) IsPositive() bool { return a.Cents > 0 }

// IsNegative reports whether the amount is strictly less than zero.
func (a Amount) IsNegative() bool { return a.Cents < 0 }

// IsZero reports whether the amount is exactly zero.
func (a Amount) IsZero() bool { return a.Cents == 0 }

// Add returns a + b. Both amounts must share a currency.
func (a Amount) Add(b Amount) (Amount, error) {
	if a.Currency != b.Currency {
		return Amount{}, fmt.Errorf("money: currency mismatch %s != %s", a.Currency, b.Currency)
	}
	return Amount{Cents: a.Cents + b.Cents, Currency: a.Currency}, nil
}

// Neg returns -a.
func (a Amount) Neg() Amount {
	return Amount{Cents: -a.Cents, Currency: a.Currency}
}

// Equal reports whether a and b are the same currency and magnitude.
func (a Amount) Equal(b Amount) bool {
	return a.Cents == b.Cents && a.Currency == b.Currency
}

// Value implements driver.Valuer, storing the amount as a decimal string.
func (a Amount) Value() (driver.Value, error) {
	return a.String(), nil
}

// FromCents builds an Amount from a raw cents integer and currency label,
// used when reading aggregation results back from the database.
func FromCents(cents int64, currency string) Amount {
	return Amount{Cents: cents, Currency: currency}
}
