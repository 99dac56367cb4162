package prediction

import (
	"errors"
	"math"

	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"
)

// ErrNonFiniteAmount is returned when an amount cannot be shown as currency.
var ErrNonFiniteAmount = errors.New("amount is not a finite number")

var usPrinter = message.NewPrinter(language.AmericanEnglish)

// RoundCents rounds amount half away from zero to whole cents.
func RoundCents(amount float64) (decimal.Decimal, error) {
	if math.IsNaN(amount) || math.IsInf(amount, 0) {
		return decimal.Decimal{}, ErrNonFiniteAmount
	}
	return decimal.NewFromFloat(amount).Round(2), nil
}

// FormatUSD renders amount as US currency, e.g. "$32,273.30".
func FormatUSD(amount float64) (string, error) {
	cents, err := RoundCents(amount)
	if err != nil {
		return "", err
	}

	sign := ""
	if cents.IsNegative() {
		sign = "-"
		cents = cents.Abs()
	}

	grouped := usPrinter.Sprint(number.Decimal(cents.InexactFloat64(), number.Scale(2)))
	return sign + "$" + grouped, nil
}
