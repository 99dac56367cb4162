package controller

import (
	"errors"
	"math"
	"math/big"
	"net/url"
	"strconv"
	"strings"

	"github.com/liamcoop/charges/prediction"
)

// Form field names.
const (
	FieldAge      = "age"
	FieldSex      = "sex"
	FieldBMI      = "bmi"
	FieldChildren = "children"
	FieldSmoker   = "smoker"
	FieldRegion   = "region"
)

// ReadForm builds a feature record from submitted form values. Numeric
// fields are coerced the way a browser's Number() does: blank is 0 and
// anything unparsable is NaN. No other validation happens here.
func ReadForm(form url.Values) (prediction.FeatureRecord, FormValues) {
	raw := FormValues{
		Age:      form.Get(FieldAge),
		Sex:      form.Get(FieldSex),
		BMI:      form.Get(FieldBMI),
		Children: form.Get(FieldChildren),
		Smoker:   form.Get(FieldSmoker),
		Region:   form.Get(FieldRegion),
	}

	record := prediction.FeatureRecord{
		Age:      toNumber(raw.Age),
		Sex:      prediction.Sex(raw.Sex),
		BMI:      toNumber(raw.BMI),
		Children: toNumber(raw.Children),
		Smoker:   prediction.Smoker(raw.Smoker),
		Region:   prediction.Region(raw.Region),
	}
	return record, raw
}

func toNumber(s string) float64 {
	s = strings.TrimSpace(s)
	switch s {
	case "":
		return 0
	case "Infinity", "+Infinity":
		return math.Inf(1)
	case "-Infinity":
		return math.Inf(-1)
	}

	if v, ok := radixNumber(s); ok {
		return v
	}

	// ParseFloat also accepts "inf", "nan", "1_0" and hex floats, none of
	// which are decimal literals.
	if strings.ContainsFunc(s, func(r rune) bool { return !strings.ContainsRune("0123456789.eE+-", r) }) {
		return math.NaN()
	}

	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		// Out of range values come back as ±Inf or ±0.
		if errors.Is(err, strconv.ErrRange) {
			return v
		}
		return math.NaN()
	}
	return v
}

var radixPrefixes = map[string]int{"0x": 16, "0o": 8, "0b": 2}

// radixNumber parses unsigned 0x, 0o and 0b integer literals. ok is false
// when s has none of those prefixes.
func radixNumber(s string) (v float64, ok bool) {
	if len(s) < 2 {
		return 0, false
	}
	base, ok := radixPrefixes[strings.ToLower(s[:2])]
	if !ok {
		return 0, false
	}

	digits := s[2:]
	if digits == "" || strings.ContainsAny(digits, "+-_") {
		return math.NaN(), true
	}
	n, valid := new(big.Int).SetString(digits, base)
	if !valid {
		return math.NaN(), true
	}
	v, _ = new(big.Float).SetInt(n).Float64()
	return v, true
}

// formatNumber prints v the way JavaScript converts a number to a string.
func formatNumber(v float64) string {
	switch {
	case math.IsNaN(v):
		return "NaN"
	case math.IsInf(v, 1):
		return "Infinity"
	case math.IsInf(v, -1):
		return "-Infinity"
	case v == 0:
		return "0"
	}

	abs := math.Abs(v)
	if abs >= 1e21 || abs < 1e-6 {
		s := strconv.FormatFloat(v, 'e', -1, 64)
		mantissa, exp, _ := strings.Cut(s, "e")
		sign := exp[:1]
		digits := strings.TrimLeft(exp[1:], "0")
		return mantissa + "e" + sign + digits
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}
