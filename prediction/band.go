package prediction

import "fmt"

// Band thresholds in US dollars. Intervals are half-open: [0, 8000) is low,
// [8000, 20000) is medium and everything else is high.
const (
	MediumBandThreshold = 8000.0
	HighBandThreshold   = 20000.0
)

// RiskBand is the coarse qualitative bucket of a predicted charge.
type RiskBand string

const (
	BandLow    RiskBand = "low"
	BandMedium RiskBand = "medium"
	BandHigh   RiskBand = "high"
)

// RiskBandFromString reconstructs a RiskBand from its string representation.
func RiskBandFromString(s string) (RiskBand, error) {
	switch RiskBand(s) {
	case BandLow, BandMedium, BandHigh:
		return RiskBand(s), nil
	default:
		return "", fmt.Errorf("invalid risk band: %s", s)
	}
}

// Assessment is the band of a prediction together with its display copy.
type Assessment struct {
	Band        RiskBand `json:"band"`
	Label       string   `json:"band_label"`
	Explanation string   `json:"explanation"`
}

var assessments = map[RiskBand]Assessment{
	BandLow: {
		Band:        BandLow,
		Label:       "Low risk",
		Explanation: "Your predicted charges are on the lower side compared to typical policy holders.",
	},
	BandMedium: {
		Band:        BandMedium,
		Label:       "Moderate risk",
		Explanation: "Your predicted charges sit in a moderate band. Lifestyle improvements may reduce future costs.",
	},
	BandHigh: {
		Band:        BandHigh,
		Label:       "Higher risk",
		Explanation: "Your predicted charges are relatively high. Risk factors like smoking, high BMI or age strongly influence this.",
	},
}

// Classify derives the risk band of amount. NaN fails both comparisons and
// lands in the high band.
func Classify(amount float64) Assessment {
	switch {
	case amount < MediumBandThreshold:
		return assessments[BandLow]
	case amount < HighBandThreshold:
		return assessments[BandMedium]
	default:
		return assessments[BandHigh]
	}
}

// Assess returns the display copy for band.
func (b RiskBand) Assess() Assessment {
	return assessments[b]
}
