package rules

import "github.com/liamcoop/charges/prediction"

// Variable names available to rule expressions.
const (
	ApplicantVar  = "Applicant"
	PredictionVar = "Prediction"
)

// Facts builds the evaluation input for one prediction. Numeric applicant
// fields are doubles, so expressions compare against literals like 30.0.
func Facts(r prediction.FeatureRecord, amount float64, band prediction.RiskBand) map[string]any {
	return map[string]any{
		ApplicantVar: map[string]any{
			"age":      r.Age,
			"sex":      string(r.Sex),
			"bmi":      r.BMI,
			"children": r.Children,
			"smoker":   string(r.Smoker),
			"region":   string(r.Region),
		},
		PredictionVar: map[string]any{
			"amount": amount,
			"band":   string(band),
		},
	}
}
