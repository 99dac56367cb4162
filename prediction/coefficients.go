package prediction

import "math"

// Coefficients is the weight table of the linear charges model.
//
// Categorical features use treatment coding against a baseline level that has
// no column: female, non-smoker and northeast all contribute zero. Adding a
// category means adding a weight here and a branch in Contributions; a level
// without a weight falls back to the baseline silently.
type Coefficients struct {
	Intercept       float64 `json:"intercept"`
	Age             float64 `json:"age"`
	BMI             float64 `json:"bmi"`
	Children        float64 `json:"children"`
	SexMale         float64 `json:"sex_male"`
	SmokerYes       float64 `json:"smoker_yes"`
	RegionNorthwest float64 `json:"region_northwest"`
	RegionSoutheast float64 `json:"region_southeast"`
	RegionSouthwest float64 `json:"region_southwest"`
}

// defaultCoefficients approximates the trained regression model.
var defaultCoefficients = Coefficients{
	Intercept:       -11938.5,
	Age:             256.8,
	BMI:             339.2,
	Children:        475.5,
	SexMale:         -131.3,
	SmokerYes:       23848.5,
	RegionNorthwest: -353.0,
	RegionSoutheast: -1035.7,
	RegionSouthwest: -960.0,
}

// DefaultCoefficients returns a copy of the process-wide weight table.
func DefaultCoefficients() Coefficients {
	return defaultCoefficients
}

// Contributions returns the additive terms of the prediction for r, starting
// with the intercept. Baseline categories produce no term. The sum of the
// amounts is the unclamped prediction.
func (c Coefficients) Contributions(r FeatureRecord) []Contribution {
	terms := []Contribution{
		{Factor: "intercept", Amount: c.Intercept},
		{Factor: "age", Amount: r.Age * c.Age},
		{Factor: "bmi", Amount: r.BMI * c.BMI},
		{Factor: "children", Amount: r.Children * c.Children},
	}

	if r.Sex == SexMale {
		terms = append(terms, Contribution{Factor: "sex_male", Amount: c.SexMale})
	}

	if r.Smoker == SmokerYes {
		terms = append(terms, Contribution{Factor: "smoker_yes", Amount: c.SmokerYes})
	}

	switch r.Region {
	case RegionNorthwest:
		terms = append(terms, Contribution{Factor: "region_northwest", Amount: c.RegionNorthwest})
	case RegionSoutheast:
		terms = append(terms, Contribution{Factor: "region_southeast", Amount: c.RegionSoutheast})
	case RegionSouthwest:
		terms = append(terms, Contribution{Factor: "region_southwest", Amount: c.RegionSouthwest})
	}

	return terms
}

// Predict returns the predicted yearly charge for r, floored at zero.
// NaN inputs are not guarded and yield NaN.
func (c Coefficients) Predict(r FeatureRecord) float64 {
	var sum float64
	for _, term := range c.Contributions(r) {
		sum += term.Amount
	}
	return math.Max(0, sum)
}

// Predict evaluates r against the default coefficients.
func Predict(r FeatureRecord) float64 {
	return defaultCoefficients.Predict(r)
}
