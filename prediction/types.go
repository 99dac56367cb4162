package prediction

// Sex is the applicant's recorded sex.
type Sex string

const (
	SexFemale Sex = "female"
	SexMale   Sex = "male"
)

// Known reports whether s is one of the recognised categories.
func (s Sex) Known() bool {
	return s == SexFemale || s == SexMale
}

// Smoker records whether the applicant smokes.
type Smoker string

const (
	SmokerNo  Smoker = "no"
	SmokerYes Smoker = "yes"
)

// Known reports whether s is one of the recognised categories.
func (s Smoker) Known() bool {
	return s == SmokerNo || s == SmokerYes
}

// Region is the applicant's residential area in the US.
type Region string

const (
	RegionNortheast Region = "northeast"
	RegionNorthwest Region = "northwest"
	RegionSoutheast Region = "southeast"
	RegionSouthwest Region = "southwest"
)

// Known reports whether r is one of the recognised categories.
func (r Region) Known() bool {
	switch r {
	case RegionNortheast, RegionNorthwest, RegionSoutheast, RegionSouthwest:
		return true
	}
	return false
}

// FeatureRecord holds the applicant attributes the formula reads.
// Children is a count, kept as float64 so coerced form input can carry NaN
// the same way Age and BMI do.
type FeatureRecord struct {
	Age      float64 `json:"age"`
	Sex      Sex     `json:"sex"`
	BMI      float64 `json:"bmi"`
	Children float64 `json:"children"`
	Smoker   Smoker  `json:"smoker"`
	Region   Region  `json:"region"`
}

// UnknownCategories lists the categorical fields of r whose values are not
// recognised. Such values silently contribute no adjustment to the prediction.
func (r FeatureRecord) UnknownCategories() []string {
	var unknown []string
	if !r.Sex.Known() {
		unknown = append(unknown, "sex")
	}
	if !r.Smoker.Known() {
		unknown = append(unknown, "smoker")
	}
	if !r.Region.Known() {
		unknown = append(unknown, "region")
	}
	return unknown
}

// Contribution is one additive term of a prediction.
type Contribution struct {
	Factor string  `json:"factor"`
	Amount float64 `json:"amount"`
}
