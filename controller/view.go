package controller

import "html/template"

// Display copy used by the page.
const (
	DefaultSubmitLabel = "Predict charges"
	WorkingLabel       = "Predicting..."
	Disclaimer         = "These bands are for demonstration only and are not medical or financial advice."
	ErrorResultText    = "Something went wrong while predicting."
	ErrorInsightText   = "An error occurred. Please try again."
	ResultPrefix       = "Predicted yearly charges: "
)

// SubmitControl is the state of the form's submit button.
type SubmitControl struct {
	Label    string
	Disabled bool
}

// Acquire puts the control in its busy state and returns the function that
// restores the label and enabled state it had before.
func (s *SubmitControl) Acquire(busyLabel string) (release func()) {
	original := s.Label
	s.Label = busyLabel
	s.Disabled = true
	return func() {
		s.Label = original
		s.Disabled = false
	}
}

// ResultRegion is the container showing the predicted amount or the error.
type ResultRegion struct {
	Visible bool
	Class   string
	Text    string
}

// FormValues echoes the submitted fields back into the form.
type FormValues struct {
	Age      string
	Sex      string
	BMI      string
	Children string
	Smoker   string
	Region   string
}

// View is everything the page renders. A new View is used for every
// submission, so nothing carries over between requests.
type View struct {
	Values      FormValues
	Submit      SubmitControl
	Result      ResultRegion
	Chips       []template.HTML
	InsightText string
	Disclaimer  string
	Factors     []string
}

// NewView returns the page as first served: empty form, enabled button.
func NewView() *View {
	return &View{
		Submit: SubmitControl{Label: DefaultSubmitLabel},
	}
}

func (v *View) clear() {
	v.Result = ResultRegion{}
	v.Chips = nil
	v.InsightText = ""
	v.Disclaimer = ""
	v.Factors = nil
}

func (v *View) showError() {
	v.clear()
	v.Result = ResultRegion{Visible: true, Class: "result error", Text: ErrorResultText}
	v.InsightText = ErrorInsightText
}
