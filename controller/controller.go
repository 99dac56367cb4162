package controller

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"html/template"
	"net/url"

	"github.com/liamcoop/charges/internal/logger"
	"github.com/liamcoop/charges/prediction"
	"github.com/liamcoop/charges/rules"
)

// ErrPredictionFailed wraps every failure surfaced to the user as the
// generic error message.
var ErrPredictionFailed = errors.New("prediction failed")

// Predictor computes the charge for a record. prediction.Coefficients
// satisfies it.
type Predictor interface {
	Predict(r prediction.FeatureRecord) float64
}

// FactorEvaluator names the risk factors that apply to a prediction.
// *rules.Engine satisfies it.
type FactorEvaluator interface {
	MatchedFactors(ctx context.Context, facts map[string]any) ([]string, error)
}

// Observer is told about every submission outcome.
type Observer interface {
	ObservePrediction(band string, amount float64)
	PredictionFailed()
}

var chipTemplate = template.Must(template.New("chip").Parse(
	`<span class="chip{{with .Class}} {{.}}{{end}}">{{.Text}}</span>`))

type chip struct {
	Class string
	Text  string
}

// Controller drives one form submission through prediction and into a View.
type Controller struct {
	predictor Predictor
	factors   FactorEvaluator
	observer  Observer
}

// New creates a controller. factors and observer may be nil.
func New(predictor Predictor, factors FactorEvaluator, observer Observer) *Controller {
	return &Controller{
		predictor: predictor,
		factors:   factors,
		observer:  observer,
	}
}

// Submit handles one submission of the form. The submit control is busy for
// the duration of the call and is restored on every exit path, panics
// included. Failures leave the generic error message in view and are
// returned wrapped in ErrPredictionFailed.
func (c *Controller) Submit(ctx context.Context, form url.Values, view *View) (err error) {
	record, raw := ReadForm(form)
	view.Values = raw

	release := view.Submit.Acquire(WorkingLabel)
	defer release()

	view.clear()

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: panic: %v", ErrPredictionFailed, r)
		}
		if err == nil {
			return
		}
		logger.Error("Prediction failed", "error", err)
		view.showError()
		if c.observer != nil {
			c.observer.PredictionFailed()
		}
	}()

	if err := c.render(ctx, record, view); err != nil {
		return fmt.Errorf("%w: %w", ErrPredictionFailed, err)
	}
	return nil
}

func (c *Controller) render(ctx context.Context, record prediction.FeatureRecord, view *View) error {
	if unknown := record.UnknownCategories(); len(unknown) > 0 {
		logger.Warn("Unrecognised categorical values contribute no adjustment", "fields", unknown)
	}

	amount := c.predictor.Predict(record)
	formatted, err := prediction.FormatUSD(amount)
	if err != nil {
		// A NaN or infinite amount is shown as the generic error, never as "$NaN".
		return fmt.Errorf("format amount: %w", err)
	}
	view.Result = ResultRegion{Visible: true, Class: "result", Text: ResultPrefix + formatted}

	assessment := prediction.Classify(amount)
	chips, err := renderChips(assessment, record)
	if err != nil {
		return fmt.Errorf("render chips: %w", err)
	}
	view.Chips = chips
	view.InsightText = assessment.Explanation
	view.Disclaimer = Disclaimer

	if c.factors != nil {
		factors, err := c.factors.MatchedFactors(ctx, rules.Facts(record, amount, assessment.Band))
		if err != nil {
			logger.Warn("Risk factor evaluation incomplete", "error", err)
		}
		view.Factors = factors
	}

	if c.observer != nil {
		c.observer.ObservePrediction(string(assessment.Band), amount)
	}
	return nil
}

func renderChips(a prediction.Assessment, r prediction.FeatureRecord) ([]template.HTML, error) {
	smoker := "Non-smoker"
	if r.Smoker == prediction.SmokerYes {
		smoker = "Smoker"
	}

	chips := []chip{
		{Class: string(a.Band), Text: a.Label},
		{Text: smoker},
		{Text: "BMI: " + formatNumber(r.BMI)},
		{Text: "Age: " + formatNumber(r.Age)},
	}

	out := make([]template.HTML, 0, len(chips))
	var buf bytes.Buffer
	for _, ch := range chips {
		buf.Reset()
		if err := chipTemplate.Execute(&buf, ch); err != nil {
			return nil, err
		}
		out = append(out, template.HTML(buf.String()))
	}
	return out, nil
}
