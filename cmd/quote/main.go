package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/urfave/cli/v2"

	"github.com/liamcoop/charges/prediction"
	"github.com/liamcoop/charges/rules"
)

type quote struct {
	Record          prediction.FeatureRecord  `json:"applicant"`
	PredictedCharge float64                   `json:"predicted_charge"`
	Formatted       string                    `json:"formatted"`
	Band            prediction.RiskBand       `json:"band"`
	BandLabel       string                    `json:"band_label"`
	Explanation     string                    `json:"explanation"`
	Factors         []string                  `json:"factors"`
	Contributions   []prediction.Contribution `json:"contributions,omitempty"`
}

func newApp(out, errOut io.Writer) *cli.App {
	return &cli.App{
		Name:      "quote",
		Usage:     "predict yearly insurance charges for one applicant",
		Writer:    out,
		ErrWriter: errOut,
		Flags: []cli.Flag{
			&cli.IntFlag{Name: "age", Usage: "age in years (required)"},
			&cli.StringFlag{Name: "sex", Value: string(prediction.SexFemale), Usage: "female or male"},
			&cli.Float64Flag{Name: "bmi", Usage: "body mass index (required)"},
			&cli.IntFlag{Name: "children", Value: 0, Usage: "number of dependants"},
			&cli.StringFlag{Name: "smoker", Value: string(prediction.SmokerNo), Usage: "yes or no"},
			&cli.StringFlag{Name: "region", Value: string(prediction.RegionNortheast), Usage: "northeast, northwest, southeast or southwest"},
			&cli.StringFlag{Name: "rules", EnvVars: []string{"RULES_FILE"}, Usage: "risk factor rules file; built-in rules when empty"},
			&cli.BoolFlag{Name: "explain", Usage: "show the contribution of every term"},
			&cli.BoolFlag{Name: "json", Usage: "print the quote as JSON"},
		},
		Action: runQuote,
		Commands: []*cli.Command{
			{
				Name:      "check-rules",
				Usage:     "validate and compile a rules file",
				ArgsUsage: "<file>",
				Action:    runCheckRules,
			},
		},
	}
}

func runQuote(c *cli.Context) error {
	for _, name := range []string{"age", "bmi"} {
		if !c.IsSet(name) {
			return cli.Exit(fmt.Sprintf("--%s is required", name), 2)
		}
	}

	record := prediction.FeatureRecord{
		Age:      float64(c.Int("age")),
		Sex:      prediction.Sex(strings.ToLower(c.String("sex"))),
		BMI:      c.Float64("bmi"),
		Children: float64(c.Int("children")),
		Smoker:   prediction.Smoker(strings.ToLower(c.String("smoker"))),
		Region:   prediction.Region(strings.ToLower(c.String("region"))),
	}
	if unknown := record.UnknownCategories(); len(unknown) > 0 {
		return cli.Exit(fmt.Sprintf("unrecognised value for %s", strings.Join(unknown, ", ")), 2)
	}

	engine, err := loadEngine(c.String("rules"))
	if err != nil {
		return err
	}

	q, err := buildQuote(c.Context, engine, record, c.Bool("explain"))
	if err != nil {
		return err
	}

	if c.Bool("json") {
		enc := json.NewEncoder(c.App.Writer)
		enc.SetIndent("", "  ")
		return enc.Encode(q)
	}
	return printQuote(c.App.Writer, q)
}

func loadEngine(path string) (*rules.Engine, error) {
	engine, err := rules.NewEngine(rules.NewInMemoryRuleStore(), rules.DefaultCacheConfig())
	if err != nil {
		return nil, err
	}

	seed := rules.DefaultRules()
	if path != "" {
		if seed, err = rules.LoadRules(path); err != nil {
			return nil, err
		}
	}
	if err := rules.Seed(engine, seed); err != nil {
		return nil, err
	}
	return engine, nil
}

func buildQuote(ctx context.Context, engine *rules.Engine, record prediction.FeatureRecord, explain bool) (*quote, error) {
	coefficients := prediction.DefaultCoefficients()
	amount := coefficients.Predict(record)

	formatted, err := prediction.FormatUSD(amount)
	if err != nil {
		return nil, fmt.Errorf("cannot quote: %w", err)
	}
	assessment := prediction.Classify(amount)

	factors, err := engine.MatchedFactors(ctx, rules.Facts(record, amount, assessment.Band))
	if err != nil {
		return nil, fmt.Errorf("risk factors: %w", err)
	}
	if factors == nil {
		factors = []string{}
	}

	q := &quote{
		Record:          record,
		PredictedCharge: amount,
		Formatted:       formatted,
		Band:            assessment.Band,
		BandLabel:       assessment.Label,
		Explanation:     assessment.Explanation,
		Factors:         factors,
	}
	if explain {
		q.Contributions = coefficients.Contributions(record)
	}
	return q, nil
}

func printQuote(w io.Writer, q *quote) error {
	fmt.Fprintf(w, "Predicted yearly charges: %s\n", q.Formatted)
	fmt.Fprintf(w, "Risk band: %s\n", q.BandLabel)
	fmt.Fprintln(w, q.Explanation)
	if len(q.Factors) > 0 {
		fmt.Fprintf(w, "Risk factors: %s\n", strings.Join(q.Factors, ", "))
	}

	if len(q.Contributions) == 0 {
		return nil
	}

	fmt.Fprintln(w)
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(tw, "term\tamount\t")
	var sum float64
	for _, c := range q.Contributions {
		sum += c.Amount
		fmt.Fprintf(tw, "%s\t%.2f\t\n", c.Factor, c.Amount)
	}
	fmt.Fprintf(tw, "sum\t%.2f\t\n", sum)
	if sum < 0 {
		fmt.Fprintln(tw, "clamped to\t0.00\t")
	}
	return tw.Flush()
}

func runCheckRules(c *cli.Context) error {
	if c.NArg() != 1 {
		return cli.Exit("check-rules takes exactly one rules file", 2)
	}
	path := c.Args().First()

	engine, err := loadEngine(path)
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}

	loaded, err := engine.Rules()
	if err != nil {
		return err
	}
	for _, r := range loaded {
		state := "active"
		if !r.Active {
			state = "inactive"
		}
		fmt.Fprintf(c.App.Writer, "ok  %-20s %-8s %s\n", r.Name, state, r.Expression)
	}
	fmt.Fprintf(c.App.Writer, "%d rules compiled from %s\n", len(loaded), path)
	return nil
}

func main() {
	if err := newApp(os.Stdout, os.Stderr).Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
