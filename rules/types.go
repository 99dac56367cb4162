package rules

import "time"

// Rule is a named CEL condition over an applicant and their prediction.
// A matching active rule is reported as a risk factor.
type Rule struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	Expression string    `json:"expression"`
	Active     bool      `json:"active"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// EvaluationResult is the outcome of evaluating one rule against facts.
type EvaluationResult struct {
	RuleID   string `json:"rule_id"`
	RuleName string `json:"rule_name"`
	Matched  bool   `json:"matched"`
	Error    error  `json:"-"`
	Trace    any    `json:"-"`
}
