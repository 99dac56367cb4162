package rules

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/google/uuid"
)

// DefaultRules are the risk factors highlighted when no rules file is given.
// IDs are fixed so repeated seeding is detectable.
func DefaultRules() []*Rule {
	return []*Rule{
		{ID: "smoker", Name: "smoker", Expression: `Applicant.smoker == "yes"`, Active: true},
		{ID: "high-bmi", Name: "high-bmi", Expression: `Applicant.bmi >= 30.0`, Active: true},
		{ID: "age-50-plus", Name: "age-50-plus", Expression: `Applicant.age >= 50.0`, Active: true},
		{ID: "large-family", Name: "large-family", Expression: `Applicant.children >= 3.0`, Active: true},
	}
}

// ruleFile is the on-disk shape of a rules file.
type ruleFile struct {
	Rules []*fileRule `json:"rules"`
}

// fileRule is a rule as written in a rules file. Active defaults to true.
type fileRule struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Expression string `json:"expression"`
	Active     *bool  `json:"active"`
}

// LoadRules reads rule definitions from a JSON file of the form
// {"rules": [{"id": "...", "name": "...", "expression": "...", "active": true}]}.
// Rules without an id get a random one; rules without "active" are active.
func LoadRules(path string) ([]*Rule, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read rules file: %w", err)
	}

	var f ruleFile
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse rules file %s: %w", path, err)
	}

	rules := make([]*Rule, 0, len(f.Rules))
	for i, fr := range f.Rules {
		if fr == nil {
			return nil, fmt.Errorf("rules file %s: entry %d: %w: rule is nil", path, i, ErrInvalidRule)
		}

		r := &Rule{
			ID:         fr.ID,
			Name:       fr.Name,
			Expression: fr.Expression,
			Active:     fr.Active == nil || *fr.Active,
		}
		if r.ID == "" {
			r.ID = uuid.NewString()
		}
		if err := ValidateRule(r); err != nil {
			return nil, fmt.Errorf("rules file %s: %w", path, err)
		}
		rules = append(rules, r)
	}
	return rules, nil
}

// Seed adds rules to the engine one by one, stopping at the first failure.
func Seed(en *Engine, rules []*Rule) error {
	for _, r := range rules {
		if err := en.AddRule(r); err != nil {
			return fmt.Errorf("failed to seed rule %s: %w", r.ID, err)
		}
	}
	return nil
}
