package rules

import (
	"encoding/json"
	"errors"
	"testing"
	"time"
)

func TestRuleJSONShape(t *testing.T) {
	now := time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC)
	rule := &Rule{
		ID:         "high-bmi",
		Name:       "high-bmi",
		Expression: `Applicant.bmi >= 30.0`,
		Active:     true,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	data, err := json.Marshal(rule)
	if err != nil {
		t.Fatalf("Marshal() failed: %v", err)
	}

	var fields map[string]any
	if err := json.Unmarshal(data, &fields); err != nil {
		t.Fatalf("Unmarshal() failed: %v", err)
	}

	for _, key := range []string{"id", "name", "expression", "active", "created_at", "updated_at"} {
		if _, ok := fields[key]; !ok {
			t.Errorf("rule JSON missing %q: %s", key, data)
		}
	}
	if len(fields) != 6 {
		t.Errorf("rule JSON has unexpected keys: %s", data)
	}
}

func TestEvaluationResultHidesInternals(t *testing.T) {
	result := &EvaluationResult{
		RuleID:   "smoker",
		RuleName: "smoker",
		Matched:  false,
		Error:    errors.New("no such key: smoker"),
		Trace:    map[string]any{"state": "partial"},
	}

	data, err := json.Marshal(result)
	if err != nil {
		t.Fatalf("Marshal() failed: %v", err)
	}

	want := `{"rule_id":"smoker","rule_name":"smoker","matched":false}`
	if string(data) != want {
		t.Errorf("Marshal() = %s, want %s", data, want)
	}
}
