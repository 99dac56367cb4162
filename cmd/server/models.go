package main

import (
	"time"

	"github.com/liamcoop/charges/prediction"
)

// PredictRequest is the JSON body of a prediction. Every field is required;
// age and children must be whole numbers.
type PredictRequest struct {
	Age      *int     `json:"age" example:"40"`
	Sex      *string  `json:"sex" example:"female"`
	BMI      *float64 `json:"bmi" example:"30.0"`
	Children *int     `json:"children" example:"2"`
	Smoker   *string  `json:"smoker" example:"yes"`
	Region   *string  `json:"region" example:"southeast"`
}

// PredictResponse is the outcome of a JSON prediction.
type PredictResponse struct {
	PredictedCharge float64                   `json:"predicted_charge" example:"32273.3"`
	Formatted       string                    `json:"formatted" example:"$32,273.30"`
	Band            prediction.RiskBand       `json:"band" example:"high"`
	BandLabel       string                    `json:"band_label" example:"Higher risk"`
	Explanation     string                    `json:"explanation"`
	Factors         []string                  `json:"factors"`
	Contributions   []prediction.Contribution `json:"contributions"`
}

// CreateRuleRequest is the body for creating a risk-factor rule.
type CreateRuleRequest struct {
	Name       string `json:"name" example:"young-smoker"`
	Expression string `json:"expression" example:"Applicant.smoker == \"yes\" && Applicant.age < 30.0"`
	Active     *bool  `json:"active,omitempty" example:"true"`
}

// UpdateRuleRequest is the body for replacing a rule.
type UpdateRuleRequest struct {
	Name       string `json:"name" example:"young-smoker"`
	Expression string `json:"expression" example:"Applicant.smoker == \"yes\" && Applicant.age < 25.0"`
	Active     *bool  `json:"active,omitempty" example:"true"`
}

// RuleResponse is a rule in API responses.
type RuleResponse struct {
	ID         string    `json:"id" example:"0b5e3c1e-7f7a-4a39-9a43-3a8f6f0f2d11"`
	Name       string    `json:"name" example:"young-smoker"`
	Expression string    `json:"expression"`
	Active     bool      `json:"active" example:"true"`
	CreatedAt  time.Time `json:"created_at" example:"2024-01-15T10:30:00Z"`
	UpdatedAt  time.Time `json:"updated_at" example:"2024-01-15T10:30:00Z"`
}

// RulesListResponse lists rules in evaluation order.
type RulesListResponse struct {
	Rules []RuleResponse `json:"rules"`
}

// ErrorResponse is the body of every error.
type ErrorResponse struct {
	Error   string `json:"error" example:"invalid request body"`
	Details string `json:"details,omitempty"`
}

// HealthResponse is the health check body.
type HealthResponse struct {
	Status      string `json:"status" example:"healthy"`
	RulesLoaded int    `json:"rulesLoaded" example:"4"`
}
