package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"mime"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/liamcoop/charges/controller"
	"github.com/liamcoop/charges/internal/logger"
	"github.com/liamcoop/charges/prediction"
	"github.com/liamcoop/charges/rules"
)

// Page handlers

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	s.renderPage(w, r, controller.NewView())
}

// handlePredictForm runs a form submission through the controller and
// re-renders the page. JSON bodies are served like /api/v1/predict.
func (s *Server) handlePredictForm(w http.ResponseWriter, r *http.Request) {
	if mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type")); mediaType == "application/json" {
		s.handlePredict(w, r)
		return
	}

	if err := r.ParseForm(); err != nil {
		respondError(w, http.StatusBadRequest, "invalid form body", err)
		return
	}

	submissionID := uuid.NewString()
	view := controller.NewView()
	err := s.controller.Submit(r.Context(), r.PostForm, view)
	logger.Debug("Form submission handled",
		"submission_id", submissionID,
		"request_id", middleware.GetReqID(r.Context()),
		"failed", err != nil,
	)

	s.renderPage(w, r, view)
}

func (s *Server) renderPage(w http.ResponseWriter, r *http.Request, view *controller.View) {
	var buf bytes.Buffer
	if err := pageTemplate.Execute(&buf, view); err != nil {
		logger.Error("Failed to render page", "error", err, "request_id", middleware.GetReqID(r.Context()))
		respondError(w, http.StatusInternalServerError, "failed to render page", nil)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = buf.WriteTo(w)
}

// Health check handler
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	loaded, err := s.engine.Rules()
	if err != nil {
		respondJSON(w, http.StatusServiceUnavailable, map[string]string{
			"status": "unhealthy",
			"error":  err.Error(),
		})
		return
	}

	respondJSON(w, http.StatusOK, HealthResponse{
		Status:      "healthy",
		RulesLoaded: len(loaded),
	})
}

// Prediction handler
func (s *Server) handlePredict(w http.ResponseWriter, r *http.Request) {
	var req PredictRequest

	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}

	record, err := req.record()
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}

	if unknown := record.UnknownCategories(); len(unknown) > 0 {
		logger.Warn("Unrecognised categorical values contribute no adjustment", "fields", unknown)
	}

	amount := s.coefficients.Predict(record)
	formatted, err := prediction.FormatUSD(amount)
	if err != nil {
		s.metrics.PredictionFailed()
		respondError(w, http.StatusUnprocessableEntity, "prediction failed", err)
		return
	}
	assessment := prediction.Classify(amount)

	factors, err := s.engine.MatchedFactors(r.Context(), rules.Facts(record, amount, assessment.Band))
	if err != nil {
		logger.Warn("Risk factor evaluation incomplete", "error", err)
	}
	if factors == nil {
		factors = []string{}
	}

	s.metrics.ObservePrediction(string(assessment.Band), amount)

	respondJSON(w, http.StatusOK, PredictResponse{
		PredictedCharge: amount,
		Formatted:       formatted,
		Band:            assessment.Band,
		BandLabel:       assessment.Label,
		Explanation:     assessment.Explanation,
		Factors:         factors,
		Contributions:   s.coefficients.Contributions(record),
	})
}

func (req PredictRequest) record() (prediction.FeatureRecord, error) {
	switch {
	case req.Age == nil:
		return prediction.FeatureRecord{}, errors.New("age is required")
	case req.Sex == nil:
		return prediction.FeatureRecord{}, errors.New("sex is required")
	case req.BMI == nil:
		return prediction.FeatureRecord{}, errors.New("bmi is required")
	case req.Children == nil:
		return prediction.FeatureRecord{}, errors.New("children is required")
	case req.Smoker == nil:
		return prediction.FeatureRecord{}, errors.New("smoker is required")
	case req.Region == nil:
		return prediction.FeatureRecord{}, errors.New("region is required")
	}

	return prediction.FeatureRecord{
		Age:      float64(*req.Age),
		Sex:      prediction.Sex(*req.Sex),
		BMI:      *req.BMI,
		Children: float64(*req.Children),
		Smoker:   prediction.Smoker(*req.Smoker),
		Region:   prediction.Region(*req.Region),
	}, nil
}

func (s *Server) handleCoefficients(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, s.coefficients)
}

// Rule handlers

func (s *Server) handleListRules(w http.ResponseWriter, r *http.Request) {
	all, err := s.engine.Rules()
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to list rules", err)
		return
	}

	resp := RulesListResponse{Rules: make([]RuleResponse, 0, len(all))}
	for _, rule := range all {
		resp.Rules = append(resp.Rules, toRuleResponse(rule))
	}
	respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handleCreateRule(w http.ResponseWriter, r *http.Request) {
	var req CreateRuleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}

	if req.Name == "" || req.Expression == "" {
		respondError(w, http.StatusBadRequest, "name and expression are required", nil)
		return
	}

	rule := &rules.Rule{
		ID:         uuid.NewString(),
		Name:       req.Name,
		Expression: req.Expression,
		Active:     req.Active == nil || *req.Active,
	}

	if err := s.engine.AddRule(rule); err != nil {
		respondError(w, http.StatusBadRequest, "failed to add rule", err)
		return
	}

	respondJSON(w, http.StatusCreated, toRuleResponse(rule))
}

func (s *Server) handleGetRule(w http.ResponseWriter, r *http.Request) {
	rule, err := s.engine.Rule(chi.URLParam(r, "ruleId"))
	if err != nil {
		respondRuleError(w, "failed to get rule", err)
		return
	}

	respondJSON(w, http.StatusOK, toRuleResponse(rule))
}

func (s *Server) handleUpdateRule(w http.ResponseWriter, r *http.Request) {
	ruleID := chi.URLParam(r, "ruleId")

	var req UpdateRuleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}

	existing, err := s.engine.Rule(ruleID)
	if err != nil {
		respondRuleError(w, "failed to update rule", err)
		return
	}

	rule := &rules.Rule{
		ID:         ruleID,
		Name:       req.Name,
		Expression: req.Expression,
		Active:     existing.Active,
	}
	if req.Active != nil {
		rule.Active = *req.Active
	}

	if err := s.engine.UpdateRule(rule); err != nil {
		respondRuleError(w, "failed to update rule", err)
		return
	}

	respondJSON(w, http.StatusOK, toRuleResponse(rule))
}

func (s *Server) handleDeleteRule(w http.ResponseWriter, r *http.Request) {
	if err := s.engine.DeleteRule(chi.URLParam(r, "ruleId")); err != nil {
		respondRuleError(w, "failed to delete rule", err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func toRuleResponse(r *rules.Rule) RuleResponse {
	return RuleResponse{
		ID:         r.ID,
		Name:       r.Name,
		Expression: r.Expression,
		Active:     r.Active,
		CreatedAt:  r.CreatedAt,
		UpdatedAt:  r.UpdatedAt,
	}
}

// Helper functions

func respondRuleError(w http.ResponseWriter, message string, err error) {
	if errors.Is(err, rules.ErrRuleNotFound) {
		respondError(w, http.StatusNotFound, "rule not found", err)
		return
	}
	respondError(w, http.StatusBadRequest, message, err)
}

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		logger.Error("Failed to encode response", "error", err)
	}
}

func respondError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	respondJSON(w, status, resp)
}
