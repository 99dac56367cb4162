package main

import (
	"bytes"
	"encoding/json"
	"io"
	"math"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/liamcoop/charges/internal/config"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()

	server, err := NewServer(&config.Config{RequestTimeout: 5 * time.Second})
	if err != nil {
		t.Fatalf("NewServer() failed: %v", err)
	}
	return server
}

func doRequest(t *testing.T, server *Server, method, path, contentType string, body io.Reader) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(method, path, body)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	rec := httptest.NewRecorder()
	server.ServeHTTP(rec, req)
	return rec
}

func doJSON(t *testing.T, server *Server, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal request: %v", err)
		}
		reader = bytes.NewReader(data)
	}
	return doRequest(t, server, method, path, "application/json", reader)
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), v); err != nil {
		t.Fatalf("decode response %q: %v", rec.Body.String(), err)
	}
}

func postForm(t *testing.T, server *Server, values url.Values) string {
	t.Helper()

	rec := doRequest(t, server, http.MethodPost, "/predict", "application/x-www-form-urlencoded", strings.NewReader(values.Encode()))
	if rec.Code != http.StatusOK {
		t.Fatalf("POST /predict status = %d, body = %s", rec.Code, rec.Body.String())
	}
	return rec.Body.String()
}

func highRiskForm() url.Values {
	return url.Values{
		"age":      {"40"},
		"sex":      {"female"},
		"bmi":      {"30"},
		"children": {"2"},
		"smoker":   {"yes"},
		"region":   {"southeast"},
	}
}

func highRiskRequest() map[string]any {
	return map[string]any{
		"age":      40,
		"sex":      "female",
		"bmi":      30.0,
		"children": 2,
		"smoker":   "yes",
		"region":   "southeast",
	}
}

func TestIndexPage(t *testing.T) {
	server := newTestServer(t)

	rec := doRequest(t, server, http.MethodGet, "/", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("GET / status = %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/html") {
		t.Errorf("Content-Type = %s", ct)
	}

	body := rec.Body.String()
	if !strings.Contains(body, `<button id="predict-btn" type="submit">Predict charges</button>`) {
		t.Errorf("page missing enabled submit button:\n%s", body)
	}
	if !strings.Contains(body, `<div id="result" hidden>`) {
		t.Error("result region should start hidden")
	}
}

func TestPredictForm(t *testing.T) {
	server := newTestServer(t)
	body := postForm(t, server, highRiskForm())

	for _, want := range []string{
		`<div id="result" class="result">Predicted yearly charges: $32,273.30</div>`,
		`<span class="chip high">Higher risk</span>`,
		`<span class="chip">Smoker</span>`,
		`<span class="chip">BMI: 30</span>`,
		`<span class="chip">Age: 40</span>`,
		`<li>smoker</li><li>high-bmi</li>`,
		`value="40"`,
		`<option value="southeast" selected>`,
		`<option value="yes" selected>`,
		`<button id="predict-btn" type="submit">Predict charges</button>`,
		"These bands are for demonstration only and are not medical or financial advice.",
	} {
		if !strings.Contains(body, want) {
			t.Errorf("page missing %q", want)
		}
	}
}

func TestPredictFormInvalidNumber(t *testing.T) {
	server := newTestServer(t)

	form := highRiskForm()
	form.Set("bmi", "heavy")
	body := postForm(t, server, form)

	for _, want := range []string{
		`<div id="result" class="result error">Something went wrong while predicting.</div>`,
		"An error occurred. Please try again.",
		`value="heavy"`,
		`<button id="predict-btn" type="submit">Predict charges</button>`,
	} {
		if !strings.Contains(body, want) {
			t.Errorf("page missing %q", want)
		}
	}
	if strings.Contains(body, `<span class="chip`) {
		t.Error("error page should not show chips")
	}
}

func TestPredictFormEscapesInput(t *testing.T) {
	server := newTestServer(t)

	form := highRiskForm()
	form.Set("age", `<script>alert(1)</script>`)
	body := postForm(t, server, form)

	if strings.Contains(body, "<script>alert(1)</script>") {
		t.Error("submitted value rendered unescaped")
	}
	if !strings.Contains(body, `value="&lt;script&gt;alert(1)&lt;/script&gt;"`) {
		t.Error("submitted value should be echoed escaped")
	}
}

func TestPredictAPI(t *testing.T) {
	server := newTestServer(t)

	rec := doJSON(t, server, http.MethodPost, "/api/v1/predict", highRiskRequest())
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}

	var resp PredictResponse
	decode(t, rec, &resp)

	if math.Abs(resp.PredictedCharge-32273.3) > 1e-6 {
		t.Errorf("predicted_charge = %v, want 32273.3", resp.PredictedCharge)
	}
	if resp.Formatted != "$32,273.30" || resp.Band != "high" || resp.BandLabel != "Higher risk" {
		t.Errorf("unexpected response: %+v", resp)
	}
	if !reflect.DeepEqual(resp.Factors, []string{"smoker", "high-bmi"}) {
		t.Errorf("factors = %v", resp.Factors)
	}

	var sum float64
	for _, c := range resp.Contributions {
		sum += c.Amount
	}
	if math.Abs(sum-resp.PredictedCharge) > 1e-6 {
		t.Errorf("contributions sum to %v, want %v", sum, resp.PredictedCharge)
	}
}

func TestPredictAPIClampsToZero(t *testing.T) {
	server := newTestServer(t)

	req := map[string]any{"age": 0, "sex": "female", "bmi": 0, "children": 0, "smoker": "no", "region": "northeast"}
	rec := doJSON(t, server, http.MethodPost, "/api/v1/predict", req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}

	var resp PredictResponse
	decode(t, rec, &resp)
	if resp.PredictedCharge != 0 || resp.Formatted != "$0.00" || resp.Band != "low" {
		t.Errorf("unexpected response: %+v", resp)
	}
	if resp.Factors == nil {
		t.Error("factors should be an empty list, not null")
	}
}

func TestPredictFormAcceptsJSON(t *testing.T) {
	server := newTestServer(t)

	rec := doJSON(t, server, http.MethodPost, "/predict", highRiskRequest())
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}

	var resp PredictResponse
	decode(t, rec, &resp)
	if resp.Formatted != "$32,273.30" {
		t.Errorf("formatted = %s", resp.Formatted)
	}
}

func TestPredictAPIRejectsBadRequests(t *testing.T) {
	server := newTestServer(t)

	tests := []struct {
		name   string
		mutate func(map[string]any)
	}{
		{"fractional age", func(m map[string]any) { m["age"] = 30.5 }},
		{"fractional children", func(m map[string]any) { m["children"] = 1.5 }},
		{"string bmi", func(m map[string]any) { m["bmi"] = "thirty" }},
		{"missing region", func(m map[string]any) { delete(m, "region") }},
		{"missing age", func(m map[string]any) { delete(m, "age") }},
		{"unknown field", func(m map[string]any) { m["income"] = 50000 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := highRiskRequest()
			tt.mutate(req)

			rec := doJSON(t, server, http.MethodPost, "/api/v1/predict", req)
			if rec.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400, body = %s", rec.Code, rec.Body.String())
			}

			var resp ErrorResponse
			decode(t, rec, &resp)
			if resp.Error == "" || resp.Details == "" {
				t.Errorf("error response incomplete: %+v", resp)
			}
		})
	}
}

func TestPredictAPIOverflow(t *testing.T) {
	server := newTestServer(t)

	req := highRiskRequest()
	req["bmi"] = math.MaxFloat64
	rec := doJSON(t, server, http.MethodPost, "/api/v1/predict", req)
	if rec.Code != http.StatusUnprocessableEntity {
		t.Errorf("status = %d, want 422, body = %s", rec.Code, rec.Body.String())
	}
}

func TestCoefficients(t *testing.T) {
	server := newTestServer(t)

	rec := doRequest(t, server, http.MethodGet, "/api/v1/coefficients", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}

	var resp map[string]float64
	decode(t, rec, &resp)
	if resp["intercept"] != -11938.5 || resp["smoker_yes"] != 23848.5 {
		t.Errorf("unexpected coefficients: %v", resp)
	}
	if _, ok := resp["region_northeast"]; ok {
		t.Error("baseline region should have no coefficient")
	}
}

func TestHealth(t *testing.T) {
	server := newTestServer(t)

	rec := doRequest(t, server, http.MethodGet, "/api/v1/health", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}

	var resp HealthResponse
	decode(t, rec, &resp)
	if resp.Status != "healthy" || resp.RulesLoaded != 4 {
		t.Errorf("unexpected health: %+v", resp)
	}
}

func TestRuleLifecycle(t *testing.T) {
	server := newTestServer(t)

	// Create
	rec := doJSON(t, server, http.MethodPost, "/api/v1/rules", CreateRuleRequest{
		Name:       "southeast-smoker",
		Expression: `Applicant.smoker == "yes" && Applicant.region == "southeast"`,
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create status = %d, body = %s", rec.Code, rec.Body.String())
	}
	var created RuleResponse
	decode(t, rec, &created)
	if created.ID == "" || !created.Active || created.CreatedAt.IsZero() {
		t.Fatalf("unexpected created rule: %+v", created)
	}

	// New rule shows up as a factor
	rec = doJSON(t, server, http.MethodPost, "/api/v1/predict", highRiskRequest())
	var predicted PredictResponse
	decode(t, rec, &predicted)
	if !reflect.DeepEqual(predicted.Factors, []string{"smoker", "high-bmi", "southeast-smoker"}) {
		t.Errorf("factors = %v", predicted.Factors)
	}

	// List
	rec = doRequest(t, server, http.MethodGet, "/api/v1/rules", "", nil)
	var list RulesListResponse
	decode(t, rec, &list)
	if len(list.Rules) != 5 || list.Rules[4].ID != created.ID {
		t.Errorf("unexpected rule list: %+v", list.Rules)
	}

	// Get
	rec = doRequest(t, server, http.MethodGet, "/api/v1/rules/"+created.ID, "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("get status = %d", rec.Code)
	}

	// Update: deactivate
	inactive := false
	rec = doJSON(t, server, http.MethodPut, "/api/v1/rules/"+created.ID, UpdateRuleRequest{
		Name:       created.Name,
		Expression: created.Expression,
		Active:     &inactive,
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("update status = %d, body = %s", rec.Code, rec.Body.String())
	}
	var updated RuleResponse
	decode(t, rec, &updated)
	if updated.Active || !updated.CreatedAt.Equal(created.CreatedAt) {
		t.Errorf("unexpected updated rule: %+v", updated)
	}

	// Delete
	rec = doRequest(t, server, http.MethodDelete, "/api/v1/rules/"+created.ID, "", nil)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("delete status = %d", rec.Code)
	}

	rec = doRequest(t, server, http.MethodGet, "/api/v1/rules/"+created.ID, "", nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("get after delete status = %d, want 404", rec.Code)
	}
}

func TestCreateRuleRejectsInvalidRules(t *testing.T) {
	server := newTestServer(t)

	tests := []struct {
		name string
		req  CreateRuleRequest
	}{
		{"missing expression", CreateRuleRequest{Name: "empty"}},
		{"bad name", CreateRuleRequest{Name: "1st-rule", Expression: "true"}},
		{"syntax error", CreateRuleRequest{Name: "broken", Expression: "Applicant.age >"}},
		{"non-boolean", CreateRuleRequest{Name: "numeric", Expression: "1 + 2"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := doJSON(t, server, http.MethodPost, "/api/v1/rules", tt.req)
			if rec.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400, body = %s", rec.Code, rec.Body.String())
			}
		})
	}
}

func TestUnknownRule(t *testing.T) {
	server := newTestServer(t)

	for _, method := range []string{http.MethodGet, http.MethodDelete} {
		rec := doRequest(t, server, method, "/api/v1/rules/does-not-exist", "", nil)
		if rec.Code != http.StatusNotFound {
			t.Errorf("%s status = %d, want 404", method, rec.Code)
		}
	}

	rec := doJSON(t, server, http.MethodPut, "/api/v1/rules/does-not-exist", UpdateRuleRequest{Name: "x", Expression: "true"})
	if rec.Code != http.StatusNotFound {
		t.Errorf("PUT status = %d, want 404", rec.Code)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	server := newTestServer(t)

	postForm(t, server, highRiskForm())
	form := highRiskForm()
	form.Set("age", "old")
	postForm(t, server, form)

	rec := doRequest(t, server, http.MethodGet, "/metrics", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}

	body := rec.Body.String()
	for _, want := range []string{
		`charges_predictions_total{band="high"} 1`,
		"charges_prediction_failures_total 1",
	} {
		if !strings.Contains(body, want) {
			t.Errorf("metrics missing %q", want)
		}
	}
}

func TestNewServerLoadsRulesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rules.json")
	data := `{"rules": [{"name": "senior", "expression": "Applicant.age >= 65.0", "active": true}]}`
	if err := os.WriteFile(path, []byte(data), 0o600); err != nil {
		t.Fatalf("write rules file: %v", err)
	}

	server, err := NewServer(&config.Config{RulesFile: path})
	if err != nil {
		t.Fatalf("NewServer() failed: %v", err)
	}

	all, err := server.engine.Rules()
	if err != nil {
		t.Fatalf("Rules() failed: %v", err)
	}
	if len(all) != 1 || all[0].Name != "senior" || all[0].ID == "" {
		t.Errorf("unexpected rules: %+v", all)
	}
}

func TestNewServerMissingRulesFile(t *testing.T) {
	_, err := NewServer(&config.Config{RulesFile: filepath.Join(t.TempDir(), "missing.json")})
	if err == nil {
		t.Error("NewServer() should fail when the rules file is missing")
	}
}
