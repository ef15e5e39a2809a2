//go:build integration
// +build integration

// Package integration provides end-to-end tests for the Kestrel decision
// fusion engine.
//
// These tests verify the COMPLETE scoring pipeline:
//
//	Transaction → Features → Classifier → Rules → Fusion → Final Decision
//
// Run with: go test -tags=integration -v ./tests/integration/...
//
// UNDERSTANDING THE DOMAIN:
//
// 1. TRANSACTION: A customer payment on a channel (ATM, Mobile, POS, Web)
//    with an amount, an hour-of-day, account age, and KYC status.
//
// 2. CLASSIFIER: A frozen logistic regression scoring the engineered
//    feature vector. Produces a raw fraud probability (0.0 to 1.0).
//
// 3. DECISION RULES: CEL expressions producing machine-readable flags:
//
//    | Rule                       | Triggers When                        |
//    |----------------------------|--------------------------------------|
//    | HIGH_VALUE_NEW_ACCOUNT     | amount > 10000 and age < 30 days     |
//    | UNVERIFIED_KYC_HIGH_AMOUNT | no KYC and amount > 5000             |
//    | UNUSUAL_HOUR               | hour 2-5 and amount > 3000           |
//    | VERY_HIGH_AMOUNT           | amount > 50000                       |
//    | NEW_ACCOUNT_UNVERIFIED     | age < 7 days and no KYC              |
//    | HIGH_CHANNEL_WITHDRAWAL    | ATM/POS and amount > 20000           |
//
// 4. FUSION: A decision flag overrides the model to Fraud once the
//    model probability clears a floor (0.2 weak, 0.3 strong). Without
//    flags the model verdict stands, except above 0.7 where the model
//    alone flags fraud.
//
// 5. SIMULATION: Batch runs enforce a realistic 9-15% fraud share by
//    flipping the riskiest-looking legitimate items.
//
// The server must be running with the shipped model artifact:
//
//	go run cmd/kestrel/main.go
package integration

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"testing"
	"time"
)

// TestConfig holds test environment configuration
type TestConfig struct {
	BaseURL string
}

func getTestConfig() TestConfig {
	baseURL := os.Getenv("KESTREL_TEST_URL")
	if baseURL == "" {
		baseURL = "http://localhost:8080"
	}
	return TestConfig{BaseURL: baseURL}
}

// ============================================================================
// API Request/Response Types (matching Kestrel's API contract)
// ============================================================================

// ScoreRequest is the transaction sent to POST /score
type ScoreRequest struct {
	TransactionID  string  `json:"transaction_id,omitempty"`
	CustomerID     string  `json:"customer_id"`
	Amount         float64 `json:"transaction_amount"`
	Channel        string  `json:"channel"`
	Hour           int     `json:"hour"`
	AccountAgeDays int     `json:"account_age_days"`
	KYCVerified    string  `json:"kyc_verified"`
	Location       string  `json:"location,omitempty"`
}

// DecisionResponse is what POST /score returns
type DecisionResponse struct {
	TransactionID string   `json:"transaction_id"`
	FinalLabel    string   `json:"final_label"`
	Probability   float64  `json:"fraud_probability"`
	RiskLevel     string   `json:"risk_level"`
	Confidence    float64  `json:"confidence"`
	Reason        string   `json:"reason"`
	RuleFlags     []string `json:"rule_flags"`
	RiskFactors   []string `json:"risk_factors"`
	RawModelLabel string   `json:"raw_model_prediction"`
	Override      bool     `json:"simulation_override"`
	ModelVersion  string   `json:"model_version"`
	Timestamp     string   `json:"timestamp"`
}

// BatchResponse is what POST /simulation/batch returns
type BatchResponse struct {
	SimulationID    string             `json:"simulation_id"`
	TotalProcessed  int                `json:"total_processed"`
	FraudulentCount int                `json:"fraudulent_count"`
	FraudRate       float64            `json:"fraud_rate"`
	Results         []DecisionResponse `json:"results"`
}

// LegacyResponse is what POST /score/legacy returns
type LegacyResponse struct {
	IsFraud     int     `json:"is_fraud"`
	Probability float64 `json:"fraud_probability"`
	RiskLevel   string  `json:"risk_level"`
	Confidence  float64 `json:"confidence"`
	ScoredAt    string  `json:"prediction_timestamp"`
}

// ============================================================================
// Test Helper Functions
// ============================================================================

func postJSON(t *testing.T, config TestConfig, path string, payload any) (*http.Response, []byte) {
	t.Helper()

	body, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("Failed to marshal request: %v", err)
	}

	httpReq, err := http.NewRequest("POST", config.BaseURL+path, bytes.NewReader(body))
	if err != nil {
		t.Fatalf("Failed to create request: %v", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Do(httpReq)
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("Failed to read response: %v", err)
	}
	return resp, respBody
}

func score(t *testing.T, config TestConfig, req ScoreRequest) DecisionResponse {
	t.Helper()

	resp, body := postJSON(t, config, "/score", req)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", resp.StatusCode, string(body))
	}

	var result DecisionResponse
	if err := json.Unmarshal(body, &result); err != nil {
		t.Fatalf("Failed to unmarshal response: %v (body: %s)", err, string(body))
	}
	return result
}

func hasFlag(flags []string, want string) bool {
	for _, f := range flags {
		if f == want {
			return true
		}
	}
	return false
}

// ============================================================================
// SCENARIO 1: Normal Transaction (Legitimate)
// ============================================================================

func TestNormalTransaction_Legitimate(t *testing.T) {
	/*
	   SCENARIO: A small daytime web payment from an old, verified account

	   EXPECTED BEHAVIOR:
	   - No decision rule fires ($250 is below every amount threshold)
	   - No risk factor fires (old account, daytime, KYC verified)
	   - The model sees a thoroughly unremarkable vector → low probability

	   FINAL DECISION: "Legitimate" with an empty flag list
	*/
	config := getTestConfig()

	result := score(t, config, ScoreRequest{
		TransactionID:  fmt.Sprintf("it-normal-%d", time.Now().UnixNano()),
		CustomerID:     "CUST00001",
		Amount:         250.00,
		Channel:        "Web",
		Hour:           12,
		AccountAgeDays: 400,
		KYCVerified:    "Yes",
	})

	// ASSERTIONS
	if result.FinalLabel != "Legitimate" {
		t.Errorf("Expected Legitimate, got %s", result.FinalLabel)
	}

	if len(result.RuleFlags) != 0 {
		t.Errorf("Expected no rule flags, got %v", result.RuleFlags)
	}

	if len(result.RiskFactors) != 0 {
		t.Errorf("Expected no risk factors, got %v", result.RiskFactors)
	}

	t.Logf("✓ Normal transaction passed: label=%s, probability=%.4f", result.FinalLabel, result.Probability)
}

// ============================================================================
// SCENARIO 2: Night ATM Withdrawal From a New Unverified Account
// ============================================================================

func TestRiskyTransaction_RuleOverride(t *testing.T) {
	/*
	   SCENARIO: $15,000 from an ATM at 3am, account 5 days old, no KYC

	   EXPECTED BEHAVIOR:
	   - HIGH_VALUE_NEW_ACCOUNT: 15000 > 10000 and age 5 < 30 → fires
	   - UNVERIFIED_KYC_HIGH_AMOUNT: no KYC and 15000 > 5000 → fires
	   - UNUSUAL_HOUR: hour 3 in [2,5] and 15000 > 3000 → fires
	   - NEW_ACCOUNT_UNVERIFIED: age 5 < 7 and no KYC → fires
	   - VERY_HIGH_AMOUNT needs > 50000, HIGH_CHANNEL_WITHDRAWAL needs
	     > 20000: neither fires
	   - The model itself scores this vector far above the override
	     floor (night, ATM, new, unverified, large)

	   FINAL DECISION: "Fraud" with exactly 4 flags
	*/
	config := getTestConfig()

	result := score(t, config, ScoreRequest{
		TransactionID:  fmt.Sprintf("it-risky-%d", time.Now().UnixNano()),
		CustomerID:     "CUST00042",
		Amount:         15000.00,
		Channel:        "ATM",
		Hour:           3,
		AccountAgeDays: 5,
		KYCVerified:    "No",
		Location:       "Mumbai",
	})

	if result.FinalLabel != "Fraud" {
		t.Errorf("Expected Fraud after rule override, got %s", result.FinalLabel)
	}

	if len(result.RuleFlags) != 4 {
		t.Errorf("Expected exactly 4 rule flags, got %v", result.RuleFlags)
	}

	for _, want := range []string{
		"HIGH_VALUE_NEW_ACCOUNT",
		"UNVERIFIED_KYC_HIGH_AMOUNT",
		"UNUSUAL_HOUR",
		"NEW_ACCOUNT_UNVERIFIED",
	} {
		if !hasFlag(result.RuleFlags, want) {
			t.Errorf("Expected flag %s, got %v", want, result.RuleFlags)
		}
	}

	if result.Probability < 0 || result.Probability > 1 {
		t.Errorf("Probability out of range: %.4f", result.Probability)
	}

	t.Logf("✓ Risky transaction flagged: label=%s, flags=%v, probability=%.4f",
		result.FinalLabel, result.RuleFlags, result.Probability)
}

// ============================================================================
// SCENARIO 3: Threshold Boundary Testing (Exact $10,000)
// ============================================================================

func TestExactThreshold_NoFlag(t *testing.T) {
	/*
	   SCENARIO: Exactly $10,000 from a 5-day-old verified account at noon

	   EXPECTED BEHAVIOR:
	   - HIGH_VALUE_NEW_ACCOUNT uses strict "amount > 10000": $10,000 is
	     NOT above the threshold, so no decision flag fires
	   - The NEW_ACCOUNT risk factor (display-only) still fires

	   WHY THIS TEST:
	   Boundary conditions catch off-by-one errors in threshold logic.
	*/
	config := getTestConfig()

	result := score(t, config, ScoreRequest{
		TransactionID:  fmt.Sprintf("it-boundary-%d", time.Now().UnixNano()),
		CustomerID:     "CUST00077",
		Amount:         10000.00,
		Channel:        "Web",
		Hour:           12,
		AccountAgeDays: 5,
		KYCVerified:    "Yes",
	})

	if len(result.RuleFlags) != 0 {
		t.Errorf("Expected no flags for exactly $10,000 (threshold is >10000), got %v", result.RuleFlags)
	}

	t.Logf("✓ Boundary test passed: $10,000 exactly → label=%s, flags=%v",
		result.FinalLabel, result.RuleFlags)
}

func TestAboveThreshold_FlagOverrides(t *testing.T) {
	/*
	   SCENARIO: $18,000 from the same 5-day-old verified account

	   EXPECTED BEHAVIOR:
	   - HIGH_VALUE_NEW_ACCOUNT is the only rule that fires (KYC is
	     verified, daytime, Web, below the 50k and ATM/POS thresholds)
	   - The model probability for a large payment from a week-old
	     account clears the strong override floor, so the single flag
	     flips the verdict to Fraud
	*/
	config := getTestConfig()

	result := score(t, config, ScoreRequest{
		TransactionID:  fmt.Sprintf("it-above-%d", time.Now().UnixNano()),
		CustomerID:     "CUST00077",
		Amount:         18000.00,
		Channel:        "Web",
		Hour:           12,
		AccountAgeDays: 5,
		KYCVerified:    "Yes",
	})

	if result.FinalLabel != "Fraud" {
		t.Errorf("Expected Fraud for high amount on new account, got %s", result.FinalLabel)
	}

	if len(result.RuleFlags) != 1 || !hasFlag(result.RuleFlags, "HIGH_VALUE_NEW_ACCOUNT") {
		t.Errorf("Expected only HIGH_VALUE_NEW_ACCOUNT flag, got %v", result.RuleFlags)
	}

	t.Logf("✓ Single-flag override: $18,000 → label=%s, flags=%v",
		result.FinalLabel, result.RuleFlags)
}

// ============================================================================
// SCENARIO 4: Compound Risk (Every Rule Fires)
// ============================================================================

func TestCompoundRisk_AllFlags(t *testing.T) {
	/*
	   SCENARIO: $55,000 ATM withdrawal at 3am from a 3-day-old
	   unverified account

	   EXPECTED BEHAVIOR: every decision rule fires
	   - HIGH_VALUE_NEW_ACCOUNT, UNVERIFIED_KYC_HIGH_AMOUNT, UNUSUAL_HOUR,
	     VERY_HIGH_AMOUNT, NEW_ACCOUNT_UNVERIFIED, HIGH_CHANNEL_WITHDRAWAL

	   WHY THIS MATTERS:
	   Multiple red flags compound the risk. This is the classic pattern:
	   draining a mule account before anyone looks at it.
	*/
	config := getTestConfig()

	result := score(t, config, ScoreRequest{
		TransactionID:  fmt.Sprintf("it-compound-%d", time.Now().UnixNano()),
		CustomerID:     "CUST00666",
		Amount:         55000.00,
		Channel:        "ATM",
		Hour:           3,
		AccountAgeDays: 3,
		KYCVerified:    "No",
	})

	if result.FinalLabel != "Fraud" {
		t.Errorf("Expected Fraud for compound risk, got %s", result.FinalLabel)
	}

	if len(result.RuleFlags) != 6 {
		t.Errorf("Expected all 6 rule flags, got %v", result.RuleFlags)
	}

	if result.Reason == "" {
		t.Error("Expected a reason explaining the verdict")
	}

	t.Logf("✓ Compound risk flagged: label=%s, flags=%d, reason=%q",
		result.FinalLabel, len(result.RuleFlags), result.Reason)
}

// ============================================================================
// SCENARIO 5: Batch Simulation With Ratio Enforcement
// ============================================================================

func TestSimulationBatch_RatioEnforced(t *testing.T) {
	/*
	   SCENARIO: 100 thoroughly clean transactions submitted as a batch

	   EXPECTED BEHAVIOR:
	   - Individually, every item scores Legitimate (no rules, low model
	     probability)
	   - The calibrator then flips the riskiest-looking items so the
	     batch lands in the realistic 9-15% fraud band
	   - Flipped items carry the simulation override marker

	   WHY THIS MATTERS:
	   Demo batches with 0% fraud look broken; the enforced band keeps
	   dashboards honest-looking without touching single scoring.
	*/
	config := getTestConfig()

	txs := make([]ScoreRequest, 100)
	for i := range txs {
		txs[i] = ScoreRequest{
			TransactionID:  fmt.Sprintf("it-batch-%d-%03d", time.Now().UnixNano(), i),
			CustomerID:     fmt.Sprintf("CUST%05d", 100+i),
			Amount:         200 + float64(i)*50, // 200-5150
			Channel:        "Web",
			Hour:           10 + i%6, // 10-15
			AccountAgeDays: 365 + i,
			KYCVerified:    "Yes",
		}
	}

	resp, body := postJSON(t, config, "/simulation/batch", map[string]any{
		"transactions": txs,
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", resp.StatusCode, string(body))
	}

	var result BatchResponse
	if err := json.Unmarshal(body, &result); err != nil {
		t.Fatalf("Failed to unmarshal response: %v", err)
	}

	if result.TotalProcessed != 100 {
		t.Errorf("Expected 100 processed, got %d", result.TotalProcessed)
	}

	if result.FraudulentCount < 9 || result.FraudulentCount > 15 {
		t.Errorf("Expected fraud count within [9,15], got %d", result.FraudulentCount)
	}

	if !strings.HasPrefix(result.SimulationID, "SIM-") {
		t.Errorf("Expected SIM- prefixed simulation id, got %s", result.SimulationID)
	}

	// Every item is genuinely clean, so each fraud verdict must be an
	// enforced flip carrying the override marker.
	overrides := 0
	for _, r := range result.Results {
		if r.Override {
			overrides++
		}
	}
	if overrides != result.FraudulentCount {
		t.Errorf("Expected %d override-marked results, got %d", result.FraudulentCount, overrides)
	}

	t.Logf("✓ Batch calibrated: total=%d, fraud=%d (%.1f%%), simulation=%s",
		result.TotalProcessed, result.FraudulentCount, result.FraudRate, result.SimulationID)
}

// ============================================================================
// SCENARIO 6: Legacy Step-Based Scoring
// ============================================================================

func TestLegacyScoring_RawVerdict(t *testing.T) {
	/*
	   SCENARIO: A PaySim-style TRANSFER record on the legacy endpoint

	   EXPECTED BEHAVIOR:
	   - No rules run on this path: the response is the raw model verdict
	   - Confidence is the distance-from-0.5 uncertainty measure
	*/
	config := getTestConfig()

	resp, body := postJSON(t, config, "/score/legacy", map[string]any{
		"step":                     250,
		"type":                     4,
		"amount":                   5000.0,
		"oldbalanceOrg":            5000.0,
		"newbalanceOrig":           0.0,
		"transactionType_TRANSFER": 1,
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", resp.StatusCode, string(body))
	}

	var result LegacyResponse
	if err := json.Unmarshal(body, &result); err != nil {
		t.Fatalf("Failed to unmarshal response: %v", err)
	}

	if result.IsFraud != 0 && result.IsFraud != 1 {
		t.Errorf("Invalid is_fraud: %d", result.IsFraud)
	}
	if result.Probability < 0 || result.Probability > 1 {
		t.Errorf("Probability out of range: %.4f", result.Probability)
	}
	if result.Confidence < 0 || result.Confidence > 100 {
		t.Errorf("Confidence out of range: %.2f", result.Confidence)
	}
	if _, err := time.Parse(time.RFC3339, result.ScoredAt); err != nil {
		t.Errorf("Bad prediction timestamp %q: %v", result.ScoredAt, err)
	}

	t.Logf("✓ Legacy verdict: is_fraud=%d, probability=%.4f, risk=%s",
		result.IsFraud, result.Probability, result.RiskLevel)
}

// ============================================================================
// SCENARIO 7: Input Validation
// ============================================================================

func TestMissingCustomerID_Error(t *testing.T) {
	/*
	   SCENARIO: Request missing the required customer_id field

	   EXPECTED: HTTP 400 Bad Request
	*/
	config := getTestConfig()

	resp, _ := postJSON(t, config, "/score", ScoreRequest{
		Amount:  100,
		Channel: "Web",
		Hour:    12,
	})

	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("Expected 400 for missing customer_id, got %d", resp.StatusCode)
	}

	t.Logf("✓ Validation test passed: missing customer_id → HTTP %d", resp.StatusCode)
}

func TestNegativeAmount_Error(t *testing.T) {
	/*
	   SCENARIO: Request with a negative amount

	   EXPECTED: HTTP 400 Bad Request (amounts must be non-negative)
	*/
	config := getTestConfig()

	resp, _ := postJSON(t, config, "/score", ScoreRequest{
		CustomerID:     "CUST00001",
		Amount:         -50,
		Channel:        "Web",
		Hour:           12,
		AccountAgeDays: 100,
		KYCVerified:    "Yes",
	})

	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("Expected 400 for negative amount, got %d", resp.StatusCode)
	}

	t.Logf("✓ Validation test passed: negative amount → HTTP %d", resp.StatusCode)
}

func TestHourOutOfRange_Error(t *testing.T) {
	/*
	   SCENARIO: Request with hour = 24

	   EXPECTED: HTTP 400 Bad Request (hour must be 0-23)
	*/
	config := getTestConfig()

	resp, _ := postJSON(t, config, "/score", ScoreRequest{
		CustomerID:     "CUST00001",
		Amount:         100,
		Channel:        "Web",
		Hour:           24,
		AccountAgeDays: 100,
		KYCVerified:    "Yes",
	})

	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("Expected 400 for hour out of range, got %d", resp.StatusCode)
	}

	t.Logf("✓ Validation test passed: hour 24 → HTTP %d", resp.StatusCode)
}

// ============================================================================
// SCENARIO 8: Response Contract Verification
// ============================================================================

func TestResponseContract(t *testing.T) {
	/*
	   SCENARIO: Verify the decision response includes all required fields
	   and tracing headers

	   This ensures the API contract is stable for dashboard clients.
	*/
	config := getTestConfig()

	txID := fmt.Sprintf("it-contract-%d", time.Now().UnixNano())
	req := ScoreRequest{
		TransactionID:  txID,
		CustomerID:     "CUST00001",
		Amount:         100,
		Channel:        "Mobile",
		Hour:           9,
		AccountAgeDays: 200,
		KYCVerified:    "Yes",
	}

	body, _ := json.Marshal(req)
	httpReq, _ := http.NewRequest("POST", config.BaseURL+"/score", bytes.NewReader(body))
	httpReq.Header.Set("Content-Type", "application/json")

	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Do(httpReq)
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", resp.StatusCode, string(respBody))
	}

	var result DecisionResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		t.Fatalf("Failed to unmarshal response: %v", err)
	}

	if result.TransactionID != txID {
		t.Errorf("Expected transaction id echoed, got %s", result.TransactionID)
	}
	if result.FinalLabel != "Fraud" && result.FinalLabel != "Legitimate" {
		t.Errorf("Invalid final label: %s", result.FinalLabel)
	}
	if result.RiskLevel == "" {
		t.Error("Missing risk_level")
	}
	if result.ModelVersion == "" {
		t.Error("Missing model_version")
	}
	if result.Timestamp == "" {
		t.Error("Missing timestamp")
	}
	if resp.Header.Get("X-Request-ID") == "" {
		t.Error("Missing X-Request-ID header")
	}
	if resp.Header.Get("X-Trace-ID") == "" {
		t.Error("Missing X-Trace-ID header")
	}

	t.Logf("✓ Contract complete: tx=%s, label=%s, model=%s, request=%s",
		result.TransactionID, result.FinalLabel, result.ModelVersion,
		resp.Header.Get("X-Request-ID"))
}

// ============================================================================
// SCENARIO 9: Statistics and Settings Surfaces
// ============================================================================

func TestStatsAfterScoring(t *testing.T) {
	/*
	   SCENARIO: After at least one scored transaction, the fraud
	   aggregates endpoint reports a non-empty dataset.
	*/
	config := getTestConfig()

	score(t, config, ScoreRequest{
		TransactionID:  fmt.Sprintf("it-stats-%d", time.Now().UnixNano()),
		CustomerID:     "CUST00009",
		Amount:         900,
		Channel:        "POS",
		Hour:           14,
		AccountAgeDays: 700,
		KYCVerified:    "Yes",
	})

	resp, err := http.Get(config.BaseURL + "/stats/fraud")
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected 200, got %d", resp.StatusCode)
	}

	var stats struct {
		Total      int     `json:"total"`
		FraudCount int     `json:"fraud_count"`
		FraudRate  float64 `json:"fraud_rate"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&stats); err != nil {
		t.Fatalf("Failed to decode stats: %v", err)
	}

	// The stats cache refreshes within its TTL, so the just-scored item
	// may not be counted yet; the dataset as a whole must be non-empty.
	if stats.Total < 1 {
		t.Errorf("Expected at least one stored transaction, got %d", stats.Total)
	}

	t.Logf("✓ Fraud stats: total=%d, fraud=%d (%.2f%%)", stats.Total, stats.FraudCount, stats.FraudRate)
}

func TestSettingsRoundTrip(t *testing.T) {
	/*
	   SCENARIO: Read the settings snapshot, update one field in one
	   section, and verify the merge keeps the rest.
	*/
	config := getTestConfig()

	resp, err := http.Get(config.BaseURL + "/settings")
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected 200, got %d", resp.StatusCode)
	}

	update := bytes.NewBufferString(`{"email_enabled": true}`)
	putReq, _ := http.NewRequest(http.MethodPut, config.BaseURL+"/settings/notification_rules", update)
	putReq.Header.Set("Content-Type", "application/json")

	client := &http.Client{Timeout: 10 * time.Second}
	putResp, err := client.Do(putReq)
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	defer putResp.Body.Close()

	if putResp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(putResp.Body)
		t.Fatalf("Expected 200, got %d: %s", putResp.StatusCode, string(body))
	}

	var updated struct {
		Section  string `json:"section"`
		Settings struct {
			EmailEnabled bool `json:"email_enabled"`
		} `json:"settings"`
	}
	if err := json.NewDecoder(putResp.Body).Decode(&updated); err != nil {
		t.Fatalf("Failed to decode update response: %v", err)
	}
	if updated.Section != "notification_rules" || !updated.Settings.EmailEnabled {
		t.Errorf("Unexpected update response: %+v", updated)
	}

	t.Logf("✓ Settings round trip: section=%s", updated.Section)
}
