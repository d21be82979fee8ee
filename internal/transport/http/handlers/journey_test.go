package handlers_test

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"timeledger/internal/app/server"
	"timeledger/internal/platform/config"
)

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   any             `json:"error"`
}

func testConfig(t *testing.T, dbURL string) config.Config {
	return config.Config{
		DatabaseURL:                dbURL,
		JWTSecret:                  "test-secret",
		JWTTTL:                     time.Hour,
		DataEncryptionKey:          "0123456789abcdef0123456789abcdef",
		Environment:                "test",
		SeedTenantName:             "Test Tenant",
		SeedAdminEmail:             "owner@test.local",
		SeedAdminPassword:          "ChangeMe123!",
		EmailFrom:                  "no-reply@test.local",
		RunMigrations:              true,
		RunSeed:                    true,
		MigrationsDir:              "../../../../migrations",
		MaxBodyBytes:               1048576,
		RateLimitPerMinute:         1000,
		AccountRequestLimitPerHour: 100,
		WeeklyOvertimeHours:        40,
		WorkdayHours:               8,
		PayrollWorkers:             4,
		PayslipDir:                 t.TempDir(),
		IdempotencyTTL:             time.Hour,
		MaintenanceInterval:        time.Hour,
		OTelServiceName:            "timeledger-test",
	}
}

func startApp(t *testing.T) (*httptest.Server, string) {
	t.Helper()
	dbURL := os.Getenv("TEST_DATABASE_URL")
	if dbURL == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}
	cfg := testConfig(t, dbURL)

	app, err := server.New(context.Background(), cfg)
	if err != nil {
		t.Fatalf("failed to start app: %v", err)
	}
	t.Cleanup(app.Close)

	ts := httptest.NewServer(app.Router)
	t.Cleanup(ts.Close)

	return ts, login(t, ts.Client(), ts.URL, cfg.SeedAdminEmail, cfg.SeedAdminPassword)
}

func TestMonthlyPayrollJourney(t *testing.T) {
	ts, token := startApp(t)
	client := ts.Client()

	var userIDs []string
	for i := 0; i < 3; i++ {
		userID := createUser(t, client, ts.URL, token, fmt.Sprintf("monthly-%d-%d@example.com", i, time.Now().UnixNano()))
		createRate(t, client, ts.URL, token, map[string]any{
			"user_id":        userID,
			"rate_type":      "monthly",
			"base_rate":      "3000",
			"currency":       "USD",
			"effective_from": "2025-01-01",
		})
		userIDs = append(userIDs, userID)
	}

	periodID := createPeriod(t, client, ts.URL, token, map[string]any{
		"period_type":        "monthly",
		"start_date":         "2025-03-01",
		"end_date":           "2025-03-31",
		"employee_selection": map[string]any{"mode": "explicit", "user_ids": userIDs},
	})

	// Concurrent processing must generate exactly one set of entries.
	var (
		wg    sync.WaitGroup
		mu    sync.Mutex
		codes = map[int]int{}
	)
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			code, _ := send(t, client, http.MethodPost, ts.URL+"/api/payroll/periods/"+periodID+"/process", token, nil)
			mu.Lock()
			codes[code]++
			mu.Unlock()
		}()
	}
	wg.Wait()
	if codes[http.StatusOK] != 1 || codes[http.StatusConflict] != 4 {
		t.Fatalf("expected one winner and four conflicts, got %v", codes)
	}

	var entries []struct {
		UserID    string          `json:"user_id"`
		NetAmount decimal.Decimal `json:"net_amount"`
	}
	decodeData(t, getJSON(t, client, ts.URL+"/api/payroll/periods/"+periodID+"/entries", token), &entries)
	if len(entries) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(entries))
	}
	total := decimal.Zero
	for _, e := range entries {
		total = total.Add(e.NetAmount)
	}
	if !total.Equal(decimal.RequireFromString("9000")) {
		t.Fatalf("expected total 9000.00, got %s", total.StringFixed(2))
	}

	postJSON(t, client, ts.URL+"/api/payroll/periods/"+periodID+"/approve", token, nil)
	code, _ := sendWithHeader(t, client, http.MethodPost, ts.URL+"/api/payroll/periods/"+periodID+"/mark-paid", token, nil, "Idempotency-Key", "pay-"+periodID)
	if code != http.StatusOK {
		t.Fatalf("expected mark-paid 200, got %d", code)
	}
	code, _ = sendWithHeader(t, client, http.MethodPost, ts.URL+"/api/payroll/periods/"+periodID+"/mark-paid", token, nil, "Idempotency-Key", "pay-"+periodID)
	if code != http.StatusOK {
		t.Fatalf("expected replayed mark-paid 200, got %d", code)
	}

	raw := getRaw(t, client, ts.URL+"/api/reports/admin/payables/export?format=csv&period_id="+periodID, token)
	rows, err := csv.NewReader(bytes.NewReader(raw)).ReadAll()
	if err != nil {
		t.Fatalf("parse csv: %v", err)
	}
	if len(rows) != 4 {
		t.Fatalf("expected header plus 3 rows, got %d", len(rows))
	}
}

func TestHourlyOvertimeJourney(t *testing.T) {
	ts, token := startApp(t)
	client := ts.Client()

	userID := createUser(t, client, ts.URL, token, fmt.Sprintf("hourly-%d@example.com", time.Now().UnixNano()))
	createRate(t, client, ts.URL, token, map[string]any{
		"user_id":             userID,
		"rate_type":           "hourly",
		"base_rate":           "20",
		"currency":            "USD",
		"overtime_multiplier": "1.5",
		"effective_from":      "2025-01-01",
	})

	monday := time.Date(2025, 3, 3, 8, 0, 0, 0, time.UTC)
	for day := 0; day < 5; day++ {
		start := monday.AddDate(0, 0, day)
		postJSON(t, client, ts.URL+"/api/time-entries", token, map[string]any{
			"user_id":    userID,
			"project":    "journey",
			"start_time": start,
			"end_time":   start.Add(9 * time.Hour),
		})
	}

	periodID := createPeriod(t, client, ts.URL, token, map[string]any{
		"period_type":        "weekly",
		"start_date":         "2025-03-03",
		"end_date":           "2025-03-09",
		"employee_selection": map[string]any{"mode": "explicit", "user_ids": []string{userID}},
	})
	postJSON(t, client, ts.URL+"/api/payroll/periods/"+periodID+"/process", token, nil)

	var entries []struct {
		RegularHours  decimal.Decimal `json:"regular_hours"`
		OvertimeHours decimal.Decimal `json:"overtime_hours"`
		NetAmount     decimal.Decimal `json:"net_amount"`
	}
	decodeData(t, getJSON(t, client, ts.URL+"/api/payroll/periods/"+periodID+"/entries", token), &entries)
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
	e := entries[0]
	if !e.RegularHours.Equal(decimal.NewFromInt(40)) || !e.OvertimeHours.Equal(decimal.NewFromInt(5)) {
		t.Fatalf("expected 40h regular and 5h overtime, got %s/%s", e.RegularHours, e.OvertimeHours)
	}
	if !e.NetAmount.Equal(decimal.RequireFromString("950")) {
		t.Fatalf("expected 950.00, got %s", e.NetAmount.StringFixed(2))
	}
}

func login(t *testing.T, client *http.Client, baseURL, email, password string) string {
	t.Helper()
	env := postJSON(t, client, baseURL+"/api/auth/login", "", map[string]string{
		"email":    email,
		"password": password,
	})
	var data struct {
		Token string `json:"token"`
	}
	decodeData(t, env, &data)
	if data.Token == "" {
		t.Fatal("expected token in login response")
	}
	return data.Token
}

func createUser(t *testing.T, client *http.Client, baseURL, token, email string) string {
	t.Helper()
	env := postJSON(t, client, baseURL+"/api/users", token, map[string]string{
		"email":     email,
		"full_name": "Journey Employee",
		"role":      "employee",
		"password":  "Employee123!",
	})
	return dataID(t, env)
}

func createRate(t *testing.T, client *http.Client, baseURL, token string, body map[string]any) string {
	t.Helper()
	return dataID(t, postJSON(t, client, baseURL+"/api/payroll/rates", token, body))
}

func createPeriod(t *testing.T, client *http.Client, baseURL, token string, body map[string]any) string {
	t.Helper()
	return dataID(t, postJSON(t, client, baseURL+"/api/payroll/periods", token, body))
}

func dataID(t *testing.T, env envelope) string {
	t.Helper()
	var data struct {
		ID string `json:"id"`
	}
	decodeData(t, env, &data)
	if data.ID == "" {
		t.Fatalf("expected id in response: %s", string(env.Data))
	}
	return data.ID
}

func decodeData(t *testing.T, env envelope, target any) {
	t.Helper()
	if err := json.Unmarshal(env.Data, target); err != nil {
		t.Fatalf("failed to decode data: %v", err)
	}
}

func send(t *testing.T, client *http.Client, method, url, token string, body any) (int, []byte) {
	return sendWithHeader(t, client, method, url, token, body, "", "")
}

func sendWithHeader(t *testing.T, client *http.Client, method, url, token string, body any, key, value string) (int, []byte) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Errorf("failed to marshal body: %v", err)
			return 0, nil
		}
		reader = bytes.NewBuffer(raw)
	}
	req, err := http.NewRequest(method, url, reader)
	if err != nil {
		t.Errorf("failed to create request: %v", err)
		return 0, nil
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if key != "" {
		req.Header.Set(key, value)
	}
	resp, err := client.Do(req)
	if err != nil {
		t.Errorf("request failed: %v", err)
		return 0, nil
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Errorf("failed to read response: %v", err)
	}
	return resp.StatusCode, raw
}

func postJSON(t *testing.T, client *http.Client, url, token string, body any) envelope {
	t.Helper()
	return expectJSON(t, client, http.MethodPost, url, token, body)
}

func getJSON(t *testing.T, client *http.Client, url, token string) envelope {
	t.Helper()
	return expectJSON(t, client, http.MethodGet, url, token, nil)
}

func getRaw(t *testing.T, client *http.Client, url, token string) []byte {
	t.Helper()
	code, raw := send(t, client, http.MethodGet, url, token, nil)
	if code != http.StatusOK {
		t.Fatalf("unexpected status %d: %s", code, string(raw))
	}
	return raw
}

func expectJSON(t *testing.T, client *http.Client, method, url, token string, body any) envelope {
	t.Helper()
	code, raw := send(t, client, method, url, token, body)
	if code >= 400 || code == 0 {
		t.Fatalf("unexpected status %d: %s", code, string(raw))
	}
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	return env
}
