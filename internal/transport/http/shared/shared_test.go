package shared

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"timeledger/internal/platform/apperr"
)

func TestValidatorDateOrderAndErr(t *testing.T) {
	v := NewValidator()
	start, _ := v.Date("start_date", "2025-03-31")
	end, _ := v.Date("end_date", "2025-03-01")
	v.DateOrder("start_date", start, "end_date", end)

	err := v.Err()
	if apperr.KindOf(err) != apperr.KindValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
	issues := v.Issues()
	if len(issues) != 2 || issues[0].Field != "end_date" {
		t.Fatalf("unexpected issues: %+v", issues)
	}
}

func TestValidatorRejectWritesFieldIssues(t *testing.T) {
	v := NewValidator()
	v.UUID("user_id", "not-a-uuid")
	v.UUID("actor_id", " ")
	v.Add("status", "unsupported status")

	rec := httptest.NewRecorder()
	if !v.Reject(rec, "req-1") {
		t.Fatal("expected reject")
	}
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	if !bytes.Contains(rec.Body.Bytes(), []byte(`"field":"status"`)) || !bytes.Contains(rec.Body.Bytes(), []byte(`"field":"user_id"`)) {
		t.Fatalf("expected both issues in body: %s", rec.Body.String())
	}

	clean := NewValidator()
	clean.UUID("user_id", "1b4e28ba-2fa1-11d2-883f-0016d3cca427")
	if clean.Reject(httptest.NewRecorder(), "req-2") || clean.Err() != nil {
		t.Fatalf("expected no issues, got %+v", clean.Issues())
	}
}

func TestParseDate(t *testing.T) {
	got, err := ParseDate("2025-03-01")
	if err != nil || !got.Equal(time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected parse: %v %v", got, err)
	}
	if _, err := ParseDate("03/01/2025"); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestDecodeJSONRejectsUnknownFields(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", bytes.NewBufferString(`{"name":"x","bogus":1}`))
	var payload struct {
		Name string `json:"name"`
	}
	if err := DecodeJSON(req, &payload); apperr.KindOf(err) != apperr.KindValidation {
		t.Fatalf("expected validation error, got %v", err)
	}

	empty := httptest.NewRequest(http.MethodPost, "/", bytes.NewBuffer(nil))
	if err := DecodeJSON(empty, &payload); apperr.KindOf(err) != apperr.KindValidation {
		t.Fatalf("expected validation error for empty body, got %v", err)
	}
}

func TestClientIP(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "198.51.100.7:5555"
	if got := ClientIP(req); got != "198.51.100.7" {
		t.Fatalf("expected remote host, got %q", got)
	}
	req.Header.Set("X-Forwarded-For", "203.0.113.1, 10.0.0.1")
	if got := ClientIP(req); got != "203.0.113.1" {
		t.Fatalf("expected forwarded ip, got %q", got)
	}
}

func TestParsePagination(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/?limit=500&offset=20", nil)
	page := ParsePagination(req, 50, 200)
	if page.Limit != 200 || page.Offset != 20 {
		t.Fatalf("unexpected pagination: %+v", page)
	}
}
