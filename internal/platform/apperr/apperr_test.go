package apperr

import (
	"errors"
	"fmt"
	"testing"
)

var errStoreDown = errors.New("store down")

func TestKindOfWrappedChain(t *testing.T) {
	sentinel := New(KindNotFound, "payroll period not found")
	err := fmt.Errorf("load period: %w", sentinel)

	if got := KindOf(err); got != KindNotFound {
		t.Fatalf("expected not_found, got %s", got)
	}
	if !errors.Is(err, sentinel) {
		t.Fatal("expected sentinel to match through fmt wrapping")
	}
	if KindOf(errStoreDown) != KindInternal {
		t.Fatal("expected plain errors to map to internal")
	}
}

func TestWrapKeepsCause(t *testing.T) {
	err := Wrap(KindInternal, "list periods failed", errStoreDown)
	if !errors.Is(err, errStoreDown) {
		t.Fatal("expected cause to be reachable")
	}
	if err.Error() != "list periods failed: store down" {
		t.Fatalf("unexpected message %q", err.Error())
	}
}

func TestValidationSortsFields(t *testing.T) {
	err := Validation("payload validation failed",
		FieldIssue{Field: "start_date", Reason: "required"},
		FieldIssue{Field: "end_date", Reason: "must be on or after start_date"},
	)
	if err.Kind != KindValidation {
		t.Fatalf("expected validation kind, got %s", err.Kind)
	}
	if err.Fields[0].Field != "end_date" {
		t.Fatalf("expected fields sorted, got %+v", err.Fields)
	}
}

func TestParseKind(t *testing.T) {
	tests := map[string]Kind{
		"validation":    KindValidation,
		" RATE_LIMITED": KindRateLimited,
		"permission":    KindPermission,
		"bogus":         KindInternal,
		"":              KindInternal,
	}
	for raw, want := range tests {
		if got := ParseKind(raw); got != want {
			t.Fatalf("ParseKind(%q) = %s, want %s", raw, got, want)
		}
	}
}
