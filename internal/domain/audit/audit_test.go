package audit

import (
	"encoding/json"
	"testing"
	"time"
)

func TestBuildBaseQuery(t *testing.T) {
	since := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	tests := []struct {
		name   string
		filter Filter
		query  string
		args   int
	}{
		{
			name:  "tenant only",
			query: "SELECT COUNT(1) FROM audit_events WHERE tenant_id = $1",
			args:  1,
		},
		{
			name:   "action and entity",
			filter: Filter{Action: "payroll.period.process", EntityType: "payroll_period"},
			query:  "SELECT COUNT(1) FROM audit_events WHERE tenant_id = $1 AND action = $2 AND entity_type = $3",
			args:   3,
		},
		{
			name:   "actor and since",
			filter: Filter{ActorUser: "u-1", Since: &since},
			query:  "SELECT COUNT(1) FROM audit_events WHERE tenant_id = $1 AND actor_user_id::text = $2 AND created_at >= $3",
			args:   3,
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			query, args := buildBaseQuery("SELECT COUNT(1)", "t-1", tc.filter)
			if query != tc.query {
				t.Fatalf("unexpected query %q", query)
			}
			if len(args) != tc.args {
				t.Fatalf("expected %d args, got %d", tc.args, len(args))
			}
		})
	}
}

func TestMarshalState(t *testing.T) {
	raw, err := marshalState(nil)
	if err != nil || raw != nil {
		t.Fatalf("expected nil state, got %s %v", raw, err)
	}
	passthrough := json.RawMessage(`{"status":"draft"}`)
	raw, err = marshalState(passthrough)
	if err != nil || string(raw) != `{"status":"draft"}` {
		t.Fatalf("expected raw passthrough, got %s %v", raw, err)
	}
	raw, err = marshalState(map[string]string{"status": "paid"})
	if err != nil || string(raw) != `{"status":"paid"}` {
		t.Fatalf("unexpected encoding %s %v", raw, err)
	}
}
