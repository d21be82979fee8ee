package realtime

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"testing"

	"timeledger/internal/domain/events"
)

func newClient(id string, sub Subscription) *Client {
	return &Client{ID: id, Send: make(chan []byte, 4), Subscription: sub}
}

func received(c *Client) []events.Event {
	var out []events.Event
	for {
		select {
		case msg := <-c.Send:
			var evt events.Event
			if err := json.Unmarshal(msg, &evt); err == nil {
				out = append(out, evt)
			}
		default:
			return out
		}
	}
}

func TestPublishScopesByTenantAndOwner(t *testing.T) {
	h := NewHub()
	admin := newClient("admin", Subscription{TenantID: "t-1", UserID: "a-1", Privileged: true})
	mine := newClient("mine", Subscription{TenantID: "t-1", UserID: "u-1"})
	theirs := newClient("theirs", Subscription{TenantID: "t-1", UserID: "u-2"})
	foreign := newClient("foreign", Subscription{TenantID: "t-2", UserID: "u-9", Privileged: true})
	for _, c := range []*Client{admin, mine, theirs, foreign} {
		h.Register(c)
	}

	ctx := context.Background()
	h.Publish(ctx, events.New(events.TypeTimeEntryCreated, "t-1", events.Resource{Type: events.ResourceTimeEntry, ID: "te-1", UserID: "u-1"}))
	h.Publish(ctx, events.New(events.TypePayrollPeriod, "t-1", events.Resource{Type: events.ResourcePayrollPeriod, ID: "p-1"}))

	if got := len(received(admin)); got != 2 {
		t.Fatalf("expected admin to get 2 events, got %d", got)
	}
	if got := len(received(mine)); got != 2 {
		t.Fatalf("expected owner to get 2 events, got %d", got)
	}
	theirsEvents := received(theirs)
	if len(theirsEvents) != 1 || theirsEvents[0].Type != events.TypePayrollPeriod {
		t.Fatalf("expected only the period event, got %+v", theirsEvents)
	}
	if got := len(received(foreign)); got != 0 {
		t.Fatalf("expected no cross-tenant events, got %d", got)
	}
}

func TestTypeFilterAndUnregister(t *testing.T) {
	h := NewHub()
	c := newClient("c", Subscription{TenantID: "t-1", Privileged: true})
	h.Register(c)
	h.SetTypes(c, []string{events.TypePayRateUpdated})

	h.Publish(context.Background(), events.New(events.TypeTimeEntryDeleted, "t-1", events.Resource{Type: events.ResourceTimeEntry, ID: "x"}))
	h.Publish(context.Background(), events.New(events.TypePayRateUpdated, "t-1", events.Resource{Type: events.ResourcePayRate, ID: "r"}))
	got := received(c)
	if len(got) != 1 || got[0].Type != events.TypePayRateUpdated {
		t.Fatalf("expected only the rate event, got %+v", got)
	}

	h.Unregister(c)
	h.Unregister(c)
	if h.Count() != 0 {
		t.Fatalf("expected no clients, got %d", h.Count())
	}
	if _, open := <-c.Send; open {
		t.Fatal("expected send channel to be closed")
	}
}

func TestSlowClientDropsInsteadOfBlocking(t *testing.T) {
	h := NewHub()
	c := &Client{ID: "slow", Send: make(chan []byte, 1), Subscription: Subscription{TenantID: "t-1", Privileged: true}}
	h.Register(c)
	for i := 0; i < 5; i++ {
		h.Publish(context.Background(), events.New(events.TypePayrollPeriod, "t-1", events.Resource{Type: events.ResourcePayrollPeriod}))
	}
	if len(c.Send) != 1 {
		t.Fatalf("expected one buffered message, got %d", len(c.Send))
	}
}

func TestParseSubscribe(t *testing.T) {
	msg, ok := ParseSubscribe([]byte(`{"action":"subscribe","types":["pay_rate_updated"]}`))
	if !ok || len(msg.Types) != 1 {
		t.Fatalf("unexpected parse %+v %v", msg, ok)
	}
	if _, ok := ParseSubscribe([]byte(`{"action":"shout"}`)); ok {
		t.Fatal("expected unknown action to be ignored")
	}
	if _, ok := ParseSubscribe([]byte(`not json`)); ok {
		t.Fatal("expected invalid json to be ignored")
	}
}

func TestTokenFromRequest(t *testing.T) {
	r := httptest.NewRequest("GET", "/api/realtime/info?token=abc", nil)
	if got := tokenFromRequest(r); got != "abc" {
		t.Fatalf("expected query token, got %q", got)
	}
	r.Header.Set("Authorization", "Bearer xyz")
	if got := tokenFromRequest(r); got != "xyz" {
		t.Fatalf("expected bearer token, got %q", got)
	}
}
