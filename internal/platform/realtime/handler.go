package realtime

import (
	"context"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/igm/sockjs-go/sockjs"

	"timeledger/internal/domain/auth"
)

const Prefix = "/api/realtime"

type Authenticator interface {
	Authenticate(ctx context.Context, token string) (auth.Session, error)
}

// Handler serves the SockJS endpoint. Clients authenticate with a bearer
// header or a token query parameter, then may send subscribe messages to
// narrow the event types they receive.
func Handler(h *Hub, authn Authenticator) http.Handler {
	return sockjs.NewHandler(Prefix, sockjs.DefaultOptions, func(session sockjs.Session) {
		token := tokenFromRequest(session.Request())
		if token == "" {
			_ = session.Close(4001, "missing token")
			return
		}
		caller, err := authn.Authenticate(context.Background(), token)
		if err != nil {
			_ = session.Close(4002, "invalid token")
			return
		}

		client := &Client{
			ID:   uuid.NewString(),
			Send: make(chan []byte, 32),
			Subscription: Subscription{
				TenantID:   caller.TenantID,
				UserID:     caller.UserID,
				Privileged: caller.Privileged(),
			},
		}
		h.Register(client)
		defer h.Unregister(client)

		go func() {
			for msg := range client.Send {
				if err := session.Send(string(msg)); err != nil {
					return
				}
			}
		}()

		for {
			msg, err := session.Recv()
			if err != nil {
				return
			}
			parsed, ok := ParseSubscribe([]byte(msg))
			if !ok {
				continue
			}
			if parsed.Action == "unsubscribe" {
				h.SetTypes(client, nil)
				continue
			}
			h.SetTypes(client, parsed.Types)
		}
	})
}

func tokenFromRequest(r *http.Request) string {
	if r == nil {
		return ""
	}
	parts := strings.Fields(r.Header.Get("Authorization"))
	if len(parts) == 2 && strings.EqualFold(parts[0], "bearer") {
		return parts[1]
	}
	return strings.TrimSpace(r.URL.Query().Get("token"))
}
