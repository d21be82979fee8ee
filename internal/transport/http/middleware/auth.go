package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"timeledger/internal/domain/auth"
	"timeledger/internal/transport/http/api"
)

type ctxKey string

const (
	ctxKeyUser  ctxKey = "session"
	ctxKeyToken ctxKey = "token"
)

type Authenticator interface {
	Authenticate(ctx context.Context, token string) (auth.Session, error)
}

// Auth resolves a bearer token into an auth.Session. Requests without a valid
// token continue anonymously; RequireAuth and RequirePermission reject them.
func Auth(authenticator Authenticator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := BearerToken(r)
			if token == "" {
				next.ServeHTTP(w, r)
				return
			}

			session, err := authenticator.Authenticate(r.Context(), token)
			if err != nil {
				slog.Debug("bearer token rejected", "requestId", GetRequestID(r.Context()), "err", err)
				next.ServeHTTP(w, r)
				return
			}

			ctx := context.WithValue(r.Context(), ctxKeyUser, session)
			ctx = context.WithValue(ctx, ctxKeyToken, token)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := GetUser(r.Context()); !ok {
			api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", GetRequestID(r.Context()))
			return
		}
		next.ServeHTTP(w, r)
	})
}

func BearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	parts := strings.Fields(header)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return ""
	}
	return parts[1]
}

func GetUser(ctx context.Context) (auth.Session, bool) {
	session, ok := ctx.Value(ctxKeyUser).(auth.Session)
	return session, ok
}

func GetToken(ctx context.Context) string {
	token, _ := ctx.Value(ctxKeyToken).(string)
	return token
}

// WithSession stores a session on ctx the way Auth does.
func WithSession(ctx context.Context, session auth.Session) context.Context {
	return context.WithValue(ctx, ctxKeyUser, session)
}
