package shared

import (
	"context"
	"log/slog"
	"net/http"

	"timeledger/internal/domain/audit"
	"timeledger/internal/domain/auth"
	"timeledger/internal/transport/http/api"
	"timeledger/internal/transport/http/middleware"
)

type Auditor interface {
	Record(ctx context.Context, e audit.Entry) error
}

// Session returns the acting session, writing a 401 when the request is
// anonymous.
func Session(w http.ResponseWriter, r *http.Request) (auth.Session, bool) {
	session, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", middleware.GetRequestID(r.Context()))
		return auth.Session{}, false
	}
	return session, true
}

func Fail(w http.ResponseWriter, r *http.Request, err error) {
	api.FailError(w, err, middleware.GetRequestID(r.Context()))
}

// RecordAudit stores an audit entry for a completed mutation. A failed write is
// logged and never fails the request.
func RecordAudit(r *http.Request, auditor Auditor, session auth.Session, action, entityType, entityID string, before, after any) {
	if auditor == nil {
		return
	}
	requestID := middleware.GetRequestID(r.Context())
	err := auditor.Record(r.Context(), audit.Entry{
		TenantID:   session.TenantID,
		ActorID:    session.UserID,
		Action:     action,
		EntityType: entityType,
		EntityID:   entityID,
		RequestID:  requestID,
		IP:         ClientIP(r),
		Before:     before,
		After:      after,
	})
	if err != nil {
		slog.Warn("audit write failed", "action", action, "requestId", requestID, "err", err)
	}
}
