package middleware

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"timeledger/internal/platform/apperr"
	"timeledger/internal/transport/http/api"
)

// RateLimitKeyFunc picks the bucket a request is counted against.
type RateLimitKeyFunc func(r *http.Request) string

type RateLimitOption func(*fixedWindow)

func WithKeyFunc(fn RateLimitKeyFunc) RateLimitOption {
	return func(fw *fixedWindow) {
		if fn != nil {
			fw.keyFn = fn
		}
	}
}

type bucket struct {
	count int
	reset time.Time
}

// fixedWindow counts hits per key and forgets a key once its window has
// elapsed.
type fixedWindow struct {
	mu        sync.Mutex
	limit     int
	window    time.Duration
	keyFn     RateLimitKeyFunc
	buckets   map[string]*bucket
	lastSweep time.Time
	now       func() time.Time
}

type verdict struct {
	key       string
	remaining int
	resetIn   int
	allowed   bool
}

func newFixedWindow(limit int, window time.Duration, keyFn RateLimitKeyFunc) *fixedWindow {
	if keyFn == nil {
		keyFn = actorOrIPKey
	}
	return &fixedWindow{
		limit:   limit,
		window:  window,
		keyFn:   keyFn,
		buckets: map[string]*bucket{},
		now:     time.Now,
	}
}

func (fw *fixedWindow) hit(key string) verdict {
	now := fw.now()

	fw.mu.Lock()
	defer fw.mu.Unlock()

	if now.Sub(fw.lastSweep) >= fw.window {
		for k, b := range fw.buckets {
			if now.After(b.reset) {
				delete(fw.buckets, k)
			}
		}
		fw.lastSweep = now
	}

	b, ok := fw.buckets[key]
	if !ok || now.After(b.reset) {
		b = &bucket{reset: now.Add(fw.window)}
		fw.buckets[key] = b
	}
	b.count++
	return verdict{
		key:       key,
		remaining: max(fw.limit-b.count, 0),
		resetIn:   ceilSeconds(b.reset.Sub(now)),
		allowed:   b.count <= fw.limit,
	}
}

// admit records the request and writes a 429 when the bucket is spent.
func (fw *fixedWindow) admit(w http.ResponseWriter, r *http.Request) bool {
	if fw.limit <= 0 {
		return true
	}
	key := fw.keyFn(r)
	if key == "" {
		key = clientIPKey(r)
	}
	v := fw.hit(key)

	h := w.Header()
	h.Set("X-RateLimit-Limit", strconv.Itoa(fw.limit))
	h.Set("X-RateLimit-Remaining", strconv.Itoa(v.remaining))
	h.Set("X-RateLimit-Reset", strconv.Itoa(v.resetIn))
	if v.allowed {
		return true
	}

	h.Set("Retry-After", strconv.Itoa(max(v.resetIn, 1)))
	slog.Warn("rate limit exceeded",
		"key", v.key,
		"method", r.Method,
		"path", r.URL.Path,
		"limit", fw.limit,
		"window", fw.window.String(),
	)
	api.Fail(w, http.StatusTooManyRequests, string(apperr.KindRateLimited), "too many requests", GetRequestID(r.Context()))
	return false
}

// RateLimit throttles every request, keyed by actor when authenticated and by
// client address otherwise.
func RateLimit(limit int, window time.Duration, opts ...RateLimitOption) func(http.Handler) http.Handler {
	fw := newFixedWindow(limit, window, actorOrIPKey)
	for _, opt := range opts {
		opt(fw)
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if fw.admit(w, r) {
				next.ServeHTTP(w, r)
			}
		})
	}
}

// SensitiveMutationRateLimit applies tighter limits to login and to money
// moving mutations. Login is counted both per address and per email.
func SensitiveMutationRateLimit(baseLimit int, window time.Duration) func(http.Handler) http.Handler {
	loginLimit := max(baseLimit/4, 1)
	loginChecks := []*fixedWindow{
		newFixedWindow(loginLimit, window, clientIPKey),
		newFixedWindow(loginLimit, window, AuthEmailOrIPKey("email")),
	}
	mutationChecks := []*fixedWindow{
		newFixedWindow(max(baseLimit/2, 1), window, actorOrIPKey),
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var checks []*fixedWindow
			switch classifySensitive(r) {
			case sensitiveLogin:
				checks = loginChecks
			case sensitiveMutation:
				checks = mutationChecks
			}
			for _, fw := range checks {
				if !fw.admit(w, r) {
					return
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}

// AuthEmailOrIPKey buckets by the lowercased JSON body field, falling back to
// the client address. The body is restored for the next handler.
func AuthEmailOrIPKey(field string) RateLimitKeyFunc {
	field = strings.TrimSpace(field)
	if field == "" {
		field = "email"
	}
	return func(r *http.Request) string {
		if value := peekJSONField(r, field); value != "" {
			return "email:" + strings.ToLower(value)
		}
		return clientIPKey(r)
	}
}

// ClientIPKey buckets requests by caller address only.
func ClientIPKey(r *http.Request) string {
	return clientIPKey(r)
}

func actorOrIPKey(r *http.Request) string {
	if session, ok := GetUser(r.Context()); ok && session.UserID != "" {
		return "user:" + session.TenantID + ":" + session.UserID
	}
	return clientIPKey(r)
}

func clientIPKey(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		first, _, _ := strings.Cut(fwd, ",")
		if first = strings.TrimSpace(first); first != "" {
			return first
		}
	}
	addr := strings.TrimSpace(r.RemoteAddr)
	if host, _, err := net.SplitHostPort(addr); err == nil && host != "" {
		return host
	}
	return addr
}

func ceilSeconds(d time.Duration) int {
	if d <= 0 {
		return 0
	}
	return int((d + time.Second - 1) / time.Second)
}

const peekLimit = 64 << 10

func peekJSONField(r *http.Request, field string) string {
	if r.Body == nil || !strings.Contains(strings.ToLower(r.Header.Get("Content-Type")), "application/json") {
		return ""
	}
	raw, err := io.ReadAll(io.LimitReader(r.Body, peekLimit))
	if err != nil {
		return ""
	}
	r.Body = io.NopCloser(io.MultiReader(bytes.NewReader(raw), r.Body))

	var payload map[string]json.RawMessage
	if err := json.Unmarshal(raw, &payload); err != nil {
		return ""
	}
	var value string
	if err := json.Unmarshal(payload[field], &value); err != nil {
		return ""
	}
	return strings.TrimSpace(value)
}

type sensitiveKind int

const (
	sensitiveNone sensitiveKind = iota
	sensitiveLogin
	sensitiveMutation
)

var sensitiveExact = map[string]sensitiveKind{
	"/auth/login":    sensitiveLogin,
	"/payroll/rates": sensitiveMutation,
	"/users":         sensitiveMutation,
}

var sensitiveSuffixes = map[string][]string{
	"/payroll/periods/":  {"/process", "/approve", "/mark-paid", "/void"},
	"/account-requests/": {"/approve", "/reject"},
}

func classifySensitive(r *http.Request) sensitiveKind {
	switch r.Method {
	case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
	default:
		return sensitiveNone
	}

	path := strings.TrimPrefix(r.URL.Path, "/api")
	if kind, ok := sensitiveExact[strings.TrimSuffix(path, "/")]; ok {
		return kind
	}
	for prefix, suffixes := range sensitiveSuffixes {
		if !strings.HasPrefix(path, prefix) {
			continue
		}
		for _, suffix := range suffixes {
			if strings.HasSuffix(path, suffix) {
				return sensitiveMutation
			}
		}
	}
	return sensitiveNone
}
