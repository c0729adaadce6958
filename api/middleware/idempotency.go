package middleware

import (
	"bytes"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"

	"github.com/velostore/storefront-backend/api/responses"
	pkgerrors "github.com/velostore/storefront-backend/pkg/errors"
	"github.com/velostore/storefront-backend/pkg/logger"
	pkgredis "github.com/velostore/storefront-backend/pkg/redis"
)

// Money-moving endpoints keep replay records for a week; nothing else is
// covered, so there is no default TTL.
const criticalIdempotencyTTL = 7 * 24 * time.Hour

type idempotencyRule struct {
	method string
	match  func(pattern string) bool
	ttl    time.Duration
}

var idempotencyRules = []idempotencyRule{
	{http.MethodPost, exactRoute("/api/v1/checkout"), criticalIdempotencyTTL},
	{http.MethodPost, wrappedRoute("/api/v1/orders/", "/cancel"), criticalIdempotencyTTL},
	{http.MethodPost, wrappedRoute("/api/v1/orders/", "/return"), criticalIdempotencyTTL},
	{http.MethodPost, wrappedRoute("/api/v1/admin/payments/", "/refund"), criticalIdempotencyTTL},
}

func exactRoute(path string) func(string) bool {
	return func(pattern string) bool { return pattern == path }
}

func wrappedRoute(prefix, suffix string) func(string) bool {
	return func(pattern string) bool {
		return strings.HasPrefix(pattern, prefix) && strings.HasSuffix(pattern, suffix)
	}
}

// idempotencyRecord is the replayed response, stored JSON-encoded in Redis.
// RequestHash pins the key to one request body; reuse with a different body
// is a client error, not a replay.
type idempotencyRecord struct {
	Status      int               `json:"status"`
	Body        string            `json:"body"`
	Headers     map[string]string `json:"headers,omitempty"`
	RequestHash string            `json:"request_hash"`
}

// Idempotency replays the stored response for a repeated Idempotency-Key on
// the covered money-moving routes. The key scope includes the caller, so two
// users reusing the same key never collide.
func Idempotency(store pkgredis.IdempotencyStore, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ttl, covered := ruleFor(r)
			if !covered || store == nil {
				next.ServeHTTP(w, r)
				return
			}
			ctx := r.Context()

			clientKey := strings.TrimSpace(r.Header.Get("Idempotency-Key"))
			if clientKey == "" {
				responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeValidation, "Idempotency-Key header required"))
				return
			}

			body, err := io.ReadAll(r.Body)
			if err != nil {
				responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "read request"))
				return
			}
			r.Body = io.NopCloser(bytes.NewReader(body))

			bodySum := sha256.Sum256(body)
			requestHash := base64.StdEncoding.EncodeToString(bodySum[:])
			scope := strings.Join([]string{UserIDFromContext(ctx), r.Method, r.URL.Path}, "|")
			storeKey := store.IdempotencyKey(scope, clientKey)

			stored, getErr := store.Get(ctx, storeKey)
			if getErr != nil && !errors.Is(getErr, redis.Nil) {
				responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, getErr, "check idempotency"))
				return
			}
			if stored != "" {
				var record idempotencyRecord
				if err := json.Unmarshal([]byte(stored), &record); err != nil {
					responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode idempotency record"))
					return
				}
				if record.RequestHash != requestHash {
					responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeIdempotency, "idempotency key reused with different request body"))
					return
				}
				replayResponse(w, record)
				return
			}

			capture := &responseCapture{ResponseWriter: w}
			next.ServeHTTP(capture, r)

			record := idempotencyRecord{
				Status:      capture.statusOrOK(),
				Body:        base64.StdEncoding.EncodeToString(capture.body.Bytes()),
				RequestHash: requestHash,
			}
			if contentType := capture.Header().Get("Content-Type"); contentType != "" {
				record.Headers = map[string]string{"Content-Type": contentType}
			}

			payload, err := json.Marshal(record)
			if err != nil {
				if logg != nil {
					logg.Error(ctx, "marshal idempotency record", err)
				}
				return
			}
			if _, err := store.SetNX(ctx, storeKey, string(payload), ttl); err != nil && logg != nil {
				logg.Error(ctx, "persist idempotency record", err)
			}
		})
	}
}

func ruleFor(r *http.Request) (time.Duration, bool) {
	pattern := r.URL.Path
	if routeCtx := chi.RouteContext(r.Context()); routeCtx != nil {
		if p := routeCtx.RoutePattern(); p != "" {
			pattern = p
		}
	}
	for _, rule := range idempotencyRules {
		if rule.method == r.Method && rule.match(pattern) {
			return rule.ttl, true
		}
	}
	return 0, false
}

func replayResponse(w http.ResponseWriter, record idempotencyRecord) {
	if contentType := record.Headers["Content-Type"]; contentType != "" {
		w.Header().Set("Content-Type", contentType)
	}
	w.WriteHeader(record.Status)
	if decoded, err := base64.StdEncoding.DecodeString(record.Body); err == nil {
		_, _ = w.Write(decoded)
	}
}

type responseCapture struct {
	http.ResponseWriter
	body   bytes.Buffer
	status int
}

func (c *responseCapture) WriteHeader(code int) {
	c.status = code
	c.ResponseWriter.WriteHeader(code)
}

func (c *responseCapture) Write(b []byte) (int, error) {
	if c.status == 0 {
		c.status = http.StatusOK
	}
	c.body.Write(b)
	return c.ResponseWriter.Write(b)
}

func (c *responseCapture) statusOrOK() int {
	if c.status == 0 {
		return http.StatusOK
	}
	return c.status
}
