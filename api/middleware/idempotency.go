package middleware

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/farmconnect/farmconnect-backend/api/responses"
	pkgerrors "github.com/farmconnect/farmconnect-backend/pkg/errors"
	"github.com/farmconnect/farmconnect-backend/pkg/logger"
	pkgredis "github.com/farmconnect/farmconnect-backend/pkg/redis"
)

const (
	IdempotencyKeyHeader = "Idempotency-Key"
	idempotentReplayHdr  = "Idempotent-Replayed"

	defaultIdempotencyTTL  = 24 * time.Hour
	criticalIdempotencyTTL = 7 * 24 * time.Hour

	// in-flight claims expire on their own if the process dies mid-request
	inflightTTL       = 30 * time.Second
	maxReplayBodySize = 1 << 20
)

// replayRoute describes a mutating endpoint whose responses are kept for
// replay. Segments equal to "*" match any single path segment.
type replayRoute struct {
	method   string
	segments []string
	ttl      time.Duration
}

var replayRoutes = []replayRoute{
	newReplayRoute(http.MethodPost, "/api/buyer/checkout", criticalIdempotencyTTL),
	newReplayRoute(http.MethodPost, "/api/buyer/orders/*/payment", criticalIdempotencyTTL),
	newReplayRoute(http.MethodPost, "/api/buyer/orders/*/cancel", criticalIdempotencyTTL),
	newReplayRoute(http.MethodPost, "/api/buyer/cart/items", defaultIdempotencyTTL),
	newReplayRoute(http.MethodPost, "/api/farmer/products", defaultIdempotencyTTL),
	newReplayRoute(http.MethodPost, "/api/conversations", defaultIdempotencyTTL),
}

func newReplayRoute(method, pattern string, ttl time.Duration) replayRoute {
	return replayRoute{method: method, segments: splitPath(pattern), ttl: ttl}
}

func (rr replayRoute) matches(method string, segments []string) bool {
	if rr.method != method || len(rr.segments) != len(segments) {
		return false
	}
	for i, seg := range rr.segments {
		if seg != "*" && seg != segments[i] {
			return false
		}
	}
	return true
}

func splitPath(path string) []string {
	return strings.Split(strings.Trim(path, "/"), "/")
}

// storedResponse is what gets written under an idempotency key. A record
// with Pending set marks a request that is still executing.
type storedResponse struct {
	Pending     bool            `json:"pending,omitempty"`
	Fingerprint string          `json:"fingerprint"`
	Status      int             `json:"status,omitempty"`
	ContentType string          `json:"content_type,omitempty"`
	Body        json.RawMessage `json:"body,omitempty"`
}

// Idempotency replays the first completed response for a repeated
// Idempotency-Key on the routes in replayRoutes. The key is optional;
// requests without it run normally. Reusing a key with a different body,
// or while the first request is still running, is rejected with 409.
// Server errors release the key so the client can retry.
func Idempotency(store pkgredis.IdempotencyStore, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			clientKey := strings.TrimSpace(r.Header.Get(IdempotencyKeyHeader))
			ttl, tracked := routeTTL(r.Method, r.URL.Path)
			if store == nil || !tracked || clientKey == "" {
				next.ServeHTTP(w, r)
				return
			}
			ctx := r.Context()

			body, err := io.ReadAll(io.LimitReader(r.Body, maxReplayBodySize))
			if err != nil {
				responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "read request body"))
				return
			}
			r.Body = io.NopCloser(bytes.NewReader(body))

			fingerprint := fingerprintBody(body)
			key := store.IdempotencyKey(UserIDFromContext(ctx)+":"+r.Method+":"+r.URL.Path, clientKey)

			claim, _ := json.Marshal(storedResponse{Pending: true, Fingerprint: fingerprint})
			claimed, err := store.SetNX(ctx, key, string(claim), inflightTTL)
			if err != nil {
				responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "claim idempotency key"))
				return
			}
			if !claimed {
				replayExisting(w, r, store, key, fingerprint, logg)
				return
			}

			capture := &responseCapture{ResponseWriter: w}
			next.ServeHTTP(capture, r)

			status := capture.statusCode()
			if status >= http.StatusInternalServerError {
				if err := store.Del(ctx, key); err != nil && logg != nil {
					logg.Error(ctx, "release idempotency key", err)
				}
				return
			}

			record := storedResponse{
				Fingerprint: fingerprint,
				Status:      status,
				ContentType: capture.Header().Get("Content-Type"),
			}
			if capture.body.Len() > 0 && json.Valid(capture.body.Bytes()) {
				record.Body = json.RawMessage(capture.body.Bytes())
			}
			payload, err := json.Marshal(record)
			if err == nil {
				err = store.Set(ctx, key, string(payload), ttl)
			}
			if err != nil && logg != nil {
				logg.Error(ctx, "persist idempotency record", err)
			}
		})
	}
}

func replayExisting(w http.ResponseWriter, r *http.Request, store pkgredis.IdempotencyStore, key, fingerprint string, logg *logger.Logger) {
	ctx := r.Context()
	raw, err := store.Get(ctx, key)
	if errors.Is(err, redis.Nil) {
		// the claim expired or was released between SetNX and Get
		responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeIdempotency, "idempotent request still in progress, retry"))
		return
	}
	if err != nil {
		responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load idempotency record"))
		return
	}

	var record storedResponse
	if err := json.Unmarshal([]byte(raw), &record); err != nil {
		responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "decode idempotency record"))
		return
	}

	switch {
	case record.Fingerprint != fingerprint:
		responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeIdempotency, "idempotency key reused with a different request body"))
	case record.Pending:
		responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeIdempotency, "idempotent request still in progress, retry"))
	default:
		if record.ContentType != "" {
			w.Header().Set("Content-Type", record.ContentType)
		}
		w.Header().Set(idempotentReplayHdr, "true")
		w.WriteHeader(record.Status)
		if len(record.Body) > 0 {
			_, _ = w.Write(record.Body)
		}
	}
}

func fingerprintBody(body []byte) string {
	sum := sha256.Sum256(bytes.TrimSpace(body))
	return hex.EncodeToString(sum[:])
}

func routeTTL(method, path string) (time.Duration, bool) {
	segments := splitPath(path)
	for _, route := range replayRoutes {
		if route.matches(method, segments) {
			return route.ttl, true
		}
	}
	return 0, false
}

type responseCapture struct {
	http.ResponseWriter
	body   bytes.Buffer
	status int
}

func (c *responseCapture) WriteHeader(code int) {
	if c.status == 0 {
		c.status = code
	}
	c.ResponseWriter.WriteHeader(code)
}

func (c *responseCapture) Write(b []byte) (int, error) {
	if c.status == 0 {
		c.status = http.StatusOK
	}
	c.body.Write(b)
	return c.ResponseWriter.Write(b)
}

func (c *responseCapture) statusCode() int {
	if c.status == 0 {
		return http.StatusOK
	}
	return c.status
}
