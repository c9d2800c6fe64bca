package middleware

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/farmconnect/farmconnect-backend/api/responses"
	pkgerrors "github.com/farmconnect/farmconnect-backend/pkg/errors"
	"github.com/farmconnect/farmconnect-backend/pkg/logger"
)

// maxCredentialBody bounds how much of a login/register body is buffered to find the email.
const maxCredentialBody = 64 << 10

// RateLimiter is a fixed window counter keyed by scope.
type RateLimiter interface {
	FixedWindowAllow(ctx context.Context, scope string, limit int64, window time.Duration) (bool, int64, error)
}

// AuthRateLimitPolicy throttles one credential endpoint per client IP and per email.
type AuthRateLimitPolicy struct {
	name       string
	window     time.Duration
	ipLimit    int64
	emailLimit int64
}

func NewAuthRateLimitPolicy(name string, window time.Duration, ipLimit, emailLimit int) AuthRateLimitPolicy {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		name = "auth"
	}
	return AuthRateLimitPolicy{
		name:       name,
		window:     window,
		ipLimit:    int64(ipLimit),
		emailLimit: int64(emailLimit),
	}
}

func (p AuthRateLimitPolicy) enabled() bool {
	return p.window > 0 && (p.ipLimit > 0 || p.emailLimit > 0)
}

// counter is one fixed window a request is charged against.
type counter struct {
	kind  string
	key   string
	limit int64
}

// counters lists the windows r is charged against. The body is buffered and
// restored when the email counter needs it.
func (p AuthRateLimitPolicy) counters(r *http.Request) ([]counter, error) {
	var out []counter
	if ip := clientIP(r); p.ipLimit > 0 && ip != "" {
		out = append(out, counter{kind: "ip", key: ip, limit: p.ipLimit})
	}
	if p.emailLimit <= 0 || r.Body == nil {
		return out, nil
	}
	body, err := io.ReadAll(io.LimitReader(r.Body, maxCredentialBody))
	if err != nil {
		return nil, err
	}
	r.Body = io.NopCloser(bytes.NewReader(body))
	if email := emailFromBody(body); email != "" {
		out = append(out, counter{kind: "email", key: hashEmail(email), limit: p.emailLimit})
	}
	return out, nil
}

// AuthRateLimit rejects requests with 429 once any counter passes its limit.
// A limiter failure is reported as a dependency error rather than letting the
// request through.
func AuthRateLimit(policy AuthRateLimitPolicy, limiter RateLimiter, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if !policy.enabled() || limiter == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			counters, err := policy.counters(r)
			if err != nil {
				responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "unreadable request body"))
				return
			}
			for _, c := range counters {
				if err := policy.charge(ctx, limiter, logg, c); err != nil {
					if pkgerrors.IsCode(err, pkgerrors.CodeRateLimit) {
						w.Header().Set("Retry-After", strconv.Itoa(int(policy.window.Seconds())))
					}
					responses.WriteError(ctx, logg, w, err)
					return
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}

func (p AuthRateLimitPolicy) charge(ctx context.Context, limiter RateLimiter, logg *logger.Logger, c counter) error {
	scope := p.name + ":" + c.kind + ":" + c.key
	allowed, count, err := limiter.FixedWindowAllow(ctx, scope, c.limit, p.window)
	switch {
	case err != nil:
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "rate limiter unavailable")
	case allowed:
		return nil
	}
	if logg != nil {
		logg.Warn(logg.WithFields(ctx, map[string]any{
			"policy":   p.name,
			"scope":    c.kind,
			"attempts": count,
			"limit":    c.limit,
		}), "auth.rate_limited")
	}
	return pkgerrors.New(pkgerrors.CodeRateLimit, "too many attempts").
		WithDetails(map[string]any{"scope": c.kind, "retry_after_seconds": int(p.window.Seconds())})
}

// clientIP prefers the first X-Forwarded-For hop, then X-Real-IP, then the socket address.
func clientIP(r *http.Request) string {
	if first, _, _ := strings.Cut(r.Header.Get("X-Forwarded-For"), ","); strings.TrimSpace(first) != "" {
		return strings.TrimSpace(first)
	}
	if ip := strings.TrimSpace(r.Header.Get("X-Real-IP")); ip != "" {
		return ip
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}

func emailFromBody(payload []byte) string {
	var body struct {
		Email string `json:"email"`
	}
	if err := json.Unmarshal(payload, &body); err != nil {
		return ""
	}
	return strings.ToLower(strings.TrimSpace(body.Email))
}

// hashEmail keeps raw addresses out of redis keys and logs.
func hashEmail(email string) string {
	sum := sha256.Sum256([]byte(email))
	return hex.EncodeToString(sum[:16])
}
