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
	"strings"
	"time"

	"github.com/angelmondragon/shopdesk-backend/api/responses"
	pkgerrors "github.com/angelmondragon/shopdesk-backend/pkg/errors"
	"github.com/angelmondragon/shopdesk-backend/pkg/logger"
	pkgredis "github.com/angelmondragon/shopdesk-backend/pkg/redis"
)

// maxAuthBody caps how much of a login/register body is buffered for
// account extraction.
const maxAuthBody = 64 << 10

type rateLimiterStore interface {
	IncrWithTTL(context.Context, string, time.Duration) (int64, error)
}

// AuthRateLimitPolicy throttles one auth surface (login, register) per client
// IP and per shop account.
type AuthRateLimitPolicy struct {
	name         string
	window       time.Duration
	ipLimit      int
	accountLimit int
}

// NewAuthRateLimitPolicy builds a policy. accountLimit counts attempts per
// (shop_name, username) pair since usernames are only unique within a shop.
func NewAuthRateLimitPolicy(name string, window time.Duration, ipLimit, accountLimit int) AuthRateLimitPolicy {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		name = "auth"
	}
	return AuthRateLimitPolicy{name: name, window: window, ipLimit: ipLimit, accountLimit: accountLimit}
}

func (p AuthRateLimitPolicy) enabled() bool {
	return p.window > 0 && (p.ipLimit > 0 || p.accountLimit > 0)
}

type rateCheck struct {
	scope string
	id    string
	limit int
}

func (p AuthRateLimitPolicy) key(c rateCheck) string {
	return pkgredis.RateLimitKey(p.name, c.scope, c.id)
}

// AuthRateLimit answers 429 once either counter passes its limit inside the
// policy window. Redis failures surface as dependency errors.
func AuthRateLimit(policy AuthRateLimitPolicy, store rateLimiterStore, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if !policy.enabled() || store == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			var checks []rateCheck

			if ip := clientIP(r); policy.ipLimit > 0 && ip != "" {
				checks = append(checks, rateCheck{scope: "ip", id: ip, limit: policy.ipLimit})
			}
			if policy.accountLimit > 0 {
				body, err := io.ReadAll(io.LimitReader(r.Body, maxAuthBody))
				if err != nil {
					responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "read request body"))
					return
				}
				r.Body = io.NopCloser(bytes.NewReader(body))
				if account := accountFingerprint(body); account != "" {
					checks = append(checks, rateCheck{scope: "account", id: account, limit: policy.accountLimit})
				}
			}

			for _, check := range checks {
				count, err := store.IncrWithTTL(ctx, policy.key(check), policy.window)
				if err != nil {
					responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "rate limiting"))
					return
				}
				if count > int64(check.limit) {
					rejectAuthAttempt(ctx, logg, w, policy, check, count)
					return
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}

func rejectAuthAttempt(ctx context.Context, logg *logger.Logger, w http.ResponseWriter, policy AuthRateLimitPolicy, check rateCheck, count int64) {
	if logg != nil {
		fields := map[string]any{
			"policy":         policy.name,
			"scope":          check.scope,
			"attempts":       count,
			"limit":          check.limit,
			"window_seconds": int(policy.window.Seconds()),
		}
		// account ids are already hashed; IPs are logged as-is
		fields[check.scope] = check.id
		logg.Warn(logg.WithFields(ctx, fields), "auth.rate_limit.blocked")
	}
	responses.WriteError(ctx, nil, w, pkgerrors.New(pkgerrors.CodeRateLimit, "too many attempts, try again later"))
}

func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		first, _, _ := strings.Cut(fwd, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}
	if ip := strings.TrimSpace(r.Header.Get("X-Real-IP")); ip != "" {
		return ip
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil && host != "" {
		return host
	}
	return r.RemoteAddr
}

// accountFingerprint hashes the lower-cased shop name and username so raw
// credentials never reach redis or the logs. Empty when no username is sent.
func accountFingerprint(payload []byte) string {
	var body struct {
		Username string `json:"username"`
		ShopName string `json:"shop_name"`
	}
	if err := json.Unmarshal(payload, &body); err != nil {
		return ""
	}
	username := strings.ToLower(strings.TrimSpace(body.Username))
	if username == "" {
		return ""
	}
	shop := strings.ToLower(strings.TrimSpace(body.ShopName))
	sum := sha256.Sum256([]byte(shop + "\x00" + username))
	return hex.EncodeToString(sum[:])
}
