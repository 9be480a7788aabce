package redis

import "strings"

// Namespace prefixes every key this service writes.
const Namespace = "sd"

const (
	idempotencyPrefix = "idempotency"
	rateLimitPrefix   = "rate_limit"
	sessionPrefix     = "session"
	lockPrefix        = "lock"
)

// Key joins parts under the service namespace, dropping blanks.
func Key(parts ...string) string {
	var b strings.Builder
	b.WriteString(Namespace)
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		b.WriteByte(':')
		b.WriteString(part)
	}
	return b.String()
}

// RateLimitKey names a throttling counter, e.g. sd:rate_limit:login:ip:1.2.3.4.
func RateLimitKey(parts ...string) string {
	return Key(append([]string{rateLimitPrefix}, parts...)...)
}

func (c *Client) IdempotencyKey(scope, id string) string {
	return Key(idempotencyPrefix, scope, id)
}

func (c *Client) AccessSessionKey(accessID string) string {
	return Key(sessionPrefix, "access", accessID)
}

func (c *Client) LockKey(name string) string {
	return Key(lockPrefix, name)
}
