// Package env reads raw environment variables for code that runs before
// config.Load, such as the bootstrap logger.
package env

import (
	"os"
	"strings"
)

// Lookup returns the first non-blank value among keys, or fallback.
func Lookup(fallback string, keys ...string) string {
	for _, key := range keys {
		if v := strings.TrimSpace(os.Getenv(key)); v != "" {
			return v
		}
	}
	return fallback
}
