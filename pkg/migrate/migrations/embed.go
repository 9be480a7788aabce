// Package migrations holds the goose SQL migrations and embeds them so
// binaries and tests can migrate without the source tree.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
