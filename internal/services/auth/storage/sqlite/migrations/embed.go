// Package migrations embeds the auth schema: users and their pending OTPs.
package migrations

import "embed"

// FS holds the ordered *.sql files applied by sqlitemigrate.
//
//go:embed *.sql
var FS embed.FS
