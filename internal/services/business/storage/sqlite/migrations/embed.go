// Package migrations embeds the business schema: inventory, sales, stock
// adjustments, activity, and chat history.
package migrations

import "embed"

// FS holds the ordered *.sql files applied by sqlitemigrate.
//
//go:embed *.sql
var FS embed.FS
