// Package app implements the shop ledger use-cases: billing, restocking,
// inventory upkeep, daily stats, and saved assistant history.
package app
