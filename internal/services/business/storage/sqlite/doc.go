// Package sqlite provides SQLite-backed business persistence.
//
// Inventory, sales, the adjustment ledger, the activity feed, and saved
// assistant conversations share one file so a bill and its stock movements
// commit in a single transaction.
package sqlite
