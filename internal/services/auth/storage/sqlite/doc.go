// Package sqlite provides SQLite-backed auth persistence.
//
// It is the on-disk account store used by the server and by command
// tooling that exercises registration flows.
package sqlite
