// Package storage defines persistence contracts for owner accounts and
// their pending verification codes.
package storage
