// Package user defines the shop owner account used to sign in.
//
// Emails are the account key and are stored lower-cased so login lookups
// do not depend on how the owner typed them.
package user
