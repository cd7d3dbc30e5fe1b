// Package otp issues and checks the one-time codes that verify a new
// owner's email.
package otp
