// Package app implements owner registration, OTP verification, and login
// over the auth store.
package app
