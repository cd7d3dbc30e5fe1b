// Package auth owns the shop owner identity boundary.
//
// Subpackages:
//   - user: account model, validation, and password hashing
//   - otp: one-time verification codes
//   - token: signed access tokens
//   - storage: persistence interfaces and the SQLite implementation
//   - app: register, verify, and login use-cases
//   - api/httpapi: JSON routes and the bearer-token middleware
package auth
