// Package requestctx carries authenticated caller identity through a request.
package requestctx

import "context"

type userContextKey struct{}

// User is the caller identity attached by the auth middleware.
type User struct {
	Email string
	Name  string
}

// WithUser stores the authenticated user in context.
func WithUser(ctx context.Context, user User) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, userContextKey{}, user)
}

// UserFromContext returns the user stored in context and whether one was set.
func UserFromContext(ctx context.Context) (User, bool) {
	if ctx == nil {
		return User{}, false
	}
	value, ok := ctx.Value(userContextKey{}).(User)
	return value, ok
}

// EmailFromContext returns the authenticated email or an empty string.
func EmailFromContext(ctx context.Context) string {
	user, _ := UserFromContext(ctx)
	return user.Email
}
