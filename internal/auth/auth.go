package auth

import (
	"context"
	"fmt"
	"net/http"
)

// User is the identity attached to a request by the middleware. The
// service sits behind a proxy that authenticates users and forwards
// their identity in headers.
type User struct {
	ID    string
	Email string
}

type contextKey struct{}

var ErrNoUser = fmt.Errorf("no authenticated user in context")

func WithUser(ctx context.Context, user User) context.Context {
	return context.WithValue(ctx, contextKey{}, user)
}

func CurrentUser(ctx context.Context) (User, error) {
	user, ok := ctx.Value(contextKey{}).(User)
	if !ok {
		return User{}, ErrNoUser
	}
	return user, nil
}

// Middleware extracts the forwarded identity headers. Requests without an
// identity are rejected before they reach a handler.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-User-Id")
		if id == "" {
			http.Error(w, "authentication required", http.StatusUnauthorized)
			return
		}
		user := User{ID: id, Email: r.Header.Get("X-User-Email")}
		next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), user)))
	})
}
