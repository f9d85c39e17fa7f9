package billing

import (
	"context"
	"net/http"

	"github.com/google/uuid"
)

type ctxKey struct{}

// WithUserID returns a context carrying the authenticated user's ID.
// Auth middleware outside this module is expected to set it.
func WithUserID(ctx context.Context, userID uuid.UUID) context.Context {
	return context.WithValue(ctx, ctxKey{}, userID)
}

// UserIDFromContext extracts the authenticated user's ID.
func UserIDFromContext(ctx context.Context) (uuid.UUID, bool) {
	id, ok := ctx.Value(ctxKey{}).(uuid.UUID)
	return id, ok && id != uuid.Nil
}

// HeaderAuth is a minimal auth middleware that trusts the X-User-ID
// header, for deployments where an upstream gateway terminates auth.
// Requests without a valid UUID pass through unauthenticated and fail
// at the handler with 401.
func HeaderAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if raw := r.Header.Get("X-User-ID"); raw != "" {
			if id, err := uuid.Parse(raw); err == nil {
				r = r.WithContext(WithUserID(r.Context(), id))
			}
		}
		next.ServeHTTP(w, r)
	})
}
