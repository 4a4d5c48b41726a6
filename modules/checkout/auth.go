package checkout

import (
	"context"
	"net/http"

	"github.com/google/uuid"
)

type userKey struct{}

func (h *Handler) requireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID, err := h.users(r)
		if err != nil || userID == uuid.Nil {
			writeError(w, http.StatusUnauthorized, "authentication required")
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), userKey{}, userID)))
	})
}

func userFromContext(ctx context.Context) uuid.UUID {
	id, _ := ctx.Value(userKey{}).(uuid.UUID)
	return id
}

// HeaderUserResolver reads the user ID from a header set by a trusted
// authenticating proxy in front of the service.
func HeaderUserResolver(header string) UserResolver {
	return func(r *http.Request) (uuid.UUID, error) {
		return uuid.Parse(r.Header.Get(header))
	}
}
