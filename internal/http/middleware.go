package http

import (
	"context"
	"net/http"
	"strings"

	"soldi/internal/core"
	"soldi/internal/log"
)

// Identity headers set by the fronting auth proxy.
const (
	HeaderUserID    = "X-User-ID"
	HeaderUserEmail = "X-User-Email"
	HeaderUserName  = "X-User-Name"
)

type contextKey string

const userContextKey contextKey = "user"

// withUser resolves the caller from the identity headers, provisioning
// the user on first sight, and puts it on the request context. Requests
// without an identity are rejected.
func (s *Server) withUser(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		externalID := strings.TrimSpace(r.Header.Get(HeaderUserID))
		if externalID == "" {
			s.writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "missing identity"})
			return
		}

		user, err := s.repo.EnsureUser(r.Context(),
			externalID,
			strings.TrimSpace(r.Header.Get(HeaderUserEmail)),
			strings.TrimSpace(r.Header.Get(HeaderUserName)),
		)
		if err != nil {
			s.logger.ErrorContext(r.Context(), "failed to resolve user",
				log.FieldError, err,
			)
			s.writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal error"})
			return
		}

		ctx := context.WithValue(r.Context(), userContextKey, user)
		next(w, r.WithContext(ctx))
	}
}

// withRateLimit caps mutating requests per user. Read paths stay
// unlimited.
func (s *Server) withRateLimit(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.limiter != nil {
			user := userFrom(r.Context())
			if !s.limiter.Allow(user.ID.String()) {
				s.logger.WarnContext(r.Context(), "rate limit exceeded",
					log.FieldUserID, user.ID.String(),
					"path", r.URL.Path,
				)
				s.writeJSON(w, http.StatusTooManyRequests, errorResponse{Error: "too many requests"})
				return
			}
		}
		next(w, r)
	}
}

// userFrom returns the resolved caller. Only reachable behind withUser.
func userFrom(ctx context.Context) core.User {
	user, _ := ctx.Value(userContextKey).(core.User)
	return user
}
