package server

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/jrsteele09/go-spar-server/auth"
	autherrors "github.com/jrsteele09/go-spar-server/internal/errors"
)

// ContextKey is a custom type for context keys to avoid collisions
type ContextKey string

const (
	// ContextKeyPrincipal stores the principal accepted by the gate
	ContextKeyPrincipal ContextKey = "principal"
	// ContextKeyUserID stores the directory id of the principal
	ContextKeyUserID ContextKey = "user_id"
)

// bearerToken returns the token from an "Authorization: Bearer <token>" header,
// or "" when the header is absent or uses another scheme.
func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if header == "" {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

// RequireAuth runs the gate on every request. All credential rejections share
// one response body so callers cannot tell expired from revoked.
func (s *Server) RequireAuth() func(http.HandlerFunc) http.HandlerFunc {
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			// An absent header still goes through the gate so it is counted.
			principal, err := s.services.Gate.Authenticate(r.Context(), bearerToken(r))
			if err != nil {
				writeRejection(w, err)
				return
			}

			ctx := context.WithValue(r.Context(), ContextKeyPrincipal, principal)
			next(w, r.WithContext(ctx))
		}
	}
}

func writeRejection(w http.ResponseWriter, err error) {
	reason, _ := auth.ReasonOf(err)
	switch reason {
	case auth.ReasonLedgerUnavailable:
		writeJSONError(w, errorCodeUnavailable, "authentication temporarily unavailable", http.StatusServiceUnavailable)
	case auth.ReasonNoCredential:
		w.Header().Set("WWW-Authenticate", `Bearer realm="spar"`)
		writeJSONError(w, errorCodeNoCredential, "missing bearer token", http.StatusUnauthorized)
	default:
		w.Header().Set("WWW-Authenticate", `Bearer realm="spar", error="invalid_token"`)
		writeJSONError(w, errorCodeInvalidToken, "the access token is invalid", http.StatusUnauthorized)
	}
}

// PrincipalFromContext returns the principal stored by RequireAuth.
func PrincipalFromContext(ctx context.Context) (auth.Principal, bool) {
	principal, ok := ctx.Value(ContextKeyPrincipal).(auth.Principal)
	return principal, ok
}

// UserIDFromContext returns the directory id stored by RequireOwner.
func UserIDFromContext(ctx context.Context) (uint, bool) {
	id, ok := ctx.Value(ContextKeyUserID).(uint)
	return id, ok
}

// RequireOwner must follow RequireAuth. It resolves the principal to a user id
// and rejects requests whose {userId} path value names someone else.
func (s *Server) RequireOwner() func(http.HandlerFunc) http.HandlerFunc {
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			userID, err := s.callerID(r)
			if err != nil {
				writeServiceError(w, err)
				return
			}

			pathUserID, err := parseID(r.PathValue("userId"))
			if err != nil {
				writeJSONError(w, errorCodeInvalidRequest, "userId must be a positive integer", http.StatusBadRequest)
				return
			}
			if pathUserID != userID {
				writeServiceError(w, autherrors.ErrForbidden)
				return
			}

			ctx := context.WithValue(r.Context(), ContextKeyUserID, userID)
			next(w, r.WithContext(ctx))
		}
	}
}

// callerID maps the authenticated principal onto its directory id. An account
// that no longer exists is treated as forbidden.
func (s *Server) callerID(r *http.Request) (uint, error) {
	if id, ok := UserIDFromContext(r.Context()); ok {
		return id, nil
	}
	principal, ok := PrincipalFromContext(r.Context())
	if !ok {
		return 0, autherrors.Mark(autherrors.ErrInternal, nil, "callerID missing principal")
	}
	user, err := s.services.Directory.GetByUsername(r.Context(), principal.Subject)
	if err != nil {
		if autherrors.Is(err, autherrors.ErrNotFound) {
			return 0, autherrors.Mark(autherrors.ErrForbidden, err, "callerID")
		}
		return 0, err
	}
	return user.ID, nil
}

func parseID(raw string) (uint, error) {
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || id == 0 {
		return 0, autherrors.Mark(autherrors.ErrInvalidArgument, err, "parseID "+strconv.Quote(raw))
	}
	return uint(id), nil
}
