package server

import (
	"net/http"
	"time"

	"github.com/jrsteele09/go-spar-server/auth"
	"github.com/jrsteele09/go-spar-server/users"
	"github.com/rs/zerolog/log"
)

type signupRequest struct {
	Username string `json:"username" validate:"required,min=3,max=100"`
	Email    string `json:"email" validate:"required,email,max=255"`
	Password string `json:"password" validate:"required,max=72"`
}

type signinRequest struct {
	Username string `json:"username" validate:"required,max=100"`
	Password string `json:"password" validate:"required,max=72"`
}

type sessionResponse struct {
	Token     string `json:"token"`
	TokenType string `json:"tokenType"`
	UserID    uint   `json:"userId"`
	Username  string `json:"username"`
	ExpiresIn int64  `json:"expiresIn"` // seconds
}

type sessionInfo struct {
	TokenID   string    `json:"jti"`
	IssuedAt  time.Time `json:"issuedAt"`
	ExpiresAt time.Time `json:"expiresAt"`
	Live      bool      `json:"live"`
	Current   bool      `json:"current"`
}

func newSessionResponse(user *users.User, session auth.Session) sessionResponse {
	return sessionResponse{
		Token:     session.Token,
		TokenType: "Bearer",
		UserID:    user.ID,
		Username:  user.Username,
		ExpiresIn: int64(session.Credential.ExpiresAt.Sub(session.Credential.IssuedAt) / time.Second),
	}
}

// SignupHandler registers an account and signs it straight in.
func (s *Server) SignupHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req signupRequest
		if !s.decodeAndValidate(w, r, &req) {
			return
		}

		user, err := s.services.Directory.Register(r.Context(), req.Username, req.Email, req.Password)
		if err != nil {
			writeServiceError(w, err)
			return
		}

		session, err := s.services.Issuer.Login(r.Context(), user.Username)
		if err != nil {
			log.Err(err).Str("username", user.Username).Msg("account created but login failed")
			writeServiceError(w, err)
			return
		}

		writeJSON(w, http.StatusCreated, newSessionResponse(user, session))
	}
}

func (s *Server) SigninHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req signinRequest
		if !s.decodeAndValidate(w, r, &req) {
			return
		}

		user, err := s.services.Directory.Authenticate(r.Context(), req.Username, req.Password)
		if err != nil {
			writeServiceError(w, err)
			return
		}

		session, err := s.services.Issuer.Login(r.Context(), user.Username)
		if err != nil {
			writeServiceError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, newSessionResponse(user, session))
	}
}

// SignoutHandler revokes the presented token. It does not go through the gate,
// so an expired token can still be signed out.
func (s *Server) SignoutHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		raw := bearerToken(r)
		if raw == "" {
			w.Header().Set("WWW-Authenticate", `Bearer realm="spar"`)
			writeJSONError(w, errorCodeNoCredential, "missing bearer token", http.StatusUnauthorized)
			return
		}

		if err := s.services.Gate.Logout(r.Context(), raw); err != nil {
			writeServiceError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func (s *Server) SignoutAllHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		principal, _ := PrincipalFromContext(r.Context())

		n, err := s.services.Gate.LogoutAll(r.Context(), principal.Subject)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]int64{"revoked": n})
	}
}

// SessionsHandler lists the ledger rows held for the caller.
func (s *Server) SessionsHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		principal, _ := PrincipalFromContext(r.Context())

		records, err := s.services.Gate.Sessions(r.Context(), principal.Subject)
		if err != nil {
			writeServiceError(w, err)
			return
		}

		now := time.Now()
		sessions := make([]sessionInfo, 0, len(records))
		for _, record := range records {
			sessions = append(sessions, sessionInfo{
				TokenID:   record.JTI,
				IssuedAt:  record.IssuedAt,
				ExpiresAt: record.ExpiresAt,
				Live:      record.Live(now),
				Current:   record.JTI == principal.TokenID,
			})
		}
		writeJSON(w, http.StatusOK, map[string]any{"sessions": sessions})
	}
}
