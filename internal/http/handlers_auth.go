package http

import (
	"net/http"

	"finanzas/internal/auth"
	"finanzas/internal/core"
	"finanzas/internal/log"
)

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, r, err)
		return
	}
	sess, err := s.deps.Auth.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		if core.IsUnauthorizedError(err) {
			log.FromContext(r.Context()).Fields(r.Context(), log.StatusLevel(http.StatusUnauthorized), "Login rejected",
				log.NewFields().WithOperation(log.OpLogin).WithError(err, log.ErrorTypeAuth))
		}
		respondError(w, r, err)
		return
	}
	auth.SetCookie(w, sess, s.opts.SecureCookies)
	respondJSON(w, http.StatusOK, successBody{Success: true})
}

// handleLogout succeeds whether or not a session was attached.
func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if err := s.deps.Auth.Logout(r.Context(), auth.TokenFromRequest(r)); err != nil {
		respondError(w, r, err)
		return
	}
	auth.ClearCookie(w)
	respondJSON(w, http.StatusOK, successBody{Success: true})
}

// Accounts are provisioned with the admin tool only.
func (s *Server) handleRegister(w http.ResponseWriter, _ *http.Request) {
	respondStatus(w, http.StatusForbidden, "registration is disabled")
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	sess, ok := auth.SessionFromContext(r.Context())
	if !ok {
		respondError(w, r, core.NewUnauthorizedError("not authenticated"))
		return
	}
	respondJSON(w, http.StatusOK, core.User{ID: sess.UserID, Username: sess.Username})
}
