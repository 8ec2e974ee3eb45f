package handler

import (
	"encoding/json"
	"net/http"
	"time"

	"birdwatch/internal/api/middleware"
	"birdwatch/internal/app/service"
	"birdwatch/internal/common"

	"github.com/go-chi/chi/v5"
)

const sessionCookieName = "jwt" // jwtauth's Verifier looks this cookie up

type AuthHandler struct {
	authService *service.AuthService
	gate        *middleware.SessionGate
}

func NewAuthHandler(authService *service.AuthService, gate *middleware.SessionGate) *AuthHandler {
	return &AuthHandler{authService: authService, gate: gate}
}

func (h *AuthHandler) RegisterRoutes(r chi.Router) {
	r.Post("/register", h.register)
	r.Post("/login", h.login)
	r.Get("/user", h.currentUser)

	r.Group(func(protected chi.Router) {
		protected.Use(h.gate.Authenticator)
		protected.Post("/logout", h.logout)
	})
}

func (h *AuthHandler) register(w http.ResponseWriter, r *http.Request) {
	var req service.RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		common.RespondWithError(w, http.StatusBadRequest, "Invalid request payload: "+err.Error())
		return
	}

	resp, err := h.authService.Register(r.Context(), req)
	if err != nil {
		common.RespondWithError(w, common.HTTPStatusFromError(err), err.Error())
		return
	}
	h.setSessionCookie(w, resp.Token)
	common.RespondWithJSON(w, http.StatusOK, resp)
}

func (h *AuthHandler) login(w http.ResponseWriter, r *http.Request) {
	var req service.LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		common.RespondWithError(w, http.StatusBadRequest, "Invalid request payload: "+err.Error())
		return
	}

	resp, err := h.authService.Login(r.Context(), req)
	if err != nil {
		common.RespondWithError(w, common.HTTPStatusFromError(err), err.Error())
		return
	}
	h.setSessionCookie(w, resp.Token)
	common.RespondWithJSON(w, http.StatusOK, resp)
}

func (h *AuthHandler) logout(w http.ResponseWriter, r *http.Request) {
	identity, ok := middleware.GetIdentityFromContext(r.Context())
	if !ok {
		common.RespondWithError(w, http.StatusUnauthorized, "Missing user context")
		return
	}

	if err := h.authService.Logout(r.Context(), identity.SessionID); err != nil {
		common.RespondWithError(w, common.HTTPStatusFromError(err), err.Error())
		return
	}
	h.clearSessionCookie(w)
	common.RespondWithJSON(w, http.StatusOK, map[string]string{"message": "Logged out successfully"})
}

// currentUser reports whether the caller holds a live session. It answers
// 200 either way.
func (h *AuthHandler) currentUser(w http.ResponseWriter, r *http.Request) {
	identity, ok := h.gate.Resolve(r)
	if !ok {
		common.RespondWithJSON(w, http.StatusOK, map[string]interface{}{"authenticated": false})
		return
	}

	common.RespondWithJSON(w, http.StatusOK, map[string]interface{}{
		"authenticated": true,
		"user": map[string]string{
			"id":       identity.UserID,
			"username": identity.Username,
		},
	})
}

func (h *AuthHandler) setSessionCookie(w http.ResponseWriter, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

func (h *AuthHandler) clearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		MaxAge:   -1,
		Expires:  time.Unix(0, 0),
	})
}
