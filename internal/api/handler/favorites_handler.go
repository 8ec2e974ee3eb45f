package handler

import (
	"encoding/json"
	"net/http"

	"birdwatch/internal/api/middleware"
	"birdwatch/internal/app/service"
	"birdwatch/internal/common"

	"github.com/go-chi/chi/v5"
)

type FavoritesHandler struct {
	favService *service.FavoritesService
	gate       *middleware.SessionGate
}

func NewFavoritesHandler(favService *service.FavoritesService, gate *middleware.SessionGate) *FavoritesHandler {
	return &FavoritesHandler{favService: favService, gate: gate}
}

func (h *FavoritesHandler) RegisterRoutes(r chi.Router) {
	r.Use(h.gate.Authenticator)
	r.Get("/", h.list)
	r.Post("/", h.add)
	r.Delete("/{hotspotID}", h.remove)
}

func (h *FavoritesHandler) list(w http.ResponseWriter, r *http.Request) {
	identity, ok := middleware.GetIdentityFromContext(r.Context())
	if !ok {
		common.RespondWithError(w, http.StatusUnauthorized, "Missing user context")
		return
	}

	favorites, err := h.favService.List(r.Context(), identity.UserID)
	if err != nil {
		common.RespondWithError(w, common.HTTPStatusFromError(err), err.Error())
		return
	}
	common.RespondWithJSON(w, http.StatusOK, favorites)
}

func (h *FavoritesHandler) add(w http.ResponseWriter, r *http.Request) {
	identity, ok := middleware.GetIdentityFromContext(r.Context())
	if !ok {
		common.RespondWithError(w, http.StatusUnauthorized, "Missing user context")
		return
	}

	var req service.AddFavoriteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		common.RespondWithError(w, http.StatusBadRequest, "Invalid request payload: "+err.Error())
		return
	}

	message, err := h.favService.Add(r.Context(), identity.UserID, req)
	if err != nil {
		common.RespondWithError(w, common.HTTPStatusFromError(err), err.Error())
		return
	}
	common.RespondWithJSON(w, http.StatusOK, map[string]string{"message": message})
}

func (h *FavoritesHandler) remove(w http.ResponseWriter, r *http.Request) {
	identity, ok := middleware.GetIdentityFromContext(r.Context())
	if !ok {
		common.RespondWithError(w, http.StatusUnauthorized, "Missing user context")
		return
	}

	hotspotID := chi.URLParam(r, "hotspotID")
	if err := h.favService.Remove(r.Context(), identity.UserID, hotspotID); err != nil {
		common.RespondWithError(w, common.HTTPStatusFromError(err), err.Error())
		return
	}
	common.RespondWithJSON(w, http.StatusOK, map[string]string{"message": "Deleted"})
}
