package handler

import (
	"encoding/json"
	"fmt"
	"net/http"

	"birdwatch/internal/app/service"
	"birdwatch/internal/common"
	"birdwatch/internal/platform/ebird"

	"github.com/go-chi/chi/v5"
)

type ObservationHandler struct {
	obsService *service.ObservationService
}

func NewObservationHandler(obsService *service.ObservationService) *ObservationHandler {
	return &ObservationHandler{obsService: obsService}
}

func (h *ObservationHandler) RegisterRoutes(r chi.Router) {
	r.Post("/observations", h.observations)
	r.Post("/nearby", h.nearby)
	r.Post("/notable", h.notable)
	r.Get("/hotspot/info", h.hotspotInfo)
	r.Get("/hotspot/nearby", h.nearbyHotspots)
}

func (h *ObservationHandler) observations(w http.ResponseWriter, r *http.Request) {
	var req service.ObservationsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		common.RespondWithError(w, http.StatusBadRequest, "Invalid request payload: "+err.Error())
		return
	}

	resp, err := h.obsService.RecentObservations(r.Context(), req)
	respondUpstream(w, resp, err)
}

func (h *ObservationHandler) nearby(w http.ResponseWriter, r *http.Request) {
	var req service.NearbyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		common.RespondWithError(w, http.StatusBadRequest, "Invalid request payload: "+err.Error())
		return
	}

	resp, err := h.obsService.NearestObservations(r.Context(), req)
	respondUpstream(w, resp, err)
}

func (h *ObservationHandler) notable(w http.ResponseWriter, r *http.Request) {
	var req service.NotableRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		common.RespondWithError(w, http.StatusBadRequest, "Invalid request payload: "+err.Error())
		return
	}

	resp, err := h.obsService.NotableObservations(r.Context(), req)
	respondUpstream(w, resp, err)
}

func (h *ObservationHandler) hotspotInfo(w http.ResponseWriter, r *http.Request) {
	resp, err := h.obsService.HotspotInfo(r.Context(), r.URL.Query().Get("locId"))
	respondUpstream(w, resp, err)
}

func (h *ObservationHandler) nearbyHotspots(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	resp, err := h.obsService.NearbyHotspots(r.Context(), q.Get("lat"), q.Get("lng"), q.Get("dist"))
	respondUpstream(w, resp, err)
}

// respondUpstream normalizes proxy results: a 200 upstream body passes
// through verbatim, a non-200 is wrapped with its original status and body,
// and a transport failure degrades to a plain 500.
func respondUpstream(w http.ResponseWriter, resp *ebird.Response, err error) {
	if err != nil {
		common.RespondWithError(w, common.HTTPStatusFromError(err), err.Error())
		return
	}
	if resp.StatusCode == http.StatusOK {
		common.RespondWithRawJSON(w, http.StatusOK, resp.Body)
		return
	}
	common.RespondWithErrorDetail(w, resp.StatusCode,
		fmt.Sprintf("eBird API error: %d", resp.StatusCode), string(resp.Body))
}
