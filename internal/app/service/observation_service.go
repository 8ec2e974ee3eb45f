package service

import (
	"context"
	"fmt"
	"net/url"
	"strconv"

	"birdwatch/internal/common"
	"birdwatch/internal/platform/ebird"

	"github.com/go-playground/validator/v10"
)

// Defaults applied when the client omits optional query fields.
const (
	DefaultObsDaysBack    = 30
	DefaultNearbyDaysBack = 14
	DefaultDistKm         = 25
)

// ObservationService proxies read-only eBird queries. It checks the server
// credential before validating parameters, so a misconfigured deployment
// always answers with a config error and never reaches the network.
type ObservationService struct {
	client   ebird.Client
	apiKey   string
	validate *validator.Validate
}

func NewObservationService(client ebird.Client, apiKey string) *ObservationService {
	return &ObservationService{
		client:   client,
		apiKey:   apiKey,
		validate: validator.New(),
	}
}

type ObservationsRequest struct {
	LocationID  string `json:"locationId" validate:"required"`
	SpeciesCode string `json:"speciesCode" validate:"required"`
	DaysBack    *int   `json:"daysBack"`
}

type NearbyRequest struct {
	Lat         *float64 `json:"lat" validate:"required"`
	Lng         *float64 `json:"lng" validate:"required"`
	SpeciesCode string   `json:"speciesCode" validate:"required"`
	Dist        *int     `json:"dist"`
	DaysBack    *int     `json:"daysBack"`
}

type NotableRequest struct {
	Lat      *float64 `json:"lat" validate:"required"`
	Lng      *float64 `json:"lng" validate:"required"`
	Dist     *int     `json:"dist"`
	DaysBack *int     `json:"daysBack"`
}

func (s *ObservationService) checkCredential() error {
	if s.apiKey == "" {
		return fmt.Errorf("eBird API key missing: %w", common.ErrConfig)
	}
	return nil
}

func (s *ObservationService) validateRequest(req interface{}) error {
	if err := s.validate.Struct(req); err != nil {
		return fmt.Errorf("missing required parameters: %w", common.ErrValidation)
	}
	return nil
}

// RecentObservations returns recent sightings of one species at a location.
func (s *ObservationService) RecentObservations(ctx context.Context, req ObservationsRequest) (*ebird.Response, error) {
	if err := s.checkCredential(); err != nil {
		return nil, err
	}
	if err := s.validateRequest(req); err != nil {
		return nil, err
	}

	days := DefaultObsDaysBack
	if req.DaysBack != nil {
		days = *req.DaysBack
	}

	q := url.Values{}
	q.Set("back", strconv.Itoa(days))

	path := fmt.Sprintf("/data/obs/%s/recent/%s",
		url.PathEscape(req.LocationID), url.PathEscape(req.SpeciesCode))
	return s.client.Get(ctx, path, q)
}

// NearestObservations returns the nearest recent sightings of one species.
func (s *ObservationService) NearestObservations(ctx context.Context, req NearbyRequest) (*ebird.Response, error) {
	if err := s.checkCredential(); err != nil {
		return nil, err
	}
	if err := s.validateRequest(req); err != nil {
		return nil, err
	}

	dist := DefaultDistKm
	if req.Dist != nil {
		dist = *req.Dist
	}
	days := DefaultNearbyDaysBack
	if req.DaysBack != nil {
		days = *req.DaysBack
	}

	q := url.Values{}
	q.Set("lat", formatCoord(*req.Lat))
	q.Set("lng", formatCoord(*req.Lng))
	q.Set("dist", strconv.Itoa(dist))
	q.Set("back", strconv.Itoa(days))
	q.Set("sort", "date")

	path := "/data/nearest/geo/recent/" + url.PathEscape(req.SpeciesCode)
	return s.client.Get(ctx, path, q)
}

// NotableObservations returns notable recent sightings around a point.
func (s *ObservationService) NotableObservations(ctx context.Context, req NotableRequest) (*ebird.Response, error) {
	if err := s.checkCredential(); err != nil {
		return nil, err
	}
	if err := s.validateRequest(req); err != nil {
		return nil, err
	}

	dist := DefaultDistKm
	if req.Dist != nil {
		dist = *req.Dist
	}
	days := DefaultNearbyDaysBack
	if req.DaysBack != nil {
		days = *req.DaysBack
	}

	q := url.Values{}
	q.Set("lat", formatCoord(*req.Lat))
	q.Set("lng", formatCoord(*req.Lng))
	q.Set("dist", strconv.Itoa(dist))
	q.Set("back", strconv.Itoa(days))
	q.Set("detail", "full")

	return s.client.Get(ctx, "/data/obs/geo/recent/notable", q)
}

// HotspotInfo returns the location record for a hotspot id.
func (s *ObservationService) HotspotInfo(ctx context.Context, locID string) (*ebird.Response, error) {
	if err := s.checkCredential(); err != nil {
		return nil, err
	}
	if locID == "" {
		return nil, fmt.Errorf("missing locId parameter: %w", common.ErrValidation)
	}

	q := url.Values{}
	q.Set("fmt", "json")

	return s.client.Get(ctx, "/ref/hotspot/info/"+url.PathEscape(locID), q)
}

// NearbyHotspots returns hotspots around a point. lat/lng/dist arrive as
// query strings and are forwarded as-is.
func (s *ObservationService) NearbyHotspots(ctx context.Context, lat, lng, dist string) (*ebird.Response, error) {
	if err := s.checkCredential(); err != nil {
		return nil, err
	}
	if lat == "" || lng == "" {
		return nil, fmt.Errorf("missing lat/lng parameters: %w", common.ErrValidation)
	}
	if dist == "" {
		dist = strconv.Itoa(DefaultDistKm)
	}

	q := url.Values{}
	q.Set("lat", lat)
	q.Set("lng", lng)
	q.Set("dist", dist)
	q.Set("fmt", "json")

	return s.client.Get(ctx, "/ref/hotspot/geo", q)
}

func formatCoord(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
