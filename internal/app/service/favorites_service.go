package service

import (
	"context"
	"fmt"

	"birdwatch/internal/common"
	"birdwatch/internal/domain/model"
	"birdwatch/internal/domain/repository"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

type FavoritesService struct {
	favRepo  repository.FavoriteRepository
	validate *validator.Validate
}

func NewFavoritesService(favRepo repository.FavoriteRepository) *FavoritesService {
	return &FavoritesService{favRepo: favRepo, validate: validator.New()}
}

type AddFavoriteRequest struct {
	HotspotID   string `json:"id" validate:"required"`
	HotspotName string `json:"name" validate:"required"`
}

func (s *FavoritesService) List(ctx context.Context, userID string) ([]model.Favorite, error) {
	favorites, err := s.favRepo.ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list favorites: %w", err)
	}
	return favorites, nil
}

// Add is idempotent: favoriting an already-favorited hotspot succeeds
// without creating a second row.
func (s *FavoritesService) Add(ctx context.Context, userID string, req AddFavoriteRequest) (string, error) {
	if err := s.validate.Struct(req); err != nil {
		return "", fmt.Errorf("missing id or name: %w", common.ErrValidation)
	}

	fav := &model.Favorite{
		ID:          uuid.NewString(),
		UserID:      userID,
		HotspotID:   req.HotspotID,
		HotspotName: req.HotspotName,
	}

	created, err := s.favRepo.Insert(ctx, fav)
	if err != nil {
		return "", fmt.Errorf("failed to add favorite: %w", err)
	}
	if !created {
		return "Already in favorites", nil
	}
	return "Added to favorites", nil
}

// Remove deletes the caller's favorite. A favorite owned by someone else is
// reported as not found, same as a missing one.
func (s *FavoritesService) Remove(ctx context.Context, userID, hotspotID string) error {
	deleted, err := s.favRepo.Delete(ctx, userID, hotspotID)
	if err != nil {
		return fmt.Errorf("failed to delete favorite: %w", err)
	}
	if !deleted {
		return fmt.Errorf("favorite %s: %w", hotspotID, common.ErrNotFound)
	}
	return nil
}
