package repository

import (
	"context"
	"database/sql"
	"fmt"

	"birdwatch/internal/domain/model"
)

type FavoriteRepository interface {
	// Insert adds a favorite. It reports created=false when the
	// (user_id, hotspot_id) pair already exists; that is not an error.
	Insert(ctx context.Context, fav *model.Favorite) (created bool, err error)
	// Delete removes the caller's favorite and reports whether a row was hit.
	Delete(ctx context.Context, userID, hotspotID string) (deleted bool, err error)
	ListByUser(ctx context.Context, userID string) ([]model.Favorite, error)
}

type pgFavoriteRepository struct {
	db *sql.DB
}

func NewPgFavoriteRepository(db *sql.DB) FavoriteRepository {
	return &pgFavoriteRepository{db: db}
}

// Insert relies on the UNIQUE (user_id, hotspot_id) constraint so that
// concurrent identical adds collapse into a single row.
func (r *pgFavoriteRepository) Insert(ctx context.Context, fav *model.Favorite) (bool, error) {
	query := `INSERT INTO favorites (id, user_id, hotspot_id, hotspot_name)
	          VALUES ($1, $2, $3, $4)
	          ON CONFLICT (user_id, hotspot_id) DO NOTHING`
	res, err := r.db.ExecContext(ctx, query, fav.ID, fav.UserID, fav.HotspotID, fav.HotspotName)
	if err != nil {
		return false, fmt.Errorf("pgFavoriteRepository.Insert: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("pgFavoriteRepository.Insert: %w", err)
	}
	return rows > 0, nil
}

func (r *pgFavoriteRepository) Delete(ctx context.Context, userID, hotspotID string) (bool, error) {
	query := `DELETE FROM favorites WHERE user_id = $1 AND hotspot_id = $2`
	res, err := r.db.ExecContext(ctx, query, userID, hotspotID)
	if err != nil {
		return false, fmt.Errorf("pgFavoriteRepository.Delete: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("pgFavoriteRepository.Delete: %w", err)
	}
	return rows > 0, nil
}

func (r *pgFavoriteRepository) ListByUser(ctx context.Context, userID string) ([]model.Favorite, error) {
	query := `SELECT id, user_id, hotspot_id, hotspot_name, created_at
	          FROM favorites WHERE user_id = $1
	          ORDER BY created_at, id`
	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("pgFavoriteRepository.ListByUser: %w", err)
	}
	defer rows.Close()

	favorites := []model.Favorite{}
	for rows.Next() {
		var fav model.Favorite
		if err := rows.Scan(&fav.ID, &fav.UserID, &fav.HotspotID, &fav.HotspotName, &fav.CreatedAt); err != nil {
			return nil, fmt.Errorf("pgFavoriteRepository.ListByUser: %w", err)
		}
		favorites = append(favorites, fav)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("pgFavoriteRepository.ListByUser: %w", err)
	}
	return favorites, nil
}
