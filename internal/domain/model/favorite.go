package model

import (
	"time"
)

// Favorite is a hotspot saved by a user. (user_id, hotspot_id) is unique.
type Favorite struct {
	ID          string    `json:"-"`
	UserID      string    `json:"-"`
	HotspotID   string    `json:"id"`
	HotspotName string    `json:"name"`
	CreatedAt   time.Time `json:"-"`
}
