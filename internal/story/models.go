package story

import (
	"time"

	"backend-fliptok/internal/profile"
)

const lifetime = 24 * time.Hour

type Story struct {
	ID        string       `json:"id"`
	UserID    string       `json:"user_id"`
	Author    profile.User `json:"author"`
	ImageURL  string       `json:"image_url"`
	Views     int64        `json:"views"`
	Viewed    bool         `json:"viewed"`
	CreatedAt time.Time    `json:"created_at"`
	ExpiresAt time.Time    `json:"expires_at"`
}

// Reel is one user's active stories, oldest first, as the viewer plays them.
type Reel struct {
	Author    profile.User `json:"author"`
	Stories   []Story      `json:"stories"`
	LatestAt  time.Time    `json:"latest_at"`
	AllViewed bool         `json:"all_viewed"`
}

type CreateRequest struct {
	ImageURL string `json:"image_url"`
}
