package feed

import (
	"backend-fliptok/internal/profile"
	"backend-fliptok/internal/shared/timestamp"
	"backend-fliptok/internal/sound"
)

type Item struct {
	ID              string              `json:"id"`
	UserID          string              `json:"user_id"`
	Author          profile.User        `json:"author"`
	VideoURL        string              `json:"video_url"`
	ThumbnailURL    string              `json:"thumbnail_url"`
	Caption         string              `json:"caption"`
	SoundID         *string             `json:"sound_id,omitempty"`
	Sound           *sound.Sound        `json:"sound,omitempty"`
	Likes           int64               `json:"likes"`
	Comments        int64               `json:"comments"`
	Shares          int64               `json:"shares"`
	Liked           bool                `json:"liked"`
	PinnedCommentID *string             `json:"pinned_comment_id,omitempty"`
	CreatedAt       timestamp.Timestamp `json:"created_at"`
}

type CreateRequest struct {
	VideoURL     string `json:"video_url"`
	ThumbnailURL string `json:"thumbnail_url"`
	Caption      string `json:"caption"`
	SoundID      string `json:"sound_id"`
}

type Page struct {
	Items      []Item `json:"items"`
	NextCursor string `json:"next_cursor,omitempty"`
	// Ranked is false when the for-you feed fell back to chronological order.
	Ranked bool `json:"ranked,omitempty"`
}

type LikeState struct {
	Liked bool  `json:"liked"`
	Likes int64 `json:"likes"`
}
