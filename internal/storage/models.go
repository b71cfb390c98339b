package storage

import (
	"time"
)

type Kind string

const (
	KindVideo  Kind = "video"
	KindImage  Kind = "image"
	KindAudio  Kind = "audio"
	KindSpeech Kind = "speech"
)

// maxBytes caps an upload per kind.
var maxBytes = map[Kind]int64{
	KindVideo:  100 << 20,
	KindImage:  10 << 20,
	KindAudio:  20 << 20,
	KindSpeech: 20 << 20,
}

func (k Kind) Valid() bool {
	_, ok := maxBytes[k]
	return ok
}

type Object struct {
	ID           string    `json:"id"`
	UserID       string    `json:"user_id"`
	URL          string    `json:"url"`
	Kind         Kind      `json:"kind"`
	ThumbnailURL string    `json:"thumbnail_url,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	path         string
}
