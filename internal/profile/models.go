package profile

import "time"

// User is the public identity embedded wherever content is shown.
type User struct {
	ID          string `json:"id"`
	Handle      string `json:"handle"`
	DisplayName string `json:"display_name"`
	AvatarURL   string `json:"avatar_url"`
}

type Profile struct {
	User
	Bio       string    `json:"bio"`
	Followers int64     `json:"followers"`
	Following int64     `json:"following"`
	Videos    int64     `json:"videos"`
	CreatedAt time.Time `json:"created_at"`
}

type UpdateRequest struct {
	DisplayName *string `json:"display_name"`
	Bio         *string `json:"bio"`
	AvatarURL   *string `json:"avatar_url"`
}

type Follow struct {
	FollowerID  string `json:"follower_id"`
	FollowingID string `json:"following_id"`
}
