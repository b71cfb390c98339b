package comment

import (
	"time"

	"backend-fliptok/internal/profile"
	"backend-fliptok/internal/shared/timestamp"
)

type Comment struct {
	ID         string              `json:"id"`
	FeedItemID string              `json:"feed_item_id"`
	UserID     string              `json:"user_id"`
	Author     profile.User        `json:"author"`
	ParentID   *string             `json:"parent_id,omitempty"`
	Text       string              `json:"text,omitempty"`
	AudioURL   string              `json:"audio_url,omitempty"`
	SpeechURL  string              `json:"speech_url,omitempty"`
	Likes      int64               `json:"likes"`
	Liked      bool                `json:"liked"`
	FirstTime  bool                `json:"first_time"`
	Pinned     bool                `json:"pinned"`
	Published  bool                `json:"published"`
	PublishAt  *time.Time          `json:"publish_at,omitempty"`
	CreatedAt  timestamp.Timestamp `json:"created_at"`
}

type CreateRequest struct {
	Text      string     `json:"text"`
	AudioURL  string     `json:"audio_url"`
	ParentID  string     `json:"parent_id"`
	PublishAt *time.Time `json:"publish_at"`
}

// Thread is a top-level comment with the replies its disclosure reveals.
type Thread struct {
	Comment        Comment    `json:"comment"`
	Replies        []Comment  `json:"replies"`
	ReplyCount     int        `json:"reply_count"`
	HiddenReplies  int        `json:"hidden_replies"`
	Disclosure     Disclosure `json:"disclosure"`
	NextDisclosure Disclosure `json:"next_disclosure"`
}

type Page struct {
	Threads         []Thread `json:"threads"`
	PinnedCommentID string   `json:"pinned_comment_id,omitempty"`
	NextCursor      string   `json:"next_cursor,omitempty"`
}

type LikeState struct {
	Liked bool  `json:"liked"`
	Likes int64 `json:"likes"`
}

type PinRequest struct {
	CommentID string `json:"comment_id"`
}
