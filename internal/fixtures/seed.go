package fixtures

import (
	"context"
	"fmt"

	"backend-fliptok/internal/db"

	"golang.org/x/crypto/bcrypt"
)

var hashPasswordFn = func(pw string) ([]byte, error) {
	return bcrypt.GenerateFromPassword([]byte(pw), bcrypt.DefaultCost)
}

// Seed inserts every fixture, skipping rows that already exist.
func Seed(ctx context.Context, q db.Querier) error {
	hash, err := hashPasswordFn(Password)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	for _, u := range Users() {
		p := u.Profile
		if _, err := q.Exec(ctx, `
			INSERT INTO users (id, email, password_hash, created_at, updated_at)
			VALUES ($1,$2,$3,$4,$4)
			ON CONFLICT DO NOTHING
		`, p.ID, u.Email, string(hash), p.CreatedAt); err != nil {
			return fmt.Errorf("seed user %s: %w", p.Handle, err)
		}
		if _, err := q.Exec(ctx, `
			INSERT INTO profiles (user_id, handle, display_name, avatar_url, bio, created_at)
			VALUES ($1,$2,$3,$4,$5,$6)
			ON CONFLICT DO NOTHING
		`, p.ID, p.Handle, p.DisplayName, p.AvatarURL, p.Bio, p.CreatedAt); err != nil {
			return fmt.Errorf("seed profile %s: %w", p.Handle, err)
		}
	}

	for _, s := range Sounds() {
		if _, err := q.Exec(ctx, `
			INSERT INTO sounds (id, title, artist, cover_url, duration_sec, uses)
			VALUES ($1,$2,$3,$4,$5,$6)
			ON CONFLICT DO NOTHING
		`, s.ID, s.Title, s.Artist, s.CoverURL, s.DurationSec, s.Uses); err != nil {
			return fmt.Errorf("seed sound %s: %w", s.Title, err)
		}
	}

	for _, it := range FeedItems() {
		if _, err := q.Exec(ctx, `
			INSERT INTO feed_items (id, user_id, video_url, thumbnail_url, caption, sound_id, likes, comments, shares, created_at)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
			ON CONFLICT DO NOTHING
		`, it.ID, it.UserID, it.VideoURL, it.ThumbnailURL, it.Caption, it.SoundID,
			it.Likes, it.Comments, it.Shares, it.CreatedAt.Time); err != nil {
			return fmt.Errorf("seed feed item %s: %w", it.ID, err)
		}
	}

	comments := Comments()
	parents := make(map[string]string, len(comments))
	for _, c := range comments {
		if c.ParentID != nil {
			parents[c.ID] = *c.ParentID
		}
	}
	for _, c := range comments {
		var rootID *string
		if c.ParentID != nil {
			root := rootOf(parents, c.ID)
			rootID = &root
		}
		if _, err := q.Exec(ctx, `
			INSERT INTO comments (id, feed_item_id, user_id, parent_id, root_id, text, likes, first_time, published, created_at)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
			ON CONFLICT DO NOTHING
		`, c.ID, c.FeedItemID, c.UserID, c.ParentID, rootID, c.Text,
			c.Likes, c.FirstTime, c.Published, c.CreatedAt.Time); err != nil {
			return fmt.Errorf("seed comment %s: %w", c.ID, err)
		}
	}

	for _, st := range Stories() {
		if _, err := q.Exec(ctx, `
			INSERT INTO stories (id, user_id, image_url, created_at, expires_at)
			VALUES ($1,$2,$3,$4,$5)
			ON CONFLICT DO NOTHING
		`, st.ID, st.UserID, st.ImageURL, st.CreatedAt, st.ExpiresAt); err != nil {
			return fmt.Errorf("seed story %s: %w", st.ID, err)
		}
	}

	for _, ch := range Chats() {
		last := ch.Messages[len(ch.Messages)-1]
		if _, err := q.Exec(ctx, `
			INSERT INTO chats (id, user_a, user_b, last_message, last_message_at, created_at)
			VALUES ($1,$2,$3,$4,$5,$6)
			ON CONFLICT DO NOTHING
		`, ch.ID, ch.UserA, ch.UserB, last.Text, last.CreatedAt, ch.Messages[0].CreatedAt); err != nil {
			return fmt.Errorf("seed chat %s: %w", ch.ID, err)
		}
		for _, m := range ch.Messages {
			if _, err := q.Exec(ctx, `
				INSERT INTO chat_messages (id, chat_id, sender_id, text, created_at)
				VALUES ($1,$2,$3,$4,$5)
				ON CONFLICT DO NOTHING
			`, m.ID, m.ChatID, m.SenderID, m.Text, m.CreatedAt); err != nil {
				return fmt.Errorf("seed message %s: %w", m.ID, err)
			}
		}
	}
	return nil
}

// rootOf follows parent links to the top-level comment.
func rootOf(parents map[string]string, id string) string {
	for {
		p, ok := parents[id]
		if !ok {
			return id
		}
		id = p
	}
}
