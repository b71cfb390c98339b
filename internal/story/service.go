package story

import (
	"context"
	"errors"
	"net/url"
	"sort"
	"strings"
	"time"

	"backend-fliptok/internal/db"

	"github.com/google/uuid"
)

var (
	ErrNotFound     = errors.New("story not found")
	ErrInvalidImage = errors.New("image_url must be an http(s) URL or an uploaded file path")
)

type Service struct {
	db  db.Querier
	now func() time.Time
}

func NewService(q db.Querier) *Service {
	return &Service{db: q, now: time.Now}
}

func (s *Service) Create(ctx context.Context, userID string, req CreateRequest) (Story, error) {
	if !validImageURL(req.ImageURL) {
		return Story{}, ErrInvalidImage
	}
	st := Story{
		ID:       uuid.NewString(),
		UserID:   userID,
		ImageURL: strings.TrimSpace(req.ImageURL),
	}
	st.Author.ID = userID
	st.CreatedAt = s.now().UTC()
	st.ExpiresAt = st.CreatedAt.Add(lifetime)

	_, err := s.db.Exec(ctx, `
		INSERT INTO stories (id, user_id, image_url, created_at, expires_at)
		VALUES ($1,$2,$3,$4,$5)
	`, st.ID, st.UserID, st.ImageURL, st.CreatedAt, st.ExpiresAt)
	if err != nil {
		return Story{}, err
	}
	return st, nil
}

// Active groups unexpired stories by author, most recently updated reel first.
func (s *Service) Active(ctx context.Context, viewerID string) ([]Reel, error) {
	rows, err := s.db.Query(ctx, `
		SELECT st.id, st.user_id, p.handle, p.display_name, p.avatar_url,
		       st.image_url, st.views, st.created_at, st.expires_at,
		       EXISTS (SELECT 1 FROM story_views v WHERE v.story_id = st.id AND v.viewer_id = $1)
		FROM stories st
		JOIN profiles p ON p.user_id = st.user_id
		WHERE st.expires_at > $2
		ORDER BY st.created_at, st.id
	`, viewerID, s.now())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	reels := map[string]*Reel{}
	for rows.Next() {
		var st Story
		if err := rows.Scan(&st.ID, &st.UserID, &st.Author.Handle, &st.Author.DisplayName, &st.Author.AvatarURL,
			&st.ImageURL, &st.Views, &st.CreatedAt, &st.ExpiresAt, &st.Viewed); err != nil {
			return nil, err
		}
		st.Author.ID = st.UserID
		r, ok := reels[st.UserID]
		if !ok {
			r = &Reel{Author: st.Author, AllViewed: true}
			reels[st.UserID] = r
		}
		r.Stories = append(r.Stories, st)
		if st.CreatedAt.After(r.LatestAt) {
			r.LatestAt = st.CreatedAt
		}
		r.AllViewed = r.AllViewed && st.Viewed
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	out := make([]Reel, 0, len(reels))
	for _, r := range reels {
		out = append(out, *r)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].LatestAt.Equal(out[j].LatestAt) {
			return out[i].LatestAt.After(out[j].LatestAt)
		}
		return out[i].Author.ID < out[j].Author.ID
	})
	return out, nil
}

// View records viewerID once; repeat views leave the count alone.
func (s *Service) View(ctx context.Context, viewerID, storyID string) (int64, error) {
	tag, err := s.db.Exec(ctx, `
		INSERT INTO story_views (story_id, viewer_id)
		VALUES ($1,$2)
		ON CONFLICT DO NOTHING
	`, storyID, viewerID)
	if err != nil {
		if db.IsForeignKeyViolation(err) {
			return 0, ErrNotFound
		}
		return 0, err
	}

	sql := `SELECT views FROM stories WHERE id=$1`
	if tag.RowsAffected() > 0 {
		sql = `UPDATE stories SET views = views + 1 WHERE id=$1 RETURNING views`
	}
	var views int64
	if err := s.db.QueryRow(ctx, sql, storyID).Scan(&views); err != nil {
		if db.IsNoRows(err) {
			return 0, ErrNotFound
		}
		return 0, err
	}
	return views, nil
}

func validImageURL(raw string) bool {
	raw = strings.TrimSpace(raw)
	if strings.HasPrefix(raw, "/") && !strings.HasPrefix(raw, "//") {
		return true
	}
	u, err := url.Parse(raw)
	return err == nil && (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}
