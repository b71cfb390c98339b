package feed

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"

	"backend-fliptok/internal/ai"
	"backend-fliptok/internal/db"
	"backend-fliptok/internal/logging"
	"backend-fliptok/internal/shared/cursor"
	"backend-fliptok/internal/shared/timestamp"
	"backend-fliptok/internal/sound"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	maxCaptionRunes = 2200
	forYouPool      = 50
	historySize     = 20
)

var (
	ErrNotFound       = errors.New("feed item not found")
	ErrInvalidVideo   = errors.New("video_url must be an http(s) URL or an uploaded file path")
	ErrCaptionTooLong = errors.New("caption too long")
	ErrUnknownSound   = errors.New("unknown sound")
)

// Recommender ranks candidate items for a viewer.
type Recommender interface {
	Recommend(ctx context.Context, req ai.RecommendRequest) (ai.RecommendResult, error)
}

const itemSelect = `
	SELECT f.id, f.user_id, p.handle, p.display_name, p.avatar_url,
	       f.video_url, f.thumbnail_url, f.caption,
	       s.id, s.title, s.artist, s.cover_url, s.duration_sec, s.uses,
	       f.likes, f.comments, f.shares, f.pinned_comment_id, f.created_at,
	       EXISTS (SELECT 1 FROM feed_likes l WHERE l.feed_item_id = f.id AND l.user_id = $1)
	FROM feed_items f
	JOIN profiles p ON p.user_id = f.user_id
	LEFT JOIN sounds s ON s.id = f.sound_id`

type Service struct {
	db     db.Querier
	sounds *sound.Service
	rec    Recommender
	log    *zap.Logger
}

func NewService(q db.Querier, sounds *sound.Service, rec Recommender, log *zap.Logger) *Service {
	return &Service{db: q, sounds: sounds, rec: rec, log: logging.OrNop(log).Named("feed")}
}

func (s *Service) Create(ctx context.Context, userID string, req CreateRequest) (Item, error) {
	if !validMediaURL(req.VideoURL) {
		return Item{}, ErrInvalidVideo
	}
	caption := strings.TrimSpace(req.Caption)
	if utf8.RuneCountInString(caption) > maxCaptionRunes {
		return Item{}, ErrCaptionTooLong
	}

	var soundID *string
	if req.SoundID != "" {
		if err := s.sounds.IncrementUses(ctx, req.SoundID); err != nil {
			if errors.Is(err, sound.ErrNotFound) {
				return Item{}, ErrUnknownSound
			}
			return Item{}, err
		}
		soundID = &req.SoundID
	}

	id := uuid.NewString()
	var createdAt time.Time
	err := s.db.QueryRow(ctx, `
		INSERT INTO feed_items (id, user_id, video_url, thumbnail_url, caption, sound_id)
		VALUES ($1,$2,$3,$4,$5,$6)
		RETURNING created_at
	`, id, userID, req.VideoURL, req.ThumbnailURL, caption, soundID).Scan(&createdAt)
	if err != nil {
		return Item{}, err
	}
	s.log.Info("feed item created", zap.String("id", id), zap.String("user_id", userID))
	return s.Get(ctx, userID, id)
}

func (s *Service) Get(ctx context.Context, viewerID, id string) (Item, error) {
	item, err := scanItem(s.db.QueryRow(ctx, itemSelect+` WHERE f.id = $2`, viewerID, id))
	if err != nil {
		if db.IsNoRows(err) {
			return Item{}, ErrNotFound
		}
		return Item{}, err
	}
	return item, nil
}

// Chronological pages through every item, newest first.
func (s *Service) Chronological(ctx context.Context, viewerID, after string, limit int) (Page, error) {
	pos, err := cursor.Decode(after)
	if err != nil {
		return Page{}, err
	}
	return s.page(ctx, viewerID, "", pos, limit)
}

func (s *Service) ByUser(ctx context.Context, viewerID, userID, after string, limit int) (Page, error) {
	pos, err := cursor.Decode(after)
	if err != nil {
		return Page{}, err
	}
	return s.page(ctx, viewerID, userID, pos, limit)
}

// ForYou ranks the newest items with the recommender. Any recommender
// failure or an empty ranking yields chronological order.
func (s *Service) ForYou(ctx context.Context, viewerID string, limit int) (Page, error) {
	pool, err := s.page(ctx, viewerID, "", nil, forYouPool)
	if err != nil {
		return Page{}, err
	}
	chronological := Page{Items: pool.Items}
	if len(chronological.Items) > limit {
		chronological.Items = chronological.Items[:limit]
	}
	if s.rec == nil || viewerID == "" || len(pool.Items) == 0 {
		return chronological, nil
	}

	history, err := s.likedCaptions(ctx, viewerID, historySize)
	if err != nil {
		return Page{}, err
	}

	candidates := make([]ai.Candidate, 0, len(pool.Items))
	for _, it := range pool.Items {
		candidates = append(candidates, ai.Candidate{ID: it.ID, Text: candidateText(it)})
	}
	res, err := s.rec.Recommend(ctx, ai.RecommendRequest{
		UserID:     viewerID,
		History:    history,
		Candidates: candidates,
		Limit:      limit,
	})
	if err != nil || res.Fallback || len(res.IDs) == 0 {
		if err != nil {
			s.log.Warn("recommend failed, serving chronological feed", zap.Error(err))
		}
		return chronological, nil
	}

	return Page{Items: rank(pool.Items, res.IDs, limit), Ranked: true}, nil
}

func (s *Service) Like(ctx context.Context, userID, id string) (LikeState, error) {
	tag, err := s.db.Exec(ctx, `
		INSERT INTO feed_likes (feed_item_id, user_id)
		VALUES ($1,$2)
		ON CONFLICT DO NOTHING
	`, id, userID)
	if err != nil {
		if db.IsForeignKeyViolation(err) {
			return LikeState{}, ErrNotFound
		}
		return LikeState{}, err
	}
	if tag.RowsAffected() == 0 {
		likes, err := s.counter(ctx, `SELECT likes FROM feed_items WHERE id=$1`, id)
		return LikeState{Liked: true, Likes: likes}, err
	}
	likes, err := s.counter(ctx, `UPDATE feed_items SET likes = likes + 1 WHERE id=$1 RETURNING likes`, id)
	return LikeState{Liked: true, Likes: likes}, err
}

func (s *Service) Unlike(ctx context.Context, userID, id string) (LikeState, error) {
	tag, err := s.db.Exec(ctx, `DELETE FROM feed_likes WHERE feed_item_id=$1 AND user_id=$2`, id, userID)
	if err != nil {
		return LikeState{}, err
	}
	if tag.RowsAffected() == 0 {
		likes, err := s.counter(ctx, `SELECT likes FROM feed_items WHERE id=$1`, id)
		return LikeState{Likes: likes}, err
	}
	likes, err := s.counter(ctx, `UPDATE feed_items SET likes = GREATEST(likes - 1, 0) WHERE id=$1 RETURNING likes`, id)
	return LikeState{Likes: likes}, err
}

func (s *Service) Share(ctx context.Context, id string) (int64, error) {
	return s.counter(ctx, `UPDATE feed_items SET shares = shares + 1 WHERE id=$1 RETURNING shares`, id)
}

// Candidates returns captioned items as search candidates.
func (s *Service) Candidates(ctx context.Context, limit int) ([]ai.Candidate, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, caption FROM feed_items
		WHERE caption <> ''
		ORDER BY created_at DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []ai.Candidate{}
	for rows.Next() {
		var c ai.Candidate
		if err := rows.Scan(&c.ID, &c.Text); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *Service) page(ctx context.Context, viewerID, userID string, pos *cursor.Position, limit int) (Page, error) {
	args := []any{viewerID}
	var conds []string
	if userID != "" {
		args = append(args, userID)
		conds = append(conds, fmt.Sprintf("f.user_id = $%d", len(args)))
	}
	if pos != nil {
		args = append(args, pos.CreatedAt, pos.ID)
		conds = append(conds, fmt.Sprintf("(f.created_at, f.id) < ($%d, $%d)", len(args)-1, len(args)))
	}
	args = append(args, limit+1)

	sql := itemSelect
	if len(conds) > 0 {
		sql += " WHERE " + strings.Join(conds, " AND ")
	}
	sql += fmt.Sprintf(" ORDER BY f.created_at DESC, f.id DESC LIMIT $%d", len(args))

	rows, err := s.db.Query(ctx, sql, args...)
	if err != nil {
		return Page{}, err
	}
	defer rows.Close()

	items := []Item{}
	for rows.Next() {
		it, err := scanItem(rows)
		if err != nil {
			return Page{}, err
		}
		items = append(items, it)
	}
	if err := rows.Err(); err != nil {
		return Page{}, err
	}

	page := Page{Items: items}
	if len(items) > limit {
		page.Items = items[:limit]
		last := page.Items[limit-1]
		page.NextCursor = cursor.Encode(last.CreatedAt.Time, last.ID)
	}
	return page, nil
}

// likedCaptions describes the viewer's latest likes the same way candidates
// are described, so the recommender compares like with like.
func (s *Service) likedCaptions(ctx context.Context, userID string, limit int) ([]string, error) {
	rows, err := s.db.Query(ctx, `
		SELECT f.caption, p.handle
		FROM feed_likes l
		JOIN feed_items f ON f.id = l.feed_item_id
		JOIN profiles p ON p.user_id = f.user_id
		WHERE l.user_id=$1
		ORDER BY l.created_at DESC
		LIMIT $2
	`, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	history := []string{}
	for rows.Next() {
		var caption, handle string
		if err := rows.Scan(&caption, &handle); err != nil {
			return nil, err
		}
		history = append(history, strings.TrimSpace(caption+" @"+handle))
	}
	return history, rows.Err()
}

func (s *Service) counter(ctx context.Context, sql, id string) (int64, error) {
	var n int64
	if err := s.db.QueryRow(ctx, sql, id).Scan(&n); err != nil {
		if db.IsNoRows(err) {
			return 0, ErrNotFound
		}
		return 0, err
	}
	return n, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanItem(row scanner) (Item, error) {
	var (
		it                            Item
		soundID, title, artist, cover *string
		duration                      *int32
		uses                          *int64
		createdAt                     time.Time
	)
	err := row.Scan(
		&it.ID, &it.UserID, &it.Author.Handle, &it.Author.DisplayName, &it.Author.AvatarURL,
		&it.VideoURL, &it.ThumbnailURL, &it.Caption,
		&soundID, &title, &artist, &cover, &duration, &uses,
		&it.Likes, &it.Comments, &it.Shares, &it.PinnedCommentID, &createdAt,
		&it.Liked,
	)
	if err != nil {
		return Item{}, err
	}
	it.Author.ID = it.UserID
	it.CreatedAt = timestamp.From(createdAt)
	if soundID != nil {
		it.SoundID = soundID
		it.Sound = &sound.Sound{ID: *soundID}
		if title != nil {
			it.Sound.Title = *title
		}
		if artist != nil {
			it.Sound.Artist = *artist
		}
		if cover != nil {
			it.Sound.CoverURL = *cover
		}
		if duration != nil {
			it.Sound.DurationSec = *duration
		}
		if uses != nil {
			it.Sound.Uses = *uses
		}
	}
	return it, nil
}

// rank orders items by ids, then fills with the unranked rest in their
// existing order.
func rank(items []Item, ids []string, limit int) []Item {
	byID := make(map[string]Item, len(items))
	for _, it := range items {
		byID[it.ID] = it
	}
	out := make([]Item, 0, limit)
	used := make(map[string]bool, len(ids))
	for _, id := range ids {
		it, ok := byID[id]
		if !ok || used[id] {
			continue
		}
		used[id] = true
		out = append(out, it)
		if len(out) == limit {
			return out
		}
	}
	for _, it := range items {
		if used[it.ID] {
			continue
		}
		out = append(out, it)
		if len(out) == limit {
			break
		}
	}
	return out
}

func candidateText(it Item) string {
	var b strings.Builder
	b.WriteString(it.Caption)
	b.WriteString(" @")
	b.WriteString(it.Author.Handle)
	if it.Sound != nil && it.Sound.Title != "" {
		b.WriteString(" ♪ ")
		b.WriteString(it.Sound.Title)
	}
	return strings.TrimSpace(b.String())
}

func validMediaURL(raw string) bool {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return false
	}
	if strings.HasPrefix(raw, "/") && !strings.HasPrefix(raw, "//") {
		return true
	}
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}
