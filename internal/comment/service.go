package comment

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"backend-fliptok/internal/ai"
	"backend-fliptok/internal/db"
	"backend-fliptok/internal/logging"
	"backend-fliptok/internal/shared/cursor"
	"backend-fliptok/internal/shared/timestamp"
	"backend-fliptok/internal/storage"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const maxTextRunes = 500

var (
	ErrNotFound      = errors.New("comment not found")
	ErrItemNotFound  = errors.New("feed item not found")
	ErrEmpty         = errors.New("comment needs text or audio")
	ErrTooLong       = errors.New("comment longer than 500 characters")
	ErrInvalidParent = errors.New("parent comment not found on this feed item")
	ErrRejected      = errors.New("comment rejected by moderation")
	ErrForbidden     = errors.New("only the video owner can pin comments")
	ErrNotPinnable   = errors.New("only published top-level comments can be pinned")
)

// AI is the moderation and speech surface a comment needs.
type AI interface {
	ScanContent(ctx context.Context, req ai.ScanRequest) (ai.ScanResult, error)
	Synthesize(ctx context.Context, text string) ([]byte, error)
}

type ObjectStore interface {
	Put(ctx context.Context, userID string, kind storage.Kind, name string, data []byte) (storage.Object, error)
	Delete(ctx context.Context, userID, id string) error
}

type Publisher interface {
	Publish(room, eventType string, data any)
}

const commentSelect = `
	SELECT c.id, c.feed_item_id, c.user_id, p.handle, p.display_name, p.avatar_url,
	       c.parent_id, c.text, c.audio_url, c.speech_url, c.likes, c.first_time,
	       c.published, c.publish_at, c.created_at,
	       EXISTS (SELECT 1 FROM comment_likes l WHERE l.comment_id = c.id AND l.user_id = $1)
	FROM comments c
	JOIN profiles p ON p.user_id = c.user_id`

type Service struct {
	db    db.Querier
	ai    AI
	store ObjectStore
	hub   Publisher
	log   *zap.Logger
	now   func() time.Time
}

func NewService(q db.Querier, flows AI, store ObjectStore, hub Publisher, log *zap.Logger) *Service {
	return &Service{
		db:    q,
		ai:    flows,
		store: store,
		hub:   hub,
		log:   logging.OrNop(log).Named("comment"),
		now:   time.Now,
	}
}

// Room is the stream room carrying a feed item's comment events.
func Room(feedItemID string) string {
	return "comments:" + feedItemID
}

// Post moderates and stores a comment. Text is scanned and synthesised
// concurrently; an unsafe verdict stores nothing. A synthesis failure only
// drops the speech track.
func (s *Service) Post(ctx context.Context, userID, feedItemID string, req CreateRequest) (Comment, error) {
	text := strings.TrimSpace(req.Text)
	if text == "" && req.AudioURL == "" {
		return Comment{}, ErrEmpty
	}
	if utf8.RuneCountInString(text) > maxTextRunes {
		return Comment{}, ErrTooLong
	}

	ownerID, _, err := s.item(ctx, feedItemID)
	if err != nil {
		return Comment{}, err
	}

	var parentID, rootID *string
	if req.ParentID != "" {
		root, err := s.threadRoot(ctx, feedItemID, req.ParentID)
		if err != nil {
			return Comment{}, err
		}
		parentID, rootID = &req.ParentID, &root
	}

	var speech []byte
	if text != "" {
		var verdict ai.ScanResult
		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			var err error
			verdict, err = s.ai.ScanContent(gctx, ai.ScanRequest{Text: text})
			return err
		})
		g.Go(func() error {
			audio, err := s.ai.Synthesize(gctx, text)
			if err != nil {
				s.log.Warn("speech synthesis failed", zap.String("feed_item_id", feedItemID), zap.Error(err))
				return nil
			}
			speech = audio
			return nil
		})
		if err := g.Wait(); err != nil {
			return Comment{}, err
		}
		if !verdict.Safe {
			s.log.Info("comment rejected",
				zap.String("feed_item_id", feedItemID),
				zap.Strings("categories", verdict.Categories),
				zap.Bool("fallback", verdict.Fallback))
			return Comment{}, ErrRejected
		}
	}

	id := uuid.NewString()
	var firstTime bool
	err = s.db.QueryRow(ctx, `
		SELECT NOT EXISTS (
			SELECT 1 FROM comments c
			JOIN feed_items f ON f.id = c.feed_item_id
			WHERE c.user_id = $1 AND f.user_id = $2
		)
	`, userID, ownerID).Scan(&firstTime)
	if err != nil {
		return Comment{}, err
	}

	published := req.PublishAt == nil || !req.PublishAt.After(s.now())
	var publishAt *time.Time
	if !published {
		publishAt = req.PublishAt
	}

	var createdAt time.Time
	err = s.db.QueryRow(ctx, `
		INSERT INTO comments (id, feed_item_id, user_id, parent_id, root_id, text, audio_url, first_time, published, publish_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
		RETURNING created_at
	`, id, feedItemID, userID, parentID, rootID, text, req.AudioURL, firstTime, published, publishAt).Scan(&createdAt)
	if err != nil {
		return Comment{}, err
	}
	s.attachSpeech(ctx, userID, id, speech)

	c, err := s.Get(ctx, userID, id)
	if err != nil {
		return Comment{}, err
	}
	if published {
		if _, err := s.db.Exec(ctx, `
			UPDATE feed_items SET comments = comments + 1 WHERE id=$1
		`, feedItemID); err != nil {
			return Comment{}, err
		}
		s.publish(feedItemID, "comment.created", c)
	}
	return c, nil
}

// attachSpeech stores the synthesised track of a saved comment. The object
// is removed again when the row cannot point at it.
func (s *Service) attachSpeech(ctx context.Context, userID, id string, speech []byte) {
	if len(speech) == 0 || s.store == nil {
		return
	}
	obj, err := s.store.Put(ctx, userID, storage.KindSpeech, id+".ogg", speech)
	if err != nil {
		s.log.Warn("store speech", zap.String("comment_id", id), zap.Error(err))
		return
	}
	if _, err := s.db.Exec(ctx, `UPDATE comments SET speech_url=$2 WHERE id=$1`, id, obj.URL); err != nil {
		s.log.Warn("link speech", zap.String("comment_id", id), zap.Error(err))
		if err := s.store.Delete(ctx, userID, obj.ID); err != nil {
			s.log.Warn("delete speech", zap.String("object_id", obj.ID), zap.Error(err))
		}
	}
}

func (s *Service) Get(ctx context.Context, viewerID, id string) (Comment, error) {
	c, err := scanComment(s.db.QueryRow(ctx, commentSelect+` WHERE c.id = $2`, viewerID, id))
	if err != nil {
		if db.IsNoRows(err) {
			return Comment{}, ErrNotFound
		}
		return Comment{}, err
	}
	return c, nil
}

// List pages through the published threads of a feed item. The pinned
// thread leads the first page and is left out of later ones.
func (s *Service) List(ctx context.Context, viewerID, feedItemID, after string, limit int, reveal map[string]Disclosure) (Page, error) {
	pos, err := cursor.Decode(after)
	if err != nil {
		return Page{}, err
	}
	_, pinnedID, err := s.item(ctx, feedItemID)
	if err != nil {
		return Page{}, err
	}

	args := []any{viewerID, feedItemID, pinnedID}
	sql := commentSelect + `
		WHERE c.feed_item_id = $2 AND c.parent_id IS NULL AND c.published AND c.id <> $3`
	if pos != nil {
		args = append(args, pos.CreatedAt, pos.ID)
		sql += ` AND (c.created_at, c.id) < ($4, $5)`
	}
	args = append(args, limit+1)
	sql += fmt.Sprintf(` ORDER BY c.created_at DESC, c.id DESC LIMIT $%d`, len(args))

	roots, err := s.query(ctx, sql, args...)
	if err != nil {
		return Page{}, err
	}

	page := Page{PinnedCommentID: pinnedID}
	if len(roots) > limit {
		roots = roots[:limit]
		last := roots[limit-1]
		page.NextCursor = cursor.Encode(last.CreatedAt.Time, last.ID)
	}
	if pos == nil && pinnedID != "" {
		pinned, err := s.Get(ctx, viewerID, pinnedID)
		switch {
		case err == nil && pinned.Published:
			roots = append([]Comment{pinned}, roots...)
		case err != nil && !errors.Is(err, ErrNotFound):
			return Page{}, err
		}
	}

	all := roots
	if len(roots) > 0 {
		ids := make([]string, len(roots))
		for i, r := range roots {
			ids[i] = r.ID
		}
		replies, err := s.query(ctx, commentSelect+`
			WHERE c.root_id = ANY($2) AND c.published
			ORDER BY c.created_at, c.id
		`, viewerID, ids)
		if err != nil {
			return Page{}, err
		}
		all = append(all, replies...)
	}

	page.Threads = Disclose(BuildThreads(all, pinnedID), reveal)
	return page, nil
}

// Replies returns every published reply in the thread containing id.
func (s *Service) Replies(ctx context.Context, viewerID, id string) ([]Comment, error) {
	c, err := s.Get(ctx, viewerID, id)
	if err != nil {
		return nil, err
	}
	root, err := s.threadRoot(ctx, c.FeedItemID, c.ID)
	if err != nil {
		return nil, err
	}
	return s.query(ctx, commentSelect+`
		WHERE c.root_id = $2 AND c.published
		ORDER BY c.created_at, c.id
	`, viewerID, root)
}

// Pin replaces the feed item's pinned comment.
func (s *Service) Pin(ctx context.Context, userID, feedItemID, commentID string) error {
	if err := s.ensureOwner(ctx, userID, feedItemID); err != nil {
		return err
	}

	var itemID string
	var parentID *string
	var published bool
	err := s.db.QueryRow(ctx, `
		SELECT feed_item_id, parent_id, published FROM comments WHERE id=$1
	`, commentID).Scan(&itemID, &parentID, &published)
	if err != nil {
		if db.IsNoRows(err) {
			return ErrNotFound
		}
		return err
	}
	if itemID != feedItemID {
		return ErrNotFound
	}
	if parentID != nil || !published {
		return ErrNotPinnable
	}

	if _, err := s.db.Exec(ctx, `
		UPDATE feed_items SET pinned_comment_id=$2 WHERE id=$1
	`, feedItemID, commentID); err != nil {
		return err
	}
	s.publish(feedItemID, "comment.pinned", map[string]string{"comment_id": commentID})
	return nil
}

func (s *Service) Unpin(ctx context.Context, userID, feedItemID string) error {
	if err := s.ensureOwner(ctx, userID, feedItemID); err != nil {
		return err
	}
	if _, err := s.db.Exec(ctx, `
		UPDATE feed_items SET pinned_comment_id=NULL WHERE id=$1
	`, feedItemID); err != nil {
		return err
	}
	s.publish(feedItemID, "comment.unpinned", map[string]string{})
	return nil
}

func (s *Service) Like(ctx context.Context, userID, id string) (LikeState, error) {
	tag, err := s.db.Exec(ctx, `
		INSERT INTO comment_likes (comment_id, user_id)
		VALUES ($1,$2)
		ON CONFLICT DO NOTHING
	`, id, userID)
	if err != nil {
		if db.IsForeignKeyViolation(err) {
			return LikeState{}, ErrNotFound
		}
		return LikeState{}, err
	}
	sql := `SELECT likes FROM comments WHERE id=$1`
	if tag.RowsAffected() > 0 {
		sql = `UPDATE comments SET likes = likes + 1 WHERE id=$1 RETURNING likes`
	}
	likes, err := s.counter(ctx, sql, id)
	return LikeState{Liked: true, Likes: likes}, err
}

func (s *Service) Unlike(ctx context.Context, userID, id string) (LikeState, error) {
	tag, err := s.db.Exec(ctx, `DELETE FROM comment_likes WHERE comment_id=$1 AND user_id=$2`, id, userID)
	if err != nil {
		return LikeState{}, err
	}
	sql := `SELECT likes FROM comments WHERE id=$1`
	if tag.RowsAffected() > 0 {
		sql = `UPDATE comments SET likes = GREATEST(likes - 1, 0) WHERE id=$1 RETURNING likes`
	}
	likes, err := s.counter(ctx, sql, id)
	return LikeState{Likes: likes}, err
}

// PublishDue releases scheduled comments whose time has come. Marking them
// published, restamping created_at and bumping the item counters happen in
// one statement; a comment that cannot be broadcast afterwards is logged and
// skipped.
func (s *Service) PublishDue(ctx context.Context) (int, error) {
	rows, err := s.db.Query(ctx, `
		WITH due AS (
			UPDATE comments SET published = true, created_at = $1
			WHERE published = false AND publish_at <= $1
			RETURNING id, feed_item_id
		), counted AS (
			UPDATE feed_items f SET comments = f.comments + d.n
			FROM (SELECT feed_item_id, count(*) AS n FROM due GROUP BY feed_item_id) d
			WHERE f.id = d.feed_item_id
		)
		SELECT id FROM due ORDER BY id
	`, s.now())
	if err != nil {
		return 0, err
	}
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return 0, err
		}
		ids = append(ids, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return 0, err
	}

	for _, id := range ids {
		c, err := s.Get(ctx, "", id)
		if err != nil {
			s.log.Warn("broadcast scheduled comment", zap.String("comment_id", id), zap.Error(err))
			continue
		}
		s.publish(c.FeedItemID, "comment.created", c)
	}
	return len(ids), nil
}

// RunScheduler calls PublishDue every interval until ctx is done.
func (s *Service) RunScheduler(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := s.PublishDue(ctx)
			if err != nil {
				s.log.Error("publish scheduled comments", zap.Error(err))
				continue
			}
			if n > 0 {
				s.log.Info("published scheduled comments", zap.Int("count", n))
			}
		}
	}
}

func (s *Service) publish(feedItemID, eventType string, data any) {
	if s.hub != nil {
		s.hub.Publish(Room(feedItemID), eventType, data)
	}
}

// item returns the owner and pinned comment of a feed item.
func (s *Service) item(ctx context.Context, feedItemID string) (string, string, error) {
	var ownerID string
	var pinned *string
	err := s.db.QueryRow(ctx, `
		SELECT user_id, pinned_comment_id FROM feed_items WHERE id=$1
	`, feedItemID).Scan(&ownerID, &pinned)
	if err != nil {
		if db.IsNoRows(err) {
			return "", "", ErrItemNotFound
		}
		return "", "", err
	}
	if pinned == nil {
		return ownerID, "", nil
	}
	return ownerID, *pinned, nil
}

func (s *Service) ensureOwner(ctx context.Context, userID, feedItemID string) error {
	ownerID, _, err := s.item(ctx, feedItemID)
	if err != nil {
		return err
	}
	if ownerID != userID {
		return ErrForbidden
	}
	return nil
}

// threadRoot resolves the top-level comment of the thread containing
// commentID, which must belong to feedItemID.
func (s *Service) threadRoot(ctx context.Context, feedItemID, commentID string) (string, error) {
	var itemID string
	var rootID *string
	err := s.db.QueryRow(ctx, `
		SELECT feed_item_id, root_id FROM comments WHERE id=$1
	`, commentID).Scan(&itemID, &rootID)
	if err != nil {
		if db.IsNoRows(err) {
			return "", ErrInvalidParent
		}
		return "", err
	}
	if itemID != feedItemID {
		return "", ErrInvalidParent
	}
	if rootID != nil {
		return *rootID, nil
	}
	return commentID, nil
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

func (s *Service) query(ctx context.Context, sql string, args ...any) ([]Comment, error) {
	rows, err := s.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []Comment{}
	for rows.Next() {
		c, err := scanComment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanComment(row scanner) (Comment, error) {
	var c Comment
	var createdAt time.Time
	err := row.Scan(
		&c.ID, &c.FeedItemID, &c.UserID, &c.Author.Handle, &c.Author.DisplayName, &c.Author.AvatarURL,
		&c.ParentID, &c.Text, &c.AudioURL, &c.SpeechURL, &c.Likes, &c.FirstTime,
		&c.Published, &c.PublishAt, &createdAt,
		&c.Liked,
	)
	if err != nil {
		return Comment{}, err
	}
	c.Author.ID = c.UserID
	c.CreatedAt = timestamp.From(createdAt)
	return c, nil
}
