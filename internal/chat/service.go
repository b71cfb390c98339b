package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"backend-fliptok/internal/ai"
	"backend-fliptok/internal/db"
	"backend-fliptok/internal/logging"
	"backend-fliptok/internal/shared/cursor"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	maxTextRunes = 1000
	previewRunes = 80
)

var (
	ErrNotFound     = errors.New("chat not found")
	ErrUserNotFound = errors.New("user not found")
	ErrForbidden    = errors.New("not a participant of this chat")
	ErrSelfChat     = errors.New("cannot open a chat with yourself")
	ErrEmpty        = errors.New("message text required")
	ErrTooLong      = errors.New("message longer than 1000 characters")
	ErrRejected     = errors.New("message rejected by moderation")
)

type Scanner interface {
	ScanContent(ctx context.Context, req ai.ScanRequest) (ai.ScanResult, error)
}

type Publisher interface {
	Publish(room, eventType string, data any)
}

// $1 is the viewing participant; the joined profile is the other one.
const chatSelect = `
	SELECT c.id, p.user_id, p.handle, p.display_name, p.avatar_url,
	       c.last_message, c.last_message_at, c.created_at
	FROM chats c
	JOIN profiles p ON p.user_id = CASE WHEN c.user_a = $1 THEN c.user_b ELSE c.user_a END
	WHERE (c.user_a = $1 OR c.user_b = $1)`

type Service struct {
	db      db.Querier
	scanner Scanner
	hub     Publisher
	log     *zap.Logger
}

func NewService(q db.Querier, scanner Scanner, hub Publisher, log *zap.Logger) *Service {
	return &Service{db: q, scanner: scanner, hub: hub, log: logging.OrNop(log).Named("chat")}
}

func Room(chatID string) string {
	return "chat:" + chatID
}

// Open returns the chat between userID and otherID, creating it on first use.
// The pair is stored sorted so either side finds the same row.
func (s *Service) Open(ctx context.Context, userID, otherID string) (Chat, error) {
	if otherID == "" {
		return Chat{}, ErrUserNotFound
	}
	if userID == otherID {
		return Chat{}, ErrSelfChat
	}
	a, b := userID, otherID
	if b < a {
		a, b = b, a
	}

	_, err := s.db.Exec(ctx, `
		INSERT INTO chats (id, user_a, user_b)
		VALUES ($1,$2,$3)
		ON CONFLICT (user_a, user_b) DO NOTHING
	`, uuid.NewString(), a, b)
	if err != nil {
		if db.IsForeignKeyViolation(err) {
			return Chat{}, ErrUserNotFound
		}
		return Chat{}, err
	}

	c, err := scanChat(s.db.QueryRow(ctx, chatSelect+` AND c.user_a = $2 AND c.user_b = $3`, userID, a, b))
	if err != nil {
		if db.IsNoRows(err) {
			return Chat{}, ErrUserNotFound
		}
		return Chat{}, err
	}
	return c, nil
}

// List returns userID's chats, most recent activity first.
func (s *Service) List(ctx context.Context, userID string) ([]Chat, error) {
	rows, err := s.db.Query(ctx, chatSelect+` ORDER BY c.last_message_at DESC, c.id DESC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	chats := []Chat{}
	for rows.Next() {
		c, err := scanChat(rows)
		if err != nil {
			return nil, err
		}
		chats = append(chats, c)
	}
	return chats, rows.Err()
}

// IsParticipant reports ErrNotFound or ErrForbidden when userID may not use chatID.
func (s *Service) IsParticipant(ctx context.Context, chatID, userID string) error {
	var a, b string
	err := s.db.QueryRow(ctx, `SELECT user_a, user_b FROM chats WHERE id=$1`, chatID).Scan(&a, &b)
	if err != nil {
		if db.IsNoRows(err) {
			return ErrNotFound
		}
		return err
	}
	if userID == "" || (userID != a && userID != b) {
		return ErrForbidden
	}
	return nil
}

func (s *Service) Send(ctx context.Context, userID, chatID string, req SendRequest) (Message, error) {
	text := strings.TrimSpace(req.Text)
	if text == "" {
		return Message{}, ErrEmpty
	}
	if utf8.RuneCountInString(text) > maxTextRunes {
		return Message{}, ErrTooLong
	}
	if err := s.IsParticipant(ctx, chatID, userID); err != nil {
		return Message{}, err
	}

	verdict, err := s.scanner.ScanContent(ctx, ai.ScanRequest{Text: text})
	if err != nil {
		return Message{}, err
	}
	if !verdict.Safe {
		s.log.Info("message rejected", zap.String("chat_id", chatID), zap.Strings("categories", verdict.Categories), zap.Bool("fallback", verdict.Fallback))
		return Message{}, ErrRejected
	}

	m := Message{ID: uuid.NewString(), ChatID: chatID, SenderID: userID, Text: text}
	err = s.db.QueryRow(ctx, `
		INSERT INTO chat_messages (id, chat_id, sender_id, text)
		VALUES ($1,$2,$3,$4)
		RETURNING created_at
	`, m.ID, m.ChatID, m.SenderID, m.Text).Scan(&m.CreatedAt)
	if err != nil {
		return Message{}, err
	}

	if _, err := s.db.Exec(ctx, `
		UPDATE chats SET last_message=$2, last_message_at=$3 WHERE id=$1
	`, chatID, text, m.CreatedAt); err != nil {
		return Message{}, err
	}

	if s.hub != nil {
		s.hub.Publish(Room(chatID), "message.created", m)
	}
	return m, nil
}

// Messages pages newest first.
func (s *Service) Messages(ctx context.Context, userID, chatID, after string, limit int) (MessagePage, error) {
	pos, err := cursor.Decode(after)
	if err != nil {
		return MessagePage{}, err
	}
	if err := s.IsParticipant(ctx, chatID, userID); err != nil {
		return MessagePage{}, err
	}

	args := []any{chatID}
	sql := `SELECT id, chat_id, sender_id, text, created_at FROM chat_messages WHERE chat_id=$1`
	if pos != nil {
		args = append(args, pos.CreatedAt, pos.ID)
		sql += ` AND (created_at, id) < ($2, $3)`
	}
	args = append(args, limit+1)
	sql += fmt.Sprintf(` ORDER BY created_at DESC, id DESC LIMIT $%d`, len(args))

	rows, err := s.db.Query(ctx, sql, args...)
	if err != nil {
		return MessagePage{}, err
	}
	defer rows.Close()

	msgs := []Message{}
	for rows.Next() {
		var m Message
		if err := rows.Scan(&m.ID, &m.ChatID, &m.SenderID, &m.Text, &m.CreatedAt); err != nil {
			return MessagePage{}, err
		}
		msgs = append(msgs, m)
	}
	if err := rows.Err(); err != nil {
		return MessagePage{}, err
	}

	page := MessagePage{Messages: msgs}
	if len(msgs) > limit {
		page.Messages = msgs[:limit]
		last := page.Messages[limit-1]
		page.NextCursor = cursor.Encode(last.CreatedAt, last.ID)
	}
	return page, nil
}

func scanChat(row interface{ Scan(dest ...any) error }) (Chat, error) {
	var c Chat
	err := row.Scan(&c.ID, &c.With.ID, &c.With.Handle, &c.With.DisplayName, &c.With.AvatarURL,
		&c.LastMessage, &c.LastMessageAt, &c.CreatedAt)
	c.LastMessage = preview(c.LastMessage)
	return c, err
}

func preview(s string) string {
	if utf8.RuneCountInString(s) <= previewRunes {
		return s
	}
	return string([]rune(s)[:previewRunes])
}
