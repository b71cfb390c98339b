package sound

import (
	"context"
	"errors"
	"strings"

	"backend-fliptok/internal/db"
)

var ErrNotFound = errors.New("sound not found")

type Service struct {
	db db.Querier
}

func NewService(db db.Querier) *Service {
	return &Service{db: db}
}

func (s *Service) List(ctx context.Context, limit int) ([]Sound, error) {
	return s.query(ctx, `
		SELECT id, title, artist, cover_url, duration_sec, uses
		FROM sounds
		ORDER BY uses DESC, title
		LIMIT $1
	`, limit)
}

// Search matches title or artist, case-insensitively.
func (s *Service) Search(ctx context.Context, q string, limit int) ([]Sound, error) {
	q = strings.TrimSpace(q)
	if q == "" {
		return s.List(ctx, limit)
	}
	return s.query(ctx, `
		SELECT id, title, artist, cover_url, duration_sec, uses
		FROM sounds
		WHERE title ILIKE $1 OR artist ILIKE $1
		ORDER BY uses DESC, title
		LIMIT $2
	`, "%"+escapeLike(q)+"%", limit)
}

func (s *Service) Get(ctx context.Context, id string) (Sound, error) {
	var snd Sound
	err := s.db.QueryRow(ctx, `
		SELECT id, title, artist, cover_url, duration_sec, uses
		FROM sounds WHERE id=$1
	`, id).Scan(&snd.ID, &snd.Title, &snd.Artist, &snd.CoverURL, &snd.DurationSec, &snd.Uses)
	if err != nil {
		if db.IsNoRows(err) {
			return Sound{}, ErrNotFound
		}
		return Sound{}, err
	}
	return snd, nil
}

// IncrementUses bumps the picker counter when a video is posted with the sound.
func (s *Service) IncrementUses(ctx context.Context, id string) error {
	tag, err := s.db.Exec(ctx, `UPDATE sounds SET uses = uses + 1 WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Service) query(ctx context.Context, sql string, args ...any) ([]Sound, error) {
	rows, err := s.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	sounds := []Sound{}
	for rows.Next() {
		var snd Sound
		if err := rows.Scan(&snd.ID, &snd.Title, &snd.Artist, &snd.CoverURL, &snd.DurationSec, &snd.Uses); err != nil {
			return nil, err
		}
		sounds = append(sounds, snd)
	}
	return sounds, rows.Err()
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}
