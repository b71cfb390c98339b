package profile

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"unicode/utf8"

	"backend-fliptok/internal/db"
)

var (
	ErrNotFound      = errors.New("profile not found")
	ErrInvalidHandle = errors.New("handle must be 3-24 characters of a-z, 0-9, _ or .")
	ErrHandleTaken   = errors.New("handle already taken")
	ErrSelfFollow    = errors.New("cannot follow yourself")
	ErrInvalidName   = errors.New("display name must be 1-50 characters")
)

var handlePattern = regexp.MustCompile(`^[a-z0-9_.]{3,24}$`)

const profileColumns = `
	p.user_id, p.handle, p.display_name, p.avatar_url, p.bio, p.created_at,
	(SELECT COUNT(*) FROM user_follows WHERE following_id = p.user_id),
	(SELECT COUNT(*) FROM user_follows WHERE follower_id = p.user_id),
	(SELECT COUNT(*) FROM feed_items WHERE user_id = p.user_id)`

type Service struct {
	db db.Querier
}

func NewService(db db.Querier) *Service {
	return &Service{db: db}
}

// NormalizeHandle lowercases and strips a leading "@".
func NormalizeHandle(h string) (string, error) {
	h = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(h), "@"))
	if !handlePattern.MatchString(h) {
		return "", ErrInvalidHandle
	}
	return h, nil
}

func validDisplayName(s string) bool {
	n := utf8.RuneCountInString(strings.TrimSpace(s))
	return n >= 1 && n <= 50
}

func (s *Service) Create(ctx context.Context, p Profile) (Profile, error) {
	handle, err := NormalizeHandle(p.Handle)
	if err != nil {
		return Profile{}, err
	}
	p.Handle = handle
	p.DisplayName = strings.TrimSpace(p.DisplayName)
	if p.DisplayName == "" {
		p.DisplayName = handle
	}
	if !validDisplayName(p.DisplayName) {
		return Profile{}, ErrInvalidName
	}

	row := s.db.QueryRow(ctx, `
		INSERT INTO profiles (user_id, handle, display_name, avatar_url, bio)
		VALUES ($1,$2,$3,$4,$5)
		RETURNING created_at
	`, p.ID, p.Handle, p.DisplayName, p.AvatarURL, p.Bio)
	if err := row.Scan(&p.CreatedAt); err != nil {
		if db.IsUniqueViolation(err) {
			return Profile{}, ErrHandleTaken
		}
		return Profile{}, err
	}
	return p, nil
}

func (s *Service) Get(ctx context.Context, userID string) (Profile, error) {
	return s.scanOne(s.db.QueryRow(ctx, `SELECT `+profileColumns+` FROM profiles p WHERE p.user_id=$1`, userID))
}

func (s *Service) GetByHandle(ctx context.Context, handle string) (Profile, error) {
	h, err := NormalizeHandle(handle)
	if err != nil {
		return Profile{}, ErrNotFound
	}
	return s.scanOne(s.db.QueryRow(ctx, `SELECT `+profileColumns+` FROM profiles p WHERE p.handle=$1`, h))
}

func (s *Service) Update(ctx context.Context, userID string, req UpdateRequest) (Profile, error) {
	current, err := s.Get(ctx, userID)
	if err != nil {
		return Profile{}, err
	}
	if req.DisplayName != nil {
		if !validDisplayName(*req.DisplayName) {
			return Profile{}, ErrInvalidName
		}
		current.DisplayName = strings.TrimSpace(*req.DisplayName)
	}
	if req.Bio != nil {
		current.Bio = strings.TrimSpace(*req.Bio)
	}
	if req.AvatarURL != nil {
		current.AvatarURL = *req.AvatarURL
	}

	_, err = s.db.Exec(ctx, `
		UPDATE profiles SET display_name=$2, bio=$3, avatar_url=$4
		WHERE user_id=$1
	`, userID, current.DisplayName, current.Bio, current.AvatarURL)
	if err != nil {
		return Profile{}, err
	}
	return current, nil
}

func (s *Service) Follow(ctx context.Context, followerID, followingID string) error {
	if followerID == followingID {
		return ErrSelfFollow
	}
	_, err := s.db.Exec(ctx, `
		INSERT INTO user_follows (follower_id, following_id)
		VALUES ($1,$2)
		ON CONFLICT DO NOTHING
	`, followerID, followingID)
	return err
}

func (s *Service) Unfollow(ctx context.Context, followerID, followingID string) error {
	_, err := s.db.Exec(ctx, `
		DELETE FROM user_follows WHERE follower_id=$1 AND following_id=$2
	`, followerID, followingID)
	return err
}

// Recent lists the newest profiles; it backs the search catalog.
func (s *Service) Recent(ctx context.Context, limit int) ([]Profile, error) {
	rows, err := s.db.Query(ctx, `
		SELECT `+profileColumns+`
		FROM profiles p
		ORDER BY p.created_at DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	profiles := []Profile{}
	for rows.Next() {
		var p Profile
		if err := rows.Scan(&p.ID, &p.Handle, &p.DisplayName, &p.AvatarURL, &p.Bio, &p.CreatedAt, &p.Followers, &p.Following, &p.Videos); err != nil {
			return nil, err
		}
		profiles = append(profiles, p)
	}
	return profiles, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func (s *Service) scanOne(row scanner) (Profile, error) {
	var p Profile
	if err := row.Scan(&p.ID, &p.Handle, &p.DisplayName, &p.AvatarURL, &p.Bio, &p.CreatedAt, &p.Followers, &p.Following, &p.Videos); err != nil {
		if db.IsNoRows(err) {
			return Profile{}, ErrNotFound
		}
		return Profile{}, err
	}
	return p, nil
}
