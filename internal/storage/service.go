package storage

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/jpeg"
	"os"
	"path/filepath"
	"strings"

	// decoders for thumbnail sources
	_ "image/gif"
	_ "image/png"

	"backend-fliptok/internal/db"
	"backend-fliptok/internal/logging"

	"github.com/google/uuid"
	"github.com/nfnt/resize"
	"go.uber.org/zap"
)

const (
	thumbnailWidth = 320
	maxImagePixels = 40_000_000
)

var (
	ErrNotFound     = errors.New("object not found")
	ErrForbidden    = errors.New("object belongs to another user")
	ErrInvalidKind  = errors.New("kind must be video, image, audio or speech")
	ErrTooLarge     = errors.New("file too large")
	ErrEmpty        = errors.New("file is empty")
	ErrInvalidImage = errors.New("image could not be decoded")
	ErrImageTooBig  = errors.New("image dimensions too large")
)

type Service struct {
	db      db.Querier
	dir     string
	baseURL string
	log     *zap.Logger
}

// NewService stores files under dir and serves them from baseURL + "/uploads".
func NewService(q db.Querier, dir, baseURL string, log *zap.Logger) *Service {
	return &Service{
		db:      q,
		dir:     dir,
		baseURL: strings.TrimRight(baseURL, "/"),
		log:     logging.OrNop(log).Named("storage"),
	}
}

// Put writes data to disk and records it. Images also get a JPEG thumbnail.
func (s *Service) Put(ctx context.Context, userID string, kind Kind, name string, data []byte) (Object, error) {
	if !kind.Valid() {
		return Object{}, ErrInvalidKind
	}
	if len(data) == 0 {
		return Object{}, ErrEmpty
	}
	if int64(len(data)) > maxBytes[kind] {
		return Object{}, ErrTooLarge
	}

	obj := Object{ID: uuid.NewString(), UserID: userID, Kind: kind}
	file := obj.ID + extension(name)
	obj.path = filepath.Join(s.dir, string(kind), file)
	obj.URL = s.publicURL(kind, file)

	var thumb []byte
	if kind == KindImage {
		var err error
		if thumb, err = thumbnail(data); err != nil {
			return Object{}, err
		}
	}

	if err := os.MkdirAll(filepath.Dir(obj.path), 0o755); err != nil {
		return Object{}, err
	}
	if err := os.WriteFile(obj.path, data, 0o644); err != nil {
		return Object{}, err
	}
	if thumb != nil {
		if err := os.WriteFile(thumbPath(obj.path), thumb, 0o644); err != nil {
			s.removeFiles(obj.path)
			return Object{}, err
		}
		obj.ThumbnailURL = s.publicURL(kind, filepath.Base(thumbPath(obj.path)))
	}

	err := s.db.QueryRow(ctx, `
		INSERT INTO storage_objects (id, user_id, url, path, kind, thumbnail_url)
		VALUES ($1,$2,$3,$4,$5,$6)
		RETURNING created_at
	`, obj.ID, obj.UserID, obj.URL, obj.path, string(obj.Kind), obj.ThumbnailURL).Scan(&obj.CreatedAt)
	if err != nil {
		s.removeFiles(obj.path)
		return Object{}, err
	}
	s.log.Debug("object stored", zap.String("id", obj.ID), zap.String("kind", string(kind)), zap.Int("bytes", len(data)))
	return obj, nil
}

func (s *Service) Get(ctx context.Context, id string) (Object, error) {
	var obj Object
	var kind string
	err := s.db.QueryRow(ctx, `
		SELECT id, user_id, url, path, kind, thumbnail_url, created_at
		FROM storage_objects WHERE id=$1
	`, id).Scan(&obj.ID, &obj.UserID, &obj.URL, &obj.path, &kind, &obj.ThumbnailURL, &obj.CreatedAt)
	if err != nil {
		if db.IsNoRows(err) {
			return Object{}, ErrNotFound
		}
		return Object{}, err
	}
	obj.Kind = Kind(kind)
	return obj, nil
}

// Delete removes an object owned by userID, record first, then files.
func (s *Service) Delete(ctx context.Context, userID, id string) error {
	obj, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if obj.UserID != userID {
		return ErrForbidden
	}
	if _, err := s.db.Exec(ctx, `DELETE FROM storage_objects WHERE id=$1`, id); err != nil {
		return err
	}
	s.removeFiles(obj.path)
	return nil
}

func (s *Service) publicURL(kind Kind, file string) string {
	return s.baseURL + "/uploads/" + string(kind) + "/" + file
}

func (s *Service) removeFiles(path string) {
	for _, p := range []string{path, thumbPath(path)} {
		if err := os.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
			s.log.Warn("remove file", zap.String("path", p), zap.Error(err))
		}
	}
}

func thumbnail(data []byte) ([]byte, error) {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, ErrInvalidImage
	}
	if cfg.Width <= 0 || cfg.Height <= 0 || int64(cfg.Width)*int64(cfg.Height) > maxImagePixels {
		return nil, ErrImageTooBig
	}
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, ErrInvalidImage
	}
	width := uint(thumbnailWidth)
	if w := img.Bounds().Dx(); w < thumbnailWidth {
		width = uint(w)
	}
	thumb := resize.Resize(width, 0, img, resize.Lanczos3)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, thumb, &jpeg.Options{Quality: 85}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func thumbPath(path string) string {
	return strings.TrimSuffix(path, filepath.Ext(path)) + "_thumb.jpg"
}

// extension keeps a short alphanumeric suffix of name, lowercased.
func extension(name string) string {
	ext := strings.ToLower(filepath.Ext(name))
	if len(ext) < 2 || len(ext) > 6 {
		return ""
	}
	for _, r := range ext[1:] {
		if (r < 'a' || r > 'z') && (r < '0' || r > '9') {
			return ""
		}
	}
	return ext
}
