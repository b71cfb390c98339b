package storage

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"hash/crc32"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v3"
)

var (
	errSave    = errors.New("save error")
	objectCols = []string{"id", "user_id", "url", "path", "kind", "thumbnail_url", "created_at"}
)

func newMock(t *testing.T) pgxmock.PgxPoolIface {
	t.Helper()
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("mock pool: %v", err)
	}
	t.Cleanup(mock.Close)
	return mock
}

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		img.Set(x, x%h, color.RGBA{R: 255, A: 255})
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return buf.Bytes()
}

// oversizedPNG is a tiny file whose header claims w x h pixels.
func oversizedPNG(t *testing.T, w, h uint32) []byte {
	t.Helper()
	b := pngBytes(t, 1, 1)
	binary.BigEndian.PutUint32(b[16:20], w)
	binary.BigEndian.PutUint32(b[20:24], h)
	binary.BigEndian.PutUint32(b[29:33], crc32.ChecksumIEEE(b[12:29]))
	return b
}

func TestPutAudio(t *testing.T) {
	mock := newMock(t)
	dir := t.TempDir()
	mock.ExpectQuery(`INSERT INTO storage_objects`).
		WithArgs(pgxmock.AnyArg(), "user-1", pgxmock.AnyArg(), pgxmock.AnyArg(), "audio", "").
		WillReturnRows(pgxmock.NewRows([]string{"created_at"}).AddRow(time.Now()))

	svc := NewService(mock, dir, "http://localhost:8080/", nil)
	obj, err := svc.Put(context.Background(), "user-1", KindAudio, "memo.WEBM", []byte("opus"))
	if err != nil {
		t.Fatalf("put: %v", err)
	}
	if !strings.HasPrefix(obj.URL, "http://localhost:8080/uploads/audio/") || !strings.HasSuffix(obj.URL, ".webm") {
		t.Fatalf("unexpected url: %s", obj.URL)
	}
	data, err := os.ReadFile(filepath.Join(dir, "audio", obj.ID+".webm"))
	if err != nil || string(data) != "opus" {
		t.Fatalf("file not written: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestPutImageWritesThumbnail(t *testing.T) {
	mock := newMock(t)
	dir := t.TempDir()
	mock.ExpectQuery(`INSERT INTO storage_objects`).
		WithArgs(pgxmock.AnyArg(), "user-1", pgxmock.AnyArg(), pgxmock.AnyArg(), "image", pgxmock.AnyArg()).
		WillReturnRows(pgxmock.NewRows([]string{"created_at"}).AddRow(time.Now()))

	svc := NewService(mock, dir, "", nil)
	obj, err := svc.Put(context.Background(), "user-1", KindImage, "frame.png", pngBytes(t, 640, 480))
	if err != nil {
		t.Fatalf("put: %v", err)
	}
	if !strings.HasSuffix(obj.ThumbnailURL, "_thumb.jpg") {
		t.Fatalf("expected thumbnail url, got %q", obj.ThumbnailURL)
	}

	f, err := os.Open(filepath.Join(dir, "image", obj.ID+"_thumb.jpg"))
	if err != nil {
		t.Fatalf("open thumb: %v", err)
	}
	defer f.Close()
	thumb, err := jpeg.Decode(f)
	if err != nil {
		t.Fatalf("decode thumb: %v", err)
	}
	if b := thumb.Bounds(); b.Dx() != thumbnailWidth || b.Dy() != 240 {
		t.Fatalf("unexpected thumbnail size %dx%d", b.Dx(), b.Dy())
	}
}

func TestPutRejects(t *testing.T) {
	svc := NewService(nil, t.TempDir(), "", nil)
	cases := []struct {
		kind Kind
		data []byte
		want error
	}{
		{"document", []byte("x"), ErrInvalidKind},
		{KindAudio, nil, ErrEmpty},
		{KindImage, []byte("not an image"), ErrInvalidImage},
		{KindImage, oversizedPNG(t, 100_000, 100_000), ErrImageTooBig},
		{KindImage, make([]byte, maxBytes[KindImage]+1), ErrTooLarge},
	}
	for _, tc := range cases {
		if _, err := svc.Put(context.Background(), "user-1", tc.kind, "f", tc.data); !errors.Is(err, tc.want) {
			t.Fatalf("kind %s: expected %v, got %v", tc.kind, tc.want, err)
		}
	}
}

func TestPutRemovesFileOnDBError(t *testing.T) {
	mock := newMock(t)
	dir := t.TempDir()
	mock.ExpectQuery(`INSERT INTO storage_objects`).
		WithArgs(pgxmock.AnyArg(), "user-1", pgxmock.AnyArg(), pgxmock.AnyArg(), "speech", "").
		WillReturnError(errSave)

	svc := NewService(mock, dir, "", nil)
	if _, err := svc.Put(context.Background(), "user-1", KindSpeech, "tts.ogg", []byte("ogg")); !errors.Is(err, errSave) {
		t.Fatalf("expected save error, got %v", err)
	}
	entries, _ := os.ReadDir(filepath.Join(dir, "speech"))
	if len(entries) != 0 {
		t.Fatalf("expected no leftover files, got %d", len(entries))
	}
}

func TestDeleteOwnerOnly(t *testing.T) {
	mock := newMock(t)
	dir := t.TempDir()
	path := filepath.Join(dir, "audio", "obj-1.webm")
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	row := func() *pgxmock.Rows {
		return pgxmock.NewRows(objectCols).AddRow("obj-1", "user-1", "/uploads/audio/obj-1.webm", path, "audio", "", time.Now())
	}
	mock.ExpectQuery(`FROM storage_objects WHERE id=\$1`).WithArgs("obj-1").WillReturnRows(row())
	mock.ExpectQuery(`FROM storage_objects WHERE id=\$1`).WithArgs("obj-1").WillReturnRows(row())
	mock.ExpectExec(`DELETE FROM storage_objects`).WithArgs("obj-1").WillReturnResult(pgxmock.NewResult("DELETE", 1))

	svc := NewService(mock, dir, "", nil)
	if err := svc.Delete(context.Background(), "intruder", "obj-1"); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected forbidden, got %v", err)
	}
	if err := svc.Delete(context.Background(), "user-1", "obj-1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := os.Stat(path); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("expected file removed, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestGetNotFound(t *testing.T) {
	mock := newMock(t)
	mock.ExpectQuery(`FROM storage_objects`).WithArgs("ghost").WillReturnError(pgx.ErrNoRows)

	if _, err := NewService(mock, t.TempDir(), "", nil).Get(context.Background(), "ghost"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestExtension(t *testing.T) {
	cases := map[string]string{
		"clip.MP4":        ".mp4",
		"noext":           "",
		"weird.tar.gz":    ".gz",
		"bad.ex$":         "",
		"long.extension1": "",
	}
	for in, want := range cases {
		if got := extension(in); got != want {
			t.Fatalf("extension(%q) = %q, want %q", in, got, want)
		}
	}
}
