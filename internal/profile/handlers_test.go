package profile

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v3"
)

func asUser(id string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		c.Locals("user_id", id)
		return c.Next()
	}
}

func TestProfileHandlers(t *testing.T) {
	mock := newMock(t)
	now := time.Now()
	mock.ExpectQuery(`FROM profiles p WHERE p.handle=\$1`).
		WithArgs("dancer").
		WillReturnRows(pgxmock.NewRows(profileCols).AddRow("user-2", "dancer", "Dancer", "", "", now, int64(1), int64(2), int64(3)))
	mock.ExpectQuery(selectByUser).
		WithArgs("user-1").
		WillReturnRows(pgxmock.NewRows(profileCols).AddRow("user-1", "me_me", "Me", "", "", now, int64(0), int64(0), int64(0)))
	mock.ExpectExec(`INSERT INTO user_follows`).
		WithArgs("user-1", "user-2").
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	app := fiber.New()
	RegisterRoutes(app.Group("/profiles"), NewService(mock), asUser("user-1"))

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/profiles/dancer", nil))
	if err != nil || resp.StatusCode != http.StatusOK {
		t.Fatalf("get by handle status: %v", err)
	}
	var p Profile
	_ = json.NewDecoder(resp.Body).Decode(&p)
	if p.ID != "user-2" || p.Videos != 3 {
		t.Fatalf("unexpected body %+v", p)
	}

	resp, err = app.Test(httptest.NewRequest(http.MethodGet, "/profiles/me", nil))
	if err != nil || resp.StatusCode != http.StatusOK {
		t.Fatalf("me status: %v", err)
	}

	body, _ := json.Marshal(Follow{FollowingID: "user-2"})
	req := httptest.NewRequest(http.MethodPost, "/profiles/follow", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	resp, err = app.Test(req)
	if err != nil || resp.StatusCode != http.StatusCreated {
		t.Fatalf("follow status: %v", err)
	}
}

func TestProfileHandlersErrors(t *testing.T) {
	mock := newMock(t)
	mock.ExpectQuery(`FROM profiles p WHERE p.handle=\$1`).
		WithArgs("ghost").
		WillReturnError(pgx.ErrNoRows)

	app := fiber.New()
	RegisterRoutes(app.Group("/profiles"), NewService(mock), asUser("user-1"))

	resp, _ := app.Test(httptest.NewRequest(http.MethodGet, "/profiles/ghost", nil))
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}

	body, _ := json.Marshal(Follow{FollowingID: "user-1"})
	req := httptest.NewRequest(http.MethodPost, "/profiles/follow", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	resp, _ = app.Test(req)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected self-follow 400, got %d", resp.StatusCode)
	}

	req = httptest.NewRequest(http.MethodPost, "/profiles/follow", bytes.NewReader([]byte(`{}`)))
	req.Header.Set("Content-Type", "application/json")
	resp, _ = app.Test(req)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 for missing following_id")
	}
}
