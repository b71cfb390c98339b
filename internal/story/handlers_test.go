package story

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/pashagolub/pgxmock/v3"
)

func TestStoryRoutes(t *testing.T) {
	mock := newMock(t)
	mock.ExpectExec(`INSERT INTO stories`).
		WithArgs(pgxmock.AnyArg(), "user-1", "/uploads/image/x.jpg", now, now.Add(lifetime)).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectQuery(`FROM stories st`).
		WithArgs("user-1", now).
		WillReturnRows(pgxmock.NewRows(storyCols))

	app := fiber.New()
	RegisterRoutes(app.Group("/stories"), newTestService(mock), func(c *fiber.Ctx) error {
		c.Locals("user_id", "user-1")
		return c.Next()
	})

	req := httptest.NewRequest(http.MethodPost, "/stories", bytes.NewReader([]byte(`{"image_url":"/uploads/image/x.jpg"}`)))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	if err != nil || resp.StatusCode != http.StatusCreated {
		t.Fatalf("create status: %v %d", err, resp.StatusCode)
	}

	resp, err = app.Test(httptest.NewRequest(http.MethodGet, "/stories", nil))
	if err != nil || resp.StatusCode != http.StatusOK {
		t.Fatalf("list status: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}
