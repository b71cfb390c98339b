package sound

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v3"
)

func TestSoundRoutes(t *testing.T) {
	mock := newMock(t)
	mock.ExpectQuery(`WHERE title ILIKE`).
		WithArgs("%rain%", 20).
		WillReturnRows(pgxmock.NewRows(soundCols).AddRow("s-2", "Lo-fi Rain", "Chill Co", "", int32(45), int64(3)))
	mock.ExpectQuery(`FROM sounds WHERE id=\$1`).
		WithArgs("nope").
		WillReturnError(pgx.ErrNoRows)

	app := fiber.New()
	RegisterRoutes(app.Group("/sounds"), NewService(mock))

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/sounds?q=rain", nil))
	if err != nil || resp.StatusCode != http.StatusOK {
		t.Fatalf("search status: %v", err)
	}
	var sounds []Sound
	if err := json.NewDecoder(resp.Body).Decode(&sounds); err != nil || len(sounds) != 1 {
		t.Fatalf("unexpected body: %v %+v", err, sounds)
	}

	resp, _ = app.Test(httptest.NewRequest(http.MethodGet, "/sounds/nope", nil))
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected not found, got %d", resp.StatusCode)
	}
}
