package sound

import (
	"errors"

	"backend-fliptok/internal/shared/cursor"

	"github.com/gofiber/fiber/v2"
)

func RegisterRoutes(r fiber.Router, svc *Service) {
	r.Get("/", func(c *fiber.Ctx) error {
		sounds, err := svc.Search(c.Context(), c.Query("q"), cursor.Limit(c.Query("limit")))
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, err.Error())
		}
		return c.JSON(sounds)
	})

	r.Get("/:id", func(c *fiber.Ctx) error {
		snd, err := svc.Get(c.Context(), c.Params("id"))
		if errors.Is(err, ErrNotFound) {
			return fiber.NewError(fiber.StatusNotFound, err.Error())
		}
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, err.Error())
		}
		return c.JSON(snd)
	})
}
