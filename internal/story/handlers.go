package story

import (
	"errors"

	"github.com/gofiber/fiber/v2"
)

func RegisterRoutes(r fiber.Router, svc *Service, authMiddleware fiber.Handler) {
	r.Use(authMiddleware)

	r.Post("/", func(c *fiber.Ctx) error {
		var req CreateRequest
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		st, err := svc.Create(c.Context(), userID(c), req)
		if err != nil {
			return toFiberError(err)
		}
		return c.Status(fiber.StatusCreated).JSON(st)
	})

	r.Get("/", func(c *fiber.Ctx) error {
		reels, err := svc.Active(c.Context(), userID(c))
		if err != nil {
			return toFiberError(err)
		}
		return c.JSON(reels)
	})

	r.Post("/:id/view", func(c *fiber.Ctx) error {
		views, err := svc.View(c.Context(), userID(c), c.Params("id"))
		if err != nil {
			return toFiberError(err)
		}
		return c.JSON(fiber.Map{"views": views})
	})
}

func userID(c *fiber.Ctx) string {
	id, _ := c.Locals("user_id").(string)
	return id
}

func toFiberError(err error) error {
	switch {
	case errors.Is(err, ErrNotFound):
		return fiber.NewError(fiber.StatusNotFound, err.Error())
	case errors.Is(err, ErrInvalidImage):
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	default:
		return fiber.NewError(fiber.StatusInternalServerError, err.Error())
	}
}
