package feed

import (
	"errors"

	"backend-fliptok/internal/shared/cursor"

	"github.com/gofiber/fiber/v2"
)

func RegisterRoutes(r fiber.Router, svc *Service, authMiddleware fiber.Handler) {
	r.Use(authMiddleware)

	r.Post("/", func(c *fiber.Ctx) error {
		var req CreateRequest
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		item, err := svc.Create(c.Context(), userID(c), req)
		if err != nil {
			return toFiberError(err)
		}
		return c.Status(fiber.StatusCreated).JSON(item)
	})

	r.Get("/", func(c *fiber.Ctx) error {
		page, err := svc.Chronological(c.Context(), userID(c), c.Query("cursor"), cursor.Limit(c.Query("limit")))
		if err != nil {
			return toFiberError(err)
		}
		return c.JSON(page)
	})

	r.Get("/for-you", func(c *fiber.Ctx) error {
		page, err := svc.ForYou(c.Context(), userID(c), cursor.Limit(c.Query("limit")))
		if err != nil {
			return toFiberError(err)
		}
		return c.JSON(page)
	})

	r.Get("/users/:userID", func(c *fiber.Ctx) error {
		page, err := svc.ByUser(c.Context(), userID(c), c.Params("userID"), c.Query("cursor"), cursor.Limit(c.Query("limit")))
		if err != nil {
			return toFiberError(err)
		}
		return c.JSON(page)
	})

	r.Get("/:id", func(c *fiber.Ctx) error {
		item, err := svc.Get(c.Context(), userID(c), c.Params("id"))
		if err != nil {
			return toFiberError(err)
		}
		return c.JSON(item)
	})

	r.Post("/:id/like", func(c *fiber.Ctx) error {
		state, err := svc.Like(c.Context(), userID(c), c.Params("id"))
		if err != nil {
			return toFiberError(err)
		}
		return c.JSON(state)
	})

	r.Delete("/:id/like", func(c *fiber.Ctx) error {
		state, err := svc.Unlike(c.Context(), userID(c), c.Params("id"))
		if err != nil {
			return toFiberError(err)
		}
		return c.JSON(state)
	})

	r.Post("/:id/share", func(c *fiber.Ctx) error {
		shares, err := svc.Share(c.Context(), c.Params("id"))
		if err != nil {
			return toFiberError(err)
		}
		return c.JSON(fiber.Map{"shares": shares})
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
	case errors.Is(err, ErrInvalidVideo), errors.Is(err, ErrCaptionTooLong),
		errors.Is(err, ErrUnknownSound), errors.Is(err, cursor.ErrInvalid):
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	default:
		return fiber.NewError(fiber.StatusInternalServerError, err.Error())
	}
}
