package chat

import (
	"errors"

	"backend-fliptok/internal/shared/cursor"

	"github.com/gofiber/fiber/v2"
)

func RegisterRoutes(r fiber.Router, svc *Service, authMiddleware fiber.Handler) {
	r.Use(authMiddleware)

	r.Post("/", func(c *fiber.Ctx) error {
		var req OpenRequest
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		ch, err := svc.Open(c.Context(), userID(c), req.UserID)
		if err != nil {
			return toFiberError(err)
		}
		return c.JSON(ch)
	})

	r.Get("/", func(c *fiber.Ctx) error {
		chats, err := svc.List(c.Context(), userID(c))
		if err != nil {
			return toFiberError(err)
		}
		return c.JSON(chats)
	})

	r.Get("/:id/messages", func(c *fiber.Ctx) error {
		page, err := svc.Messages(c.Context(), userID(c), c.Params("id"), c.Query("cursor"), cursor.Limit(c.Query("limit")))
		if err != nil {
			return toFiberError(err)
		}
		return c.JSON(page)
	})

	r.Post("/:id/messages", func(c *fiber.Ctx) error {
		var req SendRequest
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		m, err := svc.Send(c.Context(), userID(c), c.Params("id"), req)
		if err != nil {
			return toFiberError(err)
		}
		return c.Status(fiber.StatusCreated).JSON(m)
	})
}

func userID(c *fiber.Ctx) string {
	id, _ := c.Locals("user_id").(string)
	return id
}

func toFiberError(err error) error {
	switch {
	case errors.Is(err, ErrNotFound), errors.Is(err, ErrUserNotFound):
		return fiber.NewError(fiber.StatusNotFound, err.Error())
	case errors.Is(err, ErrForbidden):
		return fiber.NewError(fiber.StatusForbidden, err.Error())
	case errors.Is(err, ErrRejected):
		return fiber.NewError(fiber.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, ErrSelfChat), errors.Is(err, ErrEmpty), errors.Is(err, ErrTooLong), errors.Is(err, cursor.ErrInvalid):
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	default:
		return fiber.NewError(fiber.StatusInternalServerError, err.Error())
	}
}
