package profile

import (
	"errors"

	"github.com/gofiber/fiber/v2"
)

func RegisterRoutes(r fiber.Router, svc *Service, authMiddleware fiber.Handler) {
	r.Get("/me", authMiddleware, func(c *fiber.Ctx) error {
		p, err := svc.Get(c.Context(), userID(c))
		if err != nil {
			return toFiberError(err)
		}
		return c.JSON(p)
	})

	r.Patch("/me", authMiddleware, func(c *fiber.Ctx) error {
		var req UpdateRequest
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		p, err := svc.Update(c.Context(), userID(c), req)
		if err != nil {
			return toFiberError(err)
		}
		return c.JSON(p)
	})

	r.Get("/:handle", func(c *fiber.Ctx) error {
		p, err := svc.GetByHandle(c.Context(), c.Params("handle"))
		if err != nil {
			return toFiberError(err)
		}
		return c.JSON(p)
	})

	r.Post("/follow", authMiddleware, func(c *fiber.Ctx) error {
		var req Follow
		if err := c.BodyParser(&req); err != nil || req.FollowingID == "" {
			return fiber.NewError(fiber.StatusBadRequest, "following_id required")
		}
		if err := svc.Follow(c.Context(), userID(c), req.FollowingID); err != nil {
			return toFiberError(err)
		}
		return c.SendStatus(fiber.StatusCreated)
	})

	r.Delete("/follow/:id", authMiddleware, func(c *fiber.Ctx) error {
		if err := svc.Unfollow(c.Context(), userID(c), c.Params("id")); err != nil {
			return toFiberError(err)
		}
		return c.SendStatus(fiber.StatusNoContent)
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
	case errors.Is(err, ErrSelfFollow), errors.Is(err, ErrInvalidName), errors.Is(err, ErrInvalidHandle):
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	case errors.Is(err, ErrHandleTaken):
		return fiber.NewError(fiber.StatusConflict, err.Error())
	default:
		return fiber.NewError(fiber.StatusInternalServerError, err.Error())
	}
}
