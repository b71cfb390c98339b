package comment

import (
	"errors"
	"io"

	"backend-fliptok/internal/shared/cursor"
	"backend-fliptok/internal/storage"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

const maxAudioBytes = 20 << 20

func RegisterRoutes(r fiber.Router, svc *Service, uploads ObjectStore, authMiddleware fiber.Handler) {
	r.Use(authMiddleware)

	r.Get("/items/:itemID", func(c *fiber.Ctx) error {
		page, err := svc.List(c.Context(), userID(c), c.Params("itemID"), c.Query("cursor"),
			cursor.Limit(c.Query("limit")), ParseReveal(c.Query("reveal")))
		if err != nil {
			return toFiberError(err)
		}
		return c.JSON(page)
	})

	r.Post("/items/:itemID", func(c *fiber.Ctx) error {
		var req CreateRequest
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		return post(c, svc, req)
	})

	r.Post("/items/:itemID/audio", func(c *fiber.Ctx) error {
		fh, err := c.FormFile("audio")
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "audio required")
		}
		if fh.Size > maxAudioBytes {
			return fiber.NewError(fiber.StatusRequestEntityTooLarge, "audio too large")
		}
		f, err := fh.Open()
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		defer f.Close()
		data, err := io.ReadAll(f)
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		obj, err := uploads.Put(c.Context(), userID(c), storage.KindAudio, fh.Filename, data)
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		comment, err := svc.Post(c.Context(), userID(c), c.Params("itemID"), CreateRequest{
			Text:     c.FormValue("text"),
			AudioURL: obj.URL,
			ParentID: c.FormValue("parent_id"),
		})
		if err != nil {
			if derr := uploads.Delete(c.Context(), userID(c), obj.ID); derr != nil {
				svc.log.Warn("delete unused audio", zap.String("object_id", obj.ID), zap.Error(derr))
			}
			return toFiberError(err)
		}
		return created(c, comment)
	})

	r.Put("/items/:itemID/pin", func(c *fiber.Ctx) error {
		var req PinRequest
		if err := c.BodyParser(&req); err != nil || req.CommentID == "" {
			return fiber.NewError(fiber.StatusBadRequest, "comment_id required")
		}
		if err := svc.Pin(c.Context(), userID(c), c.Params("itemID"), req.CommentID); err != nil {
			return toFiberError(err)
		}
		return c.SendStatus(fiber.StatusNoContent)
	})

	r.Delete("/items/:itemID/pin", func(c *fiber.Ctx) error {
		if err := svc.Unpin(c.Context(), userID(c), c.Params("itemID")); err != nil {
			return toFiberError(err)
		}
		return c.SendStatus(fiber.StatusNoContent)
	})

	r.Get("/:id/replies", func(c *fiber.Ctx) error {
		replies, err := svc.Replies(c.Context(), userID(c), c.Params("id"))
		if err != nil {
			return toFiberError(err)
		}
		return c.JSON(replies)
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
}

func post(c *fiber.Ctx, svc *Service, req CreateRequest) error {
	comment, err := svc.Post(c.Context(), userID(c), c.Params("itemID"), req)
	if err != nil {
		return toFiberError(err)
	}
	return created(c, comment)
}

// created answers 201 for a visible comment and 202 for a scheduled one.
func created(c *fiber.Ctx, comment Comment) error {
	status := fiber.StatusCreated
	if !comment.Published {
		status = fiber.StatusAccepted
	}
	return c.Status(status).JSON(comment)
}

func userID(c *fiber.Ctx) string {
	id, _ := c.Locals("user_id").(string)
	return id
}

func toFiberError(err error) error {
	switch {
	case errors.Is(err, ErrNotFound), errors.Is(err, ErrItemNotFound):
		return fiber.NewError(fiber.StatusNotFound, err.Error())
	case errors.Is(err, ErrForbidden):
		return fiber.NewError(fiber.StatusForbidden, err.Error())
	case errors.Is(err, ErrRejected):
		return fiber.NewError(fiber.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, ErrEmpty), errors.Is(err, ErrTooLong), errors.Is(err, ErrInvalidParent),
		errors.Is(err, ErrNotPinnable), errors.Is(err, cursor.ErrInvalid):
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	default:
		return fiber.NewError(fiber.StatusInternalServerError, err.Error())
	}
}
