package actions

import (
	"errors"
	"io"

	"backend-fliptok/internal/ai"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

const maxAudioBytes = 20 << 20

func RegisterRoutes(r fiber.Router, svc *Service, authMiddleware fiber.Handler) {
	r.Use(authMiddleware)

	r.Post("/scan", func(c *fiber.Ctx) error {
		var req ai.ScanRequest
		if err := c.BodyParser(&req); err != nil {
			return badRequest(c, err)
		}
		res, err := svc.Scan(c.Context(), req)
		return svc.reply(c, res, res.Fallback, msgScan, err)
	})

	r.Post("/search", func(c *fiber.Ctx) error {
		var req SearchRequest
		if err := c.BodyParser(&req); err != nil {
			return badRequest(c, err)
		}
		res, err := svc.Search(c.Context(), req)
		return svc.reply(c, res, res.Fallback, msgSearch, err)
	})

	r.Post("/recommend", func(c *fiber.Ctx) error {
		var req RecommendRequest
		if err := c.BodyParser(&req); err != nil {
			return badRequest(c, err)
		}
		res, err := svc.Recommend(c.Context(), userID(c), req)
		return svc.reply(c, res, res.Fallback, msgRecommend, err)
	})

	r.Post("/sentiment", func(c *fiber.Ctx) error {
		var req ai.SentimentRequest
		if err := c.BodyParser(&req); err != nil {
			return badRequest(c, err)
		}
		res, err := svc.Sentiment(c.Context(), req)
		return svc.reply(c, res, res.Fallback, msgSentiment, err)
	})

	r.Post("/transcribe", func(c *fiber.Ctx) error {
		fh, err := c.FormFile("audio")
		if err != nil {
			return badRequest(c, errors.New("audio file required"))
		}
		if fh.Size > maxAudioBytes {
			return badRequest(c, errors.New("audio file too large"))
		}
		f, err := fh.Open()
		if err != nil {
			return badRequest(c, err)
		}
		defer f.Close()
		audio, err := io.ReadAll(f)
		if err != nil {
			return badRequest(c, err)
		}
		res, err := svc.Transcribe(c.Context(), audio)
		return svc.reply(c, res, res.Fallback, msgTranscribe, err)
	})

	r.Post("/speak", func(c *fiber.Ctx) error {
		var req SpeakRequest
		if err := c.BodyParser(&req); err != nil {
			return badRequest(c, err)
		}
		res, err := svc.Speak(c.Context(), userID(c), req)
		return svc.reply(c, res, res.Fallback, msgSpeak, err)
	})
}

// reply never turns a provider failure into a 5xx: fallbacks are 200 with
// the friendly message, only invalid input and internal errors differ.
func (s *Service) reply(c *fiber.Ctx, data any, fallback bool, friendly string, err error) error {
	switch {
	case errors.Is(err, ai.ErrInvalidRequest):
		return badRequest(c, err)
	case err != nil:
		s.log.Error("action failed", zap.String("path", c.Path()), zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(Response{Error: msgInternal})
	case fallback:
		return c.JSON(Response{Data: data, Error: friendly})
	default:
		return c.JSON(Response{Data: data})
	}
}

func badRequest(c *fiber.Ctx, err error) error {
	return c.Status(fiber.StatusBadRequest).JSON(Response{Error: err.Error()})
}

func userID(c *fiber.Ctx) string {
	id, _ := c.Locals("user_id").(string)
	return id
}
