package server

import (
	"context"
	"errors"
	"strings"

	"backend-fliptok/internal/actions"
	"backend-fliptok/internal/ai"
	"backend-fliptok/internal/auth"
	"backend-fliptok/internal/chat"
	"backend-fliptok/internal/comment"
	"backend-fliptok/internal/config"
	"backend-fliptok/internal/feed"
	"backend-fliptok/internal/logging"
	"backend-fliptok/internal/profile"
	"backend-fliptok/internal/sound"
	"backend-fliptok/internal/storage"
	"backend-fliptok/internal/story"
	"backend-fliptok/internal/stream"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Video uploads are capped at 100MB by storage; leave room for multipart framing.
const bodyLimit = 110 << 20

var errUnknownRoom = errors.New("unknown room")

type Server struct {
	App      *fiber.App
	Cfg      config.Config
	DB       *pgxpool.Pool
	Redis    *redis.Client
	Stream   *stream.Hub
	Flows    *ai.Flows
	Comments *comment.Service
	Log      *zap.Logger
}

func NewServer(cfg config.Config, db *pgxpool.Pool, redisClient *redis.Client, log *zap.Logger) *Server {
	log = logging.OrNop(log)
	app := fiber.New(fiber.Config{
		BodyLimit:    bodyLimit,
		ErrorHandler: errorHandler(log),
	})
	app.Use(recover.New())
	app.Use(logger.New())

	s := &Server{
		App:    app,
		Cfg:    cfg,
		DB:     db,
		Redis:  redisClient,
		Stream: stream.NewHub(redisClient, log),
		Flows:  newFlows(cfg, redisClient, log),
		Log:    log,
	}

	registerRoutes(s)
	return s
}

// newFlows leaves a provider unset when its key is missing so the flows
// fall back instead of calling out unauthenticated.
func newFlows(cfg config.Config, redisClient *redis.Client, log *zap.Logger) *ai.Flows {
	var llm ai.Completer
	if cfg.OpenRouterAPIKey != "" {
		llm = ai.NewOpenRouterClient(cfg.OpenRouterAPIKey, cfg.OpenRouterModel, cfg.OpenRouterURL, cfg.AITimeout)
	}
	var (
		stt ai.Recognizer
		tts ai.Synthesizer
	)
	if cfg.SpeechKitAPIKey != "" {
		sk := ai.NewSpeechKit(cfg.SpeechKitAPIKey, cfg.SpeechLang, cfg.SpeechVoice, cfg.AITimeout)
		stt, tts = sk, sk
	}
	return ai.NewFlows(llm, stt, tts, ai.NewCache(redisClient, cfg.AICacheTTL), cfg.AITimeout, log)
}

func registerRoutes(s *Server) {
	s.App.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})
	s.App.Static("/uploads", s.Cfg.UploadDir)

	jwtMiddleware := auth.JWTMiddleware(s.Cfg.JWTSecret)

	profiles := profile.NewService(s.DB)
	sounds := sound.NewService(s.DB)
	uploads := storage.NewService(s.DB, s.Cfg.UploadDir, s.Cfg.PublicBaseURL, s.Log)
	feeds := feed.NewService(s.DB, sounds, s.Flows, s.Log)
	chats := chat.NewService(s.DB, s.Flows, s.Stream, s.Log)
	s.Comments = comment.NewService(s.DB, s.Flows, uploads, s.Stream, s.Log)

	auth.RegisterRoutes(s.App.Group("/auth"), auth.NewService(s.Cfg.JWTSecret, s.DB, profiles, s.Log))
	profile.RegisterRoutes(s.App.Group("/profiles"), profiles, jwtMiddleware)
	sound.RegisterRoutes(s.App.Group("/sounds"), sounds)
	feed.RegisterRoutes(s.App.Group("/feed"), feeds, jwtMiddleware)
	comment.RegisterRoutes(s.App.Group("/comments"), s.Comments, uploads, jwtMiddleware)
	story.RegisterRoutes(s.App.Group("/stories"), story.NewService(s.DB), jwtMiddleware)
	chat.RegisterRoutes(s.App.Group("/chats"), chats, jwtMiddleware)
	storage.RegisterRoutes(s.App.Group("/storage"), uploads, jwtMiddleware)
	actions.RegisterRoutes(s.App.Group("/actions"), actions.NewService(s.Flows, feeds, profiles, uploads, s.Log), jwtMiddleware)
	stream.RegisterRoutes(s.App.Group("/stream"), s.Stream, jwtMiddleware, roomPolicy(chats))
}

// roomPolicy opens comment rooms to any signed-in user and chat rooms to
// their two participants.
func roomPolicy(chats interface {
	IsParticipant(ctx context.Context, chatID, userID string) error
}) stream.RoomPolicy {
	return func(ctx context.Context, userID, room string) error {
		switch {
		case strings.HasPrefix(room, "comments:"):
			return nil
		case strings.HasPrefix(room, "chat:"):
			return chats.IsParticipant(ctx, strings.TrimPrefix(room, "chat:"), userID)
		default:
			return errUnknownRoom
		}
	}
}

func errorHandler(log *zap.Logger) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		code := fiber.StatusInternalServerError
		var fe *fiber.Error
		if errors.As(err, &fe) {
			code = fe.Code
		}
		if code >= fiber.StatusInternalServerError {
			log.Error("request failed", zap.String("method", c.Method()), zap.String("path", c.Path()), zap.Error(err))
		}
		return c.Status(code).JSON(fiber.Map{"error": err.Error()})
	}
}
