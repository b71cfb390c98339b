package stream

import (
	"context"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
)

// RoomPolicy decides whether a user may join a room.
type RoomPolicy func(ctx context.Context, userID, room string) error

func RegisterRoutes(r fiber.Router, hub *Hub, authMiddleware fiber.Handler, policy RoomPolicy) {
	r.Get("/ws/:room", authMiddleware, func(c *fiber.Ctx) error {
		if !websocket.IsWebSocketUpgrade(c) {
			return fiber.ErrUpgradeRequired
		}
		userID, _ := c.Locals("user_id").(string)
		if policy != nil {
			if err := policy(c.Context(), userID, c.Params("room")); err != nil {
				return fiber.NewError(fiber.StatusForbidden, err.Error())
			}
		}
		return c.Next()
	}, websocket.New(func(c *websocket.Conn) {
		userID, _ := c.Locals("user_id").(string)
		client := hub.Register(c.Params("room"), userID)
		defer hub.Unregister(client)

		done := make(chan struct{})
		go func() {
			defer close(done)
			for msg := range client.Send {
				if err := c.WriteMessage(websocket.TextMessage, msg); err != nil {
					return
				}
			}
		}()

		for {
			if _, _, err := c.ReadMessage(); err != nil {
				break
			}
		}
		hub.Unregister(client)
		<-done
	}))
}
