package stream

import (
	"context"
	"encoding/json"
	"strings"
	"sync"

	"backend-fliptok/internal/logging"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	channelPrefix  = "fliptok:"
	channelSuffix  = ":broadcast"
	channelPattern = channelPrefix + "*" + channelSuffix
)

// Hub fans room messages out to websocket clients. With Redis configured,
// every broadcast goes through pub/sub so clients on other instances see it;
// local delivery then happens from the subscription.
type Hub struct {
	redis   *redis.Client
	pubsub  *redis.PubSub
	clients map[string]map[*Client]struct{}
	mu      sync.RWMutex
	log     *zap.Logger
}

type Client struct {
	Room   string
	UserID string
	Send   chan []byte
}

// Event is the envelope every room message is wrapped in.
type Event struct {
	Type string `json:"type"`
	Room string `json:"room"`
	Data any    `json:"data"`
}

func NewHub(redisClient *redis.Client, log *zap.Logger) *Hub {
	h := &Hub{
		redis:   redisClient,
		clients: map[string]map[*Client]struct{}{},
		log:     logging.OrNop(log).Named("stream"),
	}

	if redisClient != nil {
		pubsub := redisClient.PSubscribe(context.Background(), channelPattern)
		if _, err := pubsub.Receive(context.Background()); err != nil {
			h.log.Warn("redis subscribe failed, falling back to local fan-out", zap.Error(err))
			_ = pubsub.Close()
			h.redis = nil
		} else {
			h.pubsub = pubsub
			go h.relay(pubsub.Channel())
		}
	}
	return h
}

func (h *Hub) Register(room, userID string) *Client {
	client := &Client{
		Room:   room,
		UserID: userID,
		Send:   make(chan []byte, 64),
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.clients[room] == nil {
		h.clients[room] = map[*Client]struct{}{}
	}
	h.clients[room][client] = struct{}{}
	return client
}

func (h *Hub) Unregister(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	roomClients, ok := h.clients[client.Room]
	if !ok {
		return
	}
	if _, ok := roomClients[client]; !ok {
		return
	}
	delete(roomClients, client)
	if len(roomClients) == 0 {
		delete(h.clients, client.Room)
	}
	close(client.Send)
}

// Publish wraps data in an Event and broadcasts it to room.
func (h *Hub) Publish(room, eventType string, data any) {
	payload, err := json.Marshal(Event{Type: eventType, Room: room, Data: data})
	if err != nil {
		h.log.Error("marshal event", zap.String("room", room), zap.Error(err))
		return
	}
	h.Broadcast(room, payload)
}

func (h *Hub) Broadcast(room string, payload []byte) {
	if h.redis != nil {
		err := h.redis.Publish(context.Background(), redisChannel(room), payload).Err()
		if err == nil {
			return
		}
		h.log.Warn("redis publish failed, delivering locally", zap.String("room", room), zap.Error(err))
	}
	h.deliver(room, payload)
}

// Close stops the redis relay. Registered clients are left to their handlers.
func (h *Hub) Close() error {
	if h.pubsub != nil {
		return h.pubsub.Close()
	}
	return nil
}

func (h *Hub) deliver(room string, payload []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for client := range h.clients[room] {
		select {
		case client.Send <- payload:
		default:
			h.log.Debug("client buffer full, dropping message", zap.String("room", room))
		}
	}
}

func (h *Hub) relay(ch <-chan *redis.Message) {
	for msg := range ch {
		room := roomFromChannel(msg.Channel)
		if room == "" {
			continue
		}
		h.deliver(room, []byte(msg.Payload))
	}
}

func redisChannel(room string) string {
	return channelPrefix + room + channelSuffix
}

func roomFromChannel(ch string) string {
	// fliptok:{room}:broadcast
	if len(ch) <= len(channelPrefix)+len(channelSuffix) {
		return ""
	}
	if !strings.HasPrefix(ch, channelPrefix) || !strings.HasSuffix(ch, channelSuffix) {
		return ""
	}
	return ch[len(channelPrefix) : len(ch)-len(channelSuffix)]
}

func (h *Hub) roomSize(room string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[room])
}
