package stream

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func TestHubBroadcast(t *testing.T) {
	hub := NewHub(nil, nil)
	client := hub.Register("comments:item-1", "user-1")
	defer hub.Unregister(client)

	hub.Broadcast("comments:item-1", []byte("hello"))

	select {
	case msg := <-client.Send:
		if string(msg) != "hello" {
			t.Fatalf("unexpected message")
		}
	case <-time.After(100 * time.Millisecond):
		t.Fatalf("timeout waiting for message")
	}
}

func TestHubPublishEnvelope(t *testing.T) {
	hub := NewHub(nil, nil)
	client := hub.Register("chat:c1", "user-1")
	defer hub.Unregister(client)

	hub.Publish("chat:c1", "message.created", map[string]string{"text": "yo"})

	select {
	case msg := <-client.Send:
		var ev struct {
			Type string            `json:"type"`
			Room string            `json:"room"`
			Data map[string]string `json:"data"`
		}
		if err := json.Unmarshal(msg, &ev); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if ev.Type != "message.created" || ev.Room != "chat:c1" || ev.Data["text"] != "yo" {
			t.Fatalf("unexpected event %+v", ev)
		}
	case <-time.After(100 * time.Millisecond):
		t.Fatalf("timeout waiting for event")
	}
}

func TestHubRoomsAreIsolated(t *testing.T) {
	hub := NewHub(nil, nil)
	a := hub.Register("room-a", "")
	b := hub.Register("room-b", "")
	defer hub.Unregister(a)
	defer hub.Unregister(b)

	hub.Broadcast("room-a", []byte("only a"))
	select {
	case <-b.Send:
		t.Fatalf("room-b should not receive room-a messages")
	case <-time.After(20 * time.Millisecond):
	}
	if len(a.Send) != 1 {
		t.Fatalf("expected message in room-a")
	}
}

func TestHubHelpers(t *testing.T) {
	ch := redisChannel("comments:abc")
	if ch != "fliptok:comments:abc:broadcast" {
		t.Fatalf("unexpected channel %s", ch)
	}
	if roomFromChannel(ch) != "comments:abc" {
		t.Fatalf("unexpected room")
	}
	if roomFromChannel("bad") != "" {
		t.Fatalf("expected empty room")
	}
	if roomFromChannel("other:room-x:broadcast") != "" {
		t.Fatalf("expected foreign prefix to be ignored")
	}
}

func TestUnregisterClosesOnce(t *testing.T) {
	hub := NewHub(nil, nil)
	client := hub.Register("room", "")
	hub.Unregister(client)
	hub.Unregister(client)
	if _, ok := <-client.Send; ok {
		t.Fatalf("expected channel closed")
	}
	if hub.roomSize("room") != 0 {
		t.Fatalf("expected room removed")
	}
}

func TestHubRedisRelay(t *testing.T) {
	s := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: s.Addr()})
	defer rdb.Close()

	hub := NewHub(rdb, nil)
	defer hub.Close()
	ws := hub.Register("comments:item-9", "")
	defer hub.Unregister(ws)

	hub.Broadcast("comments:item-9", []byte("ping"))
	select {
	case msg := <-ws.Send:
		if string(msg) != "ping" {
			t.Fatalf("unexpected message")
		}
	case <-time.After(time.Second):
		t.Fatalf("timeout waiting for relayed broadcast")
	}

	// a publish from another instance reaches local clients exactly once
	if err := rdb.Publish(context.Background(), redisChannel("comments:item-9"), "pong").Err(); err != nil {
		t.Fatalf("publish error: %v", err)
	}
	select {
	case msg := <-ws.Send:
		if string(msg) != "pong" {
			t.Fatalf("unexpected message from redis")
		}
	case <-time.After(time.Second):
		t.Fatalf("timeout waiting for redis message")
	}
	select {
	case extra := <-ws.Send:
		t.Fatalf("unexpected duplicate delivery %q", extra)
	case <-time.After(30 * time.Millisecond):
	}
}

func TestHubRedisUnavailableFallsBackToLocal(t *testing.T) {
	s := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: s.Addr(), MaxRetries: -1})
	s.Close()
	defer rdb.Close()

	hub := NewHub(rdb, nil)
	client := hub.Register("room", "")
	defer hub.Unregister(client)

	hub.Broadcast("room", []byte("local"))
	select {
	case msg := <-client.Send:
		if string(msg) != "local" {
			t.Fatalf("unexpected message")
		}
	case <-time.After(time.Second):
		t.Fatalf("expected local delivery")
	}
}
