package ai

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func chatReply(content, finish string) string {
	b, _ := json.Marshal(map[string]any{
		"choices": []map[string]any{{
			"message":       map[string]string{"role": "assistant", "content": content},
			"finish_reason": finish,
		}},
	})
	return string(b)
}

func TestOpenRouterComplete(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer key" {
			t.Errorf("missing bearer")
		}
		var req orRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode: %v", err)
		}
		if req.Model != "test-model" || len(req.Messages) != 2 || req.ResponseFormat.Type != "json_object" {
			t.Errorf("unexpected request: %+v", req)
		}
		_, _ = w.Write([]byte(chatReply(`{"safe":true}`, "stop")))
	}))
	defer srv.Close()

	c := NewOpenRouterClient("key", "test-model", srv.URL+"/", time.Second)
	out, err := c.Complete(context.Background(), "sys", "user")
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if out != `{"safe":true}` {
		t.Fatalf("unexpected content %q", out)
	}
}

func TestOpenRouterRetriesServerErrors(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte(chatReply(`{"ids":[]}`, "stop")))
	}))
	defer srv.Close()

	c := NewOpenRouterClient("key", "m", srv.URL, time.Second)
	if _, err := c.Complete(context.Background(), "s", "u"); err != nil {
		t.Fatalf("complete: %v", err)
	}
	if atomic.LoadInt32(&calls) != 3 {
		t.Fatalf("expected 3 attempts, got %d", calls)
	}
}

func TestOpenRouterGivesUpAfterAttempts(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		_, _ = w.Write([]byte(`{"choices":[]}`))
	}))
	defer srv.Close()

	c := NewOpenRouterClient("key", "m", srv.URL, time.Second)
	if _, err := c.Complete(context.Background(), "s", "u"); err == nil {
		t.Fatalf("expected error")
	}
	if atomic.LoadInt32(&calls) != openRouterAttempts {
		t.Fatalf("expected %d attempts, got %d", openRouterAttempts, calls)
	}
}

func TestOpenRouterClientErrorNotRetried(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":{"message":"bad key"}}`))
	}))
	defer srv.Close()

	c := NewOpenRouterClient("key", "m", srv.URL, time.Second)
	if _, err := c.Complete(context.Background(), "s", "u"); err == nil {
		t.Fatalf("expected error")
	}
	if atomic.LoadInt32(&calls) != 1 {
		t.Fatalf("expected single attempt, got %d", calls)
	}
}

func TestOpenRouterSafetyTrigger(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(chatReply("", "content_filter")))
	}))
	defer srv.Close()

	c := NewOpenRouterClient("key", "m", srv.URL, time.Second)
	_, err := c.Complete(context.Background(), "s", "u")
	if !errors.Is(err, ErrSafetyBlocked) {
		t.Fatalf("expected safety error, got %v", err)
	}
}

func TestOpenRouterWithoutKey(t *testing.T) {
	c := NewOpenRouterClient("", "m", "http://unused", time.Second)
	if _, err := c.Complete(context.Background(), "s", "u"); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected unavailable, got %v", err)
	}
}

func TestTrim(t *testing.T) {
	if trim("abc", 5) != "abc" {
		t.Fatalf("short string changed")
	}
	if trim("abcdef", 3) != "abc…" {
		t.Fatalf("unexpected trim result")
	}
}
