// Package cursor encodes keyset pagination positions as opaque strings.
package cursor

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"strconv"
	"time"
)

var ErrInvalid = errors.New("invalid cursor")

const (
	DefaultLimit = 20
	MaxLimit     = 100
)

// Position is the (created_at, id) of the last row a page returned.
type Position struct {
	CreatedAt time.Time
	ID        string
}

type payload struct {
	CreatedAt int64  `json:"createdAt"`
	ID        string `json:"id"`
}

// Encode uses microseconds, the precision Postgres stores.
func Encode(t time.Time, id string) string {
	b, _ := json.Marshal(payload{CreatedAt: t.UnixMicro(), ID: id})
	return base64.RawURLEncoding.EncodeToString(b)
}

// Decode returns nil for an empty cursor, meaning the first page.
func Decode(s string) (*Position, error) {
	if s == "" {
		return nil, nil
	}
	raw, err := base64.RawURLEncoding.DecodeString(s)
	if err != nil {
		return nil, ErrInvalid
	}
	var p payload
	if err := json.Unmarshal(raw, &p); err != nil || p.ID == "" {
		return nil, ErrInvalid
	}
	return &Position{CreatedAt: time.UnixMicro(p.CreatedAt).UTC(), ID: p.ID}, nil
}

// Limit parses a page size query value, clamping to [1, MaxLimit].
func Limit(s string) int {
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		return DefaultLimit
	}
	if n > MaxLimit {
		return MaxLimit
	}
	return n
}
