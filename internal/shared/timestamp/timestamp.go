// Package timestamp serialises creation times as the seconds/nanoseconds pair
// the mobile and web clients already consume.
package timestamp

import (
	"encoding/json"
	"time"
)

type Timestamp struct {
	time.Time
}

type wire struct {
	Seconds     int64 `json:"seconds"`
	Nanoseconds int32 `json:"nanoseconds"`
}

func From(t time.Time) Timestamp {
	return Timestamp{Time: t}
}

func (t Timestamp) MarshalJSON() ([]byte, error) {
	if t.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(wire{Seconds: t.Unix(), Nanoseconds: int32(t.Nanosecond())})
}

func (t *Timestamp) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		t.Time = time.Time{}
		return nil
	}
	var w wire
	if err := json.Unmarshal(b, &w); err != nil {
		return err
	}
	t.Time = time.Unix(w.Seconds, int64(w.Nanoseconds)).UTC()
	return nil
}
