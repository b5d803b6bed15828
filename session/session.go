// Package session persists the demo session of a device: how many free
// generations remain, when the session started and whether output must be
// watermarked. The Store is the sole owner of this state; callers re-read it
// through Load instead of caching it.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// Session is the demo usage record of one device.
type Session struct {
	GenerationsLeft   int
	StartedAt         time.Time
	WatermarkRequired bool
}

// Patch is a partial update applied by Store.Save. Nil fields are left as is.
type Patch struct {
	GenerationsLeft   *int
	StartedAt         *time.Time
	WatermarkRequired *bool
}

// Backend is a device-scoped key-value namespace.
type Backend interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Put(ctx context.Context, key string, value []byte) error
	Del(ctx context.Context, key string) error
}

var errInvalidRecord = errors.New("invalid session record")

// timeLayout matches JavaScript's Date.toISOString.
const timeLayout = "2006-01-02T15:04:05.000Z07:00"

// record is the persisted form.
type record struct {
	GenerationsLeft *int   `json:"generationsLeft"`
	StartTime       string `json:"startTime"`
	HasWatermark    *bool  `json:"hasWatermark"`
}

func encode(s Session) ([]byte, error) {
	left, wm := s.GenerationsLeft, s.WatermarkRequired
	return json.Marshal(record{
		GenerationsLeft: &left,
		StartTime:       s.StartedAt.UTC().Format(timeLayout),
		HasWatermark:    &wm,
	})
}

func decode(b []byte) (Session, error) {
	var r record
	if err := json.Unmarshal(b, &r); err != nil {
		return Session{}, fmt.Errorf("%w: %v", errInvalidRecord, err)
	}
	if r.GenerationsLeft == nil || *r.GenerationsLeft < 0 {
		return Session{}, fmt.Errorf("%w: generationsLeft missing or negative", errInvalidRecord)
	}
	if r.HasWatermark == nil {
		return Session{}, fmt.Errorf("%w: hasWatermark missing", errInvalidRecord)
	}
	started, err := time.Parse(time.RFC3339Nano, r.StartTime)
	if err != nil {
		return Session{}, fmt.Errorf("%w: startTime: %v", errInvalidRecord, err)
	}
	return Session{
		GenerationsLeft:   *r.GenerationsLeft,
		StartedAt:         normalizeTime(started),
		WatermarkRequired: *r.HasWatermark,
	}, nil
}

// normalizeTime drops the monotonic reading and anything below the stored
// millisecond precision so values survive a round trip unchanged.
func normalizeTime(t time.Time) time.Time {
	return t.UTC().Truncate(time.Millisecond)
}
