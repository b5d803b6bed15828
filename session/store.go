package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

const (
	// DefaultKeyPrefix namespaces session records per device.
	DefaultKeyPrefix = "demo:session:"
	// DefaultGenerations is the starting quota of a fresh session.
	DefaultGenerations = 3
)

// Options configures a Store.
type Options struct {
	KeyPrefix         string
	Generations       int
	WatermarkRequired *bool
	Now               func() time.Time
	Log               *logrus.Entry
}

// Store reads and writes the demo session of a device.
type Store struct {
	backend     Backend
	keyNS       string
	generations int
	watermark   bool
	now         func() time.Time
	log         *logrus.Entry
}

// NewStore wraps a backend. Zero Options yield 3 generations with a
// watermark under DefaultKeyPrefix.
func NewStore(backend Backend, opts Options) *Store {
	s := &Store{
		backend:     backend,
		keyNS:       opts.KeyPrefix,
		generations: opts.Generations,
		watermark:   true,
		now:         opts.Now,
		log:         opts.Log,
	}
	if s.keyNS == "" {
		s.keyNS = DefaultKeyPrefix
	}
	if s.generations <= 0 {
		s.generations = DefaultGenerations
	}
	if opts.WatermarkRequired != nil {
		s.watermark = *opts.WatermarkRequired
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.log == nil {
		s.log = logrus.NewEntry(logrus.StandardLogger())
	}
	s.log = s.log.WithField("component", "session")
	return s
}

func (s *Store) key(deviceID string) string { return s.keyNS + deviceID }

func (s *Store) fresh() Session {
	return Session{
		GenerationsLeft:   s.generations,
		StartedAt:         normalizeTime(s.now()),
		WatermarkRequired: s.watermark,
	}
}

// Load returns the device's session, creating and persisting a fresh one
// when none exists. Stored data that cannot be decoded is discarded and
// replaced; only backend failures are returned as errors.
func (s *Store) Load(ctx context.Context, deviceID string) (Session, error) {
	if strings.TrimSpace(deviceID) == "" {
		return Session{}, errors.New("device id required")
	}
	key := s.key(deviceID)
	raw, ok, err := s.backend.Get(ctx, key)
	if err != nil {
		return Session{}, fmt.Errorf("load session: %w", err)
	}
	if ok {
		sess, err := decode(raw)
		if err == nil {
			return sess, nil
		}
		s.log.WithError(err).WithField("device_id", deviceID).Warn("discarding corrupt demo session")
	}
	sess := s.fresh()
	if err := s.put(ctx, key, sess); err != nil {
		return Session{}, err
	}
	return sess, nil
}

// Save merges p onto the stored session and persists the result.
// It is last-write-wins.
func (s *Store) Save(ctx context.Context, deviceID string, p Patch) (Session, error) {
	sess, err := s.Load(ctx, deviceID)
	if err != nil {
		return Session{}, err
	}
	if p.GenerationsLeft != nil {
		sess.GenerationsLeft = max(0, *p.GenerationsLeft)
	}
	if p.StartedAt != nil {
		sess.StartedAt = normalizeTime(*p.StartedAt)
	}
	if p.WatermarkRequired != nil {
		sess.WatermarkRequired = *p.WatermarkRequired
	}
	if err := s.put(ctx, s.key(deviceID), sess); err != nil {
		return Session{}, err
	}
	return sess, nil
}

// Reset deletes the device's session. The next Load starts over.
func (s *Store) Reset(ctx context.Context, deviceID string) error {
	if strings.TrimSpace(deviceID) == "" {
		return errors.New("device id required")
	}
	if err := s.backend.Del(ctx, s.key(deviceID)); err != nil {
		return fmt.Errorf("reset session: %w", err)
	}
	return nil
}

func (s *Store) put(ctx context.Context, key string, sess Session) error {
	b, err := encode(sess)
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}
	if err := s.backend.Put(ctx, key, b); err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}

// Record returns the persisted representation of sess.
func Record(sess Session) map[string]any {
	return map[string]any{
		"generationsLeft": sess.GenerationsLeft,
		"startTime":       sess.StartedAt.UTC().Format(timeLayout),
		"hasWatermark":    sess.WatermarkRequired,
	}
}
