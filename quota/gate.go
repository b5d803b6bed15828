// Package quota decides whether a device may use a demo-tier feature and
// records consumed generations.
//
// Checking and consuming are deliberately separate: callers check before
// rendering a gated action and consume only after the action succeeded
// downstream. The gate is therefore advisory and two concurrent consumers
// for the same device can both spend the same generation.
package quota

import (
	"context"
	"fmt"

	"github.com/PaulFidika/demogate/features"
	"github.com/PaulFidika/demogate/metrics"
	"github.com/PaulFidika/demogate/session"
	"github.com/sirupsen/logrus"
)

// Sessions is the subset of *session.Store the gate needs.
type Sessions interface {
	Load(ctx context.Context, deviceID string) (session.Session, error)
	Save(ctx context.Context, deviceID string, p session.Patch) (session.Session, error)
}

// Gate applies the feature catalog to device sessions. It caches nothing.
type Gate struct {
	catalog  *features.Catalog
	sessions Sessions
	metrics  *metrics.Metrics
	log      *logrus.Entry
}

// Option configures a Gate.
type Option func(*Gate)

// WithMetrics records decisions on m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(g *Gate) { g.metrics = m }
}

// WithLogger sets the logger.
func WithLogger(l *logrus.Entry) Option {
	return func(g *Gate) { g.log = l }
}

// New builds a gate over catalog and sessions.
func New(catalog *features.Catalog, sessions Sessions, opts ...Option) *Gate {
	g := &Gate{catalog: catalog, sessions: sessions}
	for _, opt := range opts {
		opt(g)
	}
	if g.log == nil {
		g.log = logrus.NewEntry(logrus.StandardLogger())
	}
	g.log = g.log.WithField("component", "quota")
	return g
}

// Catalog returns the catalog the gate was built with.
func (g *Gate) Catalog() *features.Catalog { return g.catalog }

// CanUse reports whether the device may use the feature. Features outside
// the demo tier are always allowed and do not touch the session.
func (g *Gate) CanUse(ctx context.Context, deviceID, featureID string) (bool, error) {
	d, err := g.catalog.Lookup(featureID)
	if err != nil {
		return false, err
	}
	if !d.Gated() {
		g.metrics.RecordCheck(d.ID, d.Tier.String(), true)
		return true, nil
	}
	sess, err := g.sessions.Load(ctx, deviceID)
	if err != nil {
		return false, err
	}
	ok := sess.GenerationsLeft > 0
	g.metrics.RecordCheck(d.ID, d.Tier.String(), ok)
	g.log.WithFields(logrus.Fields{
		"feature":          d.ID,
		"device_id":        deviceID,
		"generations_left": sess.GenerationsLeft,
		"allowed":          ok,
	}).Debug("demo quota check")
	return ok, nil
}

// Consume spends one generation of the device's session and returns the
// updated session. The count never drops below zero.
func (g *Gate) Consume(ctx context.Context, deviceID, featureID string) (session.Session, error) {
	d, err := g.catalog.Lookup(featureID)
	if err != nil {
		return session.Session{}, err
	}
	sess, err := g.sessions.Load(ctx, deviceID)
	if err != nil {
		return session.Session{}, err
	}
	left := max(0, sess.GenerationsLeft-1)
	out, err := g.sessions.Save(ctx, deviceID, session.Patch{GenerationsLeft: &left})
	if err != nil {
		return session.Session{}, fmt.Errorf("consume %s: %w", d.ID, err)
	}
	g.metrics.RecordConsume(d.ID)
	g.log.WithFields(logrus.Fields{
		"feature":          d.ID,
		"device_id":        deviceID,
		"generations_left": out.GenerationsLeft,
	}).Debug("demo generation consumed")
	return out, nil
}

// Status is the view of one feature for one device.
type Status struct {
	Feature         string               `json:"feature"`
	Tier            features.AccessTier  `json:"access_tier"`
	Allowed         bool                 `json:"allowed"`
	GenerationsLeft *int                 `json:"generations_left,omitempty"`
	Limits          *features.DemoLimits `json:"demo_limits,omitempty"`
	Watermark       bool                 `json:"watermark"`
}

// Status reports the gate decision together with the badge count.
// GenerationsLeft and Watermark are only set for demo features.
func (g *Gate) Status(ctx context.Context, deviceID, featureID string) (Status, error) {
	d, err := g.catalog.Lookup(featureID)
	if err != nil {
		return Status{}, err
	}
	st := Status{Feature: d.ID, Tier: d.Tier, Allowed: true, Limits: d.Demo}
	if !d.Gated() {
		return st, nil
	}
	sess, err := g.sessions.Load(ctx, deviceID)
	if err != nil {
		return Status{}, err
	}
	left := sess.GenerationsLeft
	st.GenerationsLeft = &left
	st.Allowed = left > 0
	st.Watermark = sess.WatermarkRequired || d.Demo.WatermarkRequired
	return st, nil
}

// StatusAll reports Status for every catalog feature, loading the session once.
func (g *Gate) StatusAll(ctx context.Context, deviceID string) ([]Status, error) {
	sess, err := g.sessions.Load(ctx, deviceID)
	if err != nil {
		return nil, err
	}
	all := g.catalog.All()
	out := make([]Status, 0, len(all))
	for _, d := range all {
		st := Status{Feature: d.ID, Tier: d.Tier, Allowed: true, Limits: d.Demo}
		if d.Gated() {
			left := sess.GenerationsLeft
			st.GenerationsLeft = &left
			st.Allowed = left > 0
			st.Watermark = sess.WatermarkRequired || d.Demo.WatermarkRequired
		}
		out = append(out, st)
	}
	return out, nil
}
