package generate

import (
	"context"
	"fmt"

	"github.com/PaulFidika/demogate/features"
	"github.com/PaulFidika/demogate/metrics"
	"github.com/PaulFidika/demogate/session"
	"github.com/sirupsen/logrus"
)

// Consumer spends a demo generation after a successful run.
type Consumer interface {
	Consume(ctx context.Context, deviceID, featureID string) (session.Session, error)
}

// Runner executes generations and charges the demo quota on success only.
type Runner struct {
	Catalog  *features.Catalog
	Registry *Registry
	Jobs     *Jobs
	Quota    Consumer
	Metrics  *metrics.Metrics
	Log      *logrus.Entry
}

// Outcome is the result of Runner.Run.
type Outcome struct {
	Job     JobView          `json:"job"`
	Session *session.Session `json:"-"`
}

// Run generates featureID for deviceID. The caller is expected to have
// checked the gate already. A failed generation does not consume quota.
func (r *Runner) Run(ctx context.Context, deviceID, featureID string, input map[string]any) (Outcome, error) {
	d, err := r.Catalog.Lookup(featureID)
	if err != nil {
		return Outcome{}, err
	}
	g, ok := r.Registry.Get(d.ID)
	if !ok {
		return Outcome{}, fmt.Errorf("%w: %s", ErrNoGenerator, d.ID)
	}
	log := r.logger().WithFields(logrus.Fields{"feature": d.ID, "device_id": deviceID})

	job := r.Jobs.create(d.ID, deviceID)
	job.tracker.Start()
	log = log.WithField("job_id", job.ID)

	res, err := g.Generate(ctx, Request{Feature: d.ID, DeviceID: deviceID, Input: input, Limits: d.Demo})
	now := r.Jobs.now().UTC()
	elapsed := now.Sub(job.CreatedAt).Seconds()
	if err != nil {
		job.tracker.Stop()
		job.finish(JobFailed, nil, err.Error(), now)
		r.Metrics.RecordJob(d.ID, string(JobFailed), elapsed)
		log.WithError(err).Warn("generation failed")
		return Outcome{Job: job.View()}, err
	}
	if d.Demo != nil && d.Demo.WatermarkRequired {
		res.Watermarked = true
	}
	job.tracker.Complete()
	job.finish(JobSucceeded, &res, "", now)
	r.Metrics.RecordJob(d.ID, string(JobSucceeded), elapsed)

	out := Outcome{Job: job.View()}
	if d.Gated() && r.Quota != nil {
		sess, err := r.Quota.Consume(ctx, deviceID, d.ID)
		if err != nil {
			// The artifact is already produced; report success regardless.
			log.WithError(err).Error("failed to consume demo generation")
			return out, nil
		}
		out.Session = &sess
	}
	log.Info("generation succeeded")
	return out, nil
}

func (r *Runner) logger() *logrus.Entry {
	if r.Log != nil {
		return r.Log
	}
	return logrus.NewEntry(logrus.StandardLogger()).WithField("component", "generate")
}
