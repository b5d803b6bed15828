// Package sweep runs periodic housekeeping: purging expired sessions,
// finished generation jobs and idle rate-limit windows.
package sweep

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

// Task removes stale entries and returns how many it dropped.
type Task struct {
	Name string
	Run  func(ctx context.Context) (int64, error)
}

type Scheduler struct {
	cron    *cron.Cron
	tasks   []Task
	timeout time.Duration
	log     *logrus.Entry
}

// NewScheduler registers tasks to run together on schedule, which accepts
// standard cron specs and descriptors such as "@every 1h".
func NewScheduler(schedule string, log *logrus.Entry, tasks ...Task) (*Scheduler, error) {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	log = log.WithField("component", "sweep")
	cl := cron.PrintfLogger(log)
	s := &Scheduler{
		cron:    cron.New(cron.WithLogger(cl), cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl))),
		tasks:   tasks,
		timeout: time.Minute,
		log:     log,
	}
	if _, err := s.cron.AddFunc(schedule, func() { s.RunOnce(context.Background()) }); err != nil {
		return nil, fmt.Errorf("sweep schedule %q: %w", schedule, err)
	}
	return s, nil
}

func (s *Scheduler) Start() {
	s.cron.Start()
	s.log.WithField("tasks", len(s.tasks)).Info("sweeper started")
}

// Stop halts the schedule and waits for a running sweep to finish.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
}

// RunOnce runs every task once. A failing task does not stop the others.
func (s *Scheduler) RunOnce(ctx context.Context) {
	for _, t := range s.tasks {
		tctx, cancel := context.WithTimeout(ctx, s.timeout)
		n, err := t.Run(tctx)
		cancel()
		log := s.log.WithField("task", t.Name)
		if err != nil {
			log.WithError(err).Error("sweep task failed")
			continue
		}
		if n > 0 {
			log.WithField("removed", n).Info("sweep task removed entries")
		}
	}
}
