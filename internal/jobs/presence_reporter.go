package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/Audatic07/collab-notes/internal/metrics"
	"github.com/Audatic07/collab-notes/internal/session"
)

// StatsSource is the part of the session manager the reporter reads.
type StatsSource interface {
	Stats(ctx context.Context) (session.Stats, error)
}

// PresenceReporter periodically logs how many sessions and rooms are live
// and re-syncs the collaboration gauges from that snapshot.
type PresenceReporter struct {
	source   StatsSource
	log      *zap.Logger
	schedule string
	timeout  time.Duration
	cron     *cron.Cron
}

func NewPresenceReporter(source StatsSource, log *zap.Logger, schedule string) *PresenceReporter {
	return &PresenceReporter{
		source:   source,
		log:      log,
		schedule: schedule,
		timeout:  5 * time.Second,
		cron:     cron.New(),
	}
}

// Start schedules the report. An empty schedule disables it.
func (r *PresenceReporter) Start() error {
	if r.schedule == "" {
		r.log.Info("presence reporting disabled")
		return nil
	}

	_, err := r.cron.AddFunc(r.schedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
		defer cancel()
		if _, err := r.RunOnce(ctx); err != nil {
			r.log.Warn("presence report failed", zap.Error(err))
		}
	})
	if err != nil {
		return fmt.Errorf("failed to schedule presence report: %w", err)
	}

	r.cron.Start()
	r.log.Info("presence reporter started", zap.String("schedule", r.schedule))
	return nil
}

// Stop waits for a running report to finish.
func (r *PresenceReporter) Stop() {
	<-r.cron.Stop().Done()
}

// RunOnce takes one snapshot.
func (r *PresenceReporter) RunOnce(ctx context.Context) (session.Stats, error) {
	stats, err := r.source.Stats(ctx)
	if err != nil {
		return session.Stats{}, fmt.Errorf("failed to read session stats: %w", err)
	}
	metrics.SetActiveSessions(stats.Sessions)
	metrics.SetActiveRooms(stats.Rooms)
	r.log.Info("presence report",
		zap.Int("sessions", stats.Sessions),
		zap.Int("rooms", stats.Rooms))
	return stats, nil
}
