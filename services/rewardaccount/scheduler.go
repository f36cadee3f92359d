package rewardaccount

import (
	"context"
	"errors"
	"fmt"
	"time"

	"rewardvault/pkg/config"
	"rewardvault/pkg/task"

	"github.com/hibiken/asynq"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Scheduler triggers the expiry sweep once a day at the configured time. With
// a task client the sweep is enqueued so only one worker runs it; without one
// it runs in process.
type Scheduler struct {
	svc      *Service
	enqueuer task.Enqueuer
	hour     int
	minute   int
	now      func() time.Time

	cancel context.CancelFunc
	done   chan struct{}
}

type SchedulerParams struct {
	fx.In
	Lc       fx.Lifecycle
	Config   *config.Config
	Service  *Service
	Enqueuer task.Enqueuer `optional:"true"`
}

func parseRunAt(v string) (hour, minute int, err error) {
	t, err := time.Parse("15:04", v)
	if err != nil {
		return 0, 0, fmt.Errorf("expiry run_at %q: want HH:MM", v)
	}
	return t.Hour(), t.Minute(), nil
}

func NewScheduler(svc *Service, enqueuer task.Enqueuer, runAt string) (*Scheduler, error) {
	hour, minute, err := parseRunAt(runAt)
	if err != nil {
		return nil, err
	}
	return &Scheduler{
		svc:      svc,
		enqueuer: enqueuer,
		hour:     hour,
		minute:   minute,
		now:      time.Now,
	}, nil
}

func StartScheduler(p SchedulerParams) error {
	if !p.Config.Expiry.Enable {
		zap.L().Info("[Scheduler] expiry sweep disabled")
		return nil
	}

	s, err := NewScheduler(p.Service, p.Enqueuer, p.Config.Expiry.RunAt)
	if err != nil {
		return err
	}

	p.Lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			ctx, cancel := context.WithCancel(context.Background())
			s.cancel = cancel
			s.done = make(chan struct{})
			go s.run(ctx)
			return nil
		},
		OnStop: func(ctx context.Context) error {
			s.cancel()
			select {
			case <-s.done:
			case <-ctx.Done():
			}
			return nil
		},
	})
	return nil
}

func (s *Scheduler) run(ctx context.Context) {
	defer close(s.done)
	zap.L().Info("[Scheduler] started reward expiry scheduler")

	for {
		now := s.now()
		next := nextRunTime(now, s.hour, s.minute)

		zap.L().Info("[Scheduler] next run scheduled",
			zap.Time("next_run", next),
			zap.Duration("sleep_for", next.Sub(now)),
		)

		timer := time.NewTimer(next.Sub(now))
		select {
		case <-timer.C:
			s.runOnce(ctx)
		case <-ctx.Done():
			timer.Stop()
			zap.L().Info("[Scheduler] stopped")
			return
		}
	}
}

func (s *Scheduler) runOnce(ctx context.Context) {
	if s.enqueuer != nil {
		_, err := s.enqueuer.Enqueue(ctx, NewExpirySweepTask(), expirySweepOptions()...)
		switch {
		case err == nil:
			zap.L().Info("[Scheduler] expiry sweep enqueued")
			return
		case errors.Is(err, asynq.ErrDuplicateTask):
			zap.L().Info("[Scheduler] expiry sweep already queued")
			return
		default:
			zap.L().Error("[Scheduler] failed to enqueue expiry sweep, running in process", zap.Error(err))
		}
	}

	start := time.Now()
	n, err := s.svc.MarkExpired(ctx)
	if err != nil {
		zap.L().Error("[Scheduler] expiry sweep failed", zap.Int64("expired", n), zap.Error(err))
		return
	}
	zap.L().Info("[Scheduler] expiry sweep finished",
		zap.Int64("expired", n),
		zap.Duration("duration", time.Since(start)),
	)
}

// nextRunTime returns the first hour:minute strictly after now.
func nextRunTime(now time.Time, hour, minute int) time.Time {
	next := time.Date(now.Year(), now.Month(), now.Day(), hour, minute, 0, 0, now.Location())
	if !next.After(now) {
		next = next.AddDate(0, 0, 1)
	}
	return next
}
