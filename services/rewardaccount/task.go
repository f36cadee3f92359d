package rewardaccount

import (
	"context"
	"time"

	"rewardvault/pkg/taskname"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"
)

func NewExpirySweepTask() *asynq.Task {
	return asynq.NewTask(taskname.RewardExpirySweep, nil)
}

// expirySweepOptions keeps at most one sweep queued per window.
func expirySweepOptions() []asynq.Option {
	return []asynq.Option{
		asynq.Queue(taskname.QueueLow),
		asynq.MaxRetry(3),
		asynq.Unique(time.Hour),
	}
}

func (s *Service) HandleExpirySweep(ctx context.Context, t *asynq.Task) error {
	zapLog := zap.L().With(zap.String("task_type", t.Type()))

	start := time.Now()
	n, err := s.MarkExpired(ctx)
	if err != nil {
		zapLog.Error("expiry sweep failed", zap.Int64("expired", n), zap.Error(err))
		return err
	}

	zapLog.Info("expiry sweep done", zap.Int64("expired", n), zap.Duration("duration", time.Since(start)))
	return nil
}

func RegisterTasks(mux *asynq.ServeMux, s *Service) {
	mux.HandleFunc(taskname.RewardExpirySweep, s.HandleExpirySweep)
}
