package audit

import (
	"context"
	"encoding/json"
	"fmt"

	"rewardvault/pkg/logger"
	"rewardvault/pkg/taskname"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"
)

type RedeliverPayload struct {
	Entries []*Entry `json:"entries"`
}

func NewRedeliverTask(entries []*Entry) (*asynq.Task, error) {
	payload, err := json.Marshal(RedeliverPayload{Entries: entries})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(taskname.AuditRedeliver, payload), nil
}

func redeliverOptions() []asynq.Option {
	return []asynq.Option{
		asynq.Queue(taskname.QueueCritical),
		asynq.MaxRetry(20),
	}
}

// HandleRedeliver inserts entries whose after-commit write was exhausted.
// Inserts skip ids that already exist, so redelivery is safe to repeat.
func (t *Trail) HandleRedeliver(ctx context.Context, tsk *asynq.Task) error {
	var p RedeliverPayload
	if err := json.Unmarshal(tsk.Payload(), &p); err != nil {
		return fmt.Errorf("audit: decode redeliver payload: %v: %w", err, asynq.SkipRetry)
	}

	if len(p.Entries) == 0 {
		return nil
	}

	if err := t.insert(ctx, t.db, p.Entries); err != nil {
		writeFailures.WithLabelValues("redelivery").Inc()
		logger.FromContext(ctx).Warn("audit redelivery failed", zap.Int("entries", len(p.Entries)), zap.Error(err))
		return err
	}

	countWritten(p.Entries)
	return nil
}

func RegisterTasks(mux *asynq.ServeMux, t *Trail) {
	mux.HandleFunc(taskname.AuditRedeliver, t.HandleRedeliver)
}
