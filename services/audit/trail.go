package audit

import (
	"context"
	"errors"
	"time"

	"rewardvault/pkg/config"
	"rewardvault/pkg/db/pagination"
	"rewardvault/pkg/logger"
	"rewardvault/pkg/task"

	"github.com/bwmarrin/snowflake"
	"github.com/failsafe-go/failsafe-go"
	"github.com/failsafe-go/failsafe-go/retrypolicy"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const savepoint = "audit_entries"

// Trail appends audit entries. Entries get their ids before the first insert
// attempt, so every retry path is idempotent.
type Trail struct {
	db       *gorm.DB
	node     *snowflake.Node
	retry    failsafe.Executor[any]
	enqueuer task.Enqueuer
	now      func() time.Time
}

type Params struct {
	fx.In
	DB       *gorm.DB
	Node     *snowflake.Node
	Config   *config.Config
	Enqueuer task.Enqueuer `optional:"true"`
}

func NewTrail(p Params) *Trail {
	return &Trail{
		db:       p.DB,
		node:     p.Node,
		retry:    newRetry(p.Config.Audit.MaxRetries, p.Config.Audit.Backoff),
		enqueuer: p.Enqueuer,
		now:      time.Now,
	}
}

func newRetry(maxRetries int, backoff time.Duration) failsafe.Executor[any] {
	if maxRetries < 0 {
		maxRetries = 0
	}
	if backoff <= 0 {
		backoff = 100 * time.Millisecond
	}

	policy := retrypolicy.NewBuilder[any]().
		WithBackoff(backoff, 10*backoff).
		WithMaxRetries(maxRetries).
		Build()

	return failsafe.With(policy)
}

// Batch holds the entries written inside one transaction. Call AfterCommit
// once the transaction commits.
type Batch struct {
	written []*Entry
	failed  []*Entry
}

func (b *Batch) Entries() []*Entry {
	if b == nil {
		return nil
	}
	out := make([]*Entry, 0, len(b.written)+len(b.failed))
	out = append(out, b.written...)
	return append(out, b.failed...)
}

// Write inserts records inside tx under a savepoint. A failed insert is
// rolled back to the savepoint so the surrounding mutation can still commit,
// and the entries are kept for AfterCommit.
func (t *Trail) Write(ctx context.Context, tx *gorm.DB, recs ...Record) *Batch {
	b := &Batch{}
	entries := t.entries(recs)
	if len(entries) == 0 {
		return b
	}

	zapLog := logger.FromContext(ctx)

	if err := tx.SavePoint(savepoint).Error; err != nil {
		zapLog.Warn("audit savepoint unavailable, deferring entries", zap.Error(err))
		b.failed = entries
		return b
	}

	if err := t.insert(ctx, tx, entries); err != nil {
		writeFailures.WithLabelValues("inline").Inc()
		zapLog.Warn("audit insert failed inside transaction", zap.Error(err))
		if rbErr := tx.RollbackTo(savepoint).Error; rbErr != nil {
			zapLog.Error("audit savepoint rollback failed", zap.Error(rbErr))
		}
		b.failed = entries
		return b
	}

	b.written = entries
	return b
}

// AfterCommit records metrics for the entries written inline and retries the
// ones that were not. It never reports an error: the business mutation has
// already committed. Entries that still cannot be written are handed to the
// redelivery task when a task client is configured, otherwise logged.
func (t *Trail) AfterCommit(ctx context.Context, b *Batch) {
	if b == nil {
		return
	}
	countWritten(b.written)

	if len(b.failed) == 0 {
		return
	}

	ctx = context.WithoutCancel(ctx)
	zapLog := logger.FromContext(ctx)

	err := t.retry.WithContext(ctx).Run(func() error {
		return t.insert(ctx, t.db, b.failed)
	})
	if err == nil {
		countWritten(b.failed)
		return
	}

	writeFailures.WithLabelValues("retry").Inc()
	zapLog.Warn("audit retry exhausted", zap.Int("entries", len(b.failed)), zap.Error(err))

	if t.enqueuer != nil {
		tsk, terr := NewRedeliverTask(b.failed)
		if terr == nil {
			if _, terr = t.enqueuer.Enqueue(ctx, tsk, redeliverOptions()...); terr == nil {
				return
			}
		}
		zapLog.Error("audit redelivery enqueue failed", zap.Error(terr))
	}

	writeFailures.WithLabelValues("dropped").Add(float64(len(b.failed)))
	for _, e := range b.failed {
		zapLog.Error("audit entry dropped",
			zap.String("audit_id", e.ID.String()),
			zap.String("reward_account_id", e.RewardAccountID.String()),
			zap.String("action", string(e.Action)),
			zap.String("performed_by", e.PerformedBy),
		)
	}
}

// Append writes records outside any caller transaction, retrying on failure.
// Unlike AfterCommit it reports the error so the caller can refuse to proceed.
func (t *Trail) Append(ctx context.Context, recs ...Record) ([]*Entry, error) {
	entries := t.entries(recs)
	if len(entries) == 0 {
		return nil, nil
	}
	if err := validate(entries); err != nil {
		return nil, err
	}

	err := t.retry.WithContext(ctx).Run(func() error {
		return t.insert(ctx, t.db, entries)
	})
	if err != nil {
		writeFailures.WithLabelValues("retry").Inc()
		logger.FromContext(ctx).Error("audit append failed", zap.Int("entries", len(entries)), zap.Error(err))
		return nil, err
	}

	countWritten(entries)
	return entries, nil
}

type ListFilter struct {
	RewardAccountID snowflake.ID
	Action          Action
}

// List returns entries newest first.
func (t *Trail) List(ctx context.Context, f ListFilter, page pagination.Page) ([]*Entry, pagination.PageInfo, error) {
	query := t.db.WithContext(ctx).Model(&Entry{})
	if f.RewardAccountID != 0 {
		query = query.Where("reward_account_id = ?", f.RewardAccountID)
	}
	if f.Action != "" {
		query = query.Where("action = ?", f.Action)
	}

	query = query.Session(&gorm.Session{})

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, pagination.PageInfo{}, err
	}

	var entries []*Entry
	err := query.Scopes(page.Scope()).
		Order("performed_at DESC").
		Order("id DESC").
		Find(&entries).Error
	if err != nil {
		return nil, pagination.PageInfo{}, err
	}

	return entries, pagination.BuildPageInfo(page, total), nil
}

func (t *Trail) entries(recs []Record) []*Entry {
	now := t.now().UTC()
	out := make([]*Entry, 0, len(recs))
	for _, r := range recs {
		out = append(out, r.toEntry(t.node.Generate(), now))
	}
	return out
}

var errInvalidEntry = errors.New("audit: invalid entry")

func validate(entries []*Entry) error {
	for _, e := range entries {
		if e.RewardAccountID == 0 || !e.Action.Valid() || e.PerformedBy == "" {
			return errInvalidEntry
		}
	}
	return nil
}

func (t *Trail) insert(ctx context.Context, db *gorm.DB, entries []*Entry) error {
	if err := validate(entries); err != nil {
		return err
	}

	return db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&entries).Error
}

func countWritten(entries []*Entry) {
	for _, e := range entries {
		entriesWritten.WithLabelValues(string(e.Action)).Inc()
	}
}
