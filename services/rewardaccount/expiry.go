package rewardaccount

import (
	"fmt"
	"time"

	"rewardvault/pkg/celengine"
	"rewardvault/pkg/config"

	"github.com/google/cel-go/cel"
	"gorm.io/gorm"
)

// ExpiryPolicy decides which AVAILABLE accounts the sweep retires.
type ExpiryPolicy interface {
	// Scope narrows the candidate scan in SQL. It may return nil to scan
	// every AVAILABLE account.
	Scope(now time.Time) func(*gorm.DB) *gorm.DB
	// IsExpired is the authoritative check for one account.
	IsExpired(a *RewardAccount, now time.Time) (bool, error)
	// ExpiresAt is the expiry stamped on new and reactivated accounts. Nil
	// means no stored expiry.
	ExpiresAt(from time.Time) *time.Time
}

// StoredExpiryPolicy expires an account once its stored expires_at has
// passed. MaxAge, when positive, is used to stamp expires_at at creation and
// reactivation for accounts that were not given one.
type StoredExpiryPolicy struct {
	MaxAge time.Duration
}

func (p StoredExpiryPolicy) Scope(now time.Time) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		return db.Where("expires_at IS NOT NULL AND expires_at <= ?", now)
	}
}

func (p StoredExpiryPolicy) IsExpired(a *RewardAccount, now time.Time) (bool, error) {
	if a.Status != StatusAvailable || a.ExpiresAt == nil {
		return false, nil
	}
	return !a.ExpiresAt.After(now), nil
}

func (p StoredExpiryPolicy) ExpiresAt(from time.Time) *time.Time {
	if p.MaxAge <= 0 {
		return nil
	}
	return timePtr(from.Add(p.MaxAge))
}

var expressionVars = map[string]*cel.Type{
	"service_name":          cel.StringType,
	"account_type":          cel.StringType,
	"category":              cel.StringType,
	"subscription_duration": cel.StringType,
	"age_hours":             cel.DoubleType,
	"has_expiry":            cel.BoolType,
}

// ExpressionExpiryPolicy adds a CEL predicate on top of the stored expiry:
// an account is expired if either says so.
type ExpressionExpiryPolicy struct {
	StoredExpiryPolicy
	pred *celengine.Predicate
}

func NewExpressionExpiryPolicy(base StoredExpiryPolicy, expr string) (*ExpressionExpiryPolicy, error) {
	env, err := celengine.NewEnv(expressionVars)
	if err != nil {
		return nil, err
	}

	pred, err := celengine.Compile(env, expr)
	if err != nil {
		return nil, err
	}

	return &ExpressionExpiryPolicy{StoredExpiryPolicy: base, pred: pred}, nil
}

func (p *ExpressionExpiryPolicy) Scope(time.Time) func(*gorm.DB) *gorm.DB {
	return nil
}

func (p *ExpressionExpiryPolicy) IsExpired(a *RewardAccount, now time.Time) (bool, error) {
	expired, err := p.StoredExpiryPolicy.IsExpired(a, now)
	if err != nil || expired {
		return expired, err
	}
	if a.Status != StatusAvailable {
		return false, nil
	}

	return p.pred.Eval(expressionAttrs(a, now))
}

func expressionAttrs(a *RewardAccount, now time.Time) map[string]any {
	duration := ""
	if a.SubscriptionDuration != nil {
		duration = *a.SubscriptionDuration
	}

	return map[string]any{
		"service_name":          a.ServiceName,
		"account_type":          a.AccountType,
		"category":              string(a.Category),
		"subscription_duration": duration,
		"age_hours":             now.Sub(a.CreatedAt).Hours(),
		"has_expiry":            a.ExpiresAt != nil,
	}
}

func NewExpiryPolicy(cfg *config.Config) (ExpiryPolicy, error) {
	base := StoredExpiryPolicy{MaxAge: cfg.Expiry.MaxAge}
	if cfg.Expiry.Expression == "" {
		return base, nil
	}

	p, err := NewExpressionExpiryPolicy(base, cfg.Expiry.Expression)
	if err != nil {
		return nil, fmt.Errorf("expiry expression: %w", err)
	}
	return p, nil
}
