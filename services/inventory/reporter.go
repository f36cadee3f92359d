// Package inventory derives read-only statistics over the reward account
// store.
package inventory

import (
	"context"
	"time"

	"rewardvault/pkg/logger"
	"rewardvault/services/rewardaccount"

	"go.uber.org/fx"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

type CategoryStats struct {
	Total       int64 `json:"total"`
	Available   int64 `json:"available"`
	Assigned    int64 `json:"assigned"`
	Expired     int64 `json:"expired"`
	Deactivated int64 `json:"deactivated"`
}

// InventoryStats is one consistent snapshot. Total is always the sum of the
// four status counts.
type InventoryStats struct {
	Total       int64                                    `json:"total"`
	Available   int64                                    `json:"available"`
	Assigned    int64                                    `json:"assigned"`
	Expired     int64                                    `json:"expired"`
	Deactivated int64                                    `json:"deactivated"`
	ByCategory  map[rewardaccount.Category]CategoryStats `json:"by_category"`
	GeneratedAt time.Time                                `json:"generated_at"`
}

type DistributionAnalytics struct {
	Inventory            *InventoryStats                    `json:"inventory"`
	DistributionRate     float64                            `json:"distribution_rate"`
	AvailabilityRate     float64                            `json:"availability_rate"`
	CategoryDistribution map[rewardaccount.Category]float64 `json:"category_distribution"`
}

const fillTimeout = 10 * time.Second

// Counter is the single aggregate query the reporter needs from the store.
type Counter interface {
	CountByStatusCategory(ctx context.Context) ([]rewardaccount.StatusCategoryCount, error)
}

type Reporter struct {
	counter Counter
	cache   StatsCache
	group   singleflight.Group
	now     func() time.Time
}

type Params struct {
	fx.In
	Repo  rewardaccount.Repository
	Cache StatsCache `optional:"true"`
}

func NewReporter(p Params) *Reporter {
	return newReporter(p.Repo, p.Cache)
}

func newReporter(counter Counter, cache StatsCache) *Reporter {
	return &Reporter{
		counter: counter,
		cache:   cache,
		now:     time.Now,
	}
}

func (r *Reporter) GetInventoryStats(ctx context.Context) (*InventoryStats, error) {
	if r.cache != nil {
		if st, ok := r.cache.Get(ctx); ok {
			return st, nil
		}
	}

	// Shared by every waiter; detached from the first caller's cancellation.
	v, err, _ := r.group.Do("stats", func() (any, error) {
		fillCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), fillTimeout)
		defer cancel()

		rows, err := r.counter.CountByStatusCategory(fillCtx)
		if err != nil {
			return nil, err
		}

		st := aggregate(ctx, rows)
		st.GeneratedAt = r.now().UTC()
		if r.cache != nil {
			r.cache.Set(fillCtx, st)
		}
		return st, nil
	})
	if err != nil {
		logger.FromContext(ctx).Error("failed to aggregate inventory", zap.Error(err))
		return nil, err
	}
	return v.(*InventoryStats), nil
}

func aggregate(ctx context.Context, rows []rewardaccount.StatusCategoryCount) *InventoryStats {
	st := &InventoryStats{ByCategory: make(map[rewardaccount.Category]CategoryStats)}

	for _, row := range rows {
		cat := st.ByCategory[row.Category]

		switch row.Status {
		case rewardaccount.StatusAvailable:
			st.Available += row.Count
			cat.Available += row.Count
		case rewardaccount.StatusAssigned:
			st.Assigned += row.Count
			cat.Assigned += row.Count
		case rewardaccount.StatusExpired:
			st.Expired += row.Count
			cat.Expired += row.Count
		case rewardaccount.StatusDeactivated:
			st.Deactivated += row.Count
			cat.Deactivated += row.Count
		default:
			logger.FromContext(ctx).Warn("unknown reward account status in inventory",
				zap.String("status", string(row.Status)),
				zap.Int64("count", row.Count),
			)
			continue
		}

		cat.Total += row.Count
		st.ByCategory[row.Category] = cat
	}

	st.Total = st.Available + st.Assigned + st.Expired + st.Deactivated
	return st
}

func rate(n, total int64) float64 {
	if total == 0 {
		return 0
	}
	return float64(n) / float64(total)
}

func (r *Reporter) GetDistributionAnalytics(ctx context.Context) (*DistributionAnalytics, error) {
	st, err := r.GetInventoryStats(ctx)
	if err != nil {
		return nil, err
	}

	dist := make(map[rewardaccount.Category]float64, len(st.ByCategory))
	for cat, cs := range st.ByCategory {
		dist[cat] = rate(cs.Total, st.Total)
	}

	return &DistributionAnalytics{
		Inventory:            st,
		DistributionRate:     rate(st.Assigned, st.Total),
		AvailabilityRate:     rate(st.Available, st.Total),
		CategoryDistribution: dist,
	}, nil
}
