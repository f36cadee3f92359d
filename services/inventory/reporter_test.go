package inventory

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"rewardvault/pkg/config"
	"rewardvault/pkg/secretcipher"
	"rewardvault/services/audit"
	"rewardvault/services/rewardaccount"
	"rewardvault/services/submission"
	"rewardvault/services/testutil"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
}

type store struct {
	db   *gorm.DB
	repo rewardaccount.Repository
	svc  *rewardaccount.Service
}

func newStore(t *testing.T) *store {
	t.Helper()

	db := testutil.NewTestDB(t, &rewardaccount.RewardAccount{}, &audit.Entry{}, &submission.Submission{})
	node := testutil.NewTestNode(t)

	cipher, err := secretcipher.New("test-secret")
	require.NoError(t, err)

	cfg := &config.Config{}
	cfg.Audit.MaxRetries = 1
	cfg.Audit.Backoff = time.Millisecond

	repo := rewardaccount.NewRepository(db)
	svc := rewardaccount.NewService(rewardaccount.ServiceParams{
		DB:          db,
		Node:        node,
		Repo:        repo,
		Submissions: submission.NewDirectory(db),
		Cipher:      cipher,
		Audit:       audit.NewTrail(audit.Params{DB: db, Node: node, Config: cfg}),
		Expiry:      rewardaccount.StoredExpiryPolicy{},
	})

	return &store{db: db, repo: repo, svc: svc}
}

func (s *store) create(t *testing.T, category rewardaccount.Category, expiresAt *time.Time) *rewardaccount.Account {
	t.Helper()

	acc, err := s.svc.Create(context.Background(), rewardaccount.CreateInput{
		ServiceName: "Netflix",
		AccountType: "Premium",
		Category:    category,
		Credentials: "user:pass",
		ExpiresAt:   expiresAt,
		CreatedBy:   "admin-1",
	})
	require.NoError(t, err)
	return acc
}

func requireConsistent(t *testing.T, st *InventoryStats) {
	t.Helper()

	require.Equal(t, st.Available+st.Assigned+st.Expired+st.Deactivated, st.Total)

	var sum int64
	for _, cs := range st.ByCategory {
		require.Equal(t, cs.Available+cs.Assigned+cs.Expired+cs.Deactivated, cs.Total)
		sum += cs.Total
	}
	require.Equal(t, st.Total, sum)
}

func TestInventoryStatsTrackOperations(t *testing.T) {
	s := newStore(t)
	r := newReporter(s.repo, nil)
	ctx := context.Background()

	st, err := r.GetInventoryStats(ctx)
	require.NoError(t, err)
	require.Zero(t, st.Total)
	requireConsistent(t, st)

	past := time.Now().UTC().Add(-time.Hour).Truncate(time.Second)

	a := s.create(t, rewardaccount.CategoryStreamingService, nil)
	b := s.create(t, rewardaccount.CategoryStreamingService, nil)
	c := s.create(t, rewardaccount.CategoryGiftCard, nil)
	s.create(t, rewardaccount.CategoryGiftCard, &past)
	s.create(t, rewardaccount.CategorySubscription, nil)

	require.NoError(t, s.db.Create(&submission.Submission{ID: 1, CreatedAt: time.Now().UTC()}).Error)

	_, err = s.svc.Assign(ctx, rewardaccount.AssignInput{RewardAccountID: a.ID, SubmissionID: 1, AssignedBy: "admin-1"})
	require.NoError(t, err)
	_, err = s.svc.Deactivate(ctx, c.ID, "admin-1")
	require.NoError(t, err)
	n, err := s.svc.MarkExpired(ctx)
	require.NoError(t, err)
	require.EqualValues(t, 1, n)

	st, err = r.GetInventoryStats(ctx)
	require.NoError(t, err)
	requireConsistent(t, st)
	require.EqualValues(t, 5, st.Total)
	require.EqualValues(t, 2, st.Available)
	require.EqualValues(t, 1, st.Assigned)
	require.EqualValues(t, 1, st.Expired)
	require.EqualValues(t, 1, st.Deactivated)

	streaming := st.ByCategory[rewardaccount.CategoryStreamingService]
	require.EqualValues(t, 2, streaming.Total)
	require.EqualValues(t, 1, streaming.Assigned)
	require.EqualValues(t, 1, streaming.Available)

	gift := st.ByCategory[rewardaccount.CategoryGiftCard]
	require.EqualValues(t, 2, gift.Total)
	require.EqualValues(t, 1, gift.Expired)
	require.EqualValues(t, 1, gift.Deactivated)

	require.NoError(t, s.svc.Delete(ctx, b.ID, "admin-1"))

	st, err = r.GetInventoryStats(ctx)
	require.NoError(t, err)
	requireConsistent(t, st)
	require.EqualValues(t, 4, st.Total)
	require.EqualValues(t, 1, st.Available)
}

func TestDistributionAnalytics(t *testing.T) {
	s := newStore(t)
	r := newReporter(s.repo, nil)
	ctx := context.Background()

	a := s.create(t, rewardaccount.CategoryStreamingService, nil)
	s.create(t, rewardaccount.CategoryStreamingService, nil)
	s.create(t, rewardaccount.CategoryStreamingService, nil)
	s.create(t, rewardaccount.CategoryGiftCard, nil)

	require.NoError(t, s.db.Create(&submission.Submission{ID: 1, CreatedAt: time.Now().UTC()}).Error)
	_, err := s.svc.Assign(ctx, rewardaccount.AssignInput{RewardAccountID: a.ID, SubmissionID: 1, AssignedBy: "admin-1"})
	require.NoError(t, err)

	an, err := r.GetDistributionAnalytics(ctx)
	require.NoError(t, err)
	require.EqualValues(t, 4, an.Inventory.Total)
	require.InDelta(t, 0.25, an.DistributionRate, 1e-9)
	require.InDelta(t, 0.75, an.AvailabilityRate, 1e-9)
	require.InDelta(t, 0.75, an.CategoryDistribution[rewardaccount.CategoryStreamingService], 1e-9)
	require.InDelta(t, 0.25, an.CategoryDistribution[rewardaccount.CategoryGiftCard], 1e-9)
}

func TestDistributionAnalyticsEmpty(t *testing.T) {
	r := newReporter(countFunc(func() ([]rewardaccount.StatusCategoryCount, error) {
		return nil, nil
	}), nil)

	an, err := r.GetDistributionAnalytics(context.Background())
	require.NoError(t, err)
	require.Zero(t, an.Inventory.Total)
	require.Zero(t, an.DistributionRate)
	require.Zero(t, an.AvailabilityRate)
	require.Empty(t, an.CategoryDistribution)
}

type countFunc func() ([]rewardaccount.StatusCategoryCount, error)

func (f countFunc) CountByStatusCategory(context.Context) ([]rewardaccount.StatusCategoryCount, error) {
	return f()
}

func TestInventoryStatsIgnoresUnknownStatus(t *testing.T) {
	r := newReporter(countFunc(func() ([]rewardaccount.StatusCategoryCount, error) {
		return []rewardaccount.StatusCategoryCount{
			{Status: rewardaccount.StatusAvailable, Category: rewardaccount.CategoryOther, Count: 3},
			{Status: "ARCHIVED", Category: rewardaccount.CategoryOther, Count: 9},
		}, nil
	}), nil)

	st, err := r.GetInventoryStats(context.Background())
	require.NoError(t, err)
	requireConsistent(t, st)
	require.EqualValues(t, 3, st.Total)
}

func TestInventoryStatsPropagatesStoreError(t *testing.T) {
	boom := errors.New("boom")
	var calls atomic.Int32
	r := newReporter(countFunc(func() ([]rewardaccount.StatusCategoryCount, error) {
		calls.Add(1)
		return nil, boom
	}), nil)

	_, err := r.GetInventoryStats(context.Background())
	require.ErrorIs(t, err, boom)

	_, err = r.GetDistributionAnalytics(context.Background())
	require.ErrorIs(t, err, boom)
	require.EqualValues(t, 2, calls.Load())
}

type ctxCounter struct {
	once    sync.Once
	started chan struct{}
	release chan struct{}
}

func (c *ctxCounter) CountByStatusCategory(ctx context.Context) ([]rewardaccount.StatusCategoryCount, error) {
	c.once.Do(func() { close(c.started) })
	<-c.release
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return []rewardaccount.StatusCategoryCount{
		{Status: rewardaccount.StatusAvailable, Category: rewardaccount.CategoryOther, Count: 2},
	}, nil
}

func TestInventoryStatsSurvivesFirstCallerCancel(t *testing.T) {
	c := &ctxCounter{started: make(chan struct{}), release: make(chan struct{})}
	r := newReporter(c, nil)

	first, cancel := context.WithCancel(context.Background())
	firstErr := make(chan error, 1)
	go func() {
		_, err := r.GetInventoryStats(first)
		firstErr <- err
	}()

	<-c.started
	cancel()
	close(c.release)

	require.NoError(t, <-firstErr)

	st, err := r.GetInventoryStats(context.Background())
	require.NoError(t, err)
	require.EqualValues(t, 2, st.Total)
}
