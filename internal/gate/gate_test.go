package gate

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/promptforge-ai/promptforge/internal/config"
	"github.com/promptforge-ai/promptforge/internal/usage"
)

type fakeUsageStore struct {
	mu          sync.Mutex
	counts      map[uuid.UUID]int
	periodStart time.Time
	err         error
}

func newFakeUsageStore() *fakeUsageStore {
	return &fakeUsageStore{
		counts:      map[uuid.UUID]int{},
		periodStart: time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC),
	}
}

func (f *fakeUsageStore) GetCount(_ context.Context, userID uuid.UUID) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return 0, f.err
	}
	return f.counts[userID], nil
}

func (f *fakeUsageStore) Get(_ context.Context, userID uuid.UUID) (*usage.Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	count, ok := f.counts[userID]
	if !ok {
		return nil, nil
	}
	return &usage.Record{UserID: userID, Count: count, PeriodStart: f.periodStart}, nil
}

func (f *fakeUsageStore) Increment(_ context.Context, userID uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.counts[userID]++
	return nil
}

func (f *fakeUsageStore) ResetIfStale(context.Context, uuid.UUID, time.Time) (bool, error) {
	return false, nil
}

type fakeSubs struct {
	active map[uuid.UUID]bool
}

func (f *fakeSubs) IsActive(_ context.Context, userID uuid.UUID) bool {
	return f.active[userID]
}

func newGate(store *fakeUsageStore, subs *fakeSubs) *Service {
	return NewService(store, subs, config.GateConfig{
		FreeLimit:   5,
		UsagePeriod: 720 * time.Hour,
	})
}

func TestAuthorize_FreshUserAllowed(t *testing.T) {
	store := newFakeUsageStore()
	svc := newGate(store, &fakeSubs{active: map[uuid.UUID]bool{}})

	d, err := svc.Authorize(context.Background(), uuid.New())
	require.NoError(t, err)
	assert.True(t, d.Allowed)
	assert.False(t, d.Pro)
	assert.Equal(t, 0, d.Count)
}

func TestAuthorize_DeniedAtLimit(t *testing.T) {
	userID := uuid.New()
	store := newFakeUsageStore()
	store.counts[userID] = 5
	svc := newGate(store, &fakeSubs{active: map[uuid.UUID]bool{}})

	d, err := svc.Authorize(context.Background(), userID)
	require.NoError(t, err)
	assert.False(t, d.Allowed)
}

func TestAuthorize_ProBypassesLimit(t *testing.T) {
	userID := uuid.New()
	store := newFakeUsageStore()
	store.counts[userID] = 100
	svc := newGate(store, &fakeSubs{active: map[uuid.UUID]bool{userID: true}})

	d, err := svc.Authorize(context.Background(), userID)
	require.NoError(t, err)
	assert.True(t, d.Allowed)
	assert.True(t, d.Pro)
}

func TestAuthorize_UsageStoreErrorPropagates(t *testing.T) {
	store := newFakeUsageStore()
	store.err = errors.New("connection refused")
	svc := newGate(store, &fakeSubs{active: map[uuid.UUID]bool{}})

	_, err := svc.Authorize(context.Background(), uuid.New())
	assert.Error(t, err)
}

func TestAuthorize_Idempotent(t *testing.T) {
	userID := uuid.New()
	store := newFakeUsageStore()
	store.counts[userID] = 3
	svc := newGate(store, &fakeSubs{active: map[uuid.UUID]bool{}})

	for i := 0; i < 10; i++ {
		d, err := svc.Authorize(context.Background(), userID)
		require.NoError(t, err)
		assert.True(t, d.Allowed)
	}
	assert.Equal(t, 3, store.counts[userID])
}

func TestRecord_IncrementsNonPro(t *testing.T) {
	userID := uuid.New()
	store := newFakeUsageStore()
	svc := newGate(store, &fakeSubs{active: map[uuid.UUID]bool{}})

	svc.Record(context.Background(), userID, Decision{Allowed: true, Pro: false})
	assert.Equal(t, 1, store.counts[userID])
}

func TestRecord_ProNeverConsumesQuota(t *testing.T) {
	userID := uuid.New()
	store := newFakeUsageStore()
	store.counts[userID] = 100
	svc := newGate(store, &fakeSubs{active: map[uuid.UUID]bool{userID: true}})

	svc.Record(context.Background(), userID, Decision{Allowed: true, Pro: true})
	assert.Equal(t, 100, store.counts[userID])
}

func TestAuthorizeRecord_ExhaustsTrial(t *testing.T) {
	userID := uuid.New()
	store := newFakeUsageStore()
	svc := newGate(store, &fakeSubs{active: map[uuid.UUID]bool{}})
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		d, err := svc.Authorize(ctx, userID)
		require.NoError(t, err)
		require.True(t, d.Allowed, "generation %d should be allowed", i+1)
		svc.Record(ctx, userID, d)
	}

	d, err := svc.Authorize(ctx, userID)
	require.NoError(t, err)
	assert.False(t, d.Allowed)
}

func TestRecord_ConcurrentNoLostUpdates(t *testing.T) {
	userID := uuid.New()
	store := newFakeUsageStore()
	svc := newGate(store, &fakeSubs{active: map[uuid.UUID]bool{}})

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			svc.Record(context.Background(), userID, Decision{Allowed: true})
		}()
	}
	wg.Wait()

	count, err := store.GetCount(context.Background(), userID)
	require.NoError(t, err)
	assert.Equal(t, 50, count)
}

func TestStatus(t *testing.T) {
	userID := uuid.New()
	store := newFakeUsageStore()
	store.counts[userID] = 3
	svc := newGate(store, &fakeSubs{active: map[uuid.UUID]bool{}})

	status, err := svc.Status(context.Background(), userID)
	require.NoError(t, err)
	assert.Equal(t, 3, status.Count)
	assert.Equal(t, 5, status.Limit)
	assert.Equal(t, 2, status.Remaining)
	assert.False(t, status.Pro)
	require.NotNil(t, status.PeriodStart)
	assert.Equal(t, store.periodStart, *status.PeriodStart)
}

func TestStatus_FreshUserHasNoPeriod(t *testing.T) {
	svc := newGate(newFakeUsageStore(), &fakeSubs{active: map[uuid.UUID]bool{}})

	status, err := svc.Status(context.Background(), uuid.New())
	require.NoError(t, err)
	assert.Equal(t, 0, status.Count)
	assert.Equal(t, 5, status.Remaining)
	assert.Nil(t, status.PeriodStart)
}

func TestStatus_RemainingNeverNegative(t *testing.T) {
	userID := uuid.New()
	store := newFakeUsageStore()
	store.counts[userID] = 9
	svc := newGate(store, &fakeSubs{active: map[uuid.UUID]bool{}})

	status, err := svc.Status(context.Background(), userID)
	require.NoError(t, err)
	assert.Equal(t, 0, status.Remaining)
}
