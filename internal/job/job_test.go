package job

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"couplesystem/internal/model"
	"couplesystem/internal/repository"
	"couplesystem/internal/testutil"

	"github.com/stretchr/testify/require"
)

type fakePublisher struct {
	mu     sync.Mutex
	fail   bool
	events []string
}

func (p *fakePublisher) Publish(ctx context.Context, eventType, key string, payload []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.fail {
		return errors.New("broker down")
	}
	p.events = append(p.events, eventType)
	return nil
}

func (p *fakePublisher) Close() error { return nil }

func TestOutboxSenderDelivers(t *testing.T) {
	db := testutil.NewDB(t)
	ctx := context.Background()
	repo := repository.NewOutboxRepository(db)
	require.NoError(t, repo.Enqueue(ctx, nil, model.EventCoupleCreated, map[string]string{"couple_id": "c1"}))
	require.NoError(t, repo.Enqueue(ctx, nil, model.EventCouponUsed, map[string]string{"coupon_id": "k1"}))

	pub := &fakePublisher{}
	sender := NewOutboxSender(db, pub, testutil.Config(), testutil.NewLogger())
	sender.ProcessPending(ctx)

	require.Equal(t, []string{model.EventCoupleCreated, model.EventCouponUsed}, pub.events)
	pending, err := repo.GetPendingMessages(ctx, 10)
	require.NoError(t, err)
	require.Empty(t, pending)
}

func TestOutboxSenderMarksFailedAfterRetries(t *testing.T) {
	db := testutil.NewDB(t)
	ctx := context.Background()
	repo := repository.NewOutboxRepository(db)
	require.NoError(t, repo.Enqueue(ctx, nil, model.EventCoupleEnded, map[string]string{"couple_id": "c1"}))

	cfg := testutil.Config()
	cfg.Business.OutboxMaxRetryCount = 2
	pub := &fakePublisher{fail: true}
	sender := NewOutboxSender(db, pub, cfg, testutil.NewLogger())

	sender.ProcessPending(ctx)
	pending, err := repo.GetPendingMessages(ctx, 10)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	require.Equal(t, 1, pending[0].RetryCount)

	sender.ProcessPending(ctx)
	var msg model.OutboxMessage
	require.NoError(t, db.First(&msg).Error)
	require.Equal(t, model.OutboxStatusFailed, msg.Status)
	require.Equal(t, 2, msg.RetryCount)
}

func TestListingExpiryJob(t *testing.T) {
	db := testutil.NewDB(t)
	ctx := context.Background()
	now := time.Now()
	past, future := now.Add(-time.Hour), now.Add(time.Hour)

	listings := []*model.ShopListing{
		{ID: "expired", CoupleID: "c", OwnerID: "a", Title: "old", PriceInPrimary: 1, ExpiresAt: &past, Active: true},
		{ID: "fresh", CoupleID: "c", OwnerID: "a", Title: "new", PriceInPrimary: 1, ExpiresAt: &future, Active: true},
		{ID: "forever", CoupleID: "c", OwnerID: "a", Title: "no expiry", PriceInPrimary: 1, Active: true},
	}
	for _, l := range listings {
		require.NoError(t, db.Create(l).Error)
	}

	job := NewListingExpiryJob(db, testutil.NewLogger())
	require.Equal(t, 1, job.DeactivateExpired(ctx, now))
	require.Equal(t, 0, job.DeactivateExpired(ctx, now))

	active, err := repository.NewShopListingRepository(db).ListByCouple(ctx, "c", true)
	require.NoError(t, err)
	require.Len(t, active, 2)
}
