package job

import (
	"context"
	"time"

	"couplesystem/internal/repository"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// ListingExpiryJob 定期下架过了有效期的商品。
// 购买时也会检查有效期，这里只是让商品列表里不再出现过期商品
type ListingExpiryJob struct {
	listingRepo *repository.ShopListingRepository
	db          *gorm.DB
	log         *logrus.Logger
	stopCh      chan struct{}
	interval    time.Duration
	batchSize   int
}

func NewListingExpiryJob(db *gorm.DB, log *logrus.Logger) *ListingExpiryJob {
	return &ListingExpiryJob{
		listingRepo: repository.NewShopListingRepository(db),
		db:          db,
		log:         log,
		stopCh:      make(chan struct{}),
		interval:    time.Minute,
		batchSize:   100,
	}
}

func (j *ListingExpiryJob) Start(ctx context.Context) {
	j.log.Info("商品过期下架任务启动")

	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			j.log.Info("收到停止信号，商品过期下架任务退出")
			return
		case <-j.stopCh:
			j.log.Info("商品过期下架任务停止")
			return
		case <-ticker.C:
			j.DeactivateExpired(ctx, time.Now())
		}
	}
}

func (j *ListingExpiryJob) Stop() {
	close(j.stopCh)
}

// DeactivateExpired 下架一批过期商品，返回本次下架数量
func (j *ListingExpiryJob) DeactivateExpired(ctx context.Context, now time.Time) int {
	listings, err := j.listingRepo.GetExpired(ctx, now, j.batchSize)
	if err != nil {
		j.log.WithError(err).Error("查询过期商品失败")
		return 0
	}
	if len(listings) == 0 {
		return 0
	}

	closed := 0
	for _, listing := range listings {
		if err := j.listingRepo.Deactivate(ctx, j.db, listing.ID); err != nil {
			j.log.WithError(err).WithField("listing_id", listing.ID).Error("下架过期商品失败")
			continue
		}
		closed++
	}

	j.log.WithFields(logrus.Fields{"found": len(listings), "closed": closed}).Info("过期商品已下架")
	return closed
}
