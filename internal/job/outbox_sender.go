package job

import (
	"context"
	"time"

	"couplesystem/internal/config"
	"couplesystem/internal/infrastructure/metrics"
	"couplesystem/internal/infrastructure/mq"
	"couplesystem/internal/model"
	"couplesystem/internal/repository"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// OutboxSender 轮询待投递的领域事件并发送到消息队列
type OutboxSender struct {
	outboxRepo    *repository.OutboxRepository
	publisher     mq.Publisher
	log           *logrus.Logger
	maxRetryCount int
	stopCh        chan struct{}
	interval      time.Duration
	batchSize     int
}

func NewOutboxSender(db *gorm.DB, publisher mq.Publisher, cfg *config.Config, log *logrus.Logger) *OutboxSender {
	maxRetry := cfg.Business.OutboxMaxRetryCount
	if maxRetry <= 0 {
		maxRetry = 5
	}
	return &OutboxSender{
		outboxRepo:    repository.NewOutboxRepository(db),
		publisher:     publisher,
		log:           log,
		maxRetryCount: maxRetry,
		stopCh:        make(chan struct{}),
		interval:      100 * time.Millisecond,
		batchSize:     100,
	}
}

// Start 阻塞运行直到 ctx 取消或调用 Stop
func (s *OutboxSender) Start(ctx context.Context) {
	s.log.Info("事件投递任务启动")

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.log.Info("收到停止信号，事件投递任务退出")
			return
		case <-s.stopCh:
			s.log.Info("事件投递任务停止")
			return
		case <-ticker.C:
			s.ProcessPending(ctx)
		}
	}
}

func (s *OutboxSender) Stop() {
	close(s.stopCh)
}

// ProcessPending 投递一批待发送的事件
func (s *OutboxSender) ProcessPending(ctx context.Context) {
	messages, err := s.outboxRepo.GetPendingMessages(ctx, s.batchSize)
	if err != nil {
		s.log.WithError(err).Error("查询待投递事件失败")
		return
	}

	for _, msg := range messages {
		s.send(ctx, msg)
	}
}

func (s *OutboxSender) send(ctx context.Context, msg *model.OutboxMessage) {
	fields := logrus.Fields{
		"id":         msg.ID,
		"event_type": msg.EventType,
		"key":        msg.MessageKey,
	}

	err := s.publisher.Publish(ctx, msg.EventType, msg.MessageKey, []byte(msg.Payload))
	if err == nil {
		metrics.OutboxDelivered.WithLabelValues("sent").Inc()
		if updateErr := s.outboxRepo.UpdateStatus(ctx, msg.ID, model.OutboxStatusSent); updateErr != nil {
			s.log.WithError(updateErr).WithFields(fields).Error("更新事件状态失败")
			return
		}
		s.log.WithFields(fields).Debug("事件投递成功")
		return
	}

	s.log.WithError(err).WithFields(fields).Warn("事件投递失败")

	if msg.RetryCount+1 >= s.maxRetryCount {
		metrics.OutboxDelivered.WithLabelValues("failed").Inc()
		if err := s.outboxRepo.MarkAsFailed(ctx, msg.ID); err != nil {
			s.log.WithError(err).WithFields(fields).Error("标记事件失败状态失败")
			return
		}
		s.log.WithFields(fields).Error("事件超过最大重试次数，标记为失败")
		return
	}

	metrics.OutboxDelivered.WithLabelValues("retry").Inc()
	if err := s.outboxRepo.IncrementRetryCount(ctx, msg.ID); err != nil {
		s.log.WithError(err).WithFields(fields).Error("增加重试次数失败")
	}
}
