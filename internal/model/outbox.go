package model

import (
	"time"
)

const (
	OutboxStatusPending = "PENDING"
	OutboxStatusSent    = "SENT"
	OutboxStatusFailed  = "FAILED"
)

// 领域事件类型
const (
	EventCoupleCreated   = "couple.created"
	EventCoupleEnded     = "couple.ended"
	EventCouponUsed      = "coupon.used"
	EventCouponUndone    = "coupon.undone"
	EventBoardCompleted  = "goal_board.completed"
	EventListingPurchase = "shop.purchased"
)

// OutboxMessage 与业务写入同一事务落库，由 OutboxSender 异步投递
type OutboxMessage struct {
	ID         int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	MessageKey string    `gorm:"type:varchar(64);not null" json:"message_key"`
	EventType  string    `gorm:"type:varchar(64);not null" json:"event_type"`
	Payload    string    `gorm:"type:text;not null" json:"payload"`
	Status     string    `gorm:"type:varchar(20);index;not null;default:PENDING" json:"status"`
	RetryCount int       `gorm:"not null;default:0" json:"retry_count"`
	CreatedAt  time.Time `gorm:"autoCreateTime;index" json:"created_at"`
	UpdatedAt  time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (OutboxMessage) TableName() string {
	return "outbox_message"
}

// AllModels 需要迁移的全部表
func AllModels() []interface{} {
	return []interface{}{
		&Account{},
		&InviteCode{},
		&Couple{},
		&LedgerEntry{},
		&Coupon{},
		&ShopListing{},
		&GoalBoard{},
		&OutboxMessage{},
	}
}
