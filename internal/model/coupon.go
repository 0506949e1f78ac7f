package model

import (
	"time"
)

const (
	CouponStatusDraft = "DRAFT"
	CouponStatusSent  = "SENT"
	CouponStatusUsed  = "USED"
)

// ValidCouponTransitions 券的状态流转表，USED -> SENT 为撤销使用
var ValidCouponTransitions = map[string][]string{
	CouponStatusDraft: {CouponStatusSent},
	CouponStatusSent:  {CouponStatusUsed},
	CouponStatusUsed:  {CouponStatusSent},
}

func CanCouponTransitionTo(currentStatus, targetStatus string) bool {
	allowedStatuses, exists := ValidCouponTransitions[currentStatus]
	if !exists {
		return false
	}
	for _, s := range allowedStatuses {
		if s == targetStatus {
			return true
		}
	}
	return false
}

// Coupon 券表
// DRAFT 阶段只有 FromID 可以修改；SENT 之后标题、描述、有效期不可变，只有 ToID 可以使用/撤销
type Coupon struct {
	ID             string     `gorm:"primaryKey;type:varchar(64)" json:"id"`
	CoupleID       string     `gorm:"type:varchar(64);index" json:"couple_id"`
	FromID         string     `gorm:"type:varchar(64);index;not null" json:"from_id"`
	ToID           *string    `gorm:"type:varchar(64);index" json:"to_id"`
	Title          string     `gorm:"type:varchar(128);not null" json:"title"`
	Description    string     `gorm:"type:varchar(1024)" json:"description"`
	ExpiresAt      *time.Time `json:"expires_at"`
	Status         string     `gorm:"type:varchar(16);index;not null" json:"status"`
	PriceInPrimary int64      `gorm:"not null;default:0" json:"price_in_primary"`
	ListingID      *string    `gorm:"type:varchar(64)" json:"listing_id"` // 从商店购买时记录来源
	SentAt         *time.Time `json:"sent_at"`
	UsedAt         *time.Time `json:"used_at"`
	Version        int        `gorm:"not null;default:0" json:"version"`
	CreatedAt      time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt      time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

func (Coupon) TableName() string {
	return "coupon"
}

// Expired 按调用时刻判断是否已过期，未设置有效期的券永不过期
func (c *Coupon) Expired(now time.Time) bool {
	return c.ExpiresAt != nil && !now.Before(*c.ExpiresAt)
}
