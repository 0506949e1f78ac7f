package model

import (
	"time"
)

// ShopListing 商店上架的券模板
// 购买不消耗模板，只按模板生成一张新的 SENT 券
type ShopListing struct {
	ID             string     `gorm:"primaryKey;type:varchar(64)" json:"id"`
	CoupleID       string     `gorm:"type:varchar(64);index" json:"couple_id"`
	OwnerID        string     `gorm:"type:varchar(64);index;not null" json:"owner_id"`
	Title          string     `gorm:"type:varchar(128);not null" json:"title"`
	Description    string     `gorm:"type:varchar(1024)" json:"description"`
	PriceInPrimary int64      `gorm:"not null" json:"price_in_primary"`
	ExpiresAt      *time.Time `json:"expires_at"`
	Active         bool       `gorm:"not null" json:"active"`
	CreatedAt      time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt      time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

func (ShopListing) TableName() string {
	return "shop_listing"
}
