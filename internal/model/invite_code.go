package model

import (
	"time"
)

// InviteCode 邀请码表
// 每个账户最多一个有效邀请码；成功兑换一次后 active 永久置为 false
type InviteCode struct {
	Code         string     `gorm:"primaryKey;type:varchar(16)" json:"code"`
	OwnerID      string     `gorm:"type:varchar(64);index;not null" json:"owner_id"`
	Active       bool       `gorm:"not null" json:"active"`
	RedeemedByID *string    `gorm:"type:varchar(64)" json:"redeemed_by_id"`
	RedeemedAt   *time.Time `json:"redeemed_at"`
	Version      int        `gorm:"not null;default:0" json:"version"`
	CreatedAt    time.Time  `gorm:"autoCreateTime" json:"created_at"`
}

func (InviteCode) TableName() string {
	return "invite_code"
}
