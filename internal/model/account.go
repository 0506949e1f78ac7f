package model

import (
	"time"

	"gorm.io/datatypes"
)

const (
	PairingStatusActive = "ACTIVE"
	PairingStatusEnded  = "ENDED"
)

// PairingRecord 账户的配对历史，按时间顺序追加
type PairingRecord struct {
	CoupleID  string     `json:"couple_id"`
	PartnerID string     `json:"partner_id"`
	StartedAt time.Time  `json:"started_at"`
	EndedAt   *time.Time `json:"ended_at,omitempty"`
	Status    string     `json:"status"`
}

// Account 用户账户表
// 余额和配对状态的唯一事实来源：余额只由积分账本修改，配对字段只由配对流程修改
type Account struct {
	ID                    string                             `gorm:"primaryKey;type:varchar(64)" json:"id"`            // 身份ID，由鉴权服务给出
	DisplayName           string                             `gorm:"type:varchar(64)" json:"display_name"`
	Preferences           datatypes.JSONMap                  `json:"preferences"`                                      // 问卷/偏好，配对时快照到 Couple
	PrimaryBalance        int64                              `gorm:"not null;default:0" json:"primary_balance"`         // 葡萄（奖励积分）
	PrimaryLifetimeEarned int64                              `gorm:"not null;default:0" json:"primary_lifetime_earned"` // 累计获得的葡萄
	SocialBalance         int64                              `gorm:"not null;default:0" json:"social_balance"`          // 夸夸（社交积分）
	ActiveCoupleID        *string                            `gorm:"type:varchar(64);index" json:"active_couple_id"`    // 为空表示未配对
	PairingHistory        datatypes.JSONSlice[PairingRecord] `json:"pairing_history"`
	OwnInviteCode         *string                            `gorm:"type:varchar(16)" json:"own_invite_code"`
	Version               int                                `gorm:"not null;default:0" json:"version"` // 乐观锁版本号
	RetiredAt             *time.Time                         `json:"retired_at,omitempty"`              // 只做逻辑下线，不删除
	CreatedAt             time.Time                          `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt             time.Time                          `gorm:"autoUpdateTime" json:"updated_at"`
}

func (Account) TableName() string {
	return "account"
}

// Balance 返回指定币种的余额
func (a *Account) Balance(currency Currency) int64 {
	if currency == CurrencySocial {
		return a.SocialBalance
	}
	return a.PrimaryBalance
}

// OpenPairing 返回与 coupleID 对应的未结束配对记录下标，不存在返回 -1
func (a *Account) OpenPairing(coupleID string) int {
	for i := len(a.PairingHistory) - 1; i >= 0; i-- {
		rec := a.PairingHistory[i]
		if rec.CoupleID == coupleID && rec.EndedAt == nil {
			return i
		}
	}
	return -1
}
