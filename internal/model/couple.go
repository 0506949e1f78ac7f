package model

import (
	"time"

	"gorm.io/datatypes"
)

const (
	CoupleStatusActive = "ACTIVE"
	CoupleStatusPaused = "PAUSED"
	CoupleStatusEnded  = "ENDED"
)

// MemberProfile 配对时刻的成员资料快照
type MemberProfile struct {
	AccountID   string `json:"account_id"`
	DisplayName string `json:"display_name"`
}

// Couple 关系表
// 同一成员在任意时刻最多只能被一条 ACTIVE/PAUSED 的关系引用，
// 由创建关系的同一个事务检查双方 Account.ActiveCoupleID 保证
type Couple struct {
	ID               string                             `gorm:"primaryKey;type:varchar(64)" json:"id"`
	MemberA          string                             `gorm:"type:varchar(64);index;not null" json:"member_a"` // 邀请码持有人
	MemberB          string                             `gorm:"type:varchar(64);index;not null" json:"member_b"` // 兑换人
	MemberProfiles   datatypes.JSONSlice[MemberProfile] `json:"member_profiles"`
	Status           string                             `gorm:"type:varchar(16);index;not null" json:"status"`
	SharedState      datatypes.JSONMap                  `json:"shared_state"` // 账户ID -> 偏好快照，不随账户变化
	PreviousCoupleID *string                            `gorm:"type:varchar(64)" json:"previous_couple_id"`
	Version          int                                `gorm:"not null;default:0" json:"version"`
	CreatedAt        time.Time                          `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt        time.Time                          `gorm:"autoUpdateTime" json:"updated_at"`
	EndedAt          *time.Time                         `json:"ended_at"`
}

func (Couple) TableName() string {
	return "couple"
}

func (c *Couple) Members() []string {
	return []string{c.MemberA, c.MemberB}
}

func (c *Couple) HasMember(accountID string) bool {
	return c.MemberA == accountID || c.MemberB == accountID
}

// PartnerOf 返回另一方的账户ID，非成员返回空串
func (c *Couple) PartnerOf(accountID string) string {
	switch accountID {
	case c.MemberA:
		return c.MemberB
	case c.MemberB:
		return c.MemberA
	}
	return ""
}
