package model

import (
	"time"

	"gorm.io/datatypes"
)

// ============================================================================
// 币种
// ============================================================================

type Currency string

const (
	CurrencyPrimary Currency = "primary" // 葡萄
	CurrencySocial  Currency = "social"  // 夸夸
)

func (c Currency) Valid() bool {
	return c == CurrencyPrimary || c == CurrencySocial
}

// ============================================================================
// 变动原因（封闭集合）
// ============================================================================

type Reason string

const (
	ReasonDailyCheckIn     Reason = "daily_checkin"     // 每日打卡
	ReasonGoalProgress     Reason = "goal_progress"     // 目标板推进
	ReasonGoalCompletion   Reason = "goal_completion"   // 目标板完成奖励
	ReasonConflictResolved Reason = "conflict_resolved" // 冲突调解完成
	ReasonPraiseReceived   Reason = "praise_received"   // 收到夸夸
	ReasonPraiseSent       Reason = "praise_sent"       // 送出夸夸
	ReasonShopPurchase     Reason = "shop_purchase"     // 商店购买券
	ReasonGift             Reason = "gift"              // 赠送
	ReasonRedeemReward     Reason = "redeem_reward"     // 兑换奖励
	ReasonAdjustment       Reason = "adjustment"        // 人工调整
)

var validReasons = map[Reason]struct{}{
	ReasonDailyCheckIn:     {},
	ReasonGoalProgress:     {},
	ReasonGoalCompletion:   {},
	ReasonConflictResolved: {},
	ReasonPraiseReceived:   {},
	ReasonPraiseSent:       {},
	ReasonShopPurchase:     {},
	ReasonGift:             {},
	ReasonRedeemReward:     {},
	ReasonAdjustment:       {},
}

func (r Reason) Valid() bool {
	_, ok := validReasons[r]
	return ok
}

// EntryMetadata 流水附加信息，字段固定，按原因填写对应字段
type EntryMetadata struct {
	CoupleID  string `json:"couple_id,omitempty"`
	BoardID   string `json:"board_id,omitempty"`
	CouponID  string `json:"coupon_id,omitempty"`
	ListingID string `json:"listing_id,omitempty"`
	PartnerID string `json:"partner_id,omitempty"`
	Note      string `json:"note,omitempty"`
}

// ============================================================================
// 积分流水实体
// ============================================================================

// LedgerEntry 积分流水表
//
// 只追加，不修改，不删除；它只是审计记录，余额以 Account 为准。
// 流水在余额事务提交之后写入，写入失败只记日志，不影响主操作
type LedgerEntry struct {
	ID           int64                             `gorm:"primaryKey;autoIncrement" json:"id"`
	EntryNo      string                            `gorm:"type:varchar(64);uniqueIndex;not null" json:"entry_no"` // 流水号（全局唯一）
	CoupleID     string                            `gorm:"type:varchar(64);index" json:"couple_id"`               // 所属关系，未配对时为空
	UserID       string                            `gorm:"type:varchar(64);index;not null" json:"user_id"`
	Currency     Currency                          `gorm:"type:varchar(16);not null" json:"currency"`
	Amount       int64                             `gorm:"not null" json:"amount"` // 正数入账，负数出账
	BalanceAfter int64                             `gorm:"not null" json:"balance_after"`
	Reason       Reason                            `gorm:"type:varchar(32);not null" json:"reason"`
	Metadata     datatypes.JSONType[EntryMetadata] `json:"metadata"`
	CreatedAt    time.Time                         `gorm:"autoCreateTime;index" json:"created_at"`
}

func (LedgerEntry) TableName() string {
	return "ledger_entry"
}
