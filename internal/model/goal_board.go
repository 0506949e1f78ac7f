package model

import (
	"time"
)

// GoalBoard 共享目标板
// Progress 单调不减且不超过 Goal；Completed 只会从 false 变为 true 一次
type GoalBoard struct {
	ID          string     `gorm:"primaryKey;type:varchar(64)" json:"id"`
	CoupleID    string     `gorm:"type:varchar(64);index" json:"couple_id"`
	Title       string     `gorm:"type:varchar(128);not null" json:"title"`
	Goal        int        `gorm:"not null" json:"goal"`
	PerSuccess  int        `gorm:"not null" json:"per_success"`
	Progress    int        `gorm:"not null;default:0" json:"progress"`
	Completed   bool       `gorm:"not null;default:false" json:"completed"`
	Owner       string     `gorm:"type:varchar(32)" json:"owner"` // 标签（如 "us"、"me"），不是账户引用
	Version     int        `gorm:"not null;default:0" json:"version"`
	CompletedAt *time.Time `json:"completed_at"`
	CreatedAt   time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

func (GoalBoard) TableName() string {
	return "goal_board"
}
