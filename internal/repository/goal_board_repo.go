package repository

import (
	"context"

	"couplesystem/internal/model"
	"couplesystem/internal/store"

	"github.com/pkg/errors"
	"gorm.io/gorm"
)

type GoalBoardRepository struct {
	db *gorm.DB
}

func NewGoalBoardRepository(db *gorm.DB) *GoalBoardRepository {
	return &GoalBoardRepository{db: db}
}

func (r *GoalBoardRepository) Get(ctx context.Context, tx *gorm.DB, id string) (*model.GoalBoard, error) {
	if tx == nil {
		tx = r.db
	}
	var board model.GoalBoard
	err := tx.WithContext(ctx).Where("id = ?", id).First(&board).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrBoardNotFound
		}
		return nil, err
	}
	return &board, nil
}

func (r *GoalBoardRepository) Create(ctx context.Context, tx *gorm.DB, board *model.GoalBoard) error {
	return store.CheckCreated(tx.WithContext(ctx).Create(board).Error)
}

// Save 按版本号条件更新进度
func (r *GoalBoardRepository) Save(ctx context.Context, tx *gorm.DB, board *model.GoalBoard) error {
	result := tx.WithContext(ctx).
		Model(&model.GoalBoard{}).
		Where("id = ? AND version = ?", board.ID, board.Version).
		Updates(map[string]interface{}{
			"progress":     board.Progress,
			"completed":    board.Completed,
			"completed_at": board.CompletedAt,
			"version":      board.Version + 1,
		})
	if err := store.CheckUpdated(result); err != nil {
		return err
	}
	board.Version++
	return nil
}

func (r *GoalBoardRepository) ListByCouple(ctx context.Context, coupleID string) ([]*model.GoalBoard, error) {
	var boards []*model.GoalBoard
	err := r.db.WithContext(ctx).
		Where("couple_id = ?", coupleID).
		Order("created_at DESC").
		Find(&boards).Error
	return boards, err
}
