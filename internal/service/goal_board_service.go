package service

import (
	"context"
	"strings"

	"couplesystem/internal/config"
	"couplesystem/internal/model"
	"couplesystem/internal/repository"
	"couplesystem/internal/store"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// BoardCompletedEvent 目标板完成事件
type BoardCompletedEvent struct {
	BoardID     string `json:"board_id"`
	CoupleID    string `json:"couple_id"`
	CompletedBy string `json:"completed_by"`
	Goal        int    `json:"goal"`
}

type GoalBoardService struct {
	store       *store.Store
	log         *logrus.Logger
	ledger      *LedgerService
	bonus       int64
	accountRepo *repository.AccountRepository
	coupleRepo  *repository.CoupleRepository
	boardRepo   *repository.GoalBoardRepository
	outboxRepo  *repository.OutboxRepository
}

func NewGoalBoardService(st *store.Store, ledger *LedgerService, cfg *config.Config, log *logrus.Logger) *GoalBoardService {
	return &GoalBoardService{
		store:       st,
		log:         log,
		ledger:      ledger,
		bonus:       cfg.Business.GoalCompletionBonus,
		accountRepo: repository.NewAccountRepository(st.DB()),
		coupleRepo:  repository.NewCoupleRepository(st.DB()),
		boardRepo:   repository.NewGoalBoardRepository(st.DB()),
		outboxRepo:  repository.NewOutboxRepository(st.DB()),
	}
}

type CreateBoardRequest struct {
	Title      string `json:"title"`
	Goal       int    `json:"goal"`
	PerSuccess int    `json:"per_success"`
	Owner      string `json:"owner"`
}

// Create 在请求人当前的关系下创建目标板
func (s *GoalBoardService) Create(ctx context.Context, accountID string, req *CreateBoardRequest) (*model.GoalBoard, error) {
	if accountID == "" {
		return nil, ErrInvalidAccount
	}
	if strings.TrimSpace(req.Title) == "" {
		return nil, ErrInvalidTitle
	}
	if req.Goal <= 0 || req.PerSuccess <= 0 {
		return nil, ErrInvalidGoal
	}

	var created *model.GoalBoard
	err := s.store.RunTransaction(ctx, func(tx *gorm.DB) error {
		created = nil
		account, err := s.accountRepo.Get(ctx, tx, accountID)
		if err != nil {
			return err
		}
		if account.ActiveCoupleID == nil {
			return ErrNotPaired
		}
		board := &model.GoalBoard{
			ID:         uuid.NewString(),
			CoupleID:   *account.ActiveCoupleID,
			Title:      strings.TrimSpace(req.Title),
			Goal:       req.Goal,
			PerSuccess: req.PerSuccess,
			Owner:      req.Owner,
		}
		if err := s.boardRepo.Create(ctx, tx, board); err != nil {
			return err
		}
		created = board
		return nil
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

type AdvanceResult struct {
	Board         *model.GoalBoard `json:"board"`
	JustCompleted bool             `json:"just_completed"`
	BonusAwarded  int64            `json:"bonus_awarded"`
}

// Advance 推进进度，byAmount 为 0 时按 perSuccess 推进。
// 进度封顶在 goal，只有从未完成变为完成的那一次推进会发放完成奖励
func (s *GoalBoardService) Advance(ctx context.Context, boardID string, byAmount int, accountID string) (*AdvanceResult, error) {
	if accountID == "" {
		return nil, ErrInvalidAccount
	}
	if byAmount < 0 {
		return nil, ErrInvalidAmount
	}

	var result *AdvanceResult
	err := s.store.RunTransaction(ctx, func(tx *gorm.DB) error {
		result = nil
		board, err := s.boardRepo.Get(ctx, tx, boardID)
		if err != nil {
			return err
		}
		couple, err := s.coupleRepo.Get(ctx, tx, board.CoupleID)
		if err != nil {
			return err
		}
		if !couple.HasMember(accountID) {
			return ErrNotCoupleMember
		}
		if board.Completed {
			return ErrBoardCompleted
		}

		step := byAmount
		if step == 0 {
			step = board.PerSuccess
		}
		if step >= board.Goal-board.Progress {
			board.Progress = board.Goal
		} else {
			board.Progress += step
		}

		justCompleted := board.Progress >= board.Goal
		if justCompleted {
			completedAt := timeNow()
			board.Completed = true
			board.CompletedAt = &completedAt
		}
		if err := s.boardRepo.Save(ctx, tx, board); err != nil {
			return err
		}

		if justCompleted {
			err := s.outboxRepo.Enqueue(ctx, tx, model.EventBoardCompleted, &BoardCompletedEvent{
				BoardID:     board.ID,
				CoupleID:    board.CoupleID,
				CompletedBy: accountID,
				Goal:        board.Goal,
			})
			if err != nil {
				return err
			}
		}

		result = &AdvanceResult{Board: board, JustCompleted: justCompleted}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if !result.JustCompleted || s.bonus <= 0 {
		return result, nil
	}

	_, err = s.ledger.Credit(ctx, Mutation{
		AccountID: accountID,
		Currency:  model.CurrencyPrimary,
		Amount:    s.bonus,
		Reason:    model.ReasonGoalCompletion,
		Metadata: model.EntryMetadata{
			CoupleID: result.Board.CoupleID,
			BoardID:  result.Board.ID,
		},
	})
	if err != nil {
		s.log.WithError(err).WithFields(logrus.Fields{
			"board_id":   result.Board.ID,
			"account_id": accountID,
			"bonus":      s.bonus,
		}).Error("目标板已完成，奖励发放失败")
		return nil, errors.Wrap(err, "目标板已完成，奖励发放失败")
	}
	result.BonusAwarded = s.bonus

	s.log.WithFields(logrus.Fields{
		"board_id":   result.Board.ID,
		"account_id": accountID,
		"bonus":      s.bonus,
	}).Info("目标板完成")
	return result, nil
}

// List 请求人当前关系下的全部目标板
func (s *GoalBoardService) List(ctx context.Context, accountID string) ([]*model.GoalBoard, error) {
	account, err := s.accountRepo.Get(ctx, nil, accountID)
	if err != nil {
		return nil, err
	}
	if account.ActiveCoupleID == nil {
		return []*model.GoalBoard{}, nil
	}
	return s.boardRepo.ListByCouple(ctx, *account.ActiveCoupleID)
}
