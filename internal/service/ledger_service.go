package service

import (
	"context"
	"math"

	"couplesystem/internal/infrastructure/metrics"
	"couplesystem/internal/model"
	"couplesystem/internal/repository"
	"couplesystem/internal/store"
	"couplesystem/pkg/idgen"

	"github.com/sirupsen/logrus"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// ============================================================================
// 积分账本
// ============================================================================
//
// 余额只存在 Account 上，每次变动都是一次对账户文档的条件更新；
// 流水在事务提交之后单独写入，属于审计记录：
//
//   - 写入失败只记日志和计数，不回滚余额，也不向调用方报错
//   - 因此可能出现余额已变但没有流水的情况，对账以 Account 为准
//
// ============================================================================

// Mutation 一次余额变动，Amount 为正数，方向由 Credit / Debit 决定
type Mutation struct {
	AccountID string
	Currency  model.Currency
	Amount    int64
	Reason    model.Reason
	Metadata  model.EntryMetadata
}

func (m *Mutation) validate() error {
	if m.AccountID == "" {
		return ErrInvalidAccount
	}
	if m.Amount <= 0 {
		return ErrInvalidAmount
	}
	if !m.Currency.Valid() {
		return ErrInvalidCurrency
	}
	if !m.Reason.Valid() {
		return ErrInvalidReason
	}
	return nil
}

type BalanceResult struct {
	Currency   model.Currency `json:"currency"`
	NewBalance int64          `json:"new_balance"`
}

type LedgerService struct {
	store       *store.Store
	log         *logrus.Logger
	accountRepo *repository.AccountRepository
	ledgerRepo  *repository.LedgerRepository
	coupleRepo  *repository.CoupleRepository
}

func NewLedgerService(st *store.Store, log *logrus.Logger) *LedgerService {
	return &LedgerService{
		store:       st,
		log:         log,
		accountRepo: repository.NewAccountRepository(st.DB()),
		ledgerRepo:  repository.NewLedgerRepository(st.DB()),
		coupleRepo:  repository.NewCoupleRepository(st.DB()),
	}
}

// Credit 入账，余额超出 int64 上限时失败且余额不变
func (s *LedgerService) Credit(ctx context.Context, m Mutation) (*BalanceResult, error) {
	if err := m.validate(); err != nil {
		return nil, err
	}

	var account *model.Account
	err := s.store.RunTransaction(ctx, func(tx *gorm.DB) error {
		account = nil
		a, err := s.accountRepo.Get(ctx, tx, m.AccountID)
		if err != nil {
			return err
		}
		switch m.Currency {
		case model.CurrencyPrimary:
			if overflows(a.PrimaryBalance, m.Amount) || overflows(a.PrimaryLifetimeEarned, m.Amount) {
				return ErrBalanceOverflow
			}
			a.PrimaryBalance += m.Amount
			a.PrimaryLifetimeEarned += m.Amount
		case model.CurrencySocial:
			if overflows(a.SocialBalance, m.Amount) {
				return ErrBalanceOverflow
			}
			a.SocialBalance += m.Amount
		}
		if err := s.accountRepo.Save(ctx, tx, a); err != nil {
			return err
		}
		account = a
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.AppendEntry(ctx, account, m, m.Amount)
	return &BalanceResult{Currency: m.Currency, NewBalance: account.Balance(m.Currency)}, nil
}

// overflows amount 为正数，判断 balance+amount 是否超过 int64 上限
func overflows(balance, amount int64) bool {
	return balance > math.MaxInt64-amount
}

// Debit 出账，余额不足时失败且余额不变
func (s *LedgerService) Debit(ctx context.Context, m Mutation) (*BalanceResult, error) {
	if err := m.validate(); err != nil {
		return nil, err
	}

	var account *model.Account
	err := s.store.RunTransaction(ctx, func(tx *gorm.DB) error {
		account = nil
		a, err := s.DebitInTx(ctx, tx, m)
		if err != nil {
			return err
		}
		account = a
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.AppendEntry(ctx, account, m, -m.Amount)
	return &BalanceResult{Currency: m.Currency, NewBalance: account.Balance(m.Currency)}, nil
}

// DebitInTx 在调用方的事务内扣减余额，返回扣减后的账户。
// 流水由调用方在提交后通过 AppendEntry 补写
func (s *LedgerService) DebitInTx(ctx context.Context, tx *gorm.DB, m Mutation) (*model.Account, error) {
	if err := m.validate(); err != nil {
		return nil, err
	}
	a, err := s.accountRepo.Get(ctx, tx, m.AccountID)
	if err != nil {
		return nil, err
	}
	if a.Balance(m.Currency) < m.Amount {
		return nil, ErrInsufficientBalance
	}
	switch m.Currency {
	case model.CurrencyPrimary:
		a.PrimaryBalance -= m.Amount
	case model.CurrencySocial:
		a.SocialBalance -= m.Amount
	}
	if err := s.accountRepo.Save(ctx, tx, a); err != nil {
		return nil, err
	}
	return a, nil
}

// AppendEntry 补写流水，signedAmount 正数为入账、负数为出账
func (s *LedgerService) AppendEntry(ctx context.Context, account *model.Account, m Mutation, signedAmount int64) {
	coupleID := m.Metadata.CoupleID
	if coupleID == "" && account.ActiveCoupleID != nil {
		coupleID = *account.ActiveCoupleID
	}

	entry := &model.LedgerEntry{
		EntryNo:      idgen.GenerateEntryNo(),
		CoupleID:     coupleID,
		UserID:       account.ID,
		Currency:     m.Currency,
		Amount:       signedAmount,
		BalanceAfter: account.Balance(m.Currency),
		Reason:       m.Reason,
		Metadata:     datatypes.NewJSONType(m.Metadata),
	}
	if err := s.ledgerRepo.Append(ctx, entry); err != nil {
		metrics.LedgerAppendFailures.Inc()
		s.log.WithError(err).WithFields(logrus.Fields{
			"account_id":    account.ID,
			"currency":      m.Currency,
			"amount":        signedAmount,
			"balance_after": entry.BalanceAfter,
			"reason":        m.Reason,
		}).Warn("流水写入失败")
	}
}

type ListEntriesResult struct {
	Entries []*model.LedgerEntry `json:"entries"`
	Total   int64                `json:"total"`
	Page    int                  `json:"page"`
	Size    int                  `json:"size"`
}

// ListEntries 查询流水，coupleID 为空时按账户查询，否则只有关系成员可以查看
func (s *LedgerService) ListEntries(ctx context.Context, accountID, coupleID string, page, size int) (*ListEntriesResult, error) {
	if accountID == "" {
		return nil, ErrInvalidAccount
	}
	if page < 1 {
		page = 1
	}
	if size < 1 || size > 100 {
		size = 20
	}

	var (
		entries []*model.LedgerEntry
		total   int64
		err     error
	)
	if coupleID != "" {
		couple, getErr := s.coupleRepo.Get(ctx, nil, coupleID)
		if getErr != nil {
			return nil, getErr
		}
		if !couple.HasMember(accountID) {
			return nil, ErrNotCoupleMember
		}
		entries, total, err = s.ledgerRepo.ListByCouple(ctx, coupleID, page, size)
	} else {
		entries, total, err = s.ledgerRepo.ListByUser(ctx, accountID, page, size)
	}
	if err != nil {
		return nil, err
	}
	return &ListEntriesResult{Entries: entries, Total: total, Page: page, Size: size}, nil
}
