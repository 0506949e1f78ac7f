package store

import (
	"context"
	"time"

	"couplesystem/internal/errs"
	"couplesystem/internal/infrastructure/metrics"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"gorm.io/gorm"
)

// ============================================================================
// 事务存储
// ============================================================================
//
// RunTransaction(fn) 的约定：
//
//   1. fn 内的所有读写都必须走传入的 tx，提交要么全部成功，要么全部回滚
//   2. 写入使用 "WHERE id = ? AND version = ?" 的条件更新，影响行数为 0
//      说明读到的数据已被并发修改，返回 ErrConflict
//   3. 遇到 ErrConflict 时整个 fn 从头重新执行（不做局部重放），
//      最多执行 maxAttempts 次，之后返回 ErrTooMuchContention
//   4. fn 可能被执行多次，因此 fn 只能依赖读到的数据和入参，
//      不能在 fn 内发网络请求、发消息等不可重复的副作用
//
// 没有锁管理器，也没有进程内共享状态：每次尝试都重新读取文档并重新校验不变式。
//
// ============================================================================

var (
	// ErrConflict 由仓储层的条件更新返回，仅在 RunTransaction 内部流转
	ErrConflict = errs.Transient("数据已被并发修改")

	ErrTooMuchContention = errs.Transient("系统繁忙，请稍后重试")
	ErrUnavailable       = errs.Transient("存储暂不可用，请稍后重试")
	ErrNotInitialized    = errs.Fatal("存储未初始化")
)

const defaultMaxAttempts = 5

type Option func(*Store)

// WithMaxAttempts 设置单次事务最多执行次数
func WithMaxAttempts(n int) Option {
	return func(s *Store) {
		if n > 0 {
			s.maxAttempts = n
		}
	}
}

// WithBackoff 设置冲突后重试前的等待基数，第 n 次重试等待 n*base
func WithBackoff(base time.Duration) Option {
	return func(s *Store) {
		s.backoff = base
	}
}

type Store struct {
	db          *gorm.DB
	log         *logrus.Logger
	maxAttempts int
	backoff     time.Duration
}

func New(db *gorm.DB, log *logrus.Logger, opts ...Option) *Store {
	s := &Store{
		db:          db,
		log:         log,
		maxAttempts: defaultMaxAttempts,
		backoff:     5 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// DB 返回事务外只读查询使用的句柄
func (s *Store) DB() *gorm.DB {
	return s.db
}

// RunTransaction 执行事务函数，冲突时自动重试
func (s *Store) RunTransaction(ctx context.Context, fn func(tx *gorm.DB) error) error {
	if s == nil || s.db == nil {
		return ErrNotInitialized
	}

	ctx, span := otel.Tracer("couplesystem/store").Start(ctx, "store.RunTransaction")
	defer span.End()

	for attempt := 1; attempt <= s.maxAttempts; attempt++ {
		span.SetAttributes(attribute.Int("txn.attempt", attempt))

		err := s.db.WithContext(ctx).Transaction(fn)
		if err == nil {
			metrics.TxnAttempts.WithLabelValues("committed").Inc()
			return nil
		}

		if !errors.Is(err, ErrConflict) {
			metrics.TxnAttempts.WithLabelValues("aborted").Inc()
			err = classify(err)
			if errs.KindOf(err) != errs.KindDomain && errs.KindOf(err) != errs.KindValidation {
				span.RecordError(err)
				span.SetStatus(codes.Error, err.Error())
			}
			return err
		}

		metrics.TxnAttempts.WithLabelValues("conflict").Inc()
		s.log.WithFields(logrus.Fields{
			"attempt":      attempt,
			"max_attempts": s.maxAttempts,
		}).Debug("事务冲突，重新执行")

		if attempt < s.maxAttempts && s.backoff > 0 {
			select {
			case <-ctx.Done():
				return errors.Wrap(ErrUnavailable, ctx.Err().Error())
			case <-time.After(time.Duration(attempt) * s.backoff):
			}
		}
	}

	metrics.TxnExhausted.Inc()
	span.SetStatus(codes.Error, ErrTooMuchContention.Error())
	return ErrTooMuchContention
}

// classify 业务错误原样返回，驱动层错误统一归为存储不可用
func classify(err error) error {
	var e *errs.Error
	if errors.As(err, &e) {
		return err
	}
	return errors.Wrap(ErrUnavailable, err.Error())
}

// CheckUpdated 把条件更新的结果转换成冲突错误
func CheckUpdated(result *gorm.DB) error {
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrDuplicatedKey) {
			return ErrConflict
		}
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrConflict
	}
	return nil
}

// CheckCreated 插入时主键/唯一键冲突说明有并发写入，同样按冲突重试
func CheckCreated(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return ErrConflict
	}
	return err
}
