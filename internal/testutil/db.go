// Package testutil 提供测试共用的数据库和日志
package testutil

import (
	"fmt"
	"io"
	"strings"
	"testing"

	"couplesystem/internal/config"
	"couplesystem/internal/infrastructure/database"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// NewDB 为每个测试创建独立的内存 SQLite。
// 连接池限制为 1 个连接，所有事务在连接上串行执行，
// 因此事务函数内只能使用传入的 tx，否则会互相等待
func NewDB(t *testing.T) *gorm.DB {
	t.Helper()
	return openShared(t, dsnFor(t))
}

// NewDBWithPeer 返回同一个内存库上的两个连接池，peer 模拟另一个服务实例。
// 主连接开启 read_uncommitted，事务内的读不持有表锁，
// peer 可以在主连接的事务读完、写入之前提交
func NewDBWithPeer(t *testing.T) (*gorm.DB, *gorm.DB) {
	t.Helper()
	dsn := dsnFor(t)
	db := openShared(t, dsn)
	require.NoError(t, db.Exec("PRAGMA read_uncommitted = 1").Error)
	return db, openShared(t, dsn)
}

// AfterQuery 在 db 上第 n 次查询 table 之后同步执行一次 fn。
// 返回的函数给出注册以来查询 table 的次数
func AfterQuery(t *testing.T, db *gorm.DB, table string, n int, fn func()) func() int {
	t.Helper()
	seen := 0
	err := db.Callback().Query().After("gorm:query").Register("testutil:after_query:"+table, func(tx *gorm.DB) {
		if tx.Error != nil || tx.Statement.Table != table {
			return
		}
		seen++
		if seen == n {
			fn()
		}
	})
	require.NoError(t, err)
	return func() int { return seen }
}

func dsnFor(t *testing.T) string {
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	return fmt.Sprintf("file:%s?mode=memory&cache=shared", name)
}

func openShared(t *testing.T, dsn string) *gorm.DB {
	cfg := &config.DatabaseConfig{
		Driver:       "sqlite",
		SQLitePath:   dsn,
		MaxOpenConns: 1,
		MaxIdleConns: 1,
	}
	db, err := database.Open(cfg, NewLogger())
	require.NoError(t, err)

	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return db
}

// NewLogger 丢弃输出的日志实例
func NewLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

// Config 测试使用的默认配置
func Config() *config.Config {
	cfg := config.Default()
	cfg.Business.MaxTxnAttempts = 5
	return cfg
}
