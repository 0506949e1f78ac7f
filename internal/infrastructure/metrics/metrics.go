package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// TxnAttempts 每次事务函数执行一次记一次，result 取值 committed / conflict / aborted
	TxnAttempts = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "couple",
		Name:      "txn_attempts_total",
		Help:      "Transaction function executions by outcome.",
	}, []string{"result"})

	// TxnExhausted 重试次数用尽的事务
	TxnExhausted = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "couple",
		Name:      "txn_retries_exhausted_total",
		Help:      "Transactions that failed after exhausting the retry budget.",
	})

	// LedgerAppendFailures 流水补写失败次数
	LedgerAppendFailures = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "couple",
		Name:      "ledger_append_failures_total",
		Help:      "Best-effort ledger entry appends that failed.",
	})

	// OperationErrors 按错误分类统计接口错误
	OperationErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "couple",
		Name:      "operation_errors_total",
		Help:      "Core operation failures by error kind.",
	}, []string{"kind"})

	// OutboxDelivered 事件投递结果
	OutboxDelivered = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "couple",
		Name:      "outbox_messages_total",
		Help:      "Outbox relay attempts by outcome.",
	}, []string{"result"})
)
