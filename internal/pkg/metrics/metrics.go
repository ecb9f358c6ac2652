package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// LedgerDebits 成功扣减次数，按积分来源
var LedgerDebits = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "codemorph",
	Subsystem: "ledger",
	Name:      "debits_total",
	Help:      "Successful credit debits by source pool.",
}, []string{"source"})

// LedgerDebitFailures 扣减失败次数，按错误类别
var LedgerDebitFailures = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "codemorph",
	Subsystem: "ledger",
	Name:      "debit_failures_total",
	Help:      "Failed credit debits by error kind.",
}, []string{"kind"})

var LedgerDebitDuration = promauto.NewHistogram(prometheus.HistogramOpts{
	Namespace: "codemorph",
	Subsystem: "ledger",
	Name:      "debit_duration_seconds",
	Help:      "Latency of the debit transaction.",
	Buckets:   prometheus.DefBuckets,
})

// LedgerGrants 购买积分入账，result 为 created 或 duplicate
var LedgerGrants = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "codemorph",
	Subsystem: "ledger",
	Name:      "grants_total",
	Help:      "Purchased credit grants by result.",
}, []string{"result"})

var LedgerShares = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "codemorph",
	Subsystem: "ledger",
	Name:      "shares_total",
	Help:      "Credit share attempts by result.",
}, []string{"result"})

var LedgerTopups = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "codemorph",
	Subsystem: "ledger",
	Name:      "topups_total",
	Help:      "Free credit top-ups by reason.",
}, []string{"reason"})

// ConvertRequests 转换请求结果
var ConvertRequests = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "codemorph",
	Subsystem: "convert",
	Name:      "requests_total",
	Help:      "Conversion requests by outcome.",
}, []string{"outcome"})

// ReconcilePending 待对账事件入队次数
var ReconcilePending = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "codemorph",
	Subsystem: "ledger",
	Name:      "reconcile_enqueued_total",
	Help:      "Unbilled work items queued for manual reconciliation.",
})

// RegisterWSConnections 注册在线推送连接数，进程内只能调用一次
func RegisterWSConnections(count func() int) {
	promauto.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: "codemorph",
		Subsystem: "ws",
		Name:      "connections",
		Help:      "Open websocket connections receiving balance updates.",
	}, func() float64 { return float64(count()) })
}

// Handler Prometheus 抓取入口
func Handler() http.Handler {
	return promhttp.Handler()
}
