package metrics

import (
	"io"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
)

// 全局 Registry，供 API 注册与暴露
var DefaultRegistry = prometheus.NewRegistry()

func init() {
	DefaultRegistry.MustRegister(
		MessageTotal, HandleDuration,
		OTPVerifyTotal, EscrowLockTotal, SettlementTotal,
		LedgerAppendTotal, NotifyTotal,
	)
}

// MessageTotal 入站消息总数（按识别出的意图；解析失败记为 parse_error）
var MessageTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "agrotrack_message_total",
		Help: "入站消息总数（按意图）",
	},
	[]string{"intent"},
)

// HandleDuration 单条消息编排耗时（秒）
var HandleDuration = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "agrotrack_handle_duration_seconds",
		Help:    "单条消息编排耗时（秒）",
		Buckets: prometheus.DefBuckets,
	},
	[]string{"intent"},
)

// OTPVerifyTotal OTP 校验结果总数
var OTPVerifyTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "agrotrack_otp_verify_total",
		Help: "OTP 校验结果总数",
	},
	[]string{"result"}, // ok | invalid_or_expired
)

// EscrowLockTotal 资金锁定结果总数
var EscrowLockTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "agrotrack_escrow_lock_total",
		Help: "资金锁定结果总数",
	},
	[]string{"result"}, // locked | transfer_failed
)

// SettlementTotal 结算结果总数
var SettlementTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "agrotrack_settlement_total",
		Help: "结算结果总数",
	},
	[]string{"result"}, // completed | rejected | transfer_failed
)

// LedgerAppendTotal 账本写入总数（按事件类型）
var LedgerAppendTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "agrotrack_ledger_append_total",
		Help: "账本写入总数（按事件类型）",
	},
	[]string{"kind"},
)

// NotifyTotal 出站通知结果总数
var NotifyTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "agrotrack_notify_total",
		Help: "出站通知结果总数",
	},
	[]string{"result"}, // ok | failed
)

// WritePrometheus 将 Prometheus 文本格式写入 w（供 Hertz 复用）
func WritePrometheus(w io.Writer) error {
	metrics, err := DefaultRegistry.Gather()
	if err != nil {
		return err
	}
	enc := expfmt.NewEncoder(w, expfmt.FmtText)
	for _, mf := range metrics {
		if err := enc.Encode(mf); err != nil {
			return err
		}
	}
	return nil
}
