package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// PrepaidMetrics 预付费电费服务指标
type PrepaidMetrics struct {
	// 结算相关指标
	SettleTotal    *prometheus.CounterVec   // 结算总数（按结果）
	SettleDuration prometheus.Histogram     // 结算耗时
	SettleAmount   prometheus.Counter       // 累计结算电费（元）
	SettleAnomaly  *prometheus.CounterVec   // 结算异常总数（按原因）

	// 充值相关指标
	RechargeCreditTotal  *prometheus.CounterVec // 充值入账总数（按来源：webhook/reconcile/offline）
	RechargeCreditAmount prometheus.Counter     // 累计充值入账金额（元）
	RechargeDupTotal     prometheus.Counter     // 重复回调命中幂等总数

	// 提现相关指标
	TransferFinishTotal *prometheus.CounterVec // 转账完结总数（按终态）
	TransferRefundTotal prometheus.Counter     // 资金池回补总数

	// 对账相关指标
	SweepTotal         prometheus.Counter       // 对账轮询总数
	SweepDuration      prometheus.Histogram     // 单次轮询耗时
	SweepOrderTotal    *prometheus.CounterVec   // 订单处理总数（按结果）
	SweepTransferTotal *prometheus.CounterVec   // 转账处理总数（按结果）

	// 余额状态指标
	MeterArrearsAlert *prometheus.GaugeVec // 电表欠费告警（按组织）

	// 分布式锁相关指标
	LockAcquireTotal    *prometheus.CounterVec // 锁获取总数（按结果）
	LockAcquireDuration prometheus.Histogram   // 锁获取耗时
}

// NewPrepaidMetrics 创建预付费电费服务指标
func NewPrepaidMetrics() *PrepaidMetrics {
	return &PrepaidMetrics{
		// 结算指标
		SettleTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "prepaid_settle_total",
				Help: "Total number of meter read settlements",
			},
			[]string{"result"}, // result: applied/baseline/rejected
		),
		SettleDuration: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "prepaid_settle_duration_seconds",
				Help:    "Duration of settlement operations",
				Buckets: prometheus.DefBuckets,
			},
		),
		SettleAmount: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "prepaid_settle_amount_yuan_total",
				Help: "Total amount of electricity fees settled",
			},
		),
		SettleAnomaly: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "prepaid_settle_anomaly_total",
				Help: "Total number of rejected settlements",
			},
			[]string{"reason"}, // reason: epi_decreased/price_missing/out_of_order
		),

		// 充值指标
		RechargeCreditTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "prepaid_recharge_credit_total",
				Help: "Total number of applied recharge credits",
			},
			[]string{"source"}, // source: webhook/offline
		),
		RechargeCreditAmount: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "prepaid_recharge_credit_amount_yuan_total",
				Help: "Total amount of applied recharge credits",
			},
		),
		RechargeDupTotal: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "prepaid_recharge_duplicate_total",
				Help: "Total number of duplicate recharge callbacks absorbed by idempotency",
			},
		),

		// 提现指标
		TransferFinishTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "prepaid_transfer_finish_total",
				Help: "Total number of finished withdrawal transfers",
			},
			[]string{"state"}, // state: SUCCESS/FAIL/CANCELLED
		),
		TransferRefundTotal: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "prepaid_transfer_refund_total",
				Help: "Total number of fund pool refunds",
			},
		),

		// 对账指标
		SweepTotal: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "prepaid_reconcile_sweep_total",
				Help: "Total number of reconcile sweeps",
			},
		),
		SweepDuration: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "prepaid_reconcile_sweep_duration_seconds",
				Help:    "Duration of a full reconcile sweep",
				Buckets: []float64{0.1, 0.5, 1, 5, 15, 60, 300},
			},
		),
		SweepOrderTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "prepaid_reconcile_order_total",
				Help: "Total number of recharge orders handled by the reconciler",
			},
			[]string{"result"}, // result: closed/skipped/error
		),
		SweepTransferTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "prepaid_reconcile_transfer_total",
				Help: "Total number of withdrawal transfers handled by the reconciler",
			},
			[]string{"result"}, // result: cancelled/skipped/error
		),

		// 余额状态指标
		MeterArrearsAlert: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "prepaid_meter_arrears",
				Help: "Number of meters currently in arrears",
			},
			[]string{"org"},
		),

		// 分布式锁指标
		LockAcquireTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "prepaid_lock_acquire_total",
				Help: "Total number of settle lock acquisition attempts",
			},
			[]string{"result"}, // result: success/failed
		),
		LockAcquireDuration: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "prepaid_lock_acquire_duration_seconds",
				Help:    "Duration of settle lock acquisition",
				Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0},
			},
		),
	}
}

// 全局指标实例
var defaultMetrics *PrepaidMetrics

// InitMetrics 初始化全局指标
func InitMetrics() {
	defaultMetrics = NewPrepaidMetrics()
}

// GetMetrics 获取全局指标实例
func GetMetrics() *PrepaidMetrics {
	if defaultMetrics == nil {
		InitMetrics()
	}
	return defaultMetrics
}
