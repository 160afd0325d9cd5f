package biz

import (
	"context"
	"time"

	"prepaid-el-service/internal/conf"
	"prepaid-el-service/internal/constants"
	"prepaid-el-service/internal/metrics"

	"github.com/go-kratos/kratos/v2/log"
)

// SweepStats 单次对账轮询统计
type SweepStats struct {
	OrdersScanned    int
	OrdersClosed     int
	OrdersSkipped    int
	OrderErrors      int
	TransfersScanned int
	TransfersCancel  int
	TransferSkipped  int
	TransferErrors   int
}

// ReconcileUseCase 对账业务逻辑
// 周期性扫描超期未支付订单与未完结转账，先撤网关侧，再以 CAS 推进本地状态
type ReconcileUseCase struct {
	orders      RechargeOrderRepo
	withdrawals WithdrawalRepo
	gateway     PaymentGateway
	cfg         *conf.Prepaid
	log         *log.Helper
	metrics     *metrics.PrepaidMetrics
}

// NewReconcileUseCase 创建对账 UseCase
func NewReconcileUseCase(
	orders RechargeOrderRepo,
	withdrawals WithdrawalRepo,
	gateway PaymentGateway,
	cfg *conf.Prepaid,
	logger log.Logger,
) *ReconcileUseCase {
	return &ReconcileUseCase{
		orders:      orders,
		withdrawals: withdrawals,
		gateway:     gateway,
		cfg:         cfg,
		log:         log.NewHelper(logger),
		metrics:     metrics.GetMetrics(),
	}
}

// Sweep 执行一次完整对账
// 单条失败只记录并继续，整轮永不因某一条中断
func (uc *ReconcileUseCase) Sweep(ctx context.Context) *SweepStats {
	startTime := time.Now()
	stats := &SweepStats{}

	uc.sweepStaleOrders(ctx, stats)
	uc.sweepUnfinishedTransfers(ctx, stats)

	if uc.metrics != nil {
		uc.metrics.SweepTotal.Inc()
		uc.metrics.SweepDuration.Observe(time.Since(startTime).Seconds())
	}
	uc.log.Infof("Reconcile sweep done: orders=%d closed=%d skipped=%d errors=%d, transfers=%d cancelled=%d skipped=%d errors=%d, cost=%s",
		stats.OrdersScanned, stats.OrdersClosed, stats.OrdersSkipped, stats.OrderErrors,
		stats.TransfersScanned, stats.TransfersCancel, stats.TransferSkipped, stats.TransferErrors,
		time.Since(startTime))
	return stats
}

// sweepStaleOrders 关闭超期未支付的 JSAPI 订单
// 宽限期内的订单不碰，给用户留足支付时间
func (uc *ReconcileUseCase) sweepStaleOrders(ctx context.Context, stats *SweepStats) {
	cutoff := time.Now().Add(-uc.cfg.GraceWindowDuration())
	orders, err := uc.orders.ListStaleJSAPIOrders(ctx, cutoff)
	if err != nil {
		uc.log.Errorf("ListStaleJSAPIOrders failed: error=%v", err)
		return
	}
	stats.OrdersScanned = len(orders)

	for _, order := range orders {
		result := uc.closeOneOrder(ctx, order)
		if uc.metrics != nil {
			uc.metrics.SweepOrderTotal.WithLabelValues(result).Inc()
		}
		switch result {
		case constants.ReconcileResultClosed:
			stats.OrdersClosed++
		case constants.ReconcileResultSkipped:
			stats.OrdersSkipped++
		default:
			stats.OrderErrors++
		}
	}
}

// closeOneOrder 关闭单个订单：网关关单成功后才允许本地置 CLOSED
func (uc *ReconcileUseCase) closeOneOrder(ctx context.Context, order *RechargeOrder) string {
	callCtx, cancel := context.WithTimeout(ctx, uc.cfg.GatewayTimeoutDuration())
	defer cancel()

	result, err := uc.gateway.CloseOrder(callCtx, order.OutTradeNo)
	if err != nil {
		uc.log.Errorf("CloseOrder gateway call failed: out_trade_no=%s, error=%v", order.OutTradeNo, err)
		return constants.ReconcileResultError
	}
	if !result.OK() {
		// 网关未接受关单（如订单恰好已支付），本地状态保持不动，等回调或下一轮
		uc.log.Warnf("CloseOrder rejected by gateway: out_trade_no=%s, status=%d, body=%s",
			order.OutTradeNo, result.StatusCode, result.Body)
		return constants.ReconcileResultError
	}

	updated, err := uc.orders.MarkTradeState(ctx, order.OutTradeNo, order.TradeState, constants.TradeStateClosed, nil)
	if err != nil {
		uc.log.Errorf("Mark order closed failed: out_trade_no=%s, error=%v", order.OutTradeNo, err)
		return constants.ReconcileResultError
	}
	if !updated {
		// CAS 未命中：扫描后回调已先行入账，关单让位于支付成功
		uc.log.Infof("Close order CAS lost: out_trade_no=%s, scanned_state=%s", order.OutTradeNo, order.TradeState)
		return constants.ReconcileResultSkipped
	}
	uc.log.Infof("Stale order closed: out_trade_no=%s", order.OutTradeNo)
	return constants.ReconcileResultClosed
}

// sweepUnfinishedTransfers 撤销超期未完结的提现转账
// 宽限期内的转账不碰，可能仍在网关侧流转
func (uc *ReconcileUseCase) sweepUnfinishedTransfers(ctx context.Context, stats *SweepStats) {
	cutoff := time.Now().Add(-uc.cfg.GraceWindowDuration())
	transfers, err := uc.withdrawals.ListUnfinished(ctx, cutoff)
	if err != nil {
		uc.log.Errorf("ListUnfinished failed: error=%v", err)
		return
	}
	stats.TransfersScanned = len(transfers)

	for _, w := range transfers {
		result := uc.cancelOneTransfer(ctx, w)
		if uc.metrics != nil {
			uc.metrics.SweepTransferTotal.WithLabelValues(result).Inc()
		}
		switch result {
		case constants.ReconcileResultCancelled:
			stats.TransfersCancel++
		case constants.ReconcileResultSkipped:
			stats.TransferSkipped++
		default:
			stats.TransferErrors++
		}
	}
}

// cancelOneTransfer 撤销单笔转账：网关撤销成功后本地完结并回补资金池
func (uc *ReconcileUseCase) cancelOneTransfer(ctx context.Context, w *Withdrawal) string {
	callCtx, cancel := context.WithTimeout(ctx, uc.cfg.GatewayTimeoutDuration())
	defer cancel()

	result, err := uc.gateway.CancelTransfer(callCtx, w.OrderID)
	if err != nil {
		uc.log.Errorf("CancelTransfer gateway call failed: order_id=%s, error=%v", w.OrderID, err)
		return constants.ReconcileResultError
	}
	if !result.OK() {
		uc.log.Warnf("CancelTransfer rejected by gateway: order_id=%s, status=%d, body=%s",
			w.OrderID, result.StatusCode, result.Body)
		return constants.ReconcileResultError
	}

	outcome, err := uc.withdrawals.FinishTransfer(ctx, w.OrderID, constants.TransferStateCancelled, nil)
	if err != nil {
		uc.log.Errorf("FinishTransfer failed: order_id=%s, error=%v", w.OrderID, err)
		return constants.ReconcileResultError
	}
	if outcome.Duplicate {
		// 回调已先行完结，撤销让位
		uc.log.Infof("Cancel transfer CAS lost: order_id=%s, state=%s", w.OrderID, outcome.State)
		return constants.ReconcileResultSkipped
	}
	if uc.metrics != nil {
		uc.metrics.TransferFinishTotal.WithLabelValues(constants.TransferStateCancelled).Inc()
		if outcome.Refunded {
			uc.metrics.TransferRefundTotal.Inc()
		}
	}
	uc.log.Infof("Unfinished transfer cancelled: order_id=%s, refunded=%v", w.OrderID, outcome.Refunded)
	return constants.ReconcileResultCancelled
}
