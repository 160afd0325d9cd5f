package biz

import (
	"context"
	"time"

	"prepaid-el-service/internal/constants"
	"prepaid-el-service/internal/metrics"

	prepaidErrors "prepaid-el-service/internal/errors"

	pkgErrors "github.com/gaoyong06/go-pkg/errors"
	"github.com/go-kratos/kratos/v2/log"
	"github.com/shopspring/decimal"
)

// RechargeOrder 充值订单领域对象
type RechargeOrder struct {
	OutTradeNo  string          // 商户订单号（对外可见）
	UserID      string          // 充值用户
	MeterID     *string         // 预付费电表，电表删除后为空
	OrgID       string          // 收款组织（下单时快照，电表删除后资金仍可对账）
	TradeState  string          // 订单交易状态
	TradeType   string          // JSAPI/NATIVE/...
	PaymentType string          // wx/zfb/bank
	Amount      decimal.Decimal // 充值金额(元)
	PayTime     *time.Time      // 支付时间
	CreateTime  time.Time
	UpdateTime  time.Time
}

// 订单交易状态集合
var (
	terminalTradeStates = map[string]bool{
		constants.TradeStateSuccess:  true,
		constants.TradeStateClosed:   true,
		constants.TradeStateRevoked:  true,
		constants.TradeStatePayError: true,
		constants.TradeStateRefund:   true,
	}
	knownTradeStates = map[string]bool{
		constants.TradeStatePending:    true,
		constants.TradeStateSuccess:    true,
		constants.TradeStateRefund:     true,
		constants.TradeStateNotPay:     true,
		constants.TradeStateClosed:     true,
		constants.TradeStateRevoked:    true,
		constants.TradeStateUserPaying: true,
		constants.TradeStatePayError:   true,
	}
)

// IsTerminalTradeState 订单是否已到终态
// 终态订单对任何后续回调都只能幂等跳过，不允许再流转
func IsTerminalTradeState(state string) bool {
	return terminalTradeStates[state]
}

// IsKnownTradeState 是否为已知的订单交易状态
func IsKnownTradeState(state string) bool {
	return knownTradeStates[state]
}

// RechargeNotify 支付网关充值回调载荷
type RechargeNotify struct {
	OutTradeNo string
	TradeState string
	PaidAmount decimal.Decimal
	PayTime    time.Time
	PrepayID   string           // 支付渠道返回的支付单号
	Fee        *decimal.Decimal // 支付手续费(元)
}

// RechargeOrderRepo 充值订单数据层接口（定义在 biz 层）
type RechargeOrderRepo interface {
	CreateRechargeOrder(ctx context.Context, order *RechargeOrder) error
	GetRechargeOrder(ctx context.Context, outTradeNo string) (*RechargeOrder, error)
	// CreditFromGateway 首次 SUCCESS 回调的入账事务：
	// 订单置 SUCCESS、电表加余额、追加充值记录、组织资金池累计收益，
	// 整体以订单当前状态作为条件一次提交；重复回调命中幂等返回 Duplicate
	CreditFromGateway(ctx context.Context, notify *RechargeNotify) (*CreditOutcome, error)
	// MarkTradeState 条件更新订单状态（CAS）：仅当存量状态仍为 oldState 时生效，
	// 返回是否真正更新了行
	MarkTradeState(ctx context.Context, outTradeNo, oldState, newState string, payTime *time.Time) (bool, error)
	// ListStaleJSAPIOrders 查询创建时间早于 before、仍处于 PENDING/NOTPAY 的 JSAPI 订单
	ListStaleJSAPIOrders(ctx context.Context, before time.Time) ([]*RechargeOrder, error)
}

// RechargeOrderUseCase 充值订单业务逻辑
type RechargeOrderUseCase struct {
	repo    RechargeOrderRepo
	log     *log.Helper
	metrics *metrics.PrepaidMetrics
}

// NewRechargeOrderUseCase 创建充值订单 UseCase
func NewRechargeOrderUseCase(repo RechargeOrderRepo, logger log.Logger) *RechargeOrderUseCase {
	return &RechargeOrderUseCase{
		repo:    repo,
		log:     log.NewHelper(logger),
		metrics: metrics.GetMetrics(),
	}
}

// CreateOrder 创建充值订单（初始 PENDING，等网关回调推进）
func (uc *RechargeOrderUseCase) CreateOrder(ctx context.Context, order *RechargeOrder) error {
	if !order.Amount.IsPositive() {
		return pkgErrors.NewBizErrorWithLang(ctx, prepaidErrors.ErrCodeRechargeAmountInvalid)
	}
	if err := uc.repo.CreateRechargeOrder(ctx, order); err != nil {
		uc.log.Errorf("CreateRechargeOrder failed: user_id=%s, error=%v", order.UserID, err)
		return err
	}
	uc.log.Infof("Recharge order created: out_trade_no=%s, amount=%s", order.OutTradeNo, order.Amount)
	return nil
}

// CreditFromGateway 处理充值回调（幂等）
// 返回前所有状态流转均已提交，调用方此后才能向网关应答 2xx
func (uc *RechargeOrderUseCase) CreditFromGateway(ctx context.Context, notify *RechargeNotify) (*CreditOutcome, error) {
	if !IsKnownTradeState(notify.TradeState) {
		return nil, pkgErrors.NewBizErrorWithLang(ctx, prepaidErrors.ErrCodeInvalidTradeState)
	}

	if notify.TradeState == constants.TradeStateSuccess {
		outcome, err := uc.repo.CreditFromGateway(ctx, notify)
		if err != nil {
			uc.log.Errorf("CreditFromGateway failed: out_trade_no=%s, error=%v", notify.OutTradeNo, err)
			return nil, pkgErrors.WrapErrorWithLang(ctx, err, prepaidErrors.ErrCodeRechargeCreditFailed)
		}
		if outcome.Duplicate {
			uc.log.Infof("Recharge already processed: out_trade_no=%s", notify.OutTradeNo)
			if uc.metrics != nil {
				uc.metrics.RechargeDupTotal.Inc()
			}
			return outcome, nil
		}
		if uc.metrics != nil {
			uc.metrics.RechargeCreditTotal.WithLabelValues("webhook").Inc()
			amount, _ := notify.PaidAmount.Float64()
			uc.metrics.RechargeCreditAmount.Add(amount)
			if outcome.OldState == constants.SurplusStateArrears && outcome.NewState != constants.SurplusStateArrears {
				uc.metrics.MeterArrearsAlert.WithLabelValues(outcome.OrgID).Dec()
			}
		}
		uc.log.Infof("Recharge credited: out_trade_no=%s, amount=%s, surplus=%s",
			notify.OutTradeNo, notify.PaidAmount, outcome.NewSurplus)
		return outcome, nil
	}

	// 非 SUCCESS 状态：只做状态同步，不入账
	order, err := uc.repo.GetRechargeOrder(ctx, notify.OutTradeNo)
	if err != nil {
		return nil, err
	}
	if order == nil {
		return nil, pkgErrors.NewBizErrorWithLang(ctx, prepaidErrors.ErrCodeRechargeOrderNotFound)
	}
	if IsTerminalTradeState(order.TradeState) {
		// 终态不回退，重复/迟到回调直接跳过
		uc.log.Infof("Recharge order already terminal: out_trade_no=%s, state=%s", notify.OutTradeNo, order.TradeState)
		return &CreditOutcome{Duplicate: true}, nil
	}
	updated, err := uc.repo.MarkTradeState(ctx, notify.OutTradeNo, order.TradeState, notify.TradeState, nil)
	if err != nil {
		return nil, err
	}
	if !updated {
		// CAS 未命中：另一个写入方已先行处理，按成功对待
		uc.log.Infof("Recharge state CAS lost: out_trade_no=%s, old=%s, new=%s",
			notify.OutTradeNo, order.TradeState, notify.TradeState)
	}
	return &CreditOutcome{Duplicate: !updated}, nil
}
