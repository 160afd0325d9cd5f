package service

import (
	"context"
	"time"

	"prepaid-el-service/internal/biz"
	"prepaid-el-service/internal/constants"

	prepaidErrors "prepaid-el-service/internal/errors"

	pkgErrors "github.com/gaoyong06/go-pkg/errors"
	"github.com/go-kratos/kratos/v2/log"
	"github.com/shopspring/decimal"
)

// PrepaidService 面向物业后台/租客端的预付费服务
type PrepaidService struct {
	meterUC    *biz.MeterUseCase
	orderUC    *biz.RechargeOrderUseCase
	withdrawUC *biz.WithdrawalUseCase
	poolUC     *biz.FundPoolUseCase
	log        *log.Helper
}

// NewPrepaidService 创建 PrepaidService
func NewPrepaidService(
	meterUC *biz.MeterUseCase,
	orderUC *biz.RechargeOrderUseCase,
	withdrawUC *biz.WithdrawalUseCase,
	poolUC *biz.FundPoolUseCase,
	logger log.Logger,
) *PrepaidService {
	return &PrepaidService{
		meterUC:    meterUC,
		orderUC:    orderUC,
		withdrawUC: withdrawUC,
		poolUC:     poolUC,
		log:        log.NewHelper(logger),
	}
}

// GetMeterRequest 查询电表请求
type GetMeterRequest struct {
	MeterID string `json:"meter_id"`
}

// MeterReply 电表信息
// 余额对外只展示 2 位小数，内部高精度余额不出服务
type MeterReply struct {
	MeterID      string     `json:"meter_id"`
	OrgID        string     `json:"org_id"`
	DeviceID     string     `json:"device_id,omitempty"`
	Surplus      string     `json:"surplus"`
	SurplusState string     `json:"surplus_state"`
	UsedEl       float64    `json:"used_el"`
	SettleTime   *time.Time `json:"settle_time,omitempty"`
	Retired      bool       `json:"retired"`
	DelDeviceKey string     `json:"del_device_key,omitempty"`
}

// GetMeter 查询电表
func (s *PrepaidService) GetMeter(ctx context.Context, req *GetMeterRequest) (*MeterReply, error) {
	m, err := s.meterUC.GetMeter(ctx, req.MeterID)
	if err != nil {
		return nil, err
	}
	if m == nil {
		return nil, pkgErrors.NewBizErrorWithLang(ctx, prepaidErrors.ErrCodeMeterNotFound)
	}

	identity := m.Identity()
	reply := &MeterReply{
		MeterID:      m.MeterID,
		OrgID:        m.OrgID,
		Surplus:      biz.Quote(m.Surplus).StringFixed(biz.QuoteScale),
		SurplusState: m.SurplusState,
		UsedEl:       m.UsedEl,
		SettleTime:   m.SettleTime,
		Retired:      identity.Retired,
	}
	if identity.Retired {
		reply.DelDeviceKey = identity.Key
	} else {
		reply.DeviceID = identity.DeviceID
	}
	return reply, nil
}

// OfflineRechargeRequest 线下充值请求
type OfflineRechargeRequest struct {
	MeterID string `json:"meter_id"`
	UserID  string `json:"user_id"`
	OrderID string `json:"order_id"`
	Amount  string `json:"amount"`
	Remark  string `json:"remark"`
}

// CreditReply 充值入账结果
type CreditReply struct {
	Duplicate bool   `json:"duplicate"`
	Surplus   string `json:"surplus,omitempty"`
	State     string `json:"state,omitempty"`
}

// OfflineRecharge 线下充值（不经支付网关，不计入组织收益）
func (s *PrepaidService) OfflineRecharge(ctx context.Context, req *OfflineRechargeRequest) (*CreditReply, error) {
	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		return nil, pkgErrors.NewBizErrorWithLang(ctx, prepaidErrors.ErrCodeRechargeAmountInvalid)
	}

	outcome, err := s.meterUC.OfflineRecharge(ctx, &biz.OfflineCredit{
		MeterID: req.MeterID,
		UserID:  req.UserID,
		OrderID: req.OrderID,
		Amount:  amount,
		Remark:  req.Remark,
	})
	if err != nil {
		return nil, err
	}
	reply := &CreditReply{Duplicate: outcome.Duplicate}
	if !outcome.Duplicate {
		reply.Surplus = biz.Quote(outcome.NewSurplus).StringFixed(biz.QuoteScale)
		reply.State = outcome.NewState
	}
	return reply, nil
}

// DeleteMeterRequest 删除电表请求
type DeleteMeterRequest struct {
	MeterID    string `json:"meter_id"`
	DeviceKey  string `json:"device_key"`
	DeviceInfo string `json:"device_info"`
}

// DeleteMeterReply 删除电表结果
type DeleteMeterReply struct {
	MeterID string `json:"meter_id"`
}

// DeleteMeter 删除电表（软删除，保留资金流水）
func (s *PrepaidService) DeleteMeter(ctx context.Context, req *DeleteMeterRequest) (*DeleteMeterReply, error) {
	if err := s.meterUC.DeleteMeter(ctx, req.MeterID, req.DeviceKey, req.DeviceInfo); err != nil {
		return nil, err
	}
	return &DeleteMeterReply{MeterID: req.MeterID}, nil
}

// CreateRechargeOrderRequest 创建充值订单请求
type CreateRechargeOrderRequest struct {
	UserID    string `json:"user_id"`
	MeterID   string `json:"meter_id"`
	Amount    string `json:"amount"`
	TradeType string `json:"trade_type"`
}

// CreateRechargeOrderReply 创建充值订单结果
type CreateRechargeOrderReply struct {
	OutTradeNo string `json:"out_trade_no"`
}

// CreateRechargeOrder 创建线上充值订单（PENDING 态，等网关回调推进）
func (s *PrepaidService) CreateRechargeOrder(ctx context.Context, req *CreateRechargeOrderRequest) (*CreateRechargeOrderReply, error) {
	amount, err := decimal.NewFromString(req.Amount)
	if err != nil || !amount.IsPositive() {
		return nil, pkgErrors.NewBizErrorWithLang(ctx, prepaidErrors.ErrCodeRechargeAmountInvalid)
	}

	tradeType := req.TradeType
	if tradeType == "" {
		tradeType = constants.TradeTypeJSAPI
	}
	meterID := req.MeterID
	order := &biz.RechargeOrder{
		UserID:      req.UserID,
		MeterID:     &meterID,
		TradeType:   tradeType,
		PaymentType: constants.PaymentTypeWechat,
		Amount:      amount,
	}
	if err := s.orderUC.CreateOrder(ctx, order); err != nil {
		return nil, err
	}
	return &CreateRechargeOrderReply{OutTradeNo: order.OutTradeNo}, nil
}

// CreateWithdrawalRequest 发起提现请求
type CreateWithdrawalRequest struct {
	OrgID  string `json:"org_id"`
	UserID string `json:"user_id"`
	Amount string `json:"amount"`
}

// CreateWithdrawalReply 发起提现结果
type CreateWithdrawalReply struct {
	OrderID string `json:"order_id"`
}

// CreateWithdrawal 发起提现（资金池预占）
func (s *PrepaidService) CreateWithdrawal(ctx context.Context, req *CreateWithdrawalRequest) (*CreateWithdrawalReply, error) {
	amount, err := decimal.NewFromString(req.Amount)
	if err != nil || !amount.IsPositive() {
		return nil, pkgErrors.NewBizErrorWithLang(ctx, prepaidErrors.ErrCodeRechargeAmountInvalid)
	}

	w := &biz.Withdrawal{
		OrgID:  req.OrgID,
		UserID: req.UserID,
		Amount: amount,
	}
	if err := s.withdrawUC.CreateWithdrawal(ctx, w); err != nil {
		return nil, err
	}
	return &CreateWithdrawalReply{OrderID: w.OrderID}, nil
}

// GetFundPoolRequest 查询资金池请求
type GetFundPoolRequest struct {
	OrgID string `json:"org_id"`
}

// FundPoolReply 资金池信息
type FundPoolReply struct {
	OrgID           string `json:"org_id"`
	RechargeAmount  string `json:"recharge_amount"`
	SumFee          string `json:"sum_fee"`
	WithdrawnAmount string `json:"withdrawn_amount"`
	AvailableCash   string `json:"available_cash"`
}

// GetFundPool 查询组织资金池
func (s *PrepaidService) GetFundPool(ctx context.Context, req *GetFundPoolRequest) (*FundPoolReply, error) {
	pool, err := s.poolUC.GetFundPool(ctx, req.OrgID)
	if err != nil {
		return nil, err
	}
	return &FundPoolReply{
		OrgID:           pool.OrgID,
		RechargeAmount:  pool.RechargeAmount.StringFixed(biz.QuoteScale),
		SumFee:          pool.SumFee.StringFixed(biz.QuoteScale),
		WithdrawnAmount: pool.WithdrawnAmount.StringFixed(biz.QuoteScale),
		AvailableCash:   pool.AvailableCash().StringFixed(biz.QuoteScale),
	}, nil
}
