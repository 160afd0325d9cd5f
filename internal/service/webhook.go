package service

import (
	"context"
	"time"

	"prepaid-el-service/internal/biz"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/shopspring/decimal"
)

// WebhookService 支付网关回调入口
// 签名校验在接入层完成，这里只处理已解密的业务报文；
// 所有状态流转落库之后才应答 SUCCESS，网关收不到应答会按自己的节奏重发
type WebhookService struct {
	orderUC    *biz.RechargeOrderUseCase
	withdrawUC *biz.WithdrawalUseCase
	log        *log.Helper
}

// NewWebhookService 创建 WebhookService
func NewWebhookService(orderUC *biz.RechargeOrderUseCase, withdrawUC *biz.WithdrawalUseCase, logger log.Logger) *WebhookService {
	return &WebhookService{
		orderUC:    orderUC,
		withdrawUC: withdrawUC,
		log:        log.NewHelper(logger),
	}
}

// NotifyReply 回调应答
type NotifyReply struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// RechargeNotifyRequest 充值回调报文
type RechargeNotifyRequest struct {
	OutTradeNo string `json:"out_trade_no"`
	TradeState string `json:"trade_state"`
	// Amount 实付金额(分)
	Amount int64 `json:"amount"`
	// Fee 手续费(分)，没有手续费时为 0
	Fee         int64  `json:"fee"`
	SuccessTime string `json:"success_time"`
	PrepayID    string `json:"prepay_id"`
}

// centsToYuan 分转元
func centsToYuan(cents int64) decimal.Decimal {
	return decimal.NewFromInt(cents).Div(decimal.NewFromInt(100))
}

// RechargeNotify 充值回调
func (s *WebhookService) RechargeNotify(ctx context.Context, req *RechargeNotifyRequest) (*NotifyReply, error) {
	payTime := time.Now()
	if req.SuccessTime != "" {
		if t, err := time.Parse(time.RFC3339, req.SuccessTime); err == nil {
			payTime = t
		}
	}

	notify := &biz.RechargeNotify{
		OutTradeNo: req.OutTradeNo,
		TradeState: req.TradeState,
		PaidAmount: centsToYuan(req.Amount),
		PayTime:    payTime,
		PrepayID:   req.PrepayID,
	}
	if req.Fee > 0 {
		fee := centsToYuan(req.Fee)
		notify.Fee = &fee
	}

	if _, err := s.orderUC.CreditFromGateway(ctx, notify); err != nil {
		s.log.Errorf("RechargeNotify failed: out_trade_no=%s, error=%v", req.OutTradeNo, err)
		return nil, err
	}
	return &NotifyReply{Code: "SUCCESS", Message: "成功"}, nil
}

// TransferNotifyRequest 转账回调报文
type TransferNotifyRequest struct {
	OutBillNo      string `json:"out_bill_no"`
	TransferBillNo string `json:"transfer_bill_no"`
	State          string `json:"state"`
}

// TransferNotify 商家转账回调
func (s *WebhookService) TransferNotify(ctx context.Context, req *TransferNotifyRequest) (*NotifyReply, error) {
	notify := &biz.TransferNotify{
		OrderID:        req.OutBillNo,
		State:          req.State,
		TransferBillNo: req.TransferBillNo,
	}
	if _, err := s.withdrawUC.HandleTransferNotify(ctx, notify); err != nil {
		s.log.Errorf("TransferNotify failed: out_bill_no=%s, state=%s, error=%v", req.OutBillNo, req.State, err)
		return nil, err
	}
	return &NotifyReply{Code: "SUCCESS", Message: "成功"}, nil
}
