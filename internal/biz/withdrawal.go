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

// Withdrawal 组织提现单领域对象
type Withdrawal struct {
	OrderID        string          // 提现单号（对外可见）
	OrgID          string          // 提现组织
	UserID         string          // 发起提现的用户
	Amount         decimal.Decimal // 提现金额(元)
	Surplus        decimal.Decimal // 发起时资金池可用余额快照(元)
	TransferBillNo *string         // 支付渠道转账单号
	State          string          // 转账状态
	IsFinished     bool            // 是否完结（只翻转一次）
	CreateTime     time.Time
	UpdateTime     time.Time
}

// transferTransition 单个转账状态的流转规则
type transferTransition struct {
	// next 允许流转到的后继状态
	next map[string]bool
	// finished 进入该状态即视为完结
	finished bool
	// refund 完结时是否回补资金池（钱没转出去）
	refund bool
}

// transferTransitions 转账状态机流转表
// 完结态（SUCCESS/FAIL/CANCELLED）无后继，FAIL/CANCELLED 完结时回补资金池
var transferTransitions = map[string]transferTransition{
	constants.TransferStateAccepted: {
		next: map[string]bool{
			constants.TransferStateWaitUserConfirm: true,
			constants.TransferStateTransfering:     true,
			constants.TransferStateSuccess:         true,
			constants.TransferStateFail:            true,
			constants.TransferStateCancelled:       true,
		},
	},
	constants.TransferStateWaitUserConfirm: {
		next: map[string]bool{
			constants.TransferStateTransfering: true,
			constants.TransferStateSuccess:     true,
			constants.TransferStateFail:        true,
			constants.TransferStateCancelled:   true,
		},
	},
	constants.TransferStateTransfering: {
		next: map[string]bool{
			constants.TransferStateSuccess:   true,
			constants.TransferStateFail:      true,
			constants.TransferStateCancelled: true,
		},
	},
	constants.TransferStateSuccess:   {finished: true},
	constants.TransferStateFail:      {finished: true, refund: true},
	constants.TransferStateCancelled: {finished: true, refund: true},
}

// IsFinishedTransferState 转账状态是否为完结态
func IsFinishedTransferState(state string) bool {
	return transferTransitions[state].finished
}

// TransferRefundsPool 完结态是否需要回补资金池
func TransferRefundsPool(state string) bool {
	return transferTransitions[state].refund
}

// CanTransferTransition 转账状态是否允许从 oldState 流转到 newState
func CanTransferTransition(oldState, newState string) bool {
	return transferTransitions[oldState].next[newState]
}

// FinishOutcome 提现单完结结果
type FinishOutcome struct {
	// Duplicate 幂等命中：提现单早已完结
	Duplicate bool
	State     string
	// Refunded 本次完结回补了资金池
	Refunded bool
}

// WithdrawalRepo 提现单数据层接口（定义在 biz 层）
type WithdrawalRepo interface {
	CreateWithdrawal(ctx context.Context, w *Withdrawal) error
	GetWithdrawal(ctx context.Context, orderID string) (*Withdrawal, error)
	// UpdateTransferState 中间态流转（CAS）：仅当存量状态仍为 oldState 时生效
	UpdateTransferState(ctx context.Context, orderID, oldState, newState string, billNo *string) (bool, error)
	// FinishTransfer 完结事务：以 is_finished=false 为条件置终态并翻转完结位，
	// FAIL/CANCELLED 同事务回补组织资金池的已提现金额；重复完结命中幂等返回 Duplicate
	FinishTransfer(ctx context.Context, orderID, finalState string, billNo *string) (*FinishOutcome, error)
	// ListUnfinished 查询发起时间早于 before、仍未完结的提现单
	ListUnfinished(ctx context.Context, before time.Time) ([]*Withdrawal, error)
}

// WithdrawalUseCase 提现业务逻辑
type WithdrawalUseCase struct {
	repo    WithdrawalRepo
	log     *log.Helper
	metrics *metrics.PrepaidMetrics
}

// NewWithdrawalUseCase 创建提现 UseCase
func NewWithdrawalUseCase(repo WithdrawalRepo, logger log.Logger) *WithdrawalUseCase {
	return &WithdrawalUseCase{
		repo:    repo,
		log:     log.NewHelper(logger),
		metrics: metrics.GetMetrics(),
	}
}

// CreateWithdrawal 发起提现
// 资金池余额在发起时预占，数据层以余额条件保证不透支
func (uc *WithdrawalUseCase) CreateWithdrawal(ctx context.Context, w *Withdrawal) error {
	if err := uc.repo.CreateWithdrawal(ctx, w); err != nil {
		uc.log.Errorf("CreateWithdrawal failed: org_id=%s, amount=%s, error=%v", w.OrgID, w.Amount, err)
		return err
	}
	uc.log.Infof("Withdrawal created: order_id=%s, org_id=%s, amount=%s", w.OrderID, w.OrgID, w.Amount)
	return nil
}

// TransferNotify 支付网关转账回调载荷
type TransferNotify struct {
	OrderID        string
	State          string
	TransferBillNo string
}

// HandleTransferNotify 处理转账状态回调（幂等）
// 终态走完结事务（失败/撤销同事务回补资金池），中间态做 CAS 流转
func (uc *WithdrawalUseCase) HandleTransferNotify(ctx context.Context, notify *TransferNotify) (*FinishOutcome, error) {
	if _, ok := transferTransitions[notify.State]; !ok {
		return nil, pkgErrors.NewBizErrorWithLang(ctx, prepaidErrors.ErrCodeInvalidTransferState)
	}

	w, err := uc.repo.GetWithdrawal(ctx, notify.OrderID)
	if err != nil {
		return nil, err
	}
	if w == nil {
		return nil, pkgErrors.NewBizErrorWithLang(ctx, prepaidErrors.ErrCodeWithdrawalNotFound)
	}
	if w.IsFinished {
		// 完结位只翻转一次，迟到回调全部吸收
		uc.log.Infof("Withdrawal already finished: order_id=%s, state=%s", notify.OrderID, w.State)
		return &FinishOutcome{Duplicate: true, State: w.State}, nil
	}
	if !CanTransferTransition(w.State, notify.State) {
		uc.log.Warnf("Transfer transition rejected: order_id=%s, old=%s, new=%s",
			notify.OrderID, w.State, notify.State)
		return nil, pkgErrors.NewBizErrorWithLang(ctx, prepaidErrors.ErrCodeInvalidTransferTransition)
	}

	var billNo *string
	if notify.TransferBillNo != "" {
		billNo = &notify.TransferBillNo
	}

	if IsFinishedTransferState(notify.State) {
		outcome, err := uc.repo.FinishTransfer(ctx, notify.OrderID, notify.State, billNo)
		if err != nil {
			uc.log.Errorf("FinishTransfer failed: order_id=%s, state=%s, error=%v", notify.OrderID, notify.State, err)
			return nil, pkgErrors.WrapErrorWithLang(ctx, err, prepaidErrors.ErrCodeWithdrawalFinishFailed)
		}
		if !outcome.Duplicate && uc.metrics != nil {
			uc.metrics.TransferFinishTotal.WithLabelValues(notify.State).Inc()
			if outcome.Refunded {
				uc.metrics.TransferRefundTotal.Inc()
			}
		}
		uc.log.Infof("Withdrawal finished: order_id=%s, state=%s, refunded=%v",
			notify.OrderID, notify.State, outcome.Refunded)
		return outcome, nil
	}

	updated, err := uc.repo.UpdateTransferState(ctx, notify.OrderID, w.State, notify.State, billNo)
	if err != nil {
		return nil, err
	}
	if !updated {
		uc.log.Infof("Transfer state CAS lost: order_id=%s, old=%s, new=%s",
			notify.OrderID, w.State, notify.State)
	}
	return &FinishOutcome{Duplicate: !updated, State: notify.State}, nil
}
