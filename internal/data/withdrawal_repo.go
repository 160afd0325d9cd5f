package data

import (
	"context"
	"errors"
	"time"

	"prepaid-el-service/internal/biz"
	"prepaid-el-service/internal/constants"
	"prepaid-el-service/internal/data/model"

	prepaidErrors "prepaid-el-service/internal/errors"

	pkgErrors "github.com/gaoyong06/go-pkg/errors"
	"github.com/go-kratos/kratos/v2/log"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// withdrawalRepo 实现 biz.WithdrawalRepo 接口
type withdrawalRepo struct {
	data *Data
	log  *log.Helper
}

// NewWithdrawalRepo 创建提现 repo
func NewWithdrawalRepo(data *Data, logger log.Logger) biz.WithdrawalRepo {
	return &withdrawalRepo{
		data: data,
		log:  log.NewHelper(logger),
	}
}

// toBizWithdrawal 数据模型转领域对象
func toBizWithdrawal(w *model.WithdrawalRecord) *biz.Withdrawal {
	out := &biz.Withdrawal{
		OrderID:        w.OrderID,
		OrgID:          w.OrgID,
		UserID:         w.UserID,
		Amount:         w.Amount,
		Surplus:        w.Surplus,
		TransferBillNo: w.TransferBillNo,
		State:          w.State,
		IsFinished:     w.IsFinished,
		CreateTime:     w.OperatingTime,
	}
	if w.UpdateTime != nil {
		out.UpdateTime = *w.UpdateTime
	}
	return out
}

// CreateWithdrawal 发起提现
// 提现金额在发起时即从资金池预占，以资金池余额为条件的更新保证不会透支
func (r *withdrawalRepo) CreateWithdrawal(ctx context.Context, w *biz.Withdrawal) error {
	if w.OrderID == "" {
		w.OrderID = constants.OrderIDPrefixWithdrawal + uuid.New().String()[:24]
	}

	return r.data.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var pool model.PrepaidOrgCfg
		if err := tx.Where("org_id = ?", w.OrgID).First(&pool).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgErrors.NewBizErrorWithLang(ctx, prepaidErrors.ErrCodeFundPoolNotFound)
			}
			return err
		}

		// 余额条件写进 WHERE，并发提现不会把资金池扣成负数
		result := tx.Model(&model.PrepaidOrgCfg{}).
			Where("org_id = ? AND recharge_amount - withdrawn_amount >= CAST(? AS DECIMAL(15,2))", w.OrgID, w.Amount).
			Update("withdrawn_amount", gorm.Expr("withdrawn_amount + ?", w.Amount))
		if result.Error != nil {
			return pkgErrors.WrapErrorWithLang(ctx, result.Error, prepaidErrors.ErrCodeFundPoolUpdateFailed)
		}
		if result.RowsAffected == 0 {
			return pkgErrors.NewBizErrorWithLang(ctx, prepaidErrors.ErrCodeInsufficientAvailableCash)
		}

		record := model.WithdrawalRecord{
			OrderID: w.OrderID,
			OrgID:   w.OrgID,
			UserID:  w.UserID,
			Amount:  w.Amount,
			Surplus: pool.AvailableCash(),
			State:   constants.TransferStateAccepted,
		}
		if err := tx.Create(&record).Error; err != nil {
			return pkgErrors.WrapErrorWithLang(ctx, err, pkgErrors.ErrCodeDatabaseError)
		}
		return nil
	})
}

// GetWithdrawal 按提现单号查询
func (r *withdrawalRepo) GetWithdrawal(ctx context.Context, orderID string) (*biz.Withdrawal, error) {
	var w model.WithdrawalRecord
	err := r.data.db.WithContext(ctx).Where("order_id = ?", orderID).First(&w).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, pkgErrors.WrapErrorWithLang(ctx, err, pkgErrors.ErrCodeDatabaseError)
	}
	return toBizWithdrawal(&w), nil
}

// UpdateTransferState 中间态流转（CAS）
func (r *withdrawalRepo) UpdateTransferState(ctx context.Context, orderID, oldState, newState string, billNo *string) (bool, error) {
	now := time.Now()
	updates := map[string]interface{}{
		"state":       newState,
		"update_time": now,
	}
	if billNo != nil {
		updates["transfer_bill_no"] = *billNo
	}
	// 已完结的单不允许任何流转
	result := r.data.db.WithContext(ctx).Model(&model.WithdrawalRecord{}).
		Where("order_id = ? AND state = ? AND is_finished = ?", orderID, oldState, false).
		Updates(updates)
	if result.Error != nil {
		return false, pkgErrors.WrapErrorWithLang(ctx, result.Error, pkgErrors.ErrCodeDatabaseError)
	}
	return result.RowsAffected > 0, nil
}

// FinishTransfer 完结事务
// 完结位作为幂等闸门：只有 is_finished=false 的单才能置终态；
// FAIL/CANCELLED 在同一事务内回补资金池的已提现金额
func (r *withdrawalRepo) FinishTransfer(ctx context.Context, orderID, finalState string, billNo *string) (*biz.FinishOutcome, error) {
	if !biz.IsFinishedTransferState(finalState) {
		return nil, pkgErrors.NewBizErrorWithLang(ctx, prepaidErrors.ErrCodeInvalidTransferState)
	}

	outcome := &biz.FinishOutcome{State: finalState}
	err := r.data.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var w model.WithdrawalRecord
		if err := tx.Where("order_id = ?", orderID).First(&w).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgErrors.NewBizErrorWithLang(ctx, prepaidErrors.ErrCodeWithdrawalNotFound)
			}
			return err
		}

		now := time.Now()
		updates := map[string]interface{}{
			"state":       finalState,
			"is_finished": true,
			"update_time": now,
		}
		if billNo != nil {
			updates["transfer_bill_no"] = *billNo
		}
		result := tx.Model(&model.WithdrawalRecord{}).
			Where("order_id = ? AND is_finished = ?", orderID, false).
			Updates(updates)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			// 另一个写入方已先行完结
			outcome.Duplicate = true
			outcome.State = w.State
			return nil
		}

		// 钱没转出去，回到资金池
		if biz.TransferRefundsPool(finalState) {
			if err := tx.Model(&model.PrepaidOrgCfg{}).
				Where("org_id = ?", w.OrgID).
				Update("withdrawn_amount", gorm.Expr("withdrawn_amount - ?", w.Amount)).Error; err != nil {
				return pkgErrors.WrapErrorWithLang(ctx, err, prepaidErrors.ErrCodeFundPoolUpdateFailed)
			}
			outcome.Refunded = true
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return outcome, nil
}

// ListUnfinished 查询发起时间早于 before、仍未完结的提现单
// 宽限期内的新单可能仍在转账途中，交由调用方以 before 划界
func (r *withdrawalRepo) ListUnfinished(ctx context.Context, before time.Time) ([]*biz.Withdrawal, error) {
	var rows []model.WithdrawalRecord
	err := r.data.db.WithContext(ctx).
		Where("is_finished = ? AND operating_time <= ?", false, before).
		Order("operating_time ASC").
		Find(&rows).Error
	if err != nil {
		return nil, pkgErrors.WrapErrorWithLang(ctx, err, prepaidErrors.ErrCodeSweepListTransfersFailed)
	}

	transfers := make([]*biz.Withdrawal, 0, len(rows))
	for i := range rows {
		transfers = append(transfers, toBizWithdrawal(&rows[i]))
	}
	return transfers, nil
}
