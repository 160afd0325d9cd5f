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
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// rechargeOrderRepo 实现 biz.RechargeOrderRepo 接口
type rechargeOrderRepo struct {
	data *Data
	log  *log.Helper
}

// NewRechargeOrderRepo 创建充值订单 repo
func NewRechargeOrderRepo(data *Data, logger log.Logger) biz.RechargeOrderRepo {
	return &rechargeOrderRepo{
		data: data,
		log:  log.NewHelper(logger),
	}
}

// toBizRechargeOrder 数据模型转领域对象
func toBizRechargeOrder(o *model.RechargeOrder) *biz.RechargeOrder {
	return &biz.RechargeOrder{
		OutTradeNo:  o.OutTradeNo,
		UserID:      o.UserID,
		MeterID:     o.MeterID,
		OrgID:       o.OrgID,
		TradeState:  o.TradeState,
		TradeType:   o.TradeType,
		PaymentType: o.PaymentType,
		Amount:      o.Amount,
		PayTime:     o.PayTime,
		CreateTime:  o.CreateTime,
		UpdateTime:  o.UpdateTime,
	}
}

// CreateRechargeOrder 创建充值订单
func (r *rechargeOrderRepo) CreateRechargeOrder(ctx context.Context, order *biz.RechargeOrder) error {
	if order.OutTradeNo == "" {
		order.OutTradeNo = constants.OrderIDPrefixRecharge + uuid.New().String()[:24]
	}
	// 下单时落组织快照，电表删除断开外键后资金仍能对账到组织
	if order.OrgID == "" && order.MeterID != nil {
		var m model.PrepaidElMeter
		if err := r.data.db.WithContext(ctx).Select("org_id").
			Where("meter_id = ?", *order.MeterID).First(&m).Error; err == nil {
			order.OrgID = m.OrgID
		}
	}
	record := model.RechargeOrder{
		OutTradeNo:  order.OutTradeNo,
		UserID:      order.UserID,
		MeterID:     order.MeterID,
		OrgID:       order.OrgID,
		TradeState:  constants.TradeStatePending,
		TradeType:   order.TradeType,
		PaymentType: order.PaymentType,
		Amount:      order.Amount,
	}
	if err := r.data.db.WithContext(ctx).Create(&record).Error; err != nil {
		return pkgErrors.WrapErrorWithLang(ctx, err, prepaidErrors.ErrCodeRechargeOrderCreateFailed)
	}
	return nil
}

// GetRechargeOrder 按商户订单号查询
func (r *rechargeOrderRepo) GetRechargeOrder(ctx context.Context, outTradeNo string) (*biz.RechargeOrder, error) {
	var o model.RechargeOrder
	err := r.data.db.WithContext(ctx).Where("out_trade_no = ?", outTradeNo).First(&o).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, pkgErrors.WrapErrorWithLang(ctx, err, pkgErrors.ErrCodeDatabaseError)
	}
	return toBizRechargeOrder(&o), nil
}

// CreditFromGateway 首次 SUCCESS 回调的入账事务
// 订单置 SUCCESS、电表加余额、追加充值记录、资金池累计收益在同一事务内提交；
// 以订单状态的条件更新做幂等闸门，重复回调在第一步就被挡下
func (r *rechargeOrderRepo) CreditFromGateway(ctx context.Context, notify *biz.RechargeNotify) (*biz.CreditOutcome, error) {
	outcome := &biz.CreditOutcome{}
	var meterID string

	err := r.data.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var order model.RechargeOrder
		if err := tx.Where("out_trade_no = ?", notify.OutTradeNo).First(&order).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgErrors.NewBizErrorWithLang(ctx, prepaidErrors.ErrCodeRechargeOrderNotFound)
			}
			return err
		}

		if biz.IsTerminalTradeState(order.TradeState) {
			// 已入账或已关闭：幂等吸收，什么都不做
			if order.TradeState != constants.TradeStateSuccess {
				r.log.Warnf("Success notify on terminal order: out_trade_no=%s, state=%s",
					notify.OutTradeNo, order.TradeState)
			}
			outcome.Duplicate = true
			return nil
		}

		// 幂等闸门：只有仍处于扫描到的状态才允许置 SUCCESS
		payTime := notify.PayTime
		result := tx.Model(&model.RechargeOrder{}).
			Where("out_trade_no = ? AND trade_state = ?", order.OutTradeNo, order.TradeState).
			Updates(map[string]interface{}{
				"trade_state": constants.TradeStateSuccess,
				"pay_time":    payTime,
			})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			// 并发回调抢先提交
			outcome.Duplicate = true
			return nil
		}

		// 手续费从到账金额中扣除，收益按实际到账累计
		fee := decimal.Zero
		if notify.Fee != nil {
			fee = *notify.Fee
		}
		realAmount := notify.PaidAmount.Sub(fee)

		// 电表在订单创建后可能被删除：余额不再加表，但充值记录和资金池
		// 照常入账，组织取订单上的下单快照
		orgID := order.OrgID
		recordMeterID := ""
		recordSurplus := decimal.Zero
		if order.MeterID != nil {
			recordMeterID = *order.MeterID
			var m model.PrepaidElMeter
			if err := tx.Where("meter_id = ? AND is_deleted = ?", *order.MeterID, false).First(&m).Error; err != nil {
				if !errors.Is(err, gorm.ErrRecordNotFound) {
					return err
				}
			} else {
				meterID = m.MeterID
				orgID = m.OrgID
				newSurplus := m.Surplus.Add(notify.PaidAmount)
				newState := biz.ClassifySurplus(newSurplus, m.WaringAmount)
				if err := tx.Model(&model.PrepaidElMeter{}).
					Where("meter_id = ?", m.MeterID).
					Updates(map[string]interface{}{
						"surplus":         newSurplus,
						"surplus_state":   newState,
						"recharge_amount": gorm.Expr("recharge_amount + ?", notify.PaidAmount),
						"real_amount":     gorm.Expr("real_amount + ?", realAmount),
					}).Error; err != nil {
					return pkgErrors.WrapErrorWithLang(ctx, err, prepaidErrors.ErrCodeMeterUpdateFailed)
				}
				if err := createTransitionEvents(tx, m.MeterID, m.DeviceID, m.SurplusState, newState); err != nil {
					return pkgErrors.WrapErrorWithLang(ctx, err, prepaidErrors.ErrCodeEventRecordCreateFailed)
				}

				recordSurplus = newSurplus
				outcome.NewSurplus = newSurplus
				outcome.OldState = m.SurplusState
				outcome.NewState = newState
			}
		}

		// 每笔成功充值必落一条记录，电表已删除时只留资金轨迹
		record := model.RechargeRecord{
			RechargeRecordID: uuid.New().String(),
			UserID:           order.UserID,
			MeterID:          recordMeterID,
			OrderID:          order.OutTradeNo,
			PaymentType:      order.PaymentType,
			Surplus:          recordSurplus,
			Amount:           notify.PaidAmount,
			RealAmount:       &realAmount,
			Fee:              notify.Fee,
			PrepayID:         notify.PrepayID,
			IsRevenue:        true,
		}
		if err := tx.Create(&record).Error; err != nil {
			return pkgErrors.WrapErrorWithLang(ctx, err, prepaidErrors.ErrCodeRechargeRecordCreateFailed)
		}

		if orgID == "" {
			// 老订单无组织快照且电表已不在：资金无处对账，留日志等人工处理
			r.log.Warnf("Recharge credited without org: out_trade_no=%s, amount=%s",
				order.OutTradeNo, notify.PaidAmount)
			return nil
		}

		// 资金池累计收益（组织不存在时初始化一行）
		pool := model.PrepaidOrgCfg{OrgID: orgID}
		if err := tx.Where("org_id = ?", orgID).FirstOrCreate(&pool).Error; err != nil {
			return pkgErrors.WrapErrorWithLang(ctx, err, prepaidErrors.ErrCodeFundPoolUpdateFailed)
		}
		if err := tx.Model(&model.PrepaidOrgCfg{}).
			Where("org_id = ?", orgID).
			Updates(map[string]interface{}{
				"recharge_amount": gorm.Expr("recharge_amount + ?", realAmount),
				"sum_fee":         gorm.Expr("sum_fee + ?", fee),
			}).Error; err != nil {
			return pkgErrors.WrapErrorWithLang(ctx, err, prepaidErrors.ErrCodeFundPoolUpdateFailed)
		}
		outcome.OrgID = orgID
		return nil
	})
	if err != nil {
		return nil, err
	}

	if !outcome.Duplicate && meterID != "" {
		r.data.cacheSurplus(r.log, meterID, outcome.NewSurplus.String())
	}
	return outcome, nil
}

// MarkTradeState 条件更新订单状态（CAS）
func (r *rechargeOrderRepo) MarkTradeState(ctx context.Context, outTradeNo, oldState, newState string, payTime *time.Time) (bool, error) {
	updates := map[string]interface{}{"trade_state": newState}
	if payTime != nil {
		updates["pay_time"] = *payTime
	}
	result := r.data.db.WithContext(ctx).Model(&model.RechargeOrder{}).
		Where("out_trade_no = ? AND trade_state = ?", outTradeNo, oldState).
		Updates(updates)
	if result.Error != nil {
		return false, pkgErrors.WrapErrorWithLang(ctx, result.Error, pkgErrors.ErrCodeDatabaseError)
	}
	return result.RowsAffected > 0, nil
}

// ListStaleJSAPIOrders 查询创建时间早于 before、仍未支付的 JSAPI 订单
func (r *rechargeOrderRepo) ListStaleJSAPIOrders(ctx context.Context, before time.Time) ([]*biz.RechargeOrder, error) {
	var rows []model.RechargeOrder
	err := r.data.db.WithContext(ctx).
		Where("trade_state IN ? AND trade_type = ? AND create_time <= ?",
			[]string{constants.TradeStatePending, constants.TradeStateNotPay},
			constants.TradeTypeJSAPI, before).
		Order("create_time ASC").
		Find(&rows).Error
	if err != nil {
		return nil, pkgErrors.WrapErrorWithLang(ctx, err, prepaidErrors.ErrCodeSweepListOrdersFailed)
	}

	orders := make([]*biz.RechargeOrder, 0, len(rows))
	for i := range rows {
		orders = append(orders, toBizRechargeOrder(&rows[i]))
	}
	return orders, nil
}
