package data

import (
	"context"
	"errors"
	"fmt"
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

// meterRepo 实现 biz.MeterRepo 接口
type meterRepo struct {
	data *Data
	log  *log.Helper
}

// NewMeterRepo 创建电表 repo
func NewMeterRepo(data *Data, logger log.Logger) biz.MeterRepo {
	return &meterRepo{
		data: data,
		log:  log.NewHelper(logger),
	}
}

// toBizMeter 数据模型转领域对象
func toBizMeter(m *model.PrepaidElMeter) *biz.Meter {
	return &biz.Meter{
		MeterID:  m.MeterID,
		OrgID:    m.OrgID,
		DeviceID: m.DeviceID,
		Tariff: biz.Tariff{
			IsTimeOfUse:     m.IsTimeOfUse,
			Price:           m.Price,
			TopPrice:        m.TopPrice,
			OnPeakPrice:     m.OnPeakPrice,
			FlatPrice:       m.FlatPrice,
			ValleyPrice:     m.ValleyPrice,
			DeepValleyPrice: m.DeepValleyPrice,
		},
		WaringAmount: m.WaringAmount,
		TripAmount:   m.TripAmount,
		Surplus:      m.Surplus,
		SurplusState: m.SurplusState,
		SettleTime:   m.SettleTime,
		FirstEpi:     m.FirstEpi,
		UsedEl:       m.UsedEl,
		Watermark: biz.EpiWatermark{
			Epi:           m.LastEpi,
			TopEpi:        m.LastTopEpi,
			OnPeakEpi:     m.LastOnPeakEpi,
			FlatEpi:       m.LastFlatEpi,
			ValleyEpi:     m.LastValleyEpi,
			DeepValleyEpi: m.LastDeepValleyEpi,
		},
		RechargeAmount: m.RechargeAmount,
		RealAmount:     m.RealAmount,
		DelDeviceKey:   m.DelDeviceKey,
		DelDeviceInfo:  m.DelDeviceInfo,
		IsDeleted:      m.IsDeleted,
	}
}

// createTransitionEvents 余额状态跳变时追加事件记录（事务内调用）
func createTransitionEvents(tx *gorm.DB, meterID, deviceID, oldState, newState string) error {
	for _, eventType := range biz.StateTransitionEvents(oldState, newState) {
		event := model.EventRecord{
			EventRecordID: uuid.New().String(),
			MeterID:       meterID,
			DeviceID:      deviceID,
			EventType:     eventType,
		}
		if err := tx.Create(&event).Error; err != nil {
			return err
		}
	}
	return nil
}

// cacheSurplus 事务提交后刷新余额缓存（短超时，失败不影响主流程）
func (d *Data) cacheSurplus(logger *log.Helper, meterID, surplus string) {
	if d.rdb == nil {
		return
	}
	cacheCtx, cacheCancel := context.WithTimeout(context.Background(), 1*time.Second)
	defer cacheCancel()

	key := fmt.Sprintf("%s%s", constants.RedisKeySurplus, meterID)
	if err := d.rdb.Set(cacheCtx, key, surplus, 5*time.Minute).Err(); err != nil {
		logger.Warnf("failed to update surplus cache: meter_id=%s, error=%v", meterID, err)
	}
}

// GetMeter 按电表ID查询
func (r *meterRepo) GetMeter(ctx context.Context, meterID string) (*biz.Meter, error) {
	var m model.PrepaidElMeter
	err := r.data.db.WithContext(ctx).Where("meter_id = ?", meterID).First(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, pkgErrors.WrapErrorWithLang(ctx, err, pkgErrors.ErrCodeDatabaseError)
	}
	return toBizMeter(&m), nil
}

// GetMeterByDevice 按设备ID查询在用电表
func (r *meterRepo) GetMeterByDevice(ctx context.Context, deviceID string) (*biz.Meter, error) {
	var m model.PrepaidElMeter
	err := r.data.db.WithContext(ctx).
		Where("device_id = ? AND is_deleted = ?", deviceID, false).
		First(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, pkgErrors.WrapErrorWithLang(ctx, err, pkgErrors.ErrCodeDatabaseError)
	}
	return toBizMeter(&m), nil
}

// CreateMeter 电表开户
func (r *meterRepo) CreateMeter(ctx context.Context, m *biz.Meter) error {
	meterID := m.MeterID
	if meterID == "" {
		meterID = uuid.New().String()
		m.MeterID = meterID
	}
	record := model.PrepaidElMeter{
		MeterID:  meterID,
		OrgID:    m.OrgID,
		DeviceID: m.DeviceID,
		TariffCfg: model.TariffCfg{
			IsTimeOfUse:     m.Tariff.IsTimeOfUse,
			Price:           m.Tariff.Price,
			TopPrice:        m.Tariff.TopPrice,
			OnPeakPrice:     m.Tariff.OnPeakPrice,
			FlatPrice:       m.Tariff.FlatPrice,
			ValleyPrice:     m.Tariff.ValleyPrice,
			DeepValleyPrice: m.Tariff.DeepValleyPrice,
		},
		WaringAmount: m.WaringAmount,
		TripAmount:   m.TripAmount,
		Surplus:      m.Surplus,
		SurplusState: biz.ClassifySurplus(m.Surplus, m.WaringAmount),
	}
	if err := r.data.db.WithContext(ctx).Create(&record).Error; err != nil {
		return pkgErrors.WrapErrorWithLang(ctx, err, pkgErrors.ErrCodeDatabaseError)
	}
	return nil
}

// OfflineCredit 线下充值入账
// 以充值记录的订单号唯一索引兜底幂等，不计入组织收益
func (r *meterRepo) OfflineCredit(ctx context.Context, credit *biz.OfflineCredit) (*biz.CreditOutcome, error) {
	outcome := &biz.CreditOutcome{}

	err := r.data.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// 幂等检查：该订单号已入账过则直接返回
		var count int64
		if err := tx.Model(&model.RechargeRecord{}).
			Where("order_id = ?", credit.OrderID).Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			outcome.Duplicate = true
			return nil
		}

		var m model.PrepaidElMeter
		if err := tx.Where("meter_id = ? AND is_deleted = ?", credit.MeterID, false).First(&m).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgErrors.NewBizErrorWithLang(ctx, prepaidErrors.ErrCodeMeterNotFound)
			}
			return err
		}

		newSurplus := m.Surplus.Add(credit.Amount)
		newState := biz.ClassifySurplus(newSurplus, m.WaringAmount)

		if err := tx.Model(&model.PrepaidElMeter{}).
			Where("meter_id = ?", m.MeterID).
			Updates(map[string]interface{}{
				"surplus":         newSurplus,
				"surplus_state":   newState,
				"recharge_amount": gorm.Expr("recharge_amount + ?", credit.Amount),
			}).Error; err != nil {
			return pkgErrors.WrapErrorWithLang(ctx, err, prepaidErrors.ErrCodeMeterUpdateFailed)
		}

		record := model.RechargeRecord{
			RechargeRecordID: uuid.New().String(),
			UserID:           credit.UserID,
			MeterID:          m.MeterID,
			OrderID:          credit.OrderID,
			PaymentType:      constants.PaymentTypeOffline,
			Surplus:          newSurplus,
			Amount:           credit.Amount,
			IsRevenue:        false,
			Remark:           credit.Remark,
		}
		if err := tx.Create(&record).Error; err != nil {
			return pkgErrors.WrapErrorWithLang(ctx, err, prepaidErrors.ErrCodeRechargeRecordCreateFailed)
		}

		if err := createTransitionEvents(tx, m.MeterID, m.DeviceID, m.SurplusState, newState); err != nil {
			return pkgErrors.WrapErrorWithLang(ctx, err, prepaidErrors.ErrCodeEventRecordCreateFailed)
		}

		outcome.OrgID = m.OrgID
		outcome.NewSurplus = newSurplus
		outcome.OldState = m.SurplusState
		outcome.NewState = newState
		return nil
	})
	if err != nil {
		return nil, err
	}

	if !outcome.Duplicate {
		r.data.cacheSurplus(r.log, credit.MeterID, outcome.NewSurplus.String())
	}
	return outcome, nil
}

// SoftDeleteMeter 软删除电表
// 冻结删除时的设备标识快照，断开充值订单到电表的外键，资金流水保持不动
func (r *meterRepo) SoftDeleteMeter(ctx context.Context, meterID, deviceKey, deviceInfo string) error {
	return r.data.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&model.PrepaidElMeter{}).
			Where("meter_id = ? AND is_deleted = ?", meterID, false).
			Updates(map[string]interface{}{
				"is_deleted":      true,
				"device_id":       "",
				"del_device_key":  deviceKey,
				"del_device_info": deviceInfo,
			})
		if result.Error != nil {
			return pkgErrors.WrapErrorWithLang(ctx, result.Error, prepaidErrors.ErrCodeMeterUpdateFailed)
		}
		if result.RowsAffected == 0 {
			return pkgErrors.NewBizErrorWithLang(ctx, prepaidErrors.ErrCodeMeterAlreadyDeleted)
		}

		// 断开订单外键，订单本身保留
		if err := tx.Model(&model.RechargeOrder{}).
			Where("meter_id = ?", meterID).
			Update("meter_id", nil).Error; err != nil {
			return pkgErrors.WrapErrorWithLang(ctx, err, pkgErrors.ErrCodeDatabaseError)
		}
		return nil
	})
}

// CreateEventRecord 追加事件记录
func (r *meterRepo) CreateEventRecord(ctx context.Context, meterID, deviceID, eventType string) error {
	event := model.EventRecord{
		EventRecordID: uuid.New().String(),
		MeterID:       meterID,
		DeviceID:      deviceID,
		EventType:     eventType,
	}
	if err := r.data.db.WithContext(ctx).Create(&event).Error; err != nil {
		return pkgErrors.WrapErrorWithLang(ctx, err, prepaidErrors.ErrCodeEventRecordCreateFailed)
	}
	return nil
}
