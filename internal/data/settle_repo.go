package data

import (
	"context"
	"errors"
	"fmt"
	"time"

	"prepaid-el-service/internal/biz"
	"prepaid-el-service/internal/constants"
	"prepaid-el-service/internal/data/model"
	"prepaid-el-service/internal/metrics"

	prepaidErrors "prepaid-el-service/internal/errors"

	pkgErrors "github.com/gaoyong06/go-pkg/errors"
	"github.com/go-kratos/kratos/v2/log"
	"github.com/go-redsync/redsync/v4"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// settleRepo 实现 biz.SettleRepo 接口
type settleRepo struct {
	data    *Data
	log     *log.Helper
	sync    *redsync.Redsync
	metrics *metrics.PrepaidMetrics
}

// NewSettleRepo 创建结算 repo
func NewSettleRepo(data *Data, sync *redsync.Redsync, logger log.Logger) biz.SettleRepo {
	return &settleRepo{
		data:    data,
		log:     log.NewHelper(logger),
		sync:    sync,
		metrics: metrics.GetMetrics(),
	}
}

// SettleMeterRead 抄表结算（事务）
// 按电表加分布式锁保证同表串行，水位读取与落库在同一事务内
func (r *settleRepo) SettleMeterRead(ctx context.Context, reading *biz.SettleReading) (*biz.SettleOutcome, error) {
	// 先定位电表，拿到锁 key
	m, err := r.findMeter(ctx, reading)
	if err != nil {
		return nil, err
	}
	if m == nil {
		return nil, pkgErrors.NewBizErrorWithLang(ctx, prepaidErrors.ErrCodeMeterNotFound)
	}

	if r.sync != nil {
		lockKey := fmt.Sprintf("%s%s", constants.RedisKeySettleLock, m.MeterID)
		lockStartTime := time.Now()
		mutex := r.sync.NewMutex(lockKey, redsync.WithExpiry(10*time.Second))
		if err := mutex.Lock(); err != nil {
			r.log.Errorf("Failed to acquire settle lock: meter_id=%s, error=%v", m.MeterID, err)
			if r.metrics != nil {
				r.metrics.LockAcquireTotal.WithLabelValues("failed").Inc()
				r.metrics.LockAcquireDuration.Observe(time.Since(lockStartTime).Seconds())
			}
			return nil, pkgErrors.NewBizErrorWithLang(ctx, prepaidErrors.ErrCodeSettleLockFailed)
		}
		if r.metrics != nil {
			r.metrics.LockAcquireTotal.WithLabelValues("success").Inc()
			r.metrics.LockAcquireDuration.Observe(time.Since(lockStartTime).Seconds())
		}
		defer func() {
			if ok, err := mutex.Unlock(); !ok || err != nil {
				r.log.Warnf("Failed to unlock settle lock: meter_id=%s, error=%v", m.MeterID, err)
			}
		}()
	}

	outcome := &biz.SettleOutcome{}
	err = r.data.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// 锁内重读，水位以事务内的行为准
		var row model.PrepaidElMeter
		if err := tx.Where("meter_id = ? AND is_deleted = ?", m.MeterID, false).First(&row).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgErrors.NewBizErrorWithLang(ctx, prepaidErrors.ErrCodeMeterNotFound)
			}
			return err
		}
		meter := toBizMeter(&row)

		settlement, err := biz.BuildSettlement(meter, reading)
		if err != nil {
			// 哨兵错误原样上抛，水位不动
			return err
		}

		if settlement.Baseline {
			return r.applyBaseline(ctx, tx, &row, reading, outcome)
		}
		return r.applySettlement(ctx, tx, &row, reading, settlement, outcome)
	})
	if err != nil {
		return nil, err
	}

	if !outcome.Baseline {
		r.data.cacheSurplus(r.log, m.MeterID, outcome.NewSurplus.String())
	}
	return outcome, nil
}

// findMeter 按电表ID或设备ID定位电表
func (r *settleRepo) findMeter(ctx context.Context, reading *biz.SettleReading) (*biz.Meter, error) {
	var m model.PrepaidElMeter
	query := r.data.db.WithContext(ctx).Where("is_deleted = ?", false)
	if reading.MeterID != "" {
		query = query.Where("meter_id = ?", reading.MeterID)
	} else {
		query = query.Where("device_id = ?", reading.DeviceID)
	}
	err := query.First(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, pkgErrors.WrapErrorWithLang(ctx, err, pkgErrors.ErrCodeDatabaseError)
	}
	reading.MeterID = m.MeterID
	return toBizMeter(&m), nil
}

// watermarkUpdates 以本次抄表值推进码值水位
// 设备未上报的档位保持原水位
func watermarkUpdates(reading *biz.SettleReading) map[string]interface{} {
	updates := map[string]interface{}{
		"last_epi":    reading.Epi,
		"settle_time": reading.Timestamp,
	}
	if reading.TopEpi != nil {
		updates["last_top_epi"] = *reading.TopEpi
	}
	if reading.OnPeakEpi != nil {
		updates["last_on_peak_epi"] = *reading.OnPeakEpi
	}
	if reading.FlatEpi != nil {
		updates["last_flat_epi"] = *reading.FlatEpi
	}
	if reading.ValleyEpi != nil {
		updates["last_valley_epi"] = *reading.ValleyEpi
	}
	if reading.DeepValleyEpi != nil {
		updates["last_deep_valley_epi"] = *reading.DeepValleyEpi
	}
	return updates
}

// applyBaseline 首次抄表只建立水位，不扣费
func (r *settleRepo) applyBaseline(ctx context.Context, tx *gorm.DB, row *model.PrepaidElMeter, reading *biz.SettleReading, outcome *biz.SettleOutcome) error {
	updates := watermarkUpdates(reading)
	if row.FirstEpi == nil {
		updates["first_epi"] = reading.Epi
	}
	if err := tx.Model(&model.PrepaidElMeter{}).
		Where("meter_id = ?", row.MeterID).
		Updates(updates).Error; err != nil {
		return pkgErrors.WrapErrorWithLang(ctx, err, prepaidErrors.ErrCodeMeterUpdateFailed)
	}

	outcome.Baseline = true
	outcome.OrgID = row.OrgID
	outcome.NewSurplus = row.Surplus
	outcome.OldState = row.SurplusState
	outcome.NewState = row.SurplusState
	return nil
}

// applySettlement 正常结算：扣余额、推水位、落抄表记录、追加状态事件
func (r *settleRepo) applySettlement(ctx context.Context, tx *gorm.DB, row *model.PrepaidElMeter, reading *biz.SettleReading, settlement *biz.Settlement, outcome *biz.SettleOutcome) error {
	newSurplus := row.Surplus.Sub(settlement.UsedAmount)
	newState := biz.ClassifySurplus(newSurplus, row.WaringAmount)

	updates := watermarkUpdates(reading)
	updates["surplus"] = newSurplus
	updates["surplus_state"] = newState
	updates["used_el"] = gorm.Expr("used_el + ?", settlement.UsedEl)
	if err := tx.Model(&model.PrepaidElMeter{}).
		Where("meter_id = ?", row.MeterID).
		Updates(updates).Error; err != nil {
		return pkgErrors.WrapErrorWithLang(ctx, err, prepaidErrors.ErrCodeMeterUpdateFailed)
	}

	record := buildReadRecord(row, reading, settlement, newSurplus)
	if err := tx.Create(record).Error; err != nil {
		return pkgErrors.WrapErrorWithLang(ctx, err, prepaidErrors.ErrCodeReadRecordCreateFailed)
	}

	if err := createTransitionEvents(tx, row.MeterID, row.DeviceID, row.SurplusState, newState); err != nil {
		return pkgErrors.WrapErrorWithLang(ctx, err, prepaidErrors.ErrCodeEventRecordCreateFailed)
	}

	outcome.OrgID = row.OrgID
	outcome.UsedAmount = settlement.UsedAmount
	outcome.NewSurplus = newSurplus
	outcome.OldState = row.SurplusState
	outcome.NewState = newState
	// 进入欠费即视为需要分闸，分闸事件随结算一并落库
	if newState == constants.SurplusStateArrears && row.SurplusState != constants.SurplusStateArrears {
		outcome.Tripped = true
		event := model.EventRecord{
			EventRecordID: uuid.New().String(),
			MeterID:       row.MeterID,
			DeviceID:      row.DeviceID,
			EventType:     constants.EventTypeTrip,
		}
		if err := tx.Create(&event).Error; err != nil {
			return pkgErrors.WrapErrorWithLang(ctx, err, prepaidErrors.ErrCodeEventRecordCreateFailed)
		}
	}
	return nil
}

// buildReadRecord 组装抄表记录（带结算时生效的电价快照）
func buildReadRecord(row *model.PrepaidElMeter, reading *biz.SettleReading, settlement *biz.Settlement, newSurplus decimal.Decimal) *model.MeterReadRecord {
	record := &model.MeterReadRecord{
		ReadRecordID:  uuid.New().String(),
		MeterID:       row.MeterID,
		DeviceID:      row.DeviceID,
		TariffCfg:     row.TariffCfg,
		StartEpi:      row.LastEpi,
		EndEpi:        &reading.Epi,
		UsedEl:        settlement.UsedEl,
		TopEpi:        reading.TopEpi,
		OnPeakEpi:     reading.OnPeakEpi,
		FlatEpi:       reading.FlatEpi,
		ValleyEpi:     reading.ValleyEpi,
		DeepValleyEpi: reading.DeepValleyEpi,
		UsedAmount:    settlement.UsedAmount,
		Surplus:       newSurplus,
	}
	for _, tier := range settlement.Tiers {
		delta := tier.Delta
		switch tier.Tier {
		case constants.TierTop:
			record.UsedTopEpi = &delta
		case constants.TierOnPeak:
			record.UsedOnPeakEpi = &delta
		case constants.TierFlat:
			record.UsedFlatEpi = &delta
		case constants.TierValley:
			record.UsedValleyEpi = &delta
		case constants.TierDeepValley:
			record.UsedDeepValleyEpi = &delta
		}
	}
	return record
}
