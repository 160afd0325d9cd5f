package biz

import (
	"context"
	"errors"
	"time"

	"prepaid-el-service/internal/constants"
	"prepaid-el-service/internal/metrics"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/shopspring/decimal"
)

// 结算异常（税则外的哨兵错误，数据层/用例层用错误码包装）
var (
	// ErrEpiDecreased 电能码值回退：表计清零或换表，拒绝结算，等待人工校正
	ErrEpiDecreased = errors.New("meter energy counter decreased")
	// ErrTierPriceMissing 档位有用电量但对应电价未配置
	ErrTierPriceMissing = errors.New("tariff tier price missing")
	// ErrFlatPriceMissing 普通电价未配置
	ErrFlatPriceMissing = errors.New("flat price missing")
	// ErrReadOutOfOrder 抄表时间早于上次结算时间
	ErrReadOutOfOrder = errors.New("meter read out of order")
)

// SettleReading 抄表事件（设备侧上报，经 MQ 进入结算）
type SettleReading struct {
	MeterID   string    `json:"meter_id"`
	DeviceID  string    `json:"device_id"`
	Timestamp time.Time `json:"timestamp"`
	// Epi 当前累计总码值(度)
	Epi float64 `json:"epi"`
	// 五个复费率档位的累计码值(度)，设备未上报的档位为空
	TopEpi        *float64 `json:"top_epi"`
	OnPeakEpi     *float64 `json:"on_peak_epi"`
	FlatEpi       *float64 `json:"flat_epi"`
	ValleyEpi     *float64 `json:"valley_epi"`
	DeepValleyEpi *float64 `json:"deep_valley_epi"`
}

// TierUsage 单个档位的结算明细
type TierUsage struct {
	Tier   string
	Delta  float64         // 用电量(度)
	Amount decimal.Decimal // 电费(元)
}

// Settlement 一次结算的计算结果（纯计算，不落库）
type Settlement struct {
	Reading *SettleReading
	// Baseline 首次抄表：只建立码值水位，不扣费
	Baseline   bool
	UsedEl     float64
	Tiers      []TierUsage
	UsedAmount decimal.Decimal
}

// tierReading 档位码值的 (当前值, 水位, 电价) 三元组
type tierReading struct {
	tier    string
	current *float64
	last    *float64
	price   *decimal.Decimal
}

// BuildSettlement 把一次抄表换算成电费扣减（纯函数）
// 码值回退、电价缺失、时间乱序都拒绝结算，水位保持不动
func BuildSettlement(m *Meter, r *SettleReading) (*Settlement, error) {
	if m.SettleTime != nil && r.Timestamp.Before(*m.SettleTime) {
		return nil, ErrReadOutOfOrder
	}

	s := &Settlement{Reading: r, UsedAmount: decimal.Zero}

	// 首次抄表没有水位，本次只建立基线
	if m.Watermark.Epi == nil {
		s.Baseline = true
		return s, nil
	}

	s.UsedEl = r.Epi - *m.Watermark.Epi
	if s.UsedEl < 0 {
		return nil, ErrEpiDecreased
	}

	if !m.Tariff.IsTimeOfUse {
		if s.UsedEl > 0 && m.Tariff.Price == nil {
			return nil, ErrFlatPriceMissing
		}
		if s.UsedEl > 0 {
			s.UsedAmount = EnergyDecimal(s.UsedEl).Mul(*m.Tariff.Price)
		}
		return s, nil
	}

	tiers := []tierReading{
		{constants.TierTop, r.TopEpi, m.Watermark.TopEpi, m.Tariff.TopPrice},
		{constants.TierOnPeak, r.OnPeakEpi, m.Watermark.OnPeakEpi, m.Tariff.OnPeakPrice},
		{constants.TierFlat, r.FlatEpi, m.Watermark.FlatEpi, m.Tariff.FlatPrice},
		{constants.TierValley, r.ValleyEpi, m.Watermark.ValleyEpi, m.Tariff.ValleyPrice},
		{constants.TierDeepValley, r.DeepValleyEpi, m.Watermark.DeepValleyEpi, m.Tariff.DeepValleyPrice},
	}
	for _, t := range tiers {
		if t.current == nil {
			continue
		}
		// 档位首次上报只建立该档位水位
		if t.last == nil {
			s.Tiers = append(s.Tiers, TierUsage{Tier: t.tier, Amount: decimal.Zero})
			continue
		}
		delta := *t.current - *t.last
		if delta < 0 {
			return nil, ErrEpiDecreased
		}
		usage := TierUsage{Tier: t.tier, Delta: delta, Amount: decimal.Zero}
		if delta > 0 {
			if t.price == nil {
				return nil, ErrTierPriceMissing
			}
			usage.Amount = EnergyDecimal(delta).Mul(*t.price)
			s.UsedAmount = s.UsedAmount.Add(usage.Amount)
		}
		s.Tiers = append(s.Tiers, usage)
	}
	return s, nil
}

// SettleOutcome 结算落库结果
type SettleOutcome struct {
	Baseline   bool
	OrgID      string
	UsedAmount decimal.Decimal
	NewSurplus decimal.Decimal
	OldState   string
	NewState   string
	// Tripped 本次结算使电表进入欠费，需要下发分闸指令
	Tripped bool
}

// SettleRepo 结算数据层接口（定义在 biz 层）
// 实现方必须保证同一电表的结算串行执行，且水位读取与落库在同一事务内
type SettleRepo interface {
	SettleMeterRead(ctx context.Context, reading *SettleReading) (*SettleOutcome, error)
}

// SettlementUseCase 结算业务逻辑
type SettlementUseCase struct {
	repo    SettleRepo
	trip    TripCommander
	log     *log.Helper
	metrics *metrics.PrepaidMetrics
}

// NewSettlementUseCase 创建结算 UseCase
func NewSettlementUseCase(repo SettleRepo, trip TripCommander, logger log.Logger) *SettlementUseCase {
	return &SettlementUseCase{
		repo:    repo,
		trip:    trip,
		log:     log.NewHelper(logger),
		metrics: metrics.GetMetrics(),
	}
}

// anomalyReason 结算异常的指标归类
func anomalyReason(err error) string {
	switch {
	case errors.Is(err, ErrEpiDecreased):
		return "epi_decreased"
	case errors.Is(err, ErrTierPriceMissing), errors.Is(err, ErrFlatPriceMissing):
		return "price_missing"
	case errors.Is(err, ErrReadOutOfOrder):
		return "out_of_order"
	}
	return ""
}

// HandleReading 处理一条抄表事件
// 异常（码值回退/电价缺失/乱序）只记录不重试，等待人工校正；其余错误返回给消费方重试
func (uc *SettlementUseCase) HandleReading(ctx context.Context, reading *SettleReading) error {
	startTime := time.Now()
	outcome, err := uc.repo.SettleMeterRead(ctx, reading)
	if uc.metrics != nil {
		uc.metrics.SettleDuration.Observe(time.Since(startTime).Seconds())
	}
	if err != nil {
		if reason := anomalyReason(err); reason != "" {
			uc.log.Warnf("Settlement rejected: meter_id=%s, reason=%s, error=%v", reading.MeterID, reason, err)
			if uc.metrics != nil {
				uc.metrics.SettleAnomaly.WithLabelValues(reason).Inc()
				uc.metrics.SettleTotal.WithLabelValues(constants.SettleResultRejected).Inc()
			}
			// 水位未推进，等待人工校正，不让消费方重投
			return nil
		}
		uc.log.Errorf("SettleMeterRead failed: meter_id=%s, error=%v", reading.MeterID, err)
		return err
	}

	if outcome.Baseline {
		uc.log.Infof("Settlement baseline established: meter_id=%s, epi=%.4f", reading.MeterID, reading.Epi)
		if uc.metrics != nil {
			uc.metrics.SettleTotal.WithLabelValues(constants.SettleResultBaseline).Inc()
		}
		return nil
	}

	if uc.metrics != nil {
		uc.metrics.SettleTotal.WithLabelValues(constants.SettleResultApplied).Inc()
		amount, _ := outcome.UsedAmount.Float64()
		uc.metrics.SettleAmount.Add(amount)
		if outcome.NewState == constants.SurplusStateArrears && outcome.OldState != constants.SurplusStateArrears {
			uc.metrics.MeterArrearsAlert.WithLabelValues(outcome.OrgID).Inc()
		}
	}
	uc.log.Infof("Settlement applied: meter_id=%s, used_amount=%s, surplus=%s, state=%s",
		reading.MeterID, outcome.UsedAmount, outcome.NewSurplus, outcome.NewState)

	// 进入欠费：下发分闸指令（设备侧执行，失败不影响已提交的结算）
	if outcome.Tripped && uc.trip != nil {
		if err := uc.trip.SendTripCommand(ctx, reading.MeterID, reading.DeviceID); err != nil {
			uc.log.Errorf("SendTripCommand failed: meter_id=%s, error=%v", reading.MeterID, err)
		}
	}
	return nil
}
