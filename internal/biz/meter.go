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

// Tariff 电价配置领域对象
type Tariff struct {
	IsTimeOfUse     bool
	Price           *decimal.Decimal // 普通电价(元/度)
	TopPrice        *decimal.Decimal // 尖电价(元/度)
	OnPeakPrice     *decimal.Decimal // 峰电价(元/度)
	FlatPrice       *decimal.Decimal // 平电价(元/度)
	ValleyPrice     *decimal.Decimal // 谷电价(元/度)
	DeepValleyPrice *decimal.Decimal // 深谷电价(元/度)
}

// EpiWatermark 上次结算的码值水位（下次结算的基线）
type EpiWatermark struct {
	Epi           *float64 // 总码值(度)
	TopEpi        *float64
	OnPeakEpi     *float64
	FlatEpi       *float64
	ValleyEpi     *float64
	DeepValleyEpi *float64
}

// Meter 预付费电表领域对象
type Meter struct {
	MeterID      string
	OrgID        string
	DeviceID     string
	Tariff       Tariff
	WaringAmount *decimal.Decimal // 预警金额(元)
	TripAmount   *decimal.Decimal // 可透支金额(元)
	Surplus      decimal.Decimal  // 电费余额(元)
	SurplusState string
	SettleTime   *time.Time
	FirstEpi     *float64
	UsedEl       float64
	Watermark    EpiWatermark

	RechargeAmount decimal.Decimal // 租客累计充值金额(元)
	RealAmount     decimal.Decimal // 累计收益金额(元)

	DelDeviceKey  string
	DelDeviceInfo string
	IsDeleted     bool
}

// MeterIdentity 电表身份的标签视图：在用电表指向设备，已删除电表只剩冻结快照
type MeterIdentity struct {
	Retired  bool
	DeviceID string // Retired=false 时有效
	Key      string // Retired=true 时的冻结设备 key
	Snapshot string // Retired=true 时的冻结设备信息(JSON)
}

// Identity 返回电表身份视图
func (m *Meter) Identity() MeterIdentity {
	if m.IsDeleted {
		return MeterIdentity{Retired: true, Key: m.DelDeviceKey, Snapshot: m.DelDeviceInfo}
	}
	return MeterIdentity{DeviceID: m.DeviceID}
}

// ClassifySurplus 余额状态判定（纯函数）
// surplus_state 永远由余额和预警金额推导，不独立存储
func ClassifySurplus(surplus decimal.Decimal, waringAmount *decimal.Decimal) string {
	if surplus.IsNegative() {
		return constants.SurplusStateArrears
	}
	if waringAmount == nil {
		return constants.SurplusStateNormal
	}
	if surplus.LessThanOrEqual(*waringAmount) {
		return constants.SurplusStateWarming
	}
	return constants.SurplusStateNormal
}

// StateTransitionEvents 余额状态跳变对应的事件类型
func StateTransitionEvents(oldState, newState string) []string {
	if oldState == newState {
		return nil
	}
	switch newState {
	case constants.SurplusStateWarming:
		return []string{constants.EventTypeWarning}
	case constants.SurplusStateArrears:
		return []string{constants.EventTypeArrears}
	case constants.SurplusStateNormal:
		// 从欠费恢复到正常视为合闸
		if oldState == constants.SurplusStateArrears {
			return []string{constants.EventTypeClose}
		}
	}
	return nil
}

// OfflineCredit 线下充值参数
type OfflineCredit struct {
	MeterID string
	UserID  string
	OrderID string
	Amount  decimal.Decimal
	Remark  string
}

// CreditOutcome 充值入账结果
type CreditOutcome struct {
	Duplicate  bool            // 幂等命中：该订单已入账过
	OrgID      string          // 电表所属组织
	NewSurplus decimal.Decimal // 入账后余额
	OldState   string
	NewState   string
}

// MeterRepo 电表数据层接口（定义在 biz 层）
type MeterRepo interface {
	GetMeter(ctx context.Context, meterID string) (*Meter, error)
	GetMeterByDevice(ctx context.Context, deviceID string) (*Meter, error)
	// CreateMeter 电表开户
	CreateMeter(ctx context.Context, m *Meter) error
	// OfflineCredit 线下充值（不经支付网关，不计入组织收益）
	OfflineCredit(ctx context.Context, credit *OfflineCredit) (*CreditOutcome, error)
	// SoftDeleteMeter 软删除：冻结身份快照、断开设备与充值订单外键，保留资金流水
	SoftDeleteMeter(ctx context.Context, meterID, deviceKey, deviceInfo string) error
	// CreateEventRecord 追加事件记录
	CreateEventRecord(ctx context.Context, meterID, deviceID, eventType string) error
}

// TripCommander 分闸指令发布能力（真正的跳闸由设备侧外部系统执行）
type TripCommander interface {
	SendTripCommand(ctx context.Context, meterID, deviceID string) error
}

// MeterUseCase 电表业务逻辑
type MeterUseCase struct {
	repo    MeterRepo
	log     *log.Helper
	metrics *metrics.PrepaidMetrics
}

// NewMeterUseCase 创建电表 UseCase
func NewMeterUseCase(repo MeterRepo, logger log.Logger) *MeterUseCase {
	return &MeterUseCase{
		repo:    repo,
		log:     log.NewHelper(logger),
		metrics: metrics.GetMetrics(),
	}
}

// GetMeter 获取电表
func (uc *MeterUseCase) GetMeter(ctx context.Context, meterID string) (*Meter, error) {
	return uc.repo.GetMeter(ctx, meterID)
}

// OfflineRecharge 线下充值
func (uc *MeterUseCase) OfflineRecharge(ctx context.Context, credit *OfflineCredit) (*CreditOutcome, error) {
	if !credit.Amount.IsPositive() {
		return nil, pkgErrors.NewBizErrorWithLang(ctx, prepaidErrors.ErrCodeRechargeAmountInvalid)
	}
	outcome, err := uc.repo.OfflineCredit(ctx, credit)
	if err != nil {
		uc.log.Errorf("OfflineCredit failed: meter_id=%s, order_id=%s, error=%v", credit.MeterID, credit.OrderID, err)
		return nil, err
	}
	if outcome.Duplicate {
		uc.log.Infof("Offline recharge already processed: order_id=%s", credit.OrderID)
		if uc.metrics != nil {
			uc.metrics.RechargeDupTotal.Inc()
		}
		return outcome, nil
	}
	if uc.metrics != nil {
		uc.metrics.RechargeCreditTotal.WithLabelValues("offline").Inc()
		if outcome.OldState == constants.SurplusStateArrears && outcome.NewState != constants.SurplusStateArrears {
			uc.metrics.MeterArrearsAlert.WithLabelValues(outcome.OrgID).Dec()
		}
	}
	uc.log.Infof("Offline recharge applied: meter_id=%s, order_id=%s, amount=%s, surplus=%s",
		credit.MeterID, credit.OrderID, credit.Amount, outcome.NewSurplus)
	return outcome, nil
}

// DeleteMeter 软删除电表，保留资金流水与冻结身份快照
func (uc *MeterUseCase) DeleteMeter(ctx context.Context, meterID, deviceKey, deviceInfo string) error {
	m, err := uc.repo.GetMeter(ctx, meterID)
	if err != nil {
		return err
	}
	if m == nil {
		return pkgErrors.NewBizErrorWithLang(ctx, prepaidErrors.ErrCodeMeterNotFound)
	}
	if m.IsDeleted {
		return pkgErrors.NewBizErrorWithLang(ctx, prepaidErrors.ErrCodeMeterAlreadyDeleted)
	}
	return uc.repo.SoftDeleteMeter(ctx, meterID, deviceKey, deviceInfo)
}

// RecordDeviceEvent 记录设备上线/下线事件
func (uc *MeterUseCase) RecordDeviceEvent(ctx context.Context, meterID, deviceID, eventType string) error {
	if eventType != constants.EventTypeOnline && eventType != constants.EventTypeOffline {
		return pkgErrors.NewBizErrorWithLang(ctx, prepaidErrors.ErrCodeEventRecordCreateFailed)
	}
	return uc.repo.CreateEventRecord(ctx, meterID, deviceID, eventType)
}
