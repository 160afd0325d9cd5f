package biz

import (
	"context"
	"io"
	"testing"
	"time"

	"prepaid-el-service/internal/constants"
	"prepaid-el-service/internal/metrics"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func f64(v float64) *float64 {
	return &v
}

func touMeter() *Meter {
	return &Meter{
		MeterID: "m1",
		Tariff: Tariff{
			IsTimeOfUse: true,
			TopPrice:    decPtr("1.2"),
			OnPeakPrice: decPtr("0.9"),
			FlatPrice:   decPtr("0.6"),
			ValleyPrice: decPtr("0.3"),
		},
		Surplus: dec("100"),
		Watermark: EpiWatermark{
			Epi:       f64(1000),
			TopEpi:    f64(100),
			OnPeakEpi: f64(200),
			FlatEpi:   f64(300),
			ValleyEpi: f64(400),
		},
	}
}

func TestBuildSettlementBaseline(t *testing.T) {
	m := &Meter{MeterID: "m1", Tariff: Tariff{Price: decPtr("0.5")}}
	r := &SettleReading{MeterID: "m1", Epi: 123.4, Timestamp: time.Now()}

	s, err := BuildSettlement(m, r)
	require.NoError(t, err)
	assert.True(t, s.Baseline)
	assert.True(t, s.UsedAmount.IsZero())
}

func TestBuildSettlementFlatPrice(t *testing.T) {
	m := &Meter{
		MeterID:   "m1",
		Tariff:    Tariff{Price: decPtr("0.55")},
		Watermark: EpiWatermark{Epi: f64(100)},
	}
	r := &SettleReading{MeterID: "m1", Epi: 110.5, Timestamp: time.Now()}

	s, err := BuildSettlement(m, r)
	require.NoError(t, err)
	assert.False(t, s.Baseline)
	assert.InDelta(t, 10.5, s.UsedEl, 1e-9)
	// 10.5 * 0.55 = 5.775，不舍入
	assert.Equal(t, "5.775", s.UsedAmount.String())
}

func TestBuildSettlementTierBilling(t *testing.T) {
	m := touMeter()
	r := &SettleReading{
		MeterID:   "m1",
		Epi:       1017,
		Timestamp: time.Now(),
		TopEpi:    f64(102), // +2 @1.2 = 2.4
		OnPeakEpi: f64(205), // +5 @0.9 = 4.5
		FlatEpi:   f64(310), // +10 @0.6 = 6.0
		ValleyEpi: f64(400), // +0
	}

	s, err := BuildSettlement(m, r)
	require.NoError(t, err)
	// 逐档结算求和：2.4 + 4.5 + 6.0 = 12.9
	assert.Equal(t, "12.9", s.UsedAmount.String())
	assert.InDelta(t, 17, s.UsedEl, 1e-9)
	assert.Len(t, s.Tiers, 4)
}

func TestBuildSettlementEpiDecreased(t *testing.T) {
	m := touMeter()

	// 总码值回退
	r := &SettleReading{MeterID: "m1", Epi: 999, Timestamp: time.Now()}
	_, err := BuildSettlement(m, r)
	assert.ErrorIs(t, err, ErrEpiDecreased)

	// 单档回退同样拒绝
	r = &SettleReading{MeterID: "m1", Epi: 1001, Timestamp: time.Now(), TopEpi: f64(99)}
	_, err = BuildSettlement(m, r)
	assert.ErrorIs(t, err, ErrEpiDecreased)
}

func TestBuildSettlementPriceMissing(t *testing.T) {
	m := touMeter()
	m.Tariff.OnPeakPrice = nil

	// 缺价档位有用电量：拒绝
	r := &SettleReading{MeterID: "m1", Epi: 1005, Timestamp: time.Now(), OnPeakEpi: f64(205)}
	_, err := BuildSettlement(m, r)
	assert.ErrorIs(t, err, ErrTierPriceMissing)

	// 缺价档位零用电量：放行
	r = &SettleReading{MeterID: "m1", Epi: 1002, Timestamp: time.Now(), OnPeakEpi: f64(200), TopEpi: f64(102)}
	s, err := BuildSettlement(m, r)
	require.NoError(t, err)
	assert.Equal(t, "2.4", s.UsedAmount.String())

	// 普通电价缺失
	flat := &Meter{MeterID: "m2", Watermark: EpiWatermark{Epi: f64(10)}}
	_, err = BuildSettlement(flat, &SettleReading{MeterID: "m2", Epi: 11, Timestamp: time.Now()})
	assert.ErrorIs(t, err, ErrFlatPriceMissing)
}

func TestBuildSettlementTierFirstReport(t *testing.T) {
	m := touMeter()
	// 深谷档此前从未上报过，本次只建立该档位水位，不扣费
	m.Watermark.DeepValleyEpi = nil
	m.Tariff.DeepValleyPrice = nil

	r := &SettleReading{
		MeterID:       "m1",
		Epi:           1003,
		Timestamp:     time.Now(),
		DeepValleyEpi: f64(50),
		TopEpi:        f64(102),
	}
	s, err := BuildSettlement(m, r)
	require.NoError(t, err)
	assert.Equal(t, "2.4", s.UsedAmount.String())
}

func TestBuildSettlementOutOfOrder(t *testing.T) {
	m := touMeter()
	settleTime := time.Now()
	m.SettleTime = &settleTime

	r := &SettleReading{MeterID: "m1", Epi: 1100, Timestamp: settleTime.Add(-time.Hour)}
	_, err := BuildSettlement(m, r)
	assert.ErrorIs(t, err, ErrReadOutOfOrder)
}

type stubSettleRepo struct {
	outcome *SettleOutcome
}

func (s *stubSettleRepo) SettleMeterRead(ctx context.Context, reading *SettleReading) (*SettleOutcome, error) {
	return s.outcome, nil
}

type stubMeterRepo struct {
	credit *CreditOutcome
}

func (s *stubMeterRepo) GetMeter(ctx context.Context, meterID string) (*Meter, error) {
	return nil, nil
}

func (s *stubMeterRepo) GetMeterByDevice(ctx context.Context, deviceID string) (*Meter, error) {
	return nil, nil
}

func (s *stubMeterRepo) CreateMeter(ctx context.Context, m *Meter) error {
	return nil
}

func (s *stubMeterRepo) OfflineCredit(ctx context.Context, credit *OfflineCredit) (*CreditOutcome, error) {
	return s.credit, nil
}

func (s *stubMeterRepo) SoftDeleteMeter(ctx context.Context, meterID, deviceKey, deviceInfo string) error {
	return nil
}

func (s *stubMeterRepo) CreateEventRecord(ctx context.Context, meterID, deviceID, eventType string) error {
	return nil
}

func TestHandleReadingTracksArrearsGauge(t *testing.T) {
	// 结算进入欠费：组织欠费表数 +1；充值恢复正常后归零
	repo := &stubSettleRepo{outcome: &SettleOutcome{
		OrgID:      "gauge_org_1",
		UsedAmount: dec("5"),
		NewSurplus: dec("-1"),
		OldState:   constants.SurplusStateNormal,
		NewState:   constants.SurplusStateArrears,
		Tripped:    true,
	}}
	uc := NewSettlementUseCase(repo, nil, log.NewStdLogger(io.Discard))

	require.NoError(t, uc.HandleReading(context.Background(), &SettleReading{MeterID: "m1", Epi: 10, Timestamp: time.Now()}))
	gauge := metrics.GetMetrics().MeterArrearsAlert.WithLabelValues("gauge_org_1")
	assert.Equal(t, float64(1), testutil.ToFloat64(gauge))

	meterUC := NewMeterUseCase(&stubMeterRepo{credit: &CreditOutcome{
		OrgID:      "gauge_org_1",
		NewSurplus: dec("9"),
		OldState:   constants.SurplusStateArrears,
		NewState:   constants.SurplusStateNormal,
	}}, log.NewStdLogger(io.Discard))
	_, err := meterUC.OfflineRecharge(context.Background(), &OfflineCredit{
		MeterID: "m1", OrderID: "o1", Amount: dec("10"),
	})
	require.NoError(t, err)
	assert.Equal(t, float64(0), testutil.ToFloat64(gauge))
}

func TestBuildSettlementOverdraft(t *testing.T) {
	// 余额不足不会拦结算，欠费由状态机处理
	m := &Meter{
		MeterID:   "m1",
		Tariff:    Tariff{Price: decPtr("1")},
		Surplus:   dec("3"),
		Watermark: EpiWatermark{Epi: f64(0)},
	}
	r := &SettleReading{MeterID: "m1", Epi: 10, Timestamp: time.Now()}
	s, err := BuildSettlement(m, r)
	require.NoError(t, err)
	assert.Equal(t, "10", s.UsedAmount.String())
}
