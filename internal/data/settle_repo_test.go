package data

import (
	"context"
	"testing"
	"time"

	"prepaid-el-service/internal/biz"
	"prepaid-el-service/internal/constants"
	"prepaid-el-service/internal/data/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSettleBaselineThenCharge(t *testing.T) {
	d := newTestData(t)
	repo := NewSettleRepo(d, nil, testLogger())
	ctx := context.Background()

	seedMeter(t, d, &model.PrepaidElMeter{
		MeterID:      "m1",
		OrgID:        "org1",
		DeviceID:     "dev1",
		TariffCfg:    model.TariffCfg{Price: mustDecPtr("0.5")},
		Surplus:      mustDec("10"),
		SurplusState: constants.SurplusStateNormal,
		WaringAmount: mustDecPtr("5"),
	})

	// 首次抄表：只建基线不扣费
	outcome, err := repo.SettleMeterRead(ctx, &biz.SettleReading{
		MeterID: "m1", DeviceID: "dev1", Epi: 100, Timestamp: time.Now().Add(-time.Minute),
	})
	require.NoError(t, err)
	assert.True(t, outcome.Baseline)

	var m model.PrepaidElMeter
	require.NoError(t, d.db.Where("meter_id = ?", "m1").First(&m).Error)
	require.NotNil(t, m.LastEpi)
	assert.InDelta(t, 100, *m.LastEpi, 1e-9)
	require.NotNil(t, m.FirstEpi)
	assert.InDelta(t, 100, *m.FirstEpi, 1e-9)
	assert.True(t, m.Surplus.Equal(mustDec("10")))

	// 第二次抄表：用电 20 度 @0.5 = 10 元，余额归零进入预警
	outcome, err = repo.SettleMeterRead(ctx, &biz.SettleReading{
		MeterID: "m1", DeviceID: "dev1", Epi: 120, Timestamp: time.Now(),
	})
	require.NoError(t, err)
	assert.False(t, outcome.Baseline)
	assert.True(t, outcome.UsedAmount.Equal(mustDec("10")))
	assert.True(t, outcome.NewSurplus.IsZero())
	assert.Equal(t, constants.SurplusStateWarming, outcome.NewState)
	assert.False(t, outcome.Tripped)

	require.NoError(t, d.db.Where("meter_id = ?", "m1").First(&m).Error)
	assert.InDelta(t, 120, *m.LastEpi, 1e-9)
	assert.InDelta(t, 20, m.UsedEl, 1e-9)

	// 抄表记录可重放余额
	var record model.MeterReadRecord
	require.NoError(t, d.db.Where("meter_id = ?", "m1").First(&record).Error)
	assert.InDelta(t, 20, record.UsedEl, 1e-9)
	assert.True(t, record.UsedAmount.Equal(mustDec("10")))
	assert.True(t, record.Surplus.IsZero())
}

func TestSettleArrearsTripsMeter(t *testing.T) {
	d := newTestData(t)
	repo := NewSettleRepo(d, nil, testLogger())
	ctx := context.Background()

	lastEpi := 0.0
	seedMeter(t, d, &model.PrepaidElMeter{
		MeterID:      "m1",
		OrgID:        "org1",
		DeviceID:     "dev1",
		TariffCfg:    model.TariffCfg{Price: mustDecPtr("1")},
		Surplus:      mustDec("1"),
		SurplusState: constants.SurplusStateNormal,
		LastEpi:      &lastEpi,
	})

	outcome, err := repo.SettleMeterRead(ctx, &biz.SettleReading{
		MeterID: "m1", DeviceID: "dev1", Epi: 10, Timestamp: time.Now(),
	})
	require.NoError(t, err)
	assert.True(t, outcome.NewSurplus.Equal(mustDec("-9")))
	assert.Equal(t, constants.SurplusStateArrears, outcome.NewState)
	assert.True(t, outcome.Tripped)

	// 欠费 + 分闸两条事件
	var events []model.EventRecord
	require.NoError(t, d.db.Where("meter_id = ?", "m1").Order("event_type").Find(&events).Error)
	types := make([]string, 0, len(events))
	for _, e := range events {
		types = append(types, e.EventType)
	}
	assert.ElementsMatch(t, []string{constants.EventTypeArrears, constants.EventTypeTrip}, types)
}

func TestSettleRejectionKeepsWatermark(t *testing.T) {
	d := newTestData(t)
	repo := NewSettleRepo(d, nil, testLogger())
	ctx := context.Background()

	lastEpi := 100.0
	seedMeter(t, d, &model.PrepaidElMeter{
		MeterID:      "m1",
		OrgID:        "org1",
		DeviceID:     "dev1",
		TariffCfg:    model.TariffCfg{Price: mustDecPtr("0.5")},
		Surplus:      mustDec("10"),
		SurplusState: constants.SurplusStateNormal,
		LastEpi:      &lastEpi,
	})

	// 码值回退：拒绝结算，余额和水位保持不动
	_, err := repo.SettleMeterRead(ctx, &biz.SettleReading{
		MeterID: "m1", DeviceID: "dev1", Epi: 90, Timestamp: time.Now(),
	})
	assert.ErrorIs(t, err, biz.ErrEpiDecreased)

	var m model.PrepaidElMeter
	require.NoError(t, d.db.Where("meter_id = ?", "m1").First(&m).Error)
	assert.True(t, m.Surplus.Equal(mustDec("10")))
	assert.InDelta(t, 100, *m.LastEpi, 1e-9)

	var recordCount int64
	d.db.Model(&model.MeterReadRecord{}).Count(&recordCount)
	assert.Zero(t, recordCount)

	// 乱序抄表同样拒绝
	settleTime := time.Now()
	require.NoError(t, d.db.Model(&model.PrepaidElMeter{}).
		Where("meter_id = ?", "m1").Update("settle_time", settleTime).Error)

	_, err = repo.SettleMeterRead(ctx, &biz.SettleReading{
		MeterID: "m1", DeviceID: "dev1", Epi: 200, Timestamp: settleTime.Add(-time.Hour),
	})
	assert.ErrorIs(t, err, biz.ErrReadOutOfOrder)
}

func TestSettleTierBillingPersisted(t *testing.T) {
	d := newTestData(t)
	repo := NewSettleRepo(d, nil, testLogger())
	ctx := context.Background()

	lastEpi, top, onPeak, flat := 1000.0, 100.0, 200.0, 300.0
	seedMeter(t, d, &model.PrepaidElMeter{
		MeterID:  "m1",
		OrgID:    "org1",
		DeviceID: "dev1",
		TariffCfg: model.TariffCfg{
			IsTimeOfUse: true,
			TopPrice:    mustDecPtr("1.2"),
			OnPeakPrice: mustDecPtr("0.9"),
			FlatPrice:   mustDecPtr("0.6"),
		},
		Surplus:       mustDec("100"),
		SurplusState:  constants.SurplusStateNormal,
		LastEpi:       &lastEpi,
		LastTopEpi:    &top,
		LastOnPeakEpi: &onPeak,
		LastFlatEpi:   &flat,
	})

	newTop, newOnPeak, newFlat := 102.0, 205.0, 310.0
	outcome, err := repo.SettleMeterRead(ctx, &biz.SettleReading{
		MeterID:   "m1",
		DeviceID:  "dev1",
		Epi:       1017,
		Timestamp: time.Now(),
		TopEpi:    &newTop,
		OnPeakEpi: &newOnPeak,
		FlatEpi:   &newFlat,
	})
	require.NoError(t, err)
	// 2*1.2 + 5*0.9 + 10*0.6 = 12.9
	assert.True(t, outcome.UsedAmount.Equal(mustDec("12.9")))
	assert.True(t, outcome.NewSurplus.Equal(mustDec("87.1")))

	var record model.MeterReadRecord
	require.NoError(t, d.db.Where("meter_id = ?", "m1").First(&record).Error)
	require.NotNil(t, record.UsedTopEpi)
	assert.InDelta(t, 2, *record.UsedTopEpi, 1e-9)
	require.NotNil(t, record.UsedOnPeakEpi)
	assert.InDelta(t, 5, *record.UsedOnPeakEpi, 1e-9)
	require.NotNil(t, record.UsedFlatEpi)
	assert.InDelta(t, 10, *record.UsedFlatEpi, 1e-9)

	var m model.PrepaidElMeter
	require.NoError(t, d.db.Where("meter_id = ?", "m1").First(&m).Error)
	assert.InDelta(t, 102, *m.LastTopEpi, 1e-9)
	assert.InDelta(t, 205, *m.LastOnPeakEpi, 1e-9)
	assert.InDelta(t, 310, *m.LastFlatEpi, 1e-9)
}
