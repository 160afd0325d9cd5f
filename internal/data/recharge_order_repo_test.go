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

func seedOrder(t *testing.T, d *Data, o *model.RechargeOrder) {
	t.Helper()
	require.NoError(t, d.db.Create(o).Error)
}

func successNotify(outTradeNo string) *biz.RechargeNotify {
	fee := mustDec("0.3")
	return &biz.RechargeNotify{
		OutTradeNo: outTradeNo,
		TradeState: constants.TradeStateSuccess,
		PaidAmount: mustDec("50"),
		PayTime:    time.Now(),
		PrepayID:   "wx_prepay_1",
		Fee:        &fee,
	}
}

func TestCreditFromGatewayIdempotent(t *testing.T) {
	d := newTestData(t)
	repo := NewRechargeOrderRepo(d, testLogger())
	ctx := context.Background()

	seedMeter(t, d, &model.PrepaidElMeter{
		MeterID:      "m1",
		OrgID:        "org1",
		DeviceID:     "dev1",
		Surplus:      mustDec("0"),
		SurplusState: constants.SurplusStateNormal,
	})
	meterID := "m1"
	seedOrder(t, d, &model.RechargeOrder{
		OutTradeNo:  "order1",
		UserID:      "u1",
		MeterID:     &meterID,
		TradeState:  constants.TradeStatePending,
		TradeType:   constants.TradeTypeJSAPI,
		PaymentType: constants.PaymentTypeWechat,
		Amount:      mustDec("50"),
	})

	outcome, err := repo.CreditFromGateway(ctx, successNotify("order1"))
	require.NoError(t, err)
	assert.False(t, outcome.Duplicate)
	assert.True(t, outcome.NewSurplus.Equal(mustDec("50")))

	// 订单到 SUCCESS，余额入账
	var order model.RechargeOrder
	require.NoError(t, d.db.Where("out_trade_no = ?", "order1").First(&order).Error)
	assert.Equal(t, constants.TradeStateSuccess, order.TradeState)
	require.NotNil(t, order.PayTime)

	// 收益按到账金额累计，手续费单独记
	var pool model.PrepaidOrgCfg
	require.NoError(t, d.db.Where("org_id = ?", "org1").First(&pool).Error)
	assert.True(t, pool.RechargeAmount.Equal(mustDec("49.7")))
	assert.True(t, pool.SumFee.Equal(mustDec("0.3")))

	var record model.RechargeRecord
	require.NoError(t, d.db.Where("order_id = ?", "order1").First(&record).Error)
	assert.True(t, record.IsRevenue)
	require.NotNil(t, record.RealAmount)
	assert.True(t, record.RealAmount.Equal(mustDec("49.7")))

	// 重复回调：幂等命中，余额、资金池、流水都不动
	outcome, err = repo.CreditFromGateway(ctx, successNotify("order1"))
	require.NoError(t, err)
	assert.True(t, outcome.Duplicate)

	var m model.PrepaidElMeter
	require.NoError(t, d.db.Where("meter_id = ?", "m1").First(&m).Error)
	assert.True(t, m.Surplus.Equal(mustDec("50")))

	var recordCount int64
	d.db.Model(&model.RechargeRecord{}).Count(&recordCount)
	assert.EqualValues(t, 1, recordCount)

	require.NoError(t, d.db.Where("org_id = ?", "org1").First(&pool).Error)
	assert.True(t, pool.RechargeAmount.Equal(mustDec("49.7")))
}

func TestCreditAfterCloseAbsorbed(t *testing.T) {
	d := newTestData(t)
	repo := NewRechargeOrderRepo(d, testLogger())
	ctx := context.Background()

	seedMeter(t, d, &model.PrepaidElMeter{MeterID: "m1", OrgID: "org1", Surplus: mustDec("0")})
	meterID := "m1"
	seedOrder(t, d, &model.RechargeOrder{
		OutTradeNo: "order1",
		UserID:     "u1",
		MeterID:    &meterID,
		TradeState: constants.TradeStateClosed,
		TradeType:  constants.TradeTypeJSAPI,
		Amount:     mustDec("50"),
	})

	// 关单后迟到的 SUCCESS 回调：吸收不入账
	outcome, err := repo.CreditFromGateway(ctx, successNotify("order1"))
	require.NoError(t, err)
	assert.True(t, outcome.Duplicate)

	var m model.PrepaidElMeter
	require.NoError(t, d.db.Where("meter_id = ?", "m1").First(&m).Error)
	assert.True(t, m.Surplus.IsZero())
}

func TestCreateRechargeOrderStampsOrg(t *testing.T) {
	d := newTestData(t)
	repo := NewRechargeOrderRepo(d, testLogger())
	ctx := context.Background()

	seedMeter(t, d, &model.PrepaidElMeter{MeterID: "m1", OrgID: "org1", Surplus: mustDec("0")})
	meterID := "m1"
	order := &biz.RechargeOrder{
		UserID:      "u1",
		MeterID:     &meterID,
		TradeType:   constants.TradeTypeJSAPI,
		PaymentType: constants.PaymentTypeWechat,
		Amount:      mustDec("50"),
	}
	require.NoError(t, repo.CreateRechargeOrder(ctx, order))
	assert.Equal(t, "org1", order.OrgID)

	var row model.RechargeOrder
	require.NoError(t, d.db.Where("out_trade_no = ?", order.OutTradeNo).First(&row).Error)
	assert.Equal(t, "org1", row.OrgID)
}

func TestCreditAfterMeterDeletedKeepsLedger(t *testing.T) {
	d := newTestData(t)
	repo := NewRechargeOrderRepo(d, testLogger())
	ctx := context.Background()

	// 电表在下单后被删除，外键已断开，只剩下单时的组织快照
	seedOrder(t, d, &model.RechargeOrder{
		OutTradeNo:  "order1",
		UserID:      "u1",
		OrgID:       "org1",
		MeterID:     nil,
		TradeState:  constants.TradeStatePending,
		TradeType:   constants.TradeTypeJSAPI,
		PaymentType: constants.PaymentTypeWechat,
		Amount:      mustDec("50"),
	})

	outcome, err := repo.CreditFromGateway(ctx, successNotify("order1"))
	require.NoError(t, err)
	assert.False(t, outcome.Duplicate)

	var order model.RechargeOrder
	require.NoError(t, d.db.Where("out_trade_no = ?", "order1").First(&order).Error)
	assert.Equal(t, constants.TradeStateSuccess, order.TradeState)

	// 资金轨迹不丢：充值记录与资金池照常入账
	var record model.RechargeRecord
	require.NoError(t, d.db.Where("order_id = ?", "order1").First(&record).Error)
	assert.True(t, record.IsRevenue)
	assert.Empty(t, record.MeterID)

	var pool model.PrepaidOrgCfg
	require.NoError(t, d.db.Where("org_id = ?", "org1").First(&pool).Error)
	assert.True(t, pool.RechargeAmount.Equal(mustDec("49.7")))
	assert.True(t, pool.SumFee.Equal(mustDec("0.3")))
}

func TestMarkTradeStateCAS(t *testing.T) {
	d := newTestData(t)
	repo := NewRechargeOrderRepo(d, testLogger())
	ctx := context.Background()

	seedOrder(t, d, &model.RechargeOrder{
		OutTradeNo: "order1",
		UserID:     "u1",
		TradeState: constants.TradeStateSuccess,
		TradeType:  constants.TradeTypeJSAPI,
		Amount:     mustDec("10"),
	})

	// 对账扫描到的还是 PENDING，但回调已抢先置 SUCCESS：关单必须落空
	updated, err := repo.MarkTradeState(ctx, "order1", constants.TradeStatePending, constants.TradeStateClosed, nil)
	require.NoError(t, err)
	assert.False(t, updated)

	var order model.RechargeOrder
	require.NoError(t, d.db.Where("out_trade_no = ?", "order1").First(&order).Error)
	assert.Equal(t, constants.TradeStateSuccess, order.TradeState)
}

func TestListStaleJSAPIOrders(t *testing.T) {
	d := newTestData(t)
	repo := NewRechargeOrderRepo(d, testLogger())
	ctx := context.Background()

	old := time.Now().Add(-time.Hour)
	fresh := time.Now()
	cutoff := time.Now().Add(-30 * time.Minute)

	seedOrder(t, d, &model.RechargeOrder{OutTradeNo: "stale_pending", UserID: "u", TradeState: constants.TradeStatePending, TradeType: constants.TradeTypeJSAPI, Amount: mustDec("1"), CreateTime: old})
	seedOrder(t, d, &model.RechargeOrder{OutTradeNo: "stale_notpay", UserID: "u", TradeState: constants.TradeStateNotPay, TradeType: constants.TradeTypeJSAPI, Amount: mustDec("1"), CreateTime: old})
	// 已支付的不关
	seedOrder(t, d, &model.RechargeOrder{OutTradeNo: "paid", UserID: "u", TradeState: constants.TradeStateSuccess, TradeType: constants.TradeTypeJSAPI, Amount: mustDec("1"), CreateTime: old})
	// 非 JSAPI 的不碰
	seedOrder(t, d, &model.RechargeOrder{OutTradeNo: "native", UserID: "u", TradeState: constants.TradeStatePending, TradeType: constants.TradeTypeNative, Amount: mustDec("1"), CreateTime: old})
	// 宽限期内的不碰
	seedOrder(t, d, &model.RechargeOrder{OutTradeNo: "fresh", UserID: "u", TradeState: constants.TradeStatePending, TradeType: constants.TradeTypeJSAPI, Amount: mustDec("1"), CreateTime: fresh})

	orders, err := repo.ListStaleJSAPIOrders(ctx, cutoff)
	require.NoError(t, err)
	nos := make([]string, 0, len(orders))
	for _, o := range orders {
		nos = append(nos, o.OutTradeNo)
	}
	assert.ElementsMatch(t, []string{"stale_pending", "stale_notpay"}, nos)
}
