package biz

import (
	"testing"

	"prepaid-el-service/internal/constants"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func dec(s string) decimal.Decimal {
	d, _ := decimal.NewFromString(s)
	return d
}

func decPtr(s string) *decimal.Decimal {
	d := dec(s)
	return &d
}

func TestClassifySurplus(t *testing.T) {
	warning := decPtr("10")

	// 余额高于预警线
	assert.Equal(t, constants.SurplusStateNormal, ClassifySurplus(dec("10.01"), warning))
	// 恰好等于预警线算预警
	assert.Equal(t, constants.SurplusStateWarming, ClassifySurplus(dec("10"), warning))
	assert.Equal(t, constants.SurplusStateWarming, ClassifySurplus(dec("0"), warning))
	// 负数一律欠费
	assert.Equal(t, constants.SurplusStateArrears, ClassifySurplus(dec("-0.0000000001"), warning))
	// 未配置预警金额时只有正常/欠费两态
	assert.Equal(t, constants.SurplusStateNormal, ClassifySurplus(dec("0"), nil))
	assert.Equal(t, constants.SurplusStateNormal, ClassifySurplus(dec("5"), nil))
	assert.Equal(t, constants.SurplusStateArrears, ClassifySurplus(dec("-1"), nil))
}

func TestStateTransitionEvents(t *testing.T) {
	// 状态不变不出事件
	assert.Nil(t, StateTransitionEvents(constants.SurplusStateNormal, constants.SurplusStateNormal))

	assert.Equal(t, []string{constants.EventTypeWarning},
		StateTransitionEvents(constants.SurplusStateNormal, constants.SurplusStateWarming))
	assert.Equal(t, []string{constants.EventTypeArrears},
		StateTransitionEvents(constants.SurplusStateWarming, constants.SurplusStateArrears))
	assert.Equal(t, []string{constants.EventTypeArrears},
		StateTransitionEvents(constants.SurplusStateNormal, constants.SurplusStateArrears))
	// 欠费恢复正常视为合闸
	assert.Equal(t, []string{constants.EventTypeClose},
		StateTransitionEvents(constants.SurplusStateArrears, constants.SurplusStateNormal))
	// 预警恢复正常不出事件
	assert.Nil(t, StateTransitionEvents(constants.SurplusStateWarming, constants.SurplusStateNormal))
}

func TestMeterIdentity(t *testing.T) {
	m := &Meter{MeterID: "m1", DeviceID: "dev-1"}
	identity := m.Identity()
	assert.False(t, identity.Retired)
	assert.Equal(t, "dev-1", identity.DeviceID)

	m.IsDeleted = true
	m.DelDeviceKey = "AABBCC"
	m.DelDeviceInfo = `{"sn":"AABBCC"}`
	identity = m.Identity()
	assert.True(t, identity.Retired)
	assert.Empty(t, identity.DeviceID)
	assert.Equal(t, "AABBCC", identity.Key)
	assert.Equal(t, `{"sn":"AABBCC"}`, identity.Snapshot)
}

func TestQuoteRounding(t *testing.T) {
	// 展示金额保留 2 位四舍五入
	assert.Equal(t, "13.91", Quote(dec("13.905")).StringFixed(2))
	assert.Equal(t, "13.90", Quote(dec("13.9049999999")).StringFixed(2))
	assert.Equal(t, "-0.01", Quote(dec("-0.005")).StringFixed(2))
	// 高精度余额本身不被改写
	surplus := dec("99.1234567891")
	_ = Quote(surplus)
	assert.Equal(t, "99.1234567891", surplus.String())
}
