package biz

import (
	"github.com/shopspring/decimal"
)

// 金额精度约定：
// 余额类字段保留 10 位小数，吸收复费率单价乘法产生的尾差，链路上不做任何舍入；
// 对外展示/报价金额保留 2 位小数，四舍五入，只在展示时舍入一次。
const (
	// BalanceScale 余额精度（小数位）
	BalanceScale = 10
	// QuoteScale 对外金额精度（小数位）
	QuoteScale = 2
)

// Quote 余额转对外展示金额，保留 2 位小数四舍五入
func Quote(d decimal.Decimal) decimal.Decimal {
	return d.Round(QuoteScale)
}

// EnergyDecimal 电量码值（度）转精确小数
// 码值来自设备上报的 float，进入金额运算前先固定为小数
func EnergyDecimal(v float64) decimal.Decimal {
	return decimal.NewFromFloat(v)
}
