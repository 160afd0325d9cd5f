package model

import (
	"github.com/shopspring/decimal"
)

// TariffCfg 电费配置基础字段（嵌入电表和抄表记录）
// 普通电价与五个复费率档位电价均可为空，单位 元/度
type TariffCfg struct {
	IsTimeOfUse     bool             `gorm:"default:false"`                // 是否使用复费率电费
	Price           *decimal.Decimal `gorm:"type:decimal(10,6)"`           // 普通电价(元/度)
	TopPrice        *decimal.Decimal `gorm:"type:decimal(10,6)"`           // 尖电价(元/度)
	OnPeakPrice     *decimal.Decimal `gorm:"type:decimal(10,6)"`           // 峰电价(元/度)
	FlatPrice       *decimal.Decimal `gorm:"type:decimal(10,6)"`           // 平电价(元/度)
	ValleyPrice     *decimal.Decimal `gorm:"type:decimal(10,6)"`           // 谷电价(元/度)
	DeepValleyPrice *decimal.Decimal `gorm:"type:decimal(10,6)"`           // 深谷电价(元/度)
}
