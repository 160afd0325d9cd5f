package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// MeterReadRecord 抄表记录表（只追加，一次结算一行）
// 不变量：surplus = 结算前余额 - used_amount，可按时间顺序重放还原余额
type MeterReadRecord struct {
	ReadRecordID string `gorm:"primaryKey;type:varchar(36)"`
	MeterID      string `gorm:"type:varchar(36);not null;index:idx_meter_time,priority:1"`
	DeviceID     string `gorm:"type:varchar(36)"`
	TariffCfg    `gorm:"embedded"` // 结算时生效的电价

	StartEpi *float64 // 抄表起始总码值(度)
	EndEpi   *float64 // 抄表截止总码值(度)
	UsedEl   float64  `gorm:"not null"` // 使用总电量(度)

	TopEpi            *float64 // 尖电能码值(度)
	UsedTopEpi        *float64 // 使用尖电能(度)
	OnPeakEpi         *float64 // 峰电能码值(度)
	UsedOnPeakEpi     *float64 // 使用峰电能(度)
	FlatEpi           *float64 // 平电能码值(度)
	UsedFlatEpi       *float64 // 使用平电能(度)
	ValleyEpi         *float64 // 谷电能码值(度)
	UsedValleyEpi     *float64 // 使用谷电能(度)
	DeepValleyEpi     *float64 // 深谷电能码值(度)
	UsedDeepValleyEpi *float64 // 使用深谷电能(度)

	UsedAmount decimal.Decimal `gorm:"type:decimal(20,10);not null"` // 使用电费(元)
	Surplus    decimal.Decimal `gorm:"type:decimal(20,10);not null"` // 结算后电费余额(元)

	CreatedTime time.Time `gorm:"autoCreateTime;index:idx_meter_time,priority:2"` // 抄表时间
}

// TableName 指定表名
func (MeterReadRecord) TableName() string {
	return "meter_read_record"
}
