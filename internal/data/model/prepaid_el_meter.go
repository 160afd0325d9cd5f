package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// PrepaidElMeter 预付费电表表
type PrepaidElMeter struct {
	MeterID   string `gorm:"primaryKey;type:varchar(36)"`
	OrgID     string `gorm:"type:varchar(36);not null;index"`
	DeviceID  string `gorm:"type:varchar(36);index"` // 关联设备，删除后置空
	TariffCfg `gorm:"embedded"`

	WaringAmount *decimal.Decimal `gorm:"type:decimal(10,2)"`                           // 预警金额(元)
	TripAmount   *decimal.Decimal `gorm:"type:decimal(10,2)"`                           // 可透支金额(元)
	Surplus      decimal.Decimal  `gorm:"type:decimal(20,10);not null;default:0"`       // 电费余额(元)
	SurplusState string           `gorm:"type:varchar(20);not null;default:'normal'"`   // 余额状态
	SettleTime   *time.Time       // 余额结算时间
	FirstEpi     *float64         // 电表初始码值(度)
	UsedEl       float64          `gorm:"default:0"`                                    // 累计耗电量(度)

	// 上次结算的码值水位（总码值 + 各档位码值），下次结算的基线
	LastEpi           *float64
	LastTopEpi        *float64
	LastOnPeakEpi     *float64
	LastFlatEpi       *float64
	LastValleyEpi     *float64
	LastDeepValleyEpi *float64

	RechargeAmount decimal.Decimal `gorm:"type:decimal(15,2);not null;default:0"` // 租客累计充值金额(元)
	RealAmount     decimal.Decimal `gorm:"type:decimal(15,2);not null;default:0"` // 累计收益金额(元)

	// 软删除：保留资金流水，冻结删除时的设备标识
	DelDeviceKey  string `gorm:"type:varchar(20)"`
	DelDeviceInfo string `gorm:"type:json"`
	IsDeleted     bool   `gorm:"default:false;index"`

	CreatedTime time.Time `gorm:"autoCreateTime"`
	UpdatedTime time.Time `gorm:"autoUpdateTime"`
}

// TableName 指定表名
func (PrepaidElMeter) TableName() string {
	return "prepaid_el_meter"
}
