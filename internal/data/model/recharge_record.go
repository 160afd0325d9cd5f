package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// RechargeRecord 充值记录表（只追加，一次成功充值一行）
type RechargeRecord struct {
	RechargeRecordID string           `gorm:"primaryKey;type:varchar(36)"`
	UserID           string           `gorm:"type:varchar(36);not null;index"`
	MeterID          string           `gorm:"type:varchar(36);not null;index"`
	OrderID          string           `gorm:"type:varchar(100);not null;uniqueIndex"` // 订单编号
	PaymentType      string           `gorm:"type:varchar(20);not null"`              // wx/off_line
	Surplus          decimal.Decimal  `gorm:"type:decimal(20,10);not null"`           // 充值后余额(元)
	Amount           decimal.Decimal  `gorm:"type:decimal(13,2);not null"`            // 充值金额(元)
	RealAmount       *decimal.Decimal `gorm:"type:decimal(13,2)"`                     // 实际到账金额(元)
	Fee              *decimal.Decimal `gorm:"type:decimal(13,2)"`                     // 手续费(元)
	PrepayID         string           `gorm:"type:varchar(100)"`                      // 支付渠道返回的支付单号
	IsRevenue        bool             `gorm:"default:true"`                           // 是否计入收益
	Remark           string           `gorm:"type:varchar(200)"`
	CreatedTime      time.Time        `gorm:"autoCreateTime"` // 充值时间
}

// TableName 指定表名
func (RechargeRecord) TableName() string {
	return "recharge_record"
}
