package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// RechargeOrder 充值订单表
type RechargeOrder struct {
	OutTradeNo  string          `gorm:"primaryKey;type:varchar(32)"`                 // 商户订单号
	UserID      string          `gorm:"type:varchar(36);not null;index"`             // 充值用户
	MeterID     *string         `gorm:"type:varchar(36);index"`                      // 预付费电表，电表删除后置空
	OrgID       string          `gorm:"type:varchar(36);index"`                      // 收款组织（下单时快照）
	TradeState  string          `gorm:"type:varchar(20);not null;default:'PENDING';index"` // 订单交易状态
	TradeType   string          `gorm:"type:varchar(20)"`                            // 交易类型 JSAPI/NATIVE/...
	PaymentType string          `gorm:"type:varchar(20);not null;default:'wx'"`      // 支付方式
	Amount      decimal.Decimal `gorm:"type:decimal(13,2);not null"`                 // 充值金额(元)
	PayTime     *time.Time      // 支付时间
	Remark      string          `gorm:"type:varchar(200)"`
	CreateTime  time.Time       `gorm:"autoCreateTime;index"`
	UpdateTime  time.Time       `gorm:"autoUpdateTime"`
}

// TableName 指定表名
func (RechargeOrder) TableName() string {
	return "recharge_order"
}
