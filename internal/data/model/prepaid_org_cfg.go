package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// PrepaidOrgCfg 组织资金池表，一个组织一行
// 不变量：recharge_amount - withdrawn_amount >= 0（任何已提交的流转之后）
type PrepaidOrgCfg struct {
	OrgID           string          `gorm:"primaryKey;type:varchar(36)"`
	RechargeAmount  decimal.Decimal `gorm:"type:decimal(15,2);not null;default:0"` // 租客累计充值收益金额(元)
	SumFee          decimal.Decimal `gorm:"type:decimal(13,2);not null;default:0"` // 总支付费率(元)
	WithdrawnAmount decimal.Decimal `gorm:"type:decimal(15,2);not null;default:0"` // 已提现金额(元)
	CreatedTime     time.Time       `gorm:"autoCreateTime"`
	UpdatedTime     time.Time       `gorm:"autoUpdateTime"`
}

// TableName 指定表名
func (PrepaidOrgCfg) TableName() string {
	return "prepaid_org_cfg"
}

// AvailableCash 获取剩余可提现金额
func (c *PrepaidOrgCfg) AvailableCash() decimal.Decimal {
	return c.RechargeAmount.Sub(c.WithdrawnAmount)
}
