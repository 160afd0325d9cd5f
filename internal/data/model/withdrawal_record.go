package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// WithdrawalRecord 提现记录表
// 不变量：is_finished=true 当且仅当 state ∈ {SUCCESS, FAIL, CANCELLED}
type WithdrawalRecord struct {
	OrderID        string          `gorm:"primaryKey;type:varchar(100)"`             // 商户单号
	OrgID          string          `gorm:"type:varchar(36);not null;index"`          // 所属组织
	UserID         string          `gorm:"type:varchar(36);not null"`                // 提现用户
	Amount         decimal.Decimal `gorm:"type:decimal(13,2);not null"`              // 金额(元)
	Surplus        decimal.Decimal `gorm:"type:decimal(13,2);not null"`              // 提现时资金池余额快照(元)
	TransferBillNo *string         `gorm:"type:varchar(100);uniqueIndex"`            // 微信转账单号
	State          string          `gorm:"type:varchar(20);not null;default:'ACCEPTED'"` // 单据状态
	IsFinished     bool            `gorm:"default:false;index"`                      // 是否完结
	OperatingTime  time.Time       `gorm:"autoCreateTime;index"`                     // 提现时间
	UpdateTime     *time.Time      // 最后一次状态变更时间
	Remark         string          `gorm:"type:varchar(200)"`
}

// TableName 指定表名
func (WithdrawalRecord) TableName() string {
	return "withdrawal_record"
}
