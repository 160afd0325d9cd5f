package biz

import (
	"prepaid-el-service/internal/conf"

	"github.com/google/wire"
)

// ProviderSet is biz providers.
var ProviderSet = wire.NewSet(
	NewMeterUseCase,
	NewSettlementUseCase,
	NewRechargeOrderUseCase,
	NewWithdrawalUseCase,
	NewFundPoolUseCase,
	NewReconcileUseCase,
	NewPrepaidConf,
)

// NewPrepaidConf 从启动配置中提取预付费引擎配置
func NewPrepaidConf(bc *conf.Bootstrap) *conf.Prepaid {
	if bc.Prepaid == nil {
		return &conf.Prepaid{}
	}
	return bc.Prepaid
}
