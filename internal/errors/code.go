package errors

import (
	pkgErrors "github.com/gaoyong06/go-pkg/errors"
	i18nPkg "github.com/gaoyong06/go-pkg/middleware/i18n"
)

func init() {
	// 初始化全局错误管理器（使用项目特定的配置）
	pkgErrors.InitGlobalErrorManager("i18n", i18nPkg.Language)
}

// Prepaid Electricity Service 错误码定义
// 错误码格式：SSMMEE (6位数字)
//   SS: 服务标识，预付费电费服务固定为 21
//   MM: 模块标识，按业务划分
//   EE: 模块内错误序号
//
// 模块划分：
//   00: 通用模块（复用 go-pkg 通用错误码）
//   01: 电表余额模块
//   02: 结算模块
//   03: 充值模块
//   04: 提现模块
//   05: 支付网关模块
//   06: 对账模块
//   07: 通用数据访问
//   08-99: 预留扩展

// 电表余额模块错误码 (210100-210199)
const (
	// ErrCodeMeterNotFound 电表不存在
	ErrCodeMeterNotFound = 210101
	// ErrCodeMeterUpdateFailed 电表更新失败
	ErrCodeMeterUpdateFailed = 210103
	// ErrCodeMeterAlreadyDeleted 电表重复删除
	ErrCodeMeterAlreadyDeleted = 210104
)

// 结算模块错误码 (210200-210299)
// 码值回退/电价缺失/乱序属于结算哨兵错误，只吸收不对外报码，
// 因此这里只保留真正出得了边界的错误
const (
	// ErrCodeSettleLockFailed 获取结算锁失败
	ErrCodeSettleLockFailed = 210203
)

// 充值模块错误码 (210300-210399)
const (
	// ErrCodeRechargeOrderNotFound 充值订单不存在
	ErrCodeRechargeOrderNotFound = 210301
	// ErrCodeRechargeOrderCreateFailed 充值订单创建失败
	ErrCodeRechargeOrderCreateFailed = 210302
	// ErrCodeRechargeCreditFailed 充值入账失败
	ErrCodeRechargeCreditFailed = 210303
	// ErrCodeInvalidTradeState 非法的订单交易状态
	ErrCodeInvalidTradeState = 210304
	// ErrCodeRechargeAmountInvalid 充值金额非法
	ErrCodeRechargeAmountInvalid = 210305
)

// 提现模块错误码 (210400-210499)
const (
	// ErrCodeWithdrawalNotFound 提现单不存在
	ErrCodeWithdrawalNotFound = 210401
	// ErrCodeInvalidTransferState 非法的转账状态
	ErrCodeInvalidTransferState = 210402
	// ErrCodeInvalidTransferTransition 非法的转账状态流转
	ErrCodeInvalidTransferTransition = 210403
	// ErrCodeWithdrawalFinishFailed 提现单完结失败
	ErrCodeWithdrawalFinishFailed = 210404
	// ErrCodeInsufficientAvailableCash 资金池可提现余额不足
	ErrCodeInsufficientAvailableCash = 210405
)

// 支付网关模块错误码 (210500-210599)
const (
	// ErrCodeGatewayConfigNil 支付网关配置为空
	ErrCodeGatewayConfigNil = 210501
	// ErrCodeGatewayInitFailed 支付网关初始化失败
	ErrCodeGatewayInitFailed = 210502
	// ErrCodeCloseOrderFailed 关闭订单失败
	ErrCodeCloseOrderFailed = 210503
	// ErrCodeCancelTransferFailed 撤销转账失败
	ErrCodeCancelTransferFailed = 210504
)

// 对账模块错误码 (210600-210699)
const (
	// ErrCodeSweepListOrdersFailed 扫描待关闭订单失败
	ErrCodeSweepListOrdersFailed = 210601
	// ErrCodeSweepListTransfersFailed 扫描未完结转账失败
	ErrCodeSweepListTransfersFailed = 210602
)

// 通用数据访问错误码 (210700-210799)
const (
	// ErrCodeFundPoolNotFound 组织资金池不存在
	ErrCodeFundPoolNotFound = 210701
	// ErrCodeFundPoolUpdateFailed 组织资金池更新失败
	ErrCodeFundPoolUpdateFailed = 210702
	// ErrCodeEventRecordCreateFailed 事件记录创建失败
	ErrCodeEventRecordCreateFailed = 210703
	// ErrCodeReadRecordCreateFailed 抄表记录创建失败
	ErrCodeReadRecordCreateFailed = 210704
	// ErrCodeRechargeRecordCreateFailed 充值记录创建失败
	ErrCodeRechargeRecordCreateFailed = 210705
)
