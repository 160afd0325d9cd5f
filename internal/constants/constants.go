package constants

// Redis Key 前缀常量
const (
	// RedisKeySurplus 电表余额缓存 key 前缀
	RedisKeySurplus = "surplus:"
	// RedisKeySettleLock 结算锁 key 前缀（按电表）
	RedisKeySettleLock = "settle:lock:"
)

// 充值订单交易状态常量（与微信支付 trade_state 对齐）
const (
	// TradeStatePending 待支付
	TradeStatePending = "PENDING"
	// TradeStateSuccess 支付成功
	TradeStateSuccess = "SUCCESS"
	// TradeStateRefund 转入退款
	TradeStateRefund = "REFUND"
	// TradeStateNotPay 未支付
	TradeStateNotPay = "NOTPAY"
	// TradeStateClosed 已关闭
	TradeStateClosed = "CLOSED"
	// TradeStateRevoked 已撤销
	TradeStateRevoked = "REVOKED"
	// TradeStateUserPaying 用户支付中
	TradeStateUserPaying = "USERPAYING"
	// TradeStatePayError 支付失败
	TradeStatePayError = "PAYERROR"
)

// 交易类型常量
const (
	// TradeTypeJSAPI 公众号、小程序
	TradeTypeJSAPI = "JSAPI"
	// TradeTypeNative Native
	TradeTypeNative = "NATIVE"
	// TradeTypeApp APP
	TradeTypeApp = "APP"
	// TradeTypeMicroPay 付款码支付
	TradeTypeMicroPay = "MICROPAY"
	// TradeTypeMWeb H5支付
	TradeTypeMWeb = "MWEB"
	// TradeTypeFacePay 刷脸支付
	TradeTypeFacePay = "FACEPAY"
)

// 充值方式常量
const (
	// PaymentTypeWechat 微信支付
	PaymentTypeWechat = "wx"
	// PaymentTypeOffline 线下充值
	PaymentTypeOffline = "off_line"
)

// 提现转账状态常量（与微信商家转账 state 对齐）
const (
	// TransferStateAccepted 转账已受理
	TransferStateAccepted = "ACCEPTED"
	// TransferStateWaitUserConfirm 待收款用户确认
	TransferStateWaitUserConfirm = "WAIT_USER_CONFIRM"
	// TransferStateTransfering 转账中
	TransferStateTransfering = "TRANSFERING"
	// TransferStateSuccess 转账成功
	TransferStateSuccess = "SUCCESS"
	// TransferStateFail 转账失败
	TransferStateFail = "FAIL"
	// TransferStateCancelled 转账已撤销
	TransferStateCancelled = "CANCELLED"
)

// 余额状态常量
const (
	// SurplusStateNormal 正常
	SurplusStateNormal = "normal"
	// SurplusStateWarming 预警
	SurplusStateWarming = "warming"
	// SurplusStateArrears 欠费
	SurplusStateArrears = "arrears"
)

// 事件类型常量
const (
	// EventTypeWarning 预警
	EventTypeWarning = "预警"
	// EventTypeArrears 欠费
	EventTypeArrears = "欠费"
	// EventTypeTrip 分闸
	EventTypeTrip = "分闸"
	// EventTypeClose 合闸
	EventTypeClose = "合闸"
	// EventTypeOnline 上线
	EventTypeOnline = "上线"
	// EventTypeOffline 下线
	EventTypeOffline = "下线"
)

// 电价费率档位常量
const (
	// TierTop 尖
	TierTop = "top"
	// TierOnPeak 峰
	TierOnPeak = "on_peak"
	// TierFlat 平
	TierFlat = "flat"
	// TierValley 谷
	TierValley = "valley"
	// TierDeepValley 深谷
	TierDeepValley = "deep_valley"
)

// 对账结果常量（用于指标）
const (
	// ReconcileResultClosed 已关闭
	ReconcileResultClosed = "closed"
	// ReconcileResultCancelled 已撤销
	ReconcileResultCancelled = "cancelled"
	// ReconcileResultSkipped 已跳过（CAS 未命中，其他写入方已处理）
	ReconcileResultSkipped = "skipped"
	// ReconcileResultError 错误
	ReconcileResultError = "error"
)

// 结算结果常量（用于指标）
const (
	// SettleResultApplied 已入账
	SettleResultApplied = "applied"
	// SettleResultBaseline 首次抄表建立基线
	SettleResultBaseline = "baseline"
	// SettleResultRejected 已拒绝（异常/配置错误）
	SettleResultRejected = "rejected"
)

// 订单ID前缀常量
const (
	// OrderIDPrefixRecharge 充值订单号前缀
	OrderIDPrefixRecharge = "recharge_"
	// OrderIDPrefixWithdrawal 提现单号前缀
	OrderIDPrefixWithdrawal = "withdraw_"
)
