package biz

import (
	"context"
)

// GatewayResult 支付网关调用结果
// 对账只关心状态码是否 2xx，响应体留作日志排障
type GatewayResult struct {
	StatusCode int
	Body       []byte
}

// OK 网关是否应答 2xx
func (r *GatewayResult) OK() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// PaymentGateway 支付网关能力接口（定义在 biz 层）
// 对账先在网关侧生效，再以网关成功为前提推进本地状态
type PaymentGateway interface {
	// CloseOrder 关闭未支付订单
	CloseOrder(ctx context.Context, outTradeNo string) (*GatewayResult, error)
	// CancelTransfer 撤销商家转账
	CancelTransfer(ctx context.Context, outBillNo string) (*GatewayResult, error)
}
