package data

import (
	"context"
	"errors"
	"fmt"

	"prepaid-el-service/internal/biz"
	"prepaid-el-service/internal/conf"

	prepaidErrors "prepaid-el-service/internal/errors"

	pkgErrors "github.com/gaoyong06/go-pkg/errors"
	"github.com/go-kratos/kratos/v2/log"
	"github.com/wechatpay-apiv3/wechatpay-go/core"
	"github.com/wechatpay-apiv3/wechatpay-go/core/option"
	"github.com/wechatpay-apiv3/wechatpay-go/utils"
)

// wechatGateway 基于微信支付 APIv3 实现 biz.PaymentGateway
type wechatGateway struct {
	client *core.Client
	mchID  string
	log    *log.Helper
}

// NewWechatGateway 创建微信支付网关客户端
func NewWechatGateway(c *conf.Bootstrap, logger log.Logger) (biz.PaymentGateway, error) {
	if c.Wechatpay == nil {
		return nil, pkgErrors.NewBizErrorWithLang(context.Background(), prepaidErrors.ErrCodeGatewayConfigNil)
	}

	mchPrivateKey, err := utils.LoadPrivateKeyWithPath(c.Wechatpay.PrivateKeyPath)
	if err != nil {
		return nil, pkgErrors.WrapErrorWithLang(context.Background(), err, prepaidErrors.ErrCodeGatewayInitFailed)
	}

	client, err := core.NewClient(
		context.Background(),
		option.WithWechatPayAutoAuthCipher(
			c.Wechatpay.MchID, c.Wechatpay.MchSerialNo, mchPrivateKey, c.Wechatpay.ApiV3Key,
		),
	)
	if err != nil {
		return nil, pkgErrors.WrapErrorWithLang(context.Background(), err, prepaidErrors.ErrCodeGatewayInitFailed)
	}

	return &wechatGateway{
		client: client,
		mchID:  c.Wechatpay.MchID,
		log:    log.NewHelper(logger),
	}, nil
}

// asGatewayResult 把微信返回换成统一的网关结果
// APIv3 非 2xx 会以 APIError 形式返回，这里转回状态码交由对账判断
func asGatewayResult(result *core.APIResult, err error) (*biz.GatewayResult, error) {
	if err != nil {
		var apiErr *core.APIError
		if errors.As(err, &apiErr) {
			return &biz.GatewayResult{
				StatusCode: apiErr.StatusCode,
				Body:       []byte(apiErr.Body),
			}, nil
		}
		return nil, err
	}
	out := &biz.GatewayResult{}
	if result != nil && result.Response != nil {
		out.StatusCode = result.Response.StatusCode
	}
	return out, nil
}

// CloseOrder 关闭未支付订单
func (g *wechatGateway) CloseOrder(ctx context.Context, outTradeNo string) (*biz.GatewayResult, error) {
	url := fmt.Sprintf("https://api.mch.weixin.qq.com/v3/pay/transactions/out-trade-no/%s/close", outTradeNo)
	body := map[string]string{"mchid": g.mchID}

	result, err := g.client.Post(ctx, url, body)
	out, err := asGatewayResult(result, err)
	if err != nil {
		return nil, pkgErrors.WrapErrorWithLang(ctx, err, prepaidErrors.ErrCodeCloseOrderFailed)
	}
	return out, nil
}

// CancelTransfer 撤销商家转账
func (g *wechatGateway) CancelTransfer(ctx context.Context, outBillNo string) (*biz.GatewayResult, error) {
	url := fmt.Sprintf("https://api.mch.weixin.qq.com/v3/fund-app/mch-transfer/transfer-bills/out-bill-no/%s/cancel", outBillNo)

	result, err := g.client.Post(ctx, url, nil)
	out, err := asGatewayResult(result, err)
	if err != nil {
		return nil, pkgErrors.WrapErrorWithLang(ctx, err, prepaidErrors.ErrCodeCancelTransferFailed)
	}
	return out, nil
}
