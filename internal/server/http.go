package server

import (
	"context"
	"time"

	"prepaid-el-service/internal/conf"
	"prepaid-el-service/internal/service"

	"github.com/go-kratos/kratos/v2/middleware/recovery"
	"github.com/go-kratos/kratos/v2/transport/http"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// NewHTTPServer 创建 HTTP 服务器
// 回调路由保证应答 2xx 之前所有状态流转已落库
func NewHTTPServer(c *conf.Bootstrap, prepaid *service.PrepaidService, webhook *service.WebhookService) *http.Server {
	var opts = []http.ServerOption{
		http.Middleware(
			recovery.Recovery(),
		),
	}
	if c.Server != nil && c.Server.Http != nil {
		if c.Server.Http.Network != "" {
			opts = append(opts, http.Network(c.Server.Http.Network))
		}
		if c.Server.Http.Addr != "" {
			opts = append(opts, http.Address(c.Server.Http.Addr))
		}
		if c.Server.Http.Timeout > 0 {
			opts = append(opts, http.Timeout(time.Duration(c.Server.Http.Timeout)*time.Second))
		}
	}
	srv := http.NewServer(opts...)

	srv.Handle("/metrics", promhttp.Handler())
	registerPrepaidRoutes(srv, prepaid)
	registerWebhookRoutes(srv, webhook)
	return srv
}

// handleJSON 统一的 JSON 路由处理：绑定请求体，过中间件，回写结果
func handleJSON[Req any, Reply any](call func(context.Context, *Req) (*Reply, error)) func(http.Context) error {
	return func(ctx http.Context) error {
		var req Req
		if err := ctx.Bind(&req); err != nil {
			return err
		}
		h := ctx.Middleware(func(c context.Context, in interface{}) (interface{}, error) {
			return call(c, in.(*Req))
		})
		out, err := h(ctx, &req)
		if err != nil {
			return err
		}
		return ctx.Result(200, out)
	}
}

func registerPrepaidRoutes(srv *http.Server, svc *service.PrepaidService) {
	r := srv.Route("/v1")
	r.POST("/meter/get", handleJSON(svc.GetMeter))
	r.POST("/meter/delete", handleJSON(svc.DeleteMeter))
	r.POST("/meter/offline-recharge", handleJSON(svc.OfflineRecharge))
	r.POST("/recharge/order", handleJSON(svc.CreateRechargeOrder))
	r.POST("/withdrawal/create", handleJSON(svc.CreateWithdrawal))
	r.POST("/fund-pool/get", handleJSON(svc.GetFundPool))
}

func registerWebhookRoutes(srv *http.Server, svc *service.WebhookService) {
	r := srv.Route("/v1/notify")
	r.POST("/recharge", handleJSON(svc.RechargeNotify))
	r.POST("/transfer", handleJSON(svc.TransferNotify))
}
