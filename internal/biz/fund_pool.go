package biz

import (
	"context"

	prepaidErrors "prepaid-el-service/internal/errors"

	pkgErrors "github.com/gaoyong06/go-pkg/errors"
	"github.com/go-kratos/kratos/v2/log"
	"github.com/shopspring/decimal"
)

// OrgFundPool 组织资金池领域对象
// 可用余额 = 累计收益 - 已提现，任何时刻不允许为负
type OrgFundPool struct {
	OrgID           string
	RechargeAmount  decimal.Decimal // 累计收益金额(元)，只随线上充值入账增长
	SumFee          decimal.Decimal // 累计支付手续费(元)
	WithdrawnAmount decimal.Decimal // 已提现金额(元)
}

// AvailableCash 当前可提现余额(元)
func (p *OrgFundPool) AvailableCash() decimal.Decimal {
	return p.RechargeAmount.Sub(p.WithdrawnAmount)
}

// FundPoolRepo 组织资金池数据层接口（定义在 biz 层）
type FundPoolRepo interface {
	GetFundPool(ctx context.Context, orgID string) (*OrgFundPool, error)
}

// FundPoolUseCase 组织资金池业务逻辑
type FundPoolUseCase struct {
	repo FundPoolRepo
	log  *log.Helper
}

// NewFundPoolUseCase 创建资金池 UseCase
func NewFundPoolUseCase(repo FundPoolRepo, logger log.Logger) *FundPoolUseCase {
	return &FundPoolUseCase{
		repo: repo,
		log:  log.NewHelper(logger),
	}
}

// GetFundPool 获取组织资金池
func (uc *FundPoolUseCase) GetFundPool(ctx context.Context, orgID string) (*OrgFundPool, error) {
	pool, err := uc.repo.GetFundPool(ctx, orgID)
	if err != nil {
		return nil, err
	}
	if pool == nil {
		return nil, pkgErrors.NewBizErrorWithLang(ctx, prepaidErrors.ErrCodeFundPoolNotFound)
	}
	return pool, nil
}
