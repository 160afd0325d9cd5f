package data

import (
	"context"
	"errors"

	"prepaid-el-service/internal/biz"
	"prepaid-el-service/internal/data/model"

	pkgErrors "github.com/gaoyong06/go-pkg/errors"
	"github.com/go-kratos/kratos/v2/log"
	"gorm.io/gorm"
)

// fundPoolRepo 实现 biz.FundPoolRepo 接口
type fundPoolRepo struct {
	data *Data
	log  *log.Helper
}

// NewFundPoolRepo 创建资金池 repo
func NewFundPoolRepo(data *Data, logger log.Logger) biz.FundPoolRepo {
	return &fundPoolRepo{
		data: data,
		log:  log.NewHelper(logger),
	}
}

// GetFundPool 查询组织资金池
func (r *fundPoolRepo) GetFundPool(ctx context.Context, orgID string) (*biz.OrgFundPool, error) {
	var pool model.PrepaidOrgCfg
	err := r.data.db.WithContext(ctx).Where("org_id = ?", orgID).First(&pool).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, pkgErrors.WrapErrorWithLang(ctx, err, pkgErrors.ErrCodeDatabaseError)
	}
	return &biz.OrgFundPool{
		OrgID:           pool.OrgID,
		RechargeAmount:  pool.RechargeAmount,
		SumFee:          pool.SumFee,
		WithdrawnAmount: pool.WithdrawnAmount,
	}, nil
}
