package data

import (
	"fmt"
	"io"
	"testing"

	"prepaid-el-service/internal/data/model"

	"github.com/glebarez/sqlite"
	"github.com/go-kratos/kratos/v2/log"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// newTestData 每个测试一个独立的内存库
// rdb/mq 留空，仓储实现对缺失的缓存与消息队列自动降级
func newTestData(t *testing.T) *Data {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&model.PrepaidElMeter{},
		&model.MeterReadRecord{},
		&model.RechargeOrder{},
		&model.RechargeRecord{},
		&model.WithdrawalRecord{},
		&model.PrepaidOrgCfg{},
		&model.EventRecord{},
	))
	return &Data{db: db}
}

func testLogger() log.Logger {
	return log.NewStdLogger(io.Discard)
}

func mustDec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func mustDecPtr(s string) *decimal.Decimal {
	d := mustDec(s)
	return &d
}
