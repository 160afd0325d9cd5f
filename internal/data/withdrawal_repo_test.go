package data

import (
	"context"
	"testing"
	"time"

	"prepaid-el-service/internal/biz"
	"prepaid-el-service/internal/constants"
	"prepaid-el-service/internal/data/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedPool(t *testing.T, d *Data, orgID, recharge, withdrawn string) {
	t.Helper()
	require.NoError(t, d.db.Create(&model.PrepaidOrgCfg{
		OrgID:           orgID,
		RechargeAmount:  mustDec(recharge),
		WithdrawnAmount: mustDec(withdrawn),
	}).Error)
}

func TestCreateWithdrawalReservesFunds(t *testing.T) {
	d := newTestData(t)
	repo := NewWithdrawalRepo(d, testLogger())
	ctx := context.Background()

	seedPool(t, d, "org1", "100", "0")

	w := &biz.Withdrawal{OrgID: "org1", UserID: "u1", Amount: mustDec("60")}
	require.NoError(t, repo.CreateWithdrawal(ctx, w))
	assert.NotEmpty(t, w.OrderID)

	var pool model.PrepaidOrgCfg
	require.NoError(t, d.db.Where("org_id = ?", "org1").First(&pool).Error)
	assert.True(t, pool.WithdrawnAmount.Equal(mustDec("60")))

	// 可用余额只剩 40，再提 50 必须被余额条件挡住
	err := repo.CreateWithdrawal(ctx, &biz.Withdrawal{OrgID: "org1", UserID: "u1", Amount: mustDec("50")})
	assert.Error(t, err)

	require.NoError(t, d.db.Where("org_id = ?", "org1").First(&pool).Error)
	assert.True(t, pool.WithdrawnAmount.Equal(mustDec("60")))

	var count int64
	d.db.Model(&model.WithdrawalRecord{}).Count(&count)
	assert.EqualValues(t, 1, count)
}

func TestFinishTransferRefundsPool(t *testing.T) {
	d := newTestData(t)
	repo := NewWithdrawalRepo(d, testLogger())
	ctx := context.Background()

	seedPool(t, d, "org1", "100", "60")
	require.NoError(t, d.db.Create(&model.WithdrawalRecord{
		OrderID: "w1",
		OrgID:   "org1",
		UserID:  "u1",
		Amount:  mustDec("60"),
		Surplus: mustDec("100"),
		State:   constants.TransferStateTransfering,
	}).Error)

	outcome, err := repo.FinishTransfer(ctx, "w1", constants.TransferStateCancelled, nil)
	require.NoError(t, err)
	assert.False(t, outcome.Duplicate)
	assert.True(t, outcome.Refunded)

	// 钱没转出去，已提现金额回补
	var pool model.PrepaidOrgCfg
	require.NoError(t, d.db.Where("org_id = ?", "org1").First(&pool).Error)
	assert.True(t, pool.WithdrawnAmount.IsZero())

	var w model.WithdrawalRecord
	require.NoError(t, d.db.Where("order_id = ?", "w1").First(&w).Error)
	assert.True(t, w.IsFinished)
	assert.Equal(t, constants.TransferStateCancelled, w.State)

	// 完结位只翻转一次：重复完结是幂等命中，不会二次回补
	outcome, err = repo.FinishTransfer(ctx, "w1", constants.TransferStateSuccess, nil)
	require.NoError(t, err)
	assert.True(t, outcome.Duplicate)
	assert.Equal(t, constants.TransferStateCancelled, outcome.State)

	require.NoError(t, d.db.Where("org_id = ?", "org1").First(&pool).Error)
	assert.True(t, pool.WithdrawnAmount.IsZero())
}

func TestFinishTransferSuccessKeepsFunds(t *testing.T) {
	d := newTestData(t)
	repo := NewWithdrawalRepo(d, testLogger())
	ctx := context.Background()

	seedPool(t, d, "org1", "100", "60")
	require.NoError(t, d.db.Create(&model.WithdrawalRecord{
		OrderID: "w1",
		OrgID:   "org1",
		UserID:  "u1",
		Amount:  mustDec("60"),
		Surplus: mustDec("100"),
		State:   constants.TransferStateTransfering,
	}).Error)

	billNo := "wx_bill_1"
	outcome, err := repo.FinishTransfer(ctx, "w1", constants.TransferStateSuccess, &billNo)
	require.NoError(t, err)
	assert.False(t, outcome.Refunded)

	// 转账成功，已提现金额保持
	var pool model.PrepaidOrgCfg
	require.NoError(t, d.db.Where("org_id = ?", "org1").First(&pool).Error)
	assert.True(t, pool.WithdrawnAmount.Equal(mustDec("60")))

	var w model.WithdrawalRecord
	require.NoError(t, d.db.Where("order_id = ?", "w1").First(&w).Error)
	require.NotNil(t, w.TransferBillNo)
	assert.Equal(t, "wx_bill_1", *w.TransferBillNo)
}

func TestUpdateTransferStateCAS(t *testing.T) {
	d := newTestData(t)
	repo := NewWithdrawalRepo(d, testLogger())
	ctx := context.Background()

	require.NoError(t, d.db.Create(&model.WithdrawalRecord{
		OrderID: "w1",
		OrgID:   "org1",
		UserID:  "u1",
		Amount:  mustDec("10"),
		Surplus: mustDec("10"),
		State:   constants.TransferStateAccepted,
	}).Error)

	updated, err := repo.UpdateTransferState(ctx, "w1", constants.TransferStateAccepted, constants.TransferStateTransfering, nil)
	require.NoError(t, err)
	assert.True(t, updated)

	// 以过期的旧状态为条件：落空
	updated, err = repo.UpdateTransferState(ctx, "w1", constants.TransferStateAccepted, constants.TransferStateWaitUserConfirm, nil)
	require.NoError(t, err)
	assert.False(t, updated)

	var w model.WithdrawalRecord
	require.NoError(t, d.db.Where("order_id = ?", "w1").First(&w).Error)
	assert.Equal(t, constants.TransferStateTransfering, w.State)

	// 未完结扫描
	unfinished, err := repo.ListUnfinished(ctx, time.Now().Add(time.Second))
	require.NoError(t, err)
	require.Len(t, unfinished, 1)
	assert.Equal(t, "w1", unfinished[0].OrderID)
}

func TestListUnfinishedHonorsCutoff(t *testing.T) {
	d := newTestData(t)
	repo := NewWithdrawalRepo(d, testLogger())
	ctx := context.Background()

	now := time.Now()
	require.NoError(t, d.db.Create(&model.WithdrawalRecord{
		OrderID:       "old",
		OrgID:         "org1",
		UserID:        "u1",
		Amount:        mustDec("10"),
		Surplus:       mustDec("10"),
		State:         constants.TransferStateTransfering,
		OperatingTime: now.Add(-time.Hour),
	}).Error)
	require.NoError(t, d.db.Create(&model.WithdrawalRecord{
		OrderID:       "fresh",
		OrgID:         "org1",
		UserID:        "u1",
		Amount:        mustDec("10"),
		Surplus:       mustDec("10"),
		State:         constants.TransferStateTransfering,
		OperatingTime: now.Add(-time.Minute),
	}).Error)

	// 宽限期内的新单不进扫描结果
	unfinished, err := repo.ListUnfinished(ctx, now.Add(-30*time.Minute))
	require.NoError(t, err)
	require.Len(t, unfinished, 1)
	assert.Equal(t, "old", unfinished[0].OrderID)
}
