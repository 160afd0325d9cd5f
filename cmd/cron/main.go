package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"prepaid-el-service/internal/biz"
	"prepaid-el-service/internal/conf"

	"github.com/gaoyong06/go-pkg/logger"
	"github.com/go-kratos/kratos/v2/config"
	"github.com/go-kratos/kratos/v2/config/file"
	"github.com/go-kratos/kratos/v2/log"
	"github.com/robfig/cron/v3"
	_ "go.uber.org/automaxprocs"
)

var (
	flagconf string
)

func init() {
	flag.StringVar(&flagconf, "conf", "../../configs/config.yaml", "config path, eg: -conf config.yaml")
}

// CronApp Cron 应用结构
type CronApp struct {
	reconcileUsecase *biz.ReconcileUseCase
	prepaidConf      *conf.Prepaid
}

// newLogger 创建 logger（wire 注入用）
func newLogger() log.Logger {
	return log.With(log.NewStdLogger(os.Stdout),
		"ts", log.DefaultTimestamp,
		"caller", log.DefaultCaller,
		"service.name", "prepaid-el-cron",
	)
}

func main() {
	flag.Parse()

	// 初始化配置
	c := config.New(
		config.WithSource(
			file.NewSource(flagconf),
		),
	)
	defer c.Close()

	if err := c.Load(); err != nil {
		panic(err)
	}

	var bc conf.Bootstrap
	if err := c.Scan(&bc); err != nil {
		panic(err)
	}

	// 初始化日志 (使用 go-pkg/logger)
	logConfig := &logger.Config{
		Level:         "info",
		Format:        "json",
		Output:        "stdout",
		FilePath:      "logs/prepaid-el-cron.log",
		MaxSize:       100,
		MaxAge:        30,
		MaxBackups:    10,
		Compress:      true,
		EnableConsole: true,
	}

	loggerInstance := logger.NewLogger(logConfig)

	// 添加基本字段
	loggerInstance = log.With(loggerInstance,
		"ts", log.DefaultTimestamp,
		"caller", log.DefaultCaller,
		"service.name", "prepaid-el-cron",
	)

	logHelper := log.NewHelper(loggerInstance)

	// 初始化应用
	app, cleanup, err := wireApp(&bc)
	if err != nil {
		panic(err)
	}
	defer cleanup()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	// 单次对账崩溃只算一次，超过上限就退出交给进程管理器
	maxRestarts := app.prepaidConf.ReconcileMaxRestarts
	if maxRestarts <= 0 {
		maxRestarts = 3
	}
	var crashCount int32

	runSweep := func() {
		defer func() {
			if r := recover(); r != nil {
				count := atomic.AddInt32(&crashCount, 1)
				logHelper.Errorf("[CRON] Reconcile sweep panic (%d/%d): %v", count, maxRestarts, r)
				if int(count) >= maxRestarts {
					logHelper.Error("[CRON] Reconcile crash limit reached, shutting down")
					quit <- syscall.SIGTERM
				}
			}
		}()
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
		defer cancel()
		app.reconcileUsecase.Sweep(ctx)
	}

	// 定时对账：关闭超期未支付订单、撤销未完结转账
	interval := app.prepaidConf.SweepIntervalDuration()
	cronScheduler := cron.New(cron.WithSeconds())
	_, err = cronScheduler.AddFunc(fmt.Sprintf("@every %s", interval), runSweep)
	if err != nil {
		logHelper.Errorf("Failed to add reconcile sweep job: %v", err)
	}

	// 启动即跑一轮，进程重启不丢周期
	go runSweep()

	cronScheduler.Start()
	logHelper.Info("========================================")
	logHelper.Info("Cron jobs started successfully")
	logHelper.Infof("  - Reconcile sweep: every %s", interval)
	logHelper.Info("========================================")

	// 优雅退出
	<-quit

	logHelper.Info("Shutting down gracefully...")

	// 停止定时任务
	stopCtx := cronScheduler.Stop()
	select {
	case <-stopCtx.Done():
		logHelper.Info("Cron jobs stopped gracefully")
	case <-time.After(5 * time.Second):
		logHelper.Info("Cron jobs forced to stop after timeout")
	}
}
