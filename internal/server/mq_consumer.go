package server

import (
	"context"
	"encoding/json"

	"prepaid-el-service/internal/biz"
	"prepaid-el-service/internal/conf"

	"github.com/apache/rocketmq-client-go/v2"
	"github.com/apache/rocketmq-client-go/v2/consumer"
	"github.com/apache/rocketmq-client-go/v2/primitive"
	"github.com/go-kratos/kratos/v2/log"
)

// MQConsumerServer 消费设备上报的抄表事件
type MQConsumerServer struct {
	c       rocketmq.PushConsumer
	uc      *biz.SettlementUseCase
	conf    *conf.Rocketmq
	log     *log.Helper
	enabled bool
}

// NewMQConsumerServer 创建抄表事件消费端
func NewMQConsumerServer(c *conf.Bootstrap, uc *biz.SettlementUseCase, logger log.Logger) *MQConsumerServer {
	helper := log.NewHelper(logger)
	if c.Data == nil || c.Data.Rocketmq == nil || !c.Data.Rocketmq.Enabled {
		return &MQConsumerServer{enabled: false, log: helper}
	}
	mqConf := c.Data.Rocketmq

	r, err := rocketmq.NewPushConsumer(
		consumer.WithNsResolver(primitive.NewPassthroughResolver(mqConf.NameServers)),
		consumer.WithGroupName(mqConf.GroupName),
		consumer.WithRetry(int(mqConf.RetryTimes)),
		// 同一电表的消息按 key 有序投递，消费侧仍有结算锁兜底
		consumer.WithConsumerModel(consumer.Clustering),
	)
	if err != nil {
		helper.Errorf("init consumer error: %v", err)
		return &MQConsumerServer{enabled: false, log: helper}
	}

	return &MQConsumerServer{
		c:       r,
		uc:      uc,
		conf:    mqConf,
		log:     helper,
		enabled: true,
	}
}

// Start 启动消费
func (s *MQConsumerServer) Start(ctx context.Context) error {
	if !s.enabled {
		s.log.Infof("MQConsumerServer is disabled, skipping startup")
		return nil
	}

	s.log.Infof("Starting MQConsumerServer, topic: %s", s.conf.MeterReadTopic)

	err := s.c.Subscribe(s.conf.MeterReadTopic, consumer.MessageSelector{}, s.handler)
	if err != nil {
		s.log.Errorf("Failed to subscribe to topic %s: %v", s.conf.MeterReadTopic, err)
		// 不返回错误，避免导致整个应用启动失败
		return nil
	}

	if err := s.c.Start(); err != nil {
		s.log.Errorf("Failed to start RocketMQ consumer: %v", err)
		return nil
	}
	return nil
}

// Stop 停止消费
func (s *MQConsumerServer) Stop(ctx context.Context) error {
	if !s.enabled || s.c == nil {
		return nil
	}
	s.log.Info("Stopping MQConsumerServer")
	return s.c.Shutdown()
}

// handler 处理一批抄表消息
// 结算异常在 UseCase 内吸收不重投，只有数据库等基础设施错误会触发重试
func (s *MQConsumerServer) handler(ctx context.Context, msgs ...*primitive.MessageExt) (consumer.ConsumeResult, error) {
	for _, msg := range msgs {
		var reading biz.SettleReading
		if err := json.Unmarshal(msg.Body, &reading); err != nil {
			s.log.Errorf("Unmarshal meter read failed: %v, body: %s", err, string(msg.Body))
			continue
		}
		if err := s.uc.HandleReading(ctx, &reading); err != nil {
			s.log.Errorf("HandleReading failed: meter_id=%s, error=%v", reading.MeterID, err)
			return consumer.ConsumeRetryLater, nil
		}
	}
	return consumer.ConsumeSuccess, nil
}
