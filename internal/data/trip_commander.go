package data

import (
	"context"
	"encoding/json"
	"time"

	"prepaid-el-service/internal/biz"
	"prepaid-el-service/internal/conf"
	"prepaid-el-service/internal/constants"

	"github.com/apache/rocketmq-client-go/v2/primitive"
	"github.com/go-kratos/kratos/v2/log"
)

// TripCommand 分闸指令消息体（设备网关消费后执行物理分闸）
type TripCommand struct {
	MeterID   string    `json:"meter_id"`
	DeviceID  string    `json:"device_id"`
	EventType string    `json:"event_type"`
	IssuedAt  time.Time `json:"issued_at"`
}

// tripCommander 基于 RocketMQ 实现 biz.TripCommander
type tripCommander struct {
	data  *Data
	topic string
	log   *log.Helper
}

// NewTripCommander 创建分闸指令发布端
func NewTripCommander(data *Data, c *conf.Bootstrap, logger log.Logger) biz.TripCommander {
	topic := ""
	if c.Data != nil && c.Data.Rocketmq != nil {
		topic = c.Data.Rocketmq.TripCommandTopic
	}
	return &tripCommander{
		data:  data,
		topic: topic,
		log:   log.NewHelper(logger),
	}
}

// SendTripCommand 发布分闸指令
// MQ 未启用时只记日志：分闸事件已随结算落库，指令可由人工补发
func (t *tripCommander) SendTripCommand(ctx context.Context, meterID, deviceID string) error {
	if t.data.mq == nil || t.topic == "" {
		t.log.Warnf("Trip command not delivered (mq disabled): meter_id=%s, device_id=%s", meterID, deviceID)
		return nil
	}

	cmd := TripCommand{
		MeterID:   meterID,
		DeviceID:  deviceID,
		EventType: constants.EventTypeTrip,
		IssuedAt:  time.Now(),
	}
	msgBytes, err := json.Marshal(&cmd)
	if err != nil {
		return err
	}
	msg := primitive.NewMessage(t.topic, msgBytes)
	msg.WithKeys([]string{meterID})

	if _, err := t.data.mq.SendSync(ctx, msg); err != nil {
		t.log.Errorf("Send trip command failed: meter_id=%s, error=%v", meterID, err)
		return err
	}
	t.log.Infof("Trip command sent: meter_id=%s, device_id=%s", meterID, deviceID)
	return nil
}
