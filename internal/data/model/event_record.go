package model

import (
	"time"
)

// EventRecord 事件记录表（只追加，对外可见的电表事件轨迹）
type EventRecord struct {
	EventRecordID string    `gorm:"primaryKey;type:varchar(36)"`
	MeterID       string    `gorm:"type:varchar(36);not null;index"`
	DeviceID      string    `gorm:"type:varchar(36)"`
	EventType     string    `gorm:"type:varchar(10);not null"` // 预警/欠费/分闸/合闸/上线/下线
	CreatedTime   time.Time `gorm:"autoCreateTime"`
}

// TableName 指定表名
func (EventRecord) TableName() string {
	return "event_record"
}
