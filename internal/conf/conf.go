package conf

import "time"

// Bootstrap 服务启动配置
// 由 kratos config 从 configs/config.yaml 扫描填充
type Bootstrap struct {
	Server    *Server    `json:"server"`
	Data      *Data      `json:"data"`
	Wechatpay *Wechatpay `json:"wechatpay"`
	Prepaid   *Prepaid   `json:"prepaid"`
}

// Server 服务端配置
type Server struct {
	Http *HTTP `json:"http"`
}

// HTTP HTTP 服务配置
type HTTP struct {
	Network string `json:"network"`
	Addr    string `json:"addr"`
	Timeout int64  `json:"timeout"` // 秒
}

// Data 数据层配置
type Data struct {
	Database *Database `json:"database"`
	Redis    *Redis    `json:"redis"`
	Rocketmq *Rocketmq `json:"rocketmq"`
}

// Database 数据库配置
type Database struct {
	Driver string `json:"driver"`
	Source string `json:"source"`
}

// Redis Redis 配置
type Redis struct {
	Addr         string `json:"addr"`
	Password     string `json:"password"`
	Db           int    `json:"db"`
	ReadTimeout  int64  `json:"read_timeout"`  // 秒
	WriteTimeout int64  `json:"write_timeout"` // 秒
}

// Rocketmq RocketMQ 配置
type Rocketmq struct {
	Enabled     bool     `json:"enabled"`
	NameServers []string `json:"name_servers"`
	// MeterReadTopic 抄表事件消费主题
	MeterReadTopic string `json:"meter_read_topic"`
	// TripCommandTopic 分闸指令发布主题
	TripCommandTopic string `json:"trip_command_topic"`
	GroupName        string `json:"group_name"`
	RetryTimes       int32  `json:"retry_times"`
}

// Wechatpay 微信支付商户配置
type Wechatpay struct {
	MchID          string `json:"mch_id"`
	MchSerialNo    string `json:"mch_serial_no"`
	PrivateKeyPath string `json:"private_key_path"`
	ApiV3Key       string `json:"api_v3_key"`
	AppID          string `json:"app_id"`
}

// Prepaid 预付费引擎配置
type Prepaid struct {
	// SweepInterval 对账轮询间隔（分钟），默认 30
	SweepInterval int64 `json:"sweep_interval"`
	// GraceWindow 对账宽限期（分钟），早于该窗口的未支付订单/未完结转账才会被处理，默认 30
	GraceWindow int64 `json:"grace_window"`
	// GatewayTimeout 单次网关调用超时（秒），默认 10
	GatewayTimeout int64 `json:"gateway_timeout"`
	// ReconcileMaxRestarts 对账进程崩溃后的最大重启次数，默认 3
	ReconcileMaxRestarts int `json:"reconcile_max_restarts"`
}

// SweepIntervalDuration 对账轮询间隔
func (p *Prepaid) SweepIntervalDuration() time.Duration {
	if p == nil || p.SweepInterval <= 0 {
		return 30 * time.Minute
	}
	return time.Duration(p.SweepInterval) * time.Minute
}

// GraceWindowDuration 对账宽限期
func (p *Prepaid) GraceWindowDuration() time.Duration {
	if p == nil || p.GraceWindow <= 0 {
		return 30 * time.Minute
	}
	return time.Duration(p.GraceWindow) * time.Minute
}

// GatewayTimeoutDuration 单次网关调用超时
func (p *Prepaid) GatewayTimeoutDuration() time.Duration {
	if p == nil || p.GatewayTimeout <= 0 {
		return 10 * time.Second
	}
	return time.Duration(p.GatewayTimeout) * time.Second
}
