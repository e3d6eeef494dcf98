// Package config 基于 viper 的分层配置：默认值 < 配置文件 < SETTLE_ 前缀环境变量
package config

import (
	"fmt"
	"strings"
	"time"
)

// Config 应用配置
type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Redis      RedisConfig      `mapstructure:"redis"`
	RabbitMQ   RabbitMQConfig   `mapstructure:"rabbitmq"`
	JWT        JWTConfig        `mapstructure:"jwt"`
	Logger     LoggerConfig     `mapstructure:"logger"`
	Metrics    MetricsConfig    `mapstructure:"metrics"`
	Tracing    TracingConfig    `mapstructure:"tracing"`
	RateLimit  RateLimitConfig  `mapstructure:"ratelimit"`
	Snowflake  SnowflakeConfig  `mapstructure:"snowflake"`
	WeChatPay  WeChatPayConfig  `mapstructure:"wechatpay"`
	Business   BusinessConfig   `mapstructure:"business"`
	Settlement SettlementConfig `mapstructure:"settlement"`
}

// ServerConfig 服务配置，Mode 取 debug、release 或 test
type ServerConfig struct {
	Name            string `mapstructure:"name"`
	Mode            string `mapstructure:"mode"`
	Port            int    `mapstructure:"port"`
	ReadTimeout     int    `mapstructure:"read_timeout"`
	WriteTimeout    int    `mapstructure:"write_timeout"`
	ShutdownTimeout int    `mapstructure:"shutdown_timeout"`
}

// DatabaseConfig 数据库配置
type DatabaseConfig struct {
	Driver          string `mapstructure:"driver"`
	Host            string `mapstructure:"host"`
	Port            int    `mapstructure:"port"`
	User            string `mapstructure:"user"`
	Password        string `mapstructure:"password"`
	Name            string `mapstructure:"name"`
	SSLMode         string `mapstructure:"sslmode"`
	Timezone        string `mapstructure:"timezone"`
	MaxIdleConns    int    `mapstructure:"max_idle_conns"`
	MaxOpenConns    int    `mapstructure:"max_open_conns"`
	ConnMaxLifetime int    `mapstructure:"conn_max_lifetime"`
	LogMode         bool   `mapstructure:"log_mode"`
	SlowThreshold   int    `mapstructure:"slow_threshold"`
}

// DSN 返回数据库连接字符串
func (d *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s TimeZone=%s",
		d.Host, d.Port, d.User, d.Password, d.Name, d.SSLMode, d.Timezone,
	)
}

// RedisConfig Redis配置
type RedisConfig struct {
	Host         string `mapstructure:"host"`
	Port         int    `mapstructure:"port"`
	Password     string `mapstructure:"password"`
	DB           int    `mapstructure:"db"`
	PoolSize     int    `mapstructure:"pool_size"`
	MinIdleConns int    `mapstructure:"min_idle_conns"`
	DialTimeout  int    `mapstructure:"dial_timeout"`
	ReadTimeout  int    `mapstructure:"read_timeout"`
	WriteTimeout int    `mapstructure:"write_timeout"`
}

// Addr 返回 Redis 地址
func (r *RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

// RabbitMQConfig 消息队列配置
type RabbitMQConfig struct {
	Host          string `mapstructure:"host"`
	Port          int    `mapstructure:"port"`
	User          string `mapstructure:"user"`
	Password      string `mapstructure:"password"`
	VHost         string `mapstructure:"vhost"`
	Exchange      string `mapstructure:"exchange"`
	PrefetchCount int    `mapstructure:"prefetch_count"`
	MaxAttempts   int    `mapstructure:"max_attempts"`
	RetryBaseSec  int    `mapstructure:"retry_base_sec"`
}

// URL 返回 AMQP 连接地址
func (r *RabbitMQConfig) URL() string {
	return fmt.Sprintf("amqp://%s:%s@%s:%d/%s", r.User, r.Password, r.Host, r.Port, strings.TrimPrefix(r.VHost, "/"))
}

// RetryBase 返回首次重试的退避时长
func (r *RabbitMQConfig) RetryBase() time.Duration {
	return time.Duration(r.RetryBaseSec) * time.Second
}

// JWTConfig 令牌由上游认证服务签发，这里只做校验
type JWTConfig struct {
	Secret            string `mapstructure:"secret"`
	AccessTokenExpire int    `mapstructure:"access_token_expire"` // 小时
	Issuer            string `mapstructure:"issuer"`
}

func (j *JWTConfig) AccessTokenDuration() time.Duration {
	return time.Duration(j.AccessTokenExpire) * time.Hour
}

// LoggerConfig 日志配置
type LoggerConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	Output     string `mapstructure:"output"`
	FilePath   string `mapstructure:"file_path"`
	MaxSize    int    `mapstructure:"max_size"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAge     int    `mapstructure:"max_age"`
	Compress   bool   `mapstructure:"compress"`
	Caller     bool   `mapstructure:"caller"`
}

// MetricsConfig 监控配置
type MetricsConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	Namespace string `mapstructure:"namespace"`
	Path      string `mapstructure:"path"`
}

// TracingConfig 链路追踪配置
type TracingConfig struct {
	Enabled     bool    `mapstructure:"enabled"`
	ServiceName string  `mapstructure:"service_name"`
	Endpoint    string  `mapstructure:"endpoint"`
	SampleRate  float64 `mapstructure:"sample_rate"`
}

// RateLimitConfig 限流配置
type RateLimitConfig struct {
	Enabled        bool `mapstructure:"enabled"`
	WithdrawPerMin int  `mapstructure:"withdraw_per_min"`
}

// SnowflakeConfig 雪花 ID 节点配置
type SnowflakeConfig struct {
	MachineID    int64 `mapstructure:"machine_id"`
	DataCenterID int64 `mapstructure:"data_center_id"`
}

// WeChatPayConfig 微信商家转账配置
type WeChatPayConfig struct {
	AppID          string `mapstructure:"app_id"`
	MchID          string `mapstructure:"mch_id"`
	APIv3Key       string `mapstructure:"api_v3_key"`
	SerialNo       string `mapstructure:"serial_no"`
	PrivateKeyPath string `mapstructure:"private_key_path"`
	Mock           bool   `mapstructure:"mock"`
}

// BusinessConfig 业务配置
type BusinessConfig struct {
	Distribution DistributionConfig `mapstructure:"distribution"`
	Withdrawal   WithdrawalConfig   `mapstructure:"withdrawal"`
}

// DistributionConfig 分销默认配置，租户未配置时使用
type DistributionConfig struct {
	Level1Rate        float64 `mapstructure:"level1_rate"`
	Level2Rate        float64 `mapstructure:"level2_rate"`
	EnableCrossTenant bool    `mapstructure:"enable_cross_tenant"`
	CrossTenantRate   float64 `mapstructure:"cross_tenant_rate"`
	CrossMaxDaily     float64 `mapstructure:"cross_max_daily"`
	SettleDays        int     `mapstructure:"settle_days"`
	MaxReferralDepth  int     `mapstructure:"max_referral_depth"`
	InviteBaseURL     string  `mapstructure:"invite_base_url"` // 推广落地页，为空时不提供推广二维码
}

// SettleDelay 返回佣金冻结期
func (d *DistributionConfig) SettleDelay() time.Duration {
	return time.Duration(d.SettleDays) * 24 * time.Hour
}

// WithdrawalConfig 提现配置
type WithdrawalConfig struct {
	MinAmount float64  `mapstructure:"min_amount"`
	Methods   []string `mapstructure:"methods"`
	// AccountKey 收款账户加密密钥，16/24/32 字节；为空时不保存收款账户
	AccountKey string `mapstructure:"account_key"`
}

// SettlementConfig 定时任务配置
type SettlementConfig struct {
	IntervalSec          int `mapstructure:"interval_sec"`
	LockTTLSec           int `mapstructure:"lock_ttl_sec"`
	BatchSize            int `mapstructure:"batch_size"`
	ReconcileIntervalSec int `mapstructure:"reconcile_interval_sec"`
	ReconcileStaleSec    int `mapstructure:"reconcile_stale_sec"`
}

// Interval 结算任务执行间隔
func (s *SettlementConfig) Interval() time.Duration {
	return time.Duration(s.IntervalSec) * time.Second
}

// LockTTL 结算分布式锁过期时间
func (s *SettlementConfig) LockTTL() time.Duration {
	return time.Duration(s.LockTTLSec) * time.Second
}

// ReconcileInterval 对账任务执行间隔
func (s *SettlementConfig) ReconcileInterval() time.Duration {
	return time.Duration(s.ReconcileIntervalSec) * time.Second
}

// ReconcileStale 打款请求多久未落库视为悬挂
func (s *SettlementConfig) ReconcileStale() time.Duration {
	return time.Duration(s.ReconcileStaleSec) * time.Second
}
