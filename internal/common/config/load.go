package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// EnvPrefix 环境变量前缀，如 SETTLE_DATABASE_HOST 覆盖 database.host
const EnvPrefix = "SETTLE"

const defaultJWTSecret = "change-me-in-production"

var defaults = map[string]interface{}{
	"server.name":             "referral-settlement",
	"server.mode":             "debug",
	"server.port":             8000,
	"server.read_timeout":     30,
	"server.write_timeout":    30,
	"server.shutdown_timeout": 10,

	"database.driver":            "postgres",
	"database.host":              "localhost",
	"database.port":              5432,
	"database.user":              "postgres",
	"database.password":          "postgres",
	"database.name":              "referral_settlement",
	"database.sslmode":           "disable",
	"database.timezone":          "Asia/Shanghai",
	"database.max_idle_conns":    10,
	"database.max_open_conns":    100,
	"database.conn_max_lifetime": 60,
	"database.log_mode":          false,
	"database.slow_threshold":    200,

	"redis.host":           "localhost",
	"redis.port":           6379,
	"redis.password":       "",
	"redis.db":             0,
	"redis.pool_size":      100,
	"redis.min_idle_conns": 10,
	"redis.dial_timeout":   5,
	"redis.read_timeout":   3,
	"redis.write_timeout":  3,

	"rabbitmq.host":           "localhost",
	"rabbitmq.port":           5672,
	"rabbitmq.user":           "guest",
	"rabbitmq.password":       "guest",
	"rabbitmq.vhost":          "/",
	"rabbitmq.exchange":       "commission",
	"rabbitmq.prefetch_count": 10,
	"rabbitmq.max_attempts":   3,
	"rabbitmq.retry_base_sec": 5,

	"jwt.secret":              defaultJWTSecret,
	"jwt.access_token_expire": 168,
	"jwt.issuer":              "referral-settlement",

	"logger.level":       "debug",
	"logger.format":      "console",
	"logger.output":      "stdout",
	"logger.file_path":   "./logs/app.log",
	"logger.max_size":    100,
	"logger.max_backups": 10,
	"logger.max_age":     30,
	"logger.compress":    true,
	"logger.caller":      true,

	"metrics.enabled":   true,
	"metrics.namespace": "referral",
	"metrics.path":      "/metrics",

	"tracing.enabled":      false,
	"tracing.service_name": "referral-settlement",
	"tracing.sample_rate":  1.0,

	"ratelimit.enabled":          true,
	"ratelimit.withdraw_per_min": 5,

	"snowflake.machine_id":     1,
	"snowflake.data_center_id": 0,

	"wechatpay.mock": true,

	"business.distribution.level1_rate":         0.10,
	"business.distribution.level2_rate":         0.05,
	"business.distribution.enable_cross_tenant": false,
	"business.distribution.cross_tenant_rate":   0.50,
	"business.distribution.cross_max_daily":     500.00,
	"business.distribution.settle_days":         7,
	"business.distribution.max_referral_depth":  10,
	"business.distribution.invite_base_url":     "",
	"business.withdrawal.min_amount":            10.00,
	"business.withdrawal.methods":               []string{"wechat"},
	"business.withdrawal.account_key":           "",

	"settlement.interval_sec":           300,
	"settlement.lock_ttl_sec":           240,
	"settlement.batch_size":             100,
	"settlement.reconcile_interval_sec": 600,
	"settlement.reconcile_stale_sec":    300,
}

func setDefaults(v *viper.Viper) {
	for k, val := range defaults {
		v.SetDefault(k, val)
	}
}

// Load 读取配置。path 为空时依次查找 ./configs/config.yaml 与 ./config.yaml，
// 文件不存在时仅使用默认值与环境变量
func Load(path string) (*Config, error) {
	v := viper.New()
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("./configs")
		v.AddConfigPath(".")
	}
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate 校验跨字段约束
func (c *Config) Validate() error {
	var errs []error
	if c.Server.Mode == "release" && c.JWT.Secret == defaultJWTSecret {
		errs = append(errs, errors.New("jwt.secret must be set in release mode"))
	}
	if s := c.Settlement; s.LockTTLSec <= 0 || s.LockTTLSec >= s.IntervalSec {
		errs = append(errs, fmt.Errorf("settlement.lock_ttl_sec (%d) must be in (0, interval_sec=%d)", s.LockTTLSec, s.IntervalSec))
	}
	if c.Settlement.BatchSize <= 0 {
		errs = append(errs, errors.New("settlement.batch_size must be positive"))
	}
	d := c.Business.Distribution
	for name, rate := range map[string]float64{
		"level1_rate":       d.Level1Rate,
		"level2_rate":       d.Level2Rate,
		"cross_tenant_rate": d.CrossTenantRate,
	} {
		if rate < 0 || rate > 1 {
			errs = append(errs, fmt.Errorf("business.distribution.%s must be within [0, 1]", name))
		}
	}
	switch len(c.Business.Withdrawal.AccountKey) {
	case 0, 16, 24, 32:
	default:
		errs = append(errs, errors.New("business.withdrawal.account_key must be 16, 24 or 32 bytes"))
	}
	return errors.Join(errs...)
}

// GinMode gin 运行模式
func (c *Config) GinMode() string {
	switch c.Server.Mode {
	case "release", "test":
		return c.Server.Mode
	default:
		return "debug"
	}
}
