// Package logger 基于 zap 的结构化日志，支持 lumberjack 文件滚动
package logger

import (
	"fmt"
	"os"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/dumeirei/referral-settlement/internal/common/config"
)

const timeLayout = "2006-01-02 15:04:05.000"

// Init 按配置构建日志器并替换 zap 全局日志器
func Init(cfg *config.LoggerConfig) error {
	l, err := New(cfg)
	if err != nil {
		return err
	}
	zap.ReplaceGlobals(l)
	return nil
}

// New 构建日志器，不修改全局状态
func New(cfg *config.LoggerConfig) (*zap.Logger, error) {
	sinks, err := buildSinks(cfg)
	if err != nil {
		return nil, err
	}

	core := zapcore.NewCore(buildEncoder(cfg.Format), zapcore.NewMultiWriteSyncer(sinks...), parseLevel(cfg.Level))

	opts := []zap.Option{zap.AddStacktrace(zapcore.ErrorLevel)}
	if cfg.Caller {
		// 跳过本包的转发函数
		opts = append(opts, zap.AddCaller(), zap.AddCallerSkip(1))
	}
	return zap.New(core, opts...), nil
}

func buildEncoder(format string) zapcore.Encoder {
	ec := zap.NewProductionEncoderConfig()
	ec.TimeKey = "time"
	ec.EncodeTime = zapcore.TimeEncoderOfLayout(timeLayout)
	ec.EncodeDuration = zapcore.SecondsDurationEncoder

	if format == "json" {
		return zapcore.NewJSONEncoder(ec)
	}
	ec.EncodeLevel = zapcore.CapitalColorLevelEncoder
	return zapcore.NewConsoleEncoder(ec)
}

// buildSinks output 为 stdout、file 或 both，file 模式需要 file_path
func buildSinks(cfg *config.LoggerConfig) ([]zapcore.WriteSyncer, error) {
	var sinks []zapcore.WriteSyncer
	switch cfg.Output {
	case "", "stdout":
		return append(sinks, zapcore.Lock(os.Stdout)), nil
	case "file", "both":
		if cfg.FilePath == "" {
			return nil, fmt.Errorf("logger output %q requires file_path", cfg.Output)
		}
		sinks = append(sinks, zapcore.AddSync(&lumberjack.Logger{
			Filename:   cfg.FilePath,
			MaxSize:    cfg.MaxSize,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAge,
			Compress:   cfg.Compress,
			LocalTime:  true,
		}))
		if cfg.Output == "both" {
			sinks = append(sinks, zapcore.Lock(os.Stdout))
		}
		return sinks, nil
	default:
		return nil, fmt.Errorf("unknown logger output %q", cfg.Output)
	}
}

// parseLevel 无法识别时退回 info
func parseLevel(s string) zapcore.Level {
	level, err := zapcore.ParseLevel(s)
	if err != nil {
		return zapcore.InfoLevel
	}
	return level
}

// GetLogger 返回当前全局日志器，未初始化时为 no-op
func GetLogger() *zap.Logger {
	return zap.L()
}

// Sync 刷新缓冲
func Sync() error {
	return zap.L().Sync()
}

func Debug(msg string, fields ...zap.Field) { zap.L().Debug(msg, fields...) }
func Info(msg string, fields ...zap.Field) { zap.L().Info(msg, fields...) }
func Warn(msg string, fields ...zap.Field) { zap.L().Warn(msg, fields...) }
func Error(msg string, fields ...zap.Field) { zap.L().Error(msg, fields...) }
func Fatal(msg string, fields ...zap.Field) { zap.L().Fatal(msg, fields...) }

// 业务字段

func RequestID(id string) zap.Field { return zap.String("request_id", id) }
func MemberID(id int64) zap.Field { return zap.Int64("member_id", id) }
func TenantID(id int64) zap.Field { return zap.Int64("tenant_id", id) }
func AdminID(id int64) zap.Field { return zap.Int64("admin_id", id) }
func OrderID(id int64) zap.Field { return zap.Int64("order_id", id) }
func CommissionID(id int64) zap.Field { return zap.Int64("commission_id", id) }
func WithdrawalNo(no string) zap.Field { return zap.String("withdrawal_no", no) }
func Reason(reason string) zap.Field { return zap.String("reason", reason) }
func Latency(d time.Duration) zap.Field { return zap.Duration("latency", d) }
func StatusCode(code int) zap.Field { return zap.Int("status_code", code) }
func Method(method string) zap.Field { return zap.String("method", method) }
func Path(path string) zap.Field { return zap.String("path", path) }
func IP(ip string) zap.Field { return zap.String("ip", ip) }

// Amount 金额统一输出两位小数字符串
func Amount(d decimal.Decimal) zap.Field {
	return zap.String("amount", d.StringFixed(2))
}
