package logger

import (
	"os"
	"path/filepath"
	"time"

	"github.com/natefinch/lumberjack"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// LogConfig 日志配置
type LogConfig struct {
	Level      string `env:"LOG_LEVEL"`
	Filename   string `env:"LOG_FILE"`
	MaxSize    int    `env:"LOG_MAX_SIZE"`
	MaxAge     int    `env:"LOG_MAX_AGE"`
	MaxBackups int    `env:"LOG_MAX_BACKUPS"`
	Daily      bool   `env:"LOG_DAILY"`
}

var Lg = zap.NewNop()

// Init 初始化logger；mode 为 dev/development 时同时输出到终端
func Init(cfg *LogConfig, mode string) error {
	var lvl zapcore.Level
	if err := lvl.UnmarshalText([]byte(cfg.Level)); err != nil {
		return err
	}
	fileCore := zapcore.NewCore(jsonEncoder(), fileWriter(cfg), lvl)

	var core zapcore.Core
	if mode == "dev" || mode == "development" {
		consoleCfg := zap.NewDevelopmentEncoderConfig()
		consoleCfg.TimeKey = "time"
		consoleCfg.EncodeTime = zapcore.ISO8601TimeEncoder
		consoleCfg.EncodeLevel = zapcore.CapitalColorLevelEncoder
		consoleCfg.EncodeCaller = zapcore.ShortCallerEncoder
		console := zapcore.NewConsoleEncoder(consoleCfg)
		core = zapcore.NewTee(
			fileCore,
			zapcore.NewCore(console, zapcore.Lock(os.Stdout), lvl),
		)
	} else {
		core = fileCore
	}

	Lg = zap.New(core, zap.AddCaller())
	zap.ReplaceGlobals(Lg)
	Info("init logger success")
	return nil
}

func jsonEncoder() zapcore.Encoder {
	cfg := zap.NewProductionEncoderConfig()
	cfg.TimeKey = "time"
	cfg.EncodeTime = zapcore.ISO8601TimeEncoder
	cfg.EncodeLevel = zapcore.CapitalLevelEncoder
	cfg.EncodeDuration = zapcore.SecondsDurationEncoder
	cfg.EncodeCaller = zapcore.ShortCallerEncoder
	return zapcore.NewJSONEncoder(cfg)
}

func fileWriter(cfg *LogConfig) zapcore.WriteSyncer {
	filename := cfg.Filename
	if cfg.Daily {
		// 按日期分割日志文件
		ext := filepath.Ext(filename)
		filename = filename[:len(filename)-len(ext)] + "-" + time.Now().Format("2006-01-02") + ext
	}
	return zapcore.AddSync(&lumberjack.Logger{
		Filename:   filename,
		MaxSize:    cfg.MaxSize,
		MaxBackups: cfg.MaxBackups,
		MaxAge:     cfg.MaxAge,
		LocalTime:  true,
	})
}

// Info 通用 info 日志方法
func Info(msg string, fields ...zap.Field) {
	Lg.Info(msg, fields...)
}

// Warn 通用 warn 日志方法
func Warn(msg string, fields ...zap.Field) {
	Lg.Warn(msg, fields...)
}

// Error 通用 error 日志方法
func Error(msg string, fields ...zap.Field) {
	Lg.Error(msg, fields...)
}

// Debug 通用 debug 日志方法
func Debug(msg string, fields ...zap.Field) {
	Lg.Debug(msg, fields...)
}

// Fatal 通用 fatal 日志方法
func Fatal(msg string, fields ...zap.Field) {
	Lg.Fatal(msg, fields...)
}

// Sync 刷新缓冲区
func Sync() {
	_ = Lg.Sync()
}
