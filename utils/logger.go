package utils

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger 全局日志，未初始化时为 Nop
var Logger = zap.NewNop()

func InitLogger(mode string) error {
	logger, err := NewLogger(mode)
	if err != nil {
		return err
	}

	Logger = logger
	return nil
}

// NewLogger release 模式输出 JSON，其它模式输出彩色控制台日志
func NewLogger(mode string) (*zap.Logger, error) {
	var config zap.Config

	if mode == "release" {
		config = zap.NewProductionConfig()
	} else {
		config = zap.NewDevelopmentConfig()
		config.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}

	return config.Build()
}

func Sync() {
	if Logger != nil {
		_ = Logger.Sync()
	}
}
