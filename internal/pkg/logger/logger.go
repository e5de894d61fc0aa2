package logger

import (
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// NewLogger создает и настраивает новый логгер.
// Пустой level означает уровень по умолчанию для выбранного режима.
func NewLogger(isDevelopment bool, level string) (*zap.Logger, error) {
	var config zap.Config

	if isDevelopment {
		// Для разработки используем более читаемый формат
		config = zap.NewDevelopmentConfig()
		config.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	} else {
		// Для продакшна используем JSON формат
		config = zap.NewProductionConfig()
		config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	}

	if level != "" {
		lvl, err := zapcore.ParseLevel(level)
		if err != nil {
			return nil, fmt.Errorf("parse log level: %w", err)
		}
		config.Level = zap.NewAtomicLevelAt(lvl)
	}

	// Логи CLI не должны смешиваться с выводом команд
	config.OutputPaths = []string{"stderr"}
	config.ErrorOutputPaths = []string{"stderr"}

	logger, err := config.Build()
	if err != nil {
		return nil, err
	}

	// Заменяем глобальный логгер
	zap.ReplaceGlobals(logger)

	return logger, nil
}
