// Package logger используется для инициализации и создания логгера.
// Используется как для обычных сообщений, так и для логирования
// HTTP-запросов и HTTP-ответов.
package logger

import (
	"fmt"

	"go.uber.org/zap"
)

// Log — глобальная переменная для логгера, по умолчанию No-op (пустой логгер).
var Log *zap.Logger = zap.NewNop()

// Initialize инициализирует логгер с заданным уровнем логирования.
// Возвращает ошибку, если уровень не может быть разобран или произошла
// ошибка при инициализации.
func Initialize(level string) error {
	lvl, err := zap.ParseAtomicLevel(level)
	if err != nil {
		return fmt.Errorf("log level parsing: %v", err)
	}

	cfg := zap.NewDevelopmentConfig()
	cfg.Level = lvl
	zl, err := cfg.Build()
	if err != nil {
		return fmt.Errorf("zap initialization: %v", err)
	}
	Log = zl
	return nil
}
