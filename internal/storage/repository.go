// Package storage содержит интерфейсы и реализации хранилищ срезов
// статистики фильтра сжатия: файловое хранилище и базу данных.
package storage

import (
	"context"

	"github.com/Fuonder/zipfilter.git/internal/compress"
)

// SnapshotWriter интерфейс для сохранения срезов статистики.
type SnapshotWriter interface {
	// SaveSnapshot сохраняет очередной срез счетчиков.
	SaveSnapshot(ctx context.Context, snap compress.Snapshot) error
}

// HealthChecker интерфейс для проверки доступности хранилища.
type HealthChecker interface {
	// CheckConnection проверяет доступность хранилища.
	CheckConnection() error
}

// SnapshotRepository объединяет запись срезов и управление жизненным
// циклом хранилища.
type SnapshotRepository interface {
	SnapshotWriter
	// Close освобождает ресурсы хранилища.
	Close() error
}
