package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"

	"github.com/Fuonder/zipfilter.git/internal/compress"
)

// maxStoredSnapshots ограничивает историю срезов в файле.
const maxStoredSnapshots = 100

// JSONStorage накапливает срезы статистики и выгружает их в JSON-файл
// при каждом сохранении.
type JSONStorage struct {
	snapshots    []compress.Snapshot
	fStoragePath string
	mu           sync.Mutex
}

func NewJSONStorage(filePath string) (*JSONStorage, error) {
	if filePath == "" {
		return nil, fmt.Errorf("empty snapshot file path")
	}
	st := JSONStorage{
		snapshots:    make([]compress.Snapshot, 0),
		fStoragePath: filePath,
	}
	return &st, nil
}

// SaveSnapshot добавляет срез в историю и переписывает файл целиком.
func (st *JSONStorage) SaveSnapshot(_ context.Context, snap compress.Snapshot) error {
	st.mu.Lock()
	defer st.mu.Unlock()

	st.snapshots = append(st.snapshots, snap)
	if len(st.snapshots) > maxStoredSnapshots {
		st.snapshots = st.snapshots[len(st.snapshots)-maxStoredSnapshots:]
	}

	data, err := json.MarshalIndent(st.snapshots, "", "    ")
	if err != nil {
		return err
	}
	err = os.WriteFile(st.fStoragePath, data, 0666)
	if err != nil {
		return fmt.Errorf("can not write snapshot file \"%s\": %w", st.fStoragePath, err)
	}
	return nil
}

func (st *JSONStorage) CheckConnection() error {
	st.mu.Lock()
	defer st.mu.Unlock()
	file, err := os.OpenFile(st.fStoragePath, os.O_WRONLY|os.O_CREATE, 0666)
	if err != nil {
		return fmt.Errorf("can not open snapshot file \"%s\": %w", st.fStoragePath, err)
	}
	return file.Close()
}

func (st *JSONStorage) Close() error {
	return nil
}
