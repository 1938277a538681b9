// Package models содержит модели данных, передаваемые между
// демонстрационным клиентом и сервером.
package models

import (
	"fmt"
	"time"
)

// Report — отчет о состоянии машины, который клиент отправляет серверу.
// Тело заведомо хорошо сжимается и используется для прогона фильтра.
type Report struct {
	Host           string    `json:"host"`
	TotalMemory    float64   `json:"total_memory"`
	FreeMemory     float64   `json:"free_memory"`
	CPUUtilization []float64 `json:"cpu_utilization"`
	CollectedAt    time.Time `json:"collected_at"`
}

func (r Report) String() string {
	return fmt.Sprintf("host:%s, total:%.0f, free:%.0f, cpus:%d, at:%s",
		r.Host, r.TotalMemory, r.FreeMemory, len(r.CPUUtilization),
		r.CollectedAt.Format(time.RFC3339))
}
