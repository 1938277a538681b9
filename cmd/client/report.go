package main

import (
	"fmt"
	"os"
	"time"

	"github.com/Fuonder/zipfilter.git/internal/models"
	"github.com/shirou/gopsutil/cpu"
	"github.com/shirou/gopsutil/mem"
)

// collectReport собирает текущие показатели памяти и CPU хоста.
func collectReport() (models.Report, error) {
	vMemory, err := mem.VirtualMemory()
	if err != nil {
		return models.Report{}, fmt.Errorf("can not get memory info: %v", err)
	}
	cpuUtilization, err := cpu.Percent(0, true)
	if err != nil {
		return models.Report{}, fmt.Errorf("can not get cpu info: %v", err)
	}
	host, err := os.Hostname()
	if err != nil {
		return models.Report{}, fmt.Errorf("can not get hostname: %v", err)
	}
	return models.Report{
		Host:           host,
		TotalMemory:    float64(vMemory.Total),
		FreeMemory:     float64(vMemory.Free),
		CPUUtilization: cpuUtilization,
		CollectedAt:    time.Now(),
	}, nil
}
