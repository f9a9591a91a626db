package stats

import (
	"strings"

	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/mem"
	"github.com/shirou/gopsutil/v4/sensors"

	"github.com/bardlex/gomc/pkg/log"
)

// Hardware holds host telemetry attached to a snapshot
type Hardware struct {
	CPUPercent     float64 `json:"cpu_percent"`
	MemoryUsedMB   uint64  `json:"memory_used_mb"`
	MemoryPercent  float64 `json:"memory_percent"`
	CPUTemperature float64 `json:"cpu_temperature,omitempty"`
}

// HardwareMonitor samples host CPU, memory, and temperature readings.
// Individual probe failures degrade to zero values rather than failing the
// snapshot.
type HardwareMonitor struct {
	logger *log.Logger
}

// NewHardwareMonitor creates a host telemetry sampler
func NewHardwareMonitor(logger *log.Logger) *HardwareMonitor {
	return &HardwareMonitor{logger: logger.WithComponent("hardware")}
}

// Collect samples the host once
func (h *HardwareMonitor) Collect() Hardware {
	var hw Hardware

	if percents, err := cpu.Percent(0, false); err != nil {
		h.logger.WithError(err).Debug("cpu sample failed")
	} else if len(percents) > 0 {
		hw.CPUPercent = percents[0]
	}

	if vm, err := mem.VirtualMemory(); err != nil {
		h.logger.WithError(err).Debug("memory sample failed")
	} else {
		hw.MemoryUsedMB = vm.Used / (1024 * 1024)
		hw.MemoryPercent = vm.UsedPercent
	}

	hw.CPUTemperature = h.cpuTemperature()
	return hw
}

// cpuTemperature picks the hottest CPU-ish sensor reading, or 0 when none
func (h *HardwareMonitor) cpuTemperature() float64 {
	temps, err := sensors.SensorsTemperatures()
	if err != nil {
		h.logger.WithError(err).Debug("temperature sample failed")
		return 0
	}

	var max float64
	for _, t := range temps {
		key := strings.ToLower(t.SensorKey)
		if !strings.Contains(key, "cpu") && !strings.Contains(key, "core") &&
			!strings.Contains(key, "package") {
			continue
		}
		if t.Temperature > max {
			max = t.Temperature
		}
	}
	return max
}
