package util

import (
	"os"
	"runtime"

	"github.com/rs/zerolog/log"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/host"
	"github.com/shirou/gopsutil/v3/mem"
)

// IsLinux returns true if running on Linux. Info responses publish this as
// the Linux status bit.
func IsLinux() bool {
	return runtime.GOOS == "linux"
}

// SystemInfo holds information about the host system.
type SystemInfo struct {
	Hostname    string `json:"hostname"`
	OS          string `json:"os"`
	CPUModel    string `json:"cpu_model"`
	CPUCores    int    `json:"cpu_cores"`
	CPUSpeedMHz uint32 `json:"cpu_speed_mhz"`
	TotalMemory uint64 `json:"total_memory_mb"`
}

// GetSystemInfo gathers host details. The CPU clock rate is what info
// responses report as cpuSpeed.
func GetSystemInfo() SystemInfo {
	info := SystemInfo{
		OS:       runtime.GOOS,
		CPUCores: runtime.NumCPU(),
	}

	if hostname, err := os.Hostname(); err == nil {
		info.Hostname = hostname
	}

	if hostInfo, err := host.Info(); err == nil {
		info.OS = hostInfo.Platform
	}

	if cpuInfo, err := cpu.Info(); err == nil && len(cpuInfo) > 0 {
		info.CPUModel = cpuInfo[0].ModelName
		info.CPUSpeedMHz = uint32(cpuInfo[0].Mhz)
	} else if err != nil {
		log.Debug().Err(err).Msg("failed to read CPU info")
	}

	if vm, err := mem.VirtualMemory(); err == nil {
		info.TotalMemory = vm.Total / 1024 / 1024
	}

	return info
}

// CPUSpeedMHz returns the host CPU clock rate, or 0 when detection fails.
func CPUSpeedMHz() uint32 {
	if cpuInfo, err := cpu.Info(); err == nil && len(cpuInfo) > 0 {
		return uint32(cpuInfo[0].Mhz)
	}
	return 0
}
