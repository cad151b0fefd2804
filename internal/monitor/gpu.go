package monitor

import (
	"context"
	"os/exec"
	"strconv"
	"strings"
	"time"
)

// gpuQuery asks nvidia-smi for the fields GPUInfo carries, in CSV without
// units so the numbers parse directly.
var gpuQuery = []string{
	"--query-gpu=name,memory.total,memory.used,utilization.gpu",
	"--format=csv,noheader,nounits",
}

const gpuProbeTimeout = 3 * time.Second

// gpu returns info for the first NVIDIA device, or nil when nvidia-smi is
// absent or fails. Availability is probed once; hosts without a GPU skip
// the exec on every later snapshot.
func (m *Monitor) gpu(ctx context.Context) *GPUInfo {
	m.gpuOnce.Do(func() {
		_, err := exec.LookPath("nvidia-smi")
		m.gpuProbeOK = err == nil
	})
	if !m.gpuProbeOK {
		return nil
	}

	probeCtx, cancel := context.WithTimeout(ctx, gpuProbeTimeout)
	defer cancel()
	out, err := exec.CommandContext(probeCtx, "nvidia-smi", gpuQuery...).Output()
	if err != nil {
		return nil
	}
	return parseGPULine(strings.SplitN(strings.TrimSpace(string(out)), "\n", 2)[0])
}

// parseGPULine parses one CSV line of nvidia-smi output:
//
//	NVIDIA GeForce RTX 3090, 24576, 8192, 35
func parseGPULine(line string) *GPUInfo {
	fields := strings.Split(line, ",")
	if len(fields) < 4 {
		return nil
	}
	for i := range fields {
		fields[i] = strings.TrimSpace(fields[i])
	}
	total, err := strconv.ParseFloat(fields[1], 64)
	if err != nil {
		return nil
	}
	used, err := strconv.ParseFloat(fields[2], 64)
	if err != nil {
		return nil
	}
	util, err := strconv.ParseFloat(fields[3], 64)
	if err != nil {
		return nil
	}
	return &GPUInfo{
		Name:           fields[0],
		MemoryTotalMB:  total,
		MemoryUsedMB:   used,
		UtilizationPct: util,
	}
}
