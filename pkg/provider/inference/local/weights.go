package local

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/lexigate/lexigate/pkg/provider/inference"
)

// Precision names the weight precision a file carries.
type Precision string

const (
	PrecisionQuant4 Precision = "q4"
	PrecisionFP16   Precision = "fp16"
	PrecisionFP32   Precision = "fp32"
)

// quantVRAMThresholdMiB is the GPU memory bound below which 4-bit quantised
// weights are preferred over fp16.
const quantVRAMThresholdMiB = 12 * 1024

// weightsFile is one candidate weights file in a model directory.
type weightsFile struct {
	Name      string
	Precision Precision
}

// resolveWeights picks the weights file to load from modelDir and reports
// the device it will run on. GPU hosts with at most 12 GiB of VRAM get
// 4-bit quantised weights, larger GPUs get fp16, and CPU-only hosts get
// full precision. When the preferred precision is not present the next
// heavier one available is used.
func resolveWeights(ctx context.Context, modelDir string, forceCPU bool, vramProbe func(context.Context) (int, bool)) (weightsFile, string, error) {
	candidates, err := scanWeights(modelDir)
	if err != nil {
		return weightsFile{}, inference.ModeCPU, err
	}
	if len(candidates) == 0 {
		return weightsFile{}, inference.ModeCPU, fmt.Errorf("local: no weights files in %s", modelDir)
	}

	device := inference.ModeCPU
	want := PrecisionFP32
	if !forceCPU {
		if vramMiB, ok := vramProbe(ctx); ok {
			device = inference.ModeGPU
			want = PrecisionFP16
			if vramMiB <= quantVRAMThresholdMiB {
				want = PrecisionQuant4
			}
		}
	}

	// Preference order starting from the wanted precision, falling back to
	// heavier files when the light ones are absent.
	order := []Precision{want}
	switch want {
	case PrecisionQuant4:
		order = append(order, PrecisionFP16, PrecisionFP32)
	case PrecisionFP16:
		order = append(order, PrecisionFP32, PrecisionQuant4)
	default:
		order = append(order, PrecisionFP16, PrecisionQuant4)
	}
	for _, prec := range order {
		for _, c := range candidates {
			if c.Precision == prec {
				return c, device, nil
			}
		}
	}
	return candidates[0], device, nil
}

// scanWeights lists the .gguf and .safetensors files in modelDir with the
// precision their name advertises.
func scanWeights(modelDir string) ([]weightsFile, error) {
	entries, err := os.ReadDir(modelDir)
	if err != nil {
		return nil, fmt.Errorf("local: read model dir: %w", err)
	}
	var out []weightsFile
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		lower := strings.ToLower(name)
		if !strings.HasSuffix(lower, ".gguf") && !strings.HasSuffix(lower, ".safetensors") {
			continue
		}
		out = append(out, weightsFile{Name: name, Precision: classifyPrecision(lower)})
	}
	return out, nil
}

// classifyPrecision infers precision from conventional weight file naming
// (q4_k_m, f16, fp32 fragments). Unmarked files are treated as full
// precision.
func classifyPrecision(lower string) Precision {
	switch {
	case strings.Contains(lower, "q4"), strings.Contains(lower, "int4"), strings.Contains(lower, "4bit"):
		return PrecisionQuant4
	case strings.Contains(lower, "f16"), strings.Contains(lower, "fp16"), strings.Contains(lower, "half"):
		return PrecisionFP16
	}
	return PrecisionFP32
}

const vramProbeTimeout = 3 * time.Second

// probeVRAM reports the total memory of the first NVIDIA device in MiB.
// ok is false when no usable GPU is detected.
func probeVRAM(ctx context.Context) (int, bool) {
	if _, err := exec.LookPath("nvidia-smi"); err != nil {
		return 0, false
	}
	probeCtx, cancel := context.WithTimeout(ctx, vramProbeTimeout)
	defer cancel()
	out, err := exec.CommandContext(probeCtx, "nvidia-smi",
		"--query-gpu=memory.total", "--format=csv,noheader,nounits").Output()
	if err != nil {
		return 0, false
	}
	first := strings.SplitN(strings.TrimSpace(string(out)), "\n", 2)[0]
	mib, err := strconv.Atoi(strings.TrimSpace(first))
	if err != nil || mib <= 0 {
		return 0, false
	}
	return mib, true
}
