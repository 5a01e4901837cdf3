// Package device resolves the user's device selector against the hardware
// actually present on the machine.
package device

import (
	"os/exec"

	"whisper-studio/internal/domain"
)

// Detector reports whether a CUDA-capable accelerator is usable.
type Detector interface {
	AcceleratorPresent() bool
}

// ExecDetector probes for an accelerator by looking for the NVIDIA
// management tool on PATH.
type ExecDetector struct {
	lookPath func(string) (string, error)
}

// NewExecDetector builds a detector using the real PATH lookup.
func NewExecDetector() *ExecDetector {
	return &ExecDetector{lookPath: exec.LookPath}
}

// AcceleratorPresent reports whether nvidia-smi is available.
func (d *ExecDetector) AcceleratorPresent() bool {
	lookPath := d.lookPath
	if lookPath == nil {
		lookPath = exec.LookPath
	}
	_, err := lookPath("nvidia-smi")
	return err == nil
}

// StaticDetector returns a fixed answer, for tests and forced configs.
type StaticDetector bool

// AcceleratorPresent returns the fixed answer.
func (d StaticDetector) AcceleratorPresent() bool { return bool(d) }

// Resolve maps a requested selector to the effective device. The second
// return is true only when an explicit cuda request fell back to cpu, which
// is the single case that warrants a user-visible notice. auto resolving to
// cpu is normal behavior and stays silent.
func Resolve(selector domain.DeviceSelector, acceleratorPresent bool) (domain.DeviceSelector, bool) {
	switch selector {
	case domain.DeviceAuto:
		if acceleratorPresent {
			return domain.DeviceCUDA, false
		}
		return domain.DeviceCPU, false
	case domain.DeviceCUDA:
		if acceleratorPresent {
			return domain.DeviceCUDA, false
		}
		return domain.DeviceCPU, true
	default:
		return domain.DeviceCPU, false
	}
}

// PrecisionFor returns the compute precision paired with a resolved device.
func PrecisionFor(device domain.DeviceSelector) domain.Precision {
	if device == domain.DeviceCUDA {
		return domain.PrecisionFloat16
	}
	return domain.PrecisionInt8
}
