//go:build !windows && !darwin

package resolve

const (
	genericTuningFile = "tuning_portable.json"
	gpuTuningFile     = "tuning_portable_gpu.json"
)
