package resolve

const (
	genericTuningFile = "tuning_dx.json"
	gpuTuningFile     = "tuning_dx_gpu.json"
)
