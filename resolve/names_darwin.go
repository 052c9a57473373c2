package resolve

const (
	genericTuningFile = "tuning_coreml.json"
	gpuTuningFile     = "tuning_coreml_gpu.json"
)
