package syscap

// Report describes what this build and machine can run
type Report struct {
	OS                  string   `json:"os"`                   // GOOS
	Arch                string   `json:"arch"`                 // GOARCH
	HostPipeline        string   `json:"host_pipeline"`        // accelerated pipeline compiled for this OS, or "none"
	HostSurface         string   `json:"host_surface"`         // texture handle type of the host pipeline, or "none"
	NativeAvailable     bool     `json:"native_available"`     // vendor library linked (cgo && vendorseg)
	NativeVersion       string   `json:"native_version"`       // vendor library version, "n/a" when unavailable
	Runtimes            []string `json:"runtimes"`             // registered portable runtimes
	TextureRuntimes     []string `json:"texture_runtimes"`     // registered accelerated runtimes
	RecommendedPipeline string   `json:"recommended_pipeline"` // pipeline that will start on this build
	CPUModel            string   `json:"cpu_model"`
	CPUCores            int      `json:"cpu_cores"`            // logical cores
	MemoryTotalGB       float64  `json:"memory_total_gb"`
	MemoryAvailableGB   float64  `json:"memory_available_gb"`
	Platform            string   `json:"platform"`             // host OS distribution and version
	Warnings            []string `json:"warnings,omitempty"`
}
