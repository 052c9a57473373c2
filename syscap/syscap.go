// Package syscap reports the segmentation capabilities of this build and
// the machine it runs on.
package syscap

import (
	"fmt"
	"runtime"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/host"
	"github.com/shirou/gopsutil/v3/mem"

	"github.com/teranos/vidmask/errors"
	"github.com/teranos/vidmask/infer"
	"github.com/teranos/vidmask/infer/native"
	"github.com/teranos/vidmask/segment"
)

const gib = 1024 * 1024 * 1024

// Probes, swapped in tests.
var (
	memoryStats = func() (total, available uint64, err error) {
		v, err := mem.VirtualMemory()
		if err != nil {
			return 0, 0, errors.Wrap(err, "failed to get memory stats")
		}
		return v.Total, v.Available, nil
	}
	cpuInfo = func() (model string, cores int, err error) {
		cores, err = cpu.Counts(true)
		if err != nil {
			return "", 0, errors.Wrap(err, "failed to count cpus")
		}
		infos, err := cpu.Info()
		if err != nil || len(infos) == 0 {
			return "", cores, nil
		}
		return infos[0].ModelName, cores, nil
	}
	platformInfo = func() (string, error) {
		platform, _, version, err := host.PlatformInformation()
		if err != nil {
			return "", errors.Wrap(err, "failed to get platform information")
		}
		return fmt.Sprintf("%s %s", platform, version), nil
	}
	nativeVersion = func() string {
		if !native.Available {
			return "n/a"
		}
		rt, err := infer.OpenTexture(native.Name)
		if err != nil {
			return "n/a"
		}
		defer rt.Close()
		return rt.Version()
	}
)

// Get probes the build and the host. Probe failures become warnings.
func Get() Report {
	r := Report{
		OS:              runtime.GOOS,
		Arch:            runtime.GOARCH,
		HostPipeline:    "none",
		HostSurface:     "none",
		NativeAvailable: native.Available,
		NativeVersion:   nativeVersion(),
		Runtimes:        infer.Runtimes(),
		TextureRuntimes: infer.TextureRuntimes(),
	}

	hp, ok := segment.HostPipeline()
	if ok {
		r.HostPipeline = hp.String()
		r.HostSurface = segment.HostSurface()
	}
	r.RecommendedPipeline = Recommend(ok, native.Available, hp).String()

	if model, cores, err := cpuInfo(); err != nil {
		r.Warnings = append(r.Warnings, err.Error())
	} else {
		r.CPUModel, r.CPUCores = model, cores
	}
	if total, available, err := memoryStats(); err != nil {
		r.Warnings = append(r.Warnings, err.Error())
	} else {
		r.MemoryTotalGB = float64(total) / gib
		r.MemoryAvailableGB = float64(available) / gib
	}
	if platform, err := platformInfo(); err != nil {
		r.Warnings = append(r.Warnings, err.Error())
	} else {
		r.Platform = platform
	}
	return r
}

// Recommend picks the pipeline that will start on this build: the host
// accelerated pipeline when the vendor library is linked, else portable CPU.
func Recommend(hasHost, nativeAvailable bool, host segment.Pipeline) segment.Pipeline {
	if hasHost && nativeAvailable {
		return host
	}
	return segment.PipelinePortableCPU
}
