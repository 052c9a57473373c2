package commands

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/teranos/vidmask/sym"
	"github.com/teranos/vidmask/syscap"
)

// CapsCmd reports what this build and machine can run
var CapsCmd = &cobra.Command{
	Use:   "caps",
	Short: sym.Caps + " Show system capabilities and runtime availability",
	Long: sym.Caps + ` caps - Show system capabilities

Reports the accelerated pipeline compiled for this OS, whether the vendor
library is linked, the registered runtimes and the pipeline that will
start on this build.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		jsonOutput, _ := cmd.Flags().GetBool("json")
		report := syscap.Get()

		if jsonOutput {
			data, err := json.MarshalIndent(report, "", "  ")
			if err != nil {
				return fmt.Errorf("failed to marshal capabilities: %w", err)
			}
			fmt.Println(string(data))
			return nil
		}

		data := pterm.TableData{
			{"Capability", "Value"},
			{"Platform", fmt.Sprintf("%s/%s %s", report.OS, report.Arch, report.Platform)},
			{"CPU", fmt.Sprintf("%s (%d cores)", report.CPUModel, report.CPUCores)},
			{"Memory", fmt.Sprintf("%.1f GiB total, %.1f GiB available", report.MemoryTotalGB, report.MemoryAvailableGB)},
			{"Host pipeline", report.HostPipeline},
			{"Texture surface", report.HostSurface},
			{"Native library", fmt.Sprintf("%t (%s)", report.NativeAvailable, report.NativeVersion)},
			{"Runtimes", strings.Join(report.Runtimes, ", ")},
			{"Texture runtimes", strings.Join(report.TextureRuntimes, ", ")},
			{"Recommended", report.RecommendedPipeline},
		}
		if err := pterm.DefaultTable.WithHasHeader().WithData(data).Render(); err != nil {
			return err
		}
		for _, w := range report.Warnings {
			pterm.Warning.Println(w)
		}
		return nil
	},
}

func init() {
	CapsCmd.Flags().BoolP("json", "j", false, "Output capabilities as JSON")
}
