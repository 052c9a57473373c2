package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/teranos/vidmask/am"
	"github.com/teranos/vidmask/cmd/vidmask/commands"
	"github.com/teranos/vidmask/logger"

	// Runtimes register themselves with infer on import.
	_ "github.com/teranos/vidmask/infer/native"
	_ "github.com/teranos/vidmask/infer/reference"
	_ "github.com/teranos/vidmask/infer/wasmrt"
)

var rootCmd = &cobra.Command{
	Use:   "vidmask",
	Short: "vidmask - real-time video background segmentation",
	Long: `vidmask - real-time video background segmentation.

Runs person segmentation over video frames and exposes the resulting
alpha masks, on a portable CPU/GPU path or a platform-accelerated
texture path.

Available commands:
  run      - Segment frames through an engine and report timing
  serve    - Segment frames sent over a websocket
  history  - Show recorded run summaries
  resolve  - Show which tuning file and model directory would be used
  caps     - Show system capabilities and runtime availability
  am       - Manage vidmask configuration ("I am")
  version  - Show version information

Examples:
  vidmask run --frames 300                  # Synthetic frames, portable CPU
  vidmask run --pipeline portable-gpu -vv   # Per-frame timing
  vidmask resolve --gpu                     # Dedicated GPU tuning file
  vidmask serve --addr 127.0.0.1:9000       # Websocket segmentation
  vidmask am set engine.blur_mode light     # Persist a setting`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		verbosity, _ := cmd.Flags().GetCount("verbose")
		jsonLogs, _ := cmd.Flags().GetBool("json-logs")

		if cfg, err := am.Load(); err == nil {
			logger.SetTheme(cfg.GetLogTheme())
			jsonLogs = jsonLogs || cfg.Log.JSON
		}

		if err := logger.InitializeWithVerbosity(jsonLogs, verbosity); err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		logger.Debugw("Logger initialized", "verbosity", logger.LevelName(verbosity), "json", jsonLogs)
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		logger.Cleanup()
	},
}

func init() {
	rootCmd.PersistentFlags().CountP("verbose", "v", "Increase output verbosity (repeat for more detail: -v, -vv, -vvv)")
	rootCmd.PersistentFlags().Bool("json-logs", false, "Emit logs as JSON on stderr")

	rootCmd.AddCommand(commands.RunCmd)
	rootCmd.AddCommand(commands.ServeCmd)
	rootCmd.AddCommand(commands.HistoryCmd)
	rootCmd.AddCommand(commands.ResolveCmd)
	rootCmd.AddCommand(commands.CapsCmd)
	rootCmd.AddCommand(commands.AmCmd)
	rootCmd.AddCommand(commands.VersionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		commands.PrintError(err)
		os.Exit(1)
	}
}
