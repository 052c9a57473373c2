package commands

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/teranos/vidmask/am"
	"github.com/teranos/vidmask/errors"
	"github.com/teranos/vidmask/logger"
	"github.com/teranos/vidmask/segment"
	"github.com/teranos/vidmask/server"
	"github.com/teranos/vidmask/sym"
)

// ServeCmd segments frames sent over a websocket
var ServeCmd = &cobra.Command{
	Use:   "serve",
	Short: sym.Serve + " Segment frames sent over a websocket",
	Long: sym.Serve + ` serve - Segment frames sent over a websocket

Listens on server.addr (default 127.0.0.1:8787). Each connection on /ws
gets its own portable engine: send a segment_init message, then
segment_frame messages carrying base64 frame data, and read back one
segment_mask reply per frame. /healthz reports the number of clients.

Examples:
  vidmask serve
  vidmask serve --addr 0.0.0.0:9000 --max-clients 8`,
	RunE: runServe,
}

func init() {
	ServeCmd.Flags().String("addr", "", "Listen address (default from am.toml)")
	ServeCmd.Flags().Int("max-clients", -1, "Maximum concurrent clients, 0 = unlimited (default from am.toml)")
}

// serverConfig builds the server configuration; flags override am.toml
func serverConfig(cfg *am.Config, maxClients int) (server.Config, error) {
	defaults, err := parseEngineSettings(cfg, "", "", "")
	if err != nil {
		return server.Config{}, err
	}
	if defaults.pipeline.Accelerated() {
		defaults.pipeline = segment.PipelinePortableCPU
	}
	if maxClients < 0 {
		maxClients = cfg.Server.MaxClients
	}
	return server.Config{
		AllowedOrigins: cfg.Server.AllowedOrigins,
		MaxClients:     maxClients,
		Defaults: server.EngineSettings{
			Pipeline:         defaults.pipeline,
			MaskType:         defaults.maskType,
			SegmentationMode: defaults.mode,
			BlurMode:         defaults.blur,
		},
	}, nil
}

// engineFactory starts a configured engine for each websocket client
func engineFactory(cfg *am.Config) server.EngineFactory {
	return func(s server.EngineSettings) *segment.Engine {
		return newEngine(cfg, engineSettings{
			pipeline: s.Pipeline,
			maskType: s.MaskType,
			mode:     s.SegmentationMode,
			blur:     s.BlurMode,
		})
	}
}

func runServe(cmd *cobra.Command, args []string) error {
	addr, _ := cmd.Flags().GetString("addr")
	maxClients, _ := cmd.Flags().GetInt("max-clients")

	cfg, err := am.Load()
	if err != nil {
		return errors.Wrap(err, "failed to load config")
	}
	if addr == "" {
		addr = cfg.Server.Addr
	}
	scfg, err := serverConfig(cfg, maxClients)
	if err != nil {
		return err
	}

	srv := server.New(scfg, engineFactory(cfg), logger.ComponentLogger("server"))

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	pterm.Info.Printf("Serving on ws://%s/ws (Ctrl+C to stop)\n", addr)
	if err := srv.ListenAndServe(ctx, addr); err != nil {
		return errors.WithHint(err, "is another process using the address? change server.addr or pass --addr")
	}
	pterm.Success.Println("Server stopped")
	return nil
}
