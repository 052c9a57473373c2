package commands

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/teranos/vidmask/am"
	"github.com/teranos/vidmask/errors"
	"github.com/teranos/vidmask/frame"
	"github.com/teranos/vidmask/history"
	"github.com/teranos/vidmask/logger"
	"github.com/teranos/vidmask/segment"
	"github.com/teranos/vidmask/sym"
)

// HistoryCmd lists recorded runs
var HistoryCmd = &cobra.Command{
	Use:   "history",
	Short: sym.History + " Show recorded run summaries",
	Long: sym.History + ` history - Show recorded run summaries

Every 'vidmask run' stores its pipeline, runtime, geometry and frame
timing in ~/.vidmask/history.db (history.path in am.toml). Runs older than
history.retention_days are pruned after each run, or now with --prune.

Examples:
  vidmask history
  vidmask history --pipeline portable-gpu -n 5
  vidmask history --json
  vidmask history --prune`,
	RunE: runHistory,
}

func init() {
	HistoryCmd.Flags().IntP("limit", "n", 20, "Number of runs to show")
	HistoryCmd.Flags().String("pipeline", "", "Only show runs of this pipeline")
	HistoryCmd.Flags().BoolP("json", "j", false, "Output runs as JSON")
	HistoryCmd.Flags().Bool("prune", false, "Delete runs older than history.retention_days")
}

func openHistory(cfg *am.Config) (*sql.DB, *history.Store, error) {
	path, err := cfg.HistoryPath()
	if err != nil {
		return nil, nil, err
	}
	db, err := history.OpenWithMigrations(path, logger.ComponentLogger("history"))
	if err != nil {
		return nil, nil, errors.WithHintf(err, "set history.path in am.toml or VIDMASK_HISTORY_PATH to use another file")
	}
	return db, history.NewStore(db), nil
}

// pruneHistory applies the retention window; zero days keeps everything
func pruneHistory(ctx context.Context, cfg *am.Config, store *history.Store) (int64, error) {
	if cfg.History.RetentionDays <= 0 {
		return 0, nil
	}
	cutoff := time.Now().AddDate(0, 0, -cfg.History.RetentionDays)
	return store.Prune(ctx, cutoff)
}

// recordRun stores the run summary. Failures only warn; the run itself
// already succeeded.
func recordRun(cfg *am.Config, engine *segment.Engine, settings engineSettings, format frame.PixelFormat, sum runSummary) {
	log := logger.ChildLogger(logger.ComponentLogger("history"), logger.FieldSymbol, sym.History)

	db, store, err := openHistory(cfg)
	if err != nil {
		log.Warnw("Run not recorded", logger.FieldError, err)
		return
	}
	defer db.Close()

	stats := engine.Stats()
	mw, mh := engine.CurrentModelSize()
	ctx := context.Background()
	_, err = store.Record(ctx, history.Run{
		SessionID:   engine.SessionID(),
		Pipeline:    settings.pipeline.String(),
		Runtime:     cfg.Engine.Runtime,
		MaskType:    settings.maskType.String(),
		Width:       runWidth,
		Height:      runHeight,
		Format:      format.String(),
		ModelWidth:  mw,
		ModelHeight: mh,
		Frames:      sum.frames,
		NewMasks:    sum.newMasks,
		Mean:        stats.Mean(),
		Max:         stats.Max,
		TuningFile:  engine.TuningFile(),
		StartedAt:   sum.started,
		FinishedAt:  time.Now(),
	})
	if err != nil {
		log.Warnw("Run not recorded", logger.FieldError, err)
		return
	}

	if n, err := pruneHistory(ctx, cfg, store); err != nil {
		log.Warnw("History prune failed", logger.FieldError, err)
	} else if n > 0 {
		log.Debugw("Pruned old runs", logger.FieldCount, n)
	}
}

func runHistory(cmd *cobra.Command, args []string) error {
	limit, _ := cmd.Flags().GetInt("limit")
	pipeline, _ := cmd.Flags().GetString("pipeline")
	jsonOutput, _ := cmd.Flags().GetBool("json")
	prune, _ := cmd.Flags().GetBool("prune")

	cfg, err := am.Load()
	if err != nil {
		return errors.Wrap(err, "failed to load config")
	}
	if pipeline != "" {
		if _, err := segment.ParsePipeline(pipeline); err != nil {
			return err
		}
	}

	db, store, err := openHistory(cfg)
	if err != nil {
		return err
	}
	defer db.Close()
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	if prune {
		n, err := pruneHistory(ctx, cfg, store)
		if err != nil {
			return err
		}
		pterm.Success.Printf("Pruned %d runs older than %d days\n", n, cfg.History.RetentionDays)
	}

	runs, err := store.Recent(ctx, pipeline, limit)
	if err != nil {
		return err
	}

	if jsonOutput {
		if runs == nil {
			runs = []history.Run{}
		}
		data, err := json.MarshalIndent(runs, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal runs: %w", err)
		}
		fmt.Println(string(data))
		return nil
	}

	if len(runs) == 0 {
		pterm.Info.Println("No runs recorded yet")
		return nil
	}

	data := pterm.TableData{{"Started", "Pipeline", "Runtime", "Frames", "Size", "New", "Mean", "Max"}}
	for _, r := range runs {
		data = append(data, []string{
			r.StartedAt.Local().Format("2006-01-02 15:04:05"),
			r.Pipeline,
			r.Runtime,
			fmt.Sprintf("%d %s", r.Frames, r.Format),
			fmt.Sprintf("%dx%d", r.Width, r.Height),
			fmt.Sprintf("%d", r.NewMasks),
			r.Mean.String(),
			r.Max.String(),
		})
	}
	return pterm.DefaultTable.WithHasHeader().WithData(data).Render()
}
