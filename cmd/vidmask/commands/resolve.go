package commands

import (
	"fmt"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/teranos/vidmask/am"
	"github.com/teranos/vidmask/errors"
	"github.com/teranos/vidmask/resolve"
	"github.com/teranos/vidmask/sym"
)

// ResolveCmd prints the tuning file and model directory an engine would use
var ResolveCmd = &cobra.Command{
	Use:   "resolve",
	Short: sym.Resolve + " Show tuning and model paths",
	Long: sym.Resolve + ` resolve - Show tuning and model paths

Prints the search order and the tuning file and model directory that a
portable engine (generic tier) or an accelerated engine on a machine
with dedicated GPU memory (--gpu) would be configured with.

Examples:
  vidmask resolve
  vidmask resolve --gpu`,
	RunE: runResolve,
}

var resolveGPU bool

func init() {
	ResolveCmd.Flags().BoolVar(&resolveGPU, "gpu", false, "Resolve the dedicated GPU tier")
}

func runResolve(cmd *cobra.Command, args []string) error {
	cfg, err := am.Load()
	if err != nil {
		return errors.Wrap(err, "failed to load config")
	}
	opts := resolveOptions(cfg)

	tier := resolve.TierGeneric
	if resolveGPU {
		tier = resolve.TierDedicatedGPU
	}

	roots, err := resolve.Roots(opts)
	if err != nil {
		return err
	}
	fmt.Printf("Search order for %s (%s):\n", resolve.FileName(tier), tier)
	for i, root := range roots {
		fmt.Printf("  %d. [%s] %s\n", i+1, root.Kind, root.Dir)
	}
	fmt.Println()

	paths, err := resolve.New(opts)(tier)
	if err != nil {
		return err
	}
	pterm.Success.Printf("Tuning file: %s\n", paths.TuningFile)
	fmt.Printf("Model dir:   %s\n", paths.ModelDir)
	return nil
}
