package commands

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/teranos/vidmask/am"
	"github.com/teranos/vidmask/errors"
	"github.com/teranos/vidmask/sym"
)

// AmCmd represents the am (configuration) command
var AmCmd = &cobra.Command{
	Use:   "am",
	Short: sym.AM + " Manage vidmask configuration",
	Long: sym.AM + ` am - Manage vidmask configuration ("I am")

Display and manage engine, resolver, watcher and log settings.

Configuration sources (in order of precedence):
1. Command line flags
2. Environment variables (VIDMASK_* prefix)
3. Project config (./am.toml, searched up directories)
4. User config (~/.vidmask/am.toml)
5. System config (/etc/vidmask/am.toml)
6. Default values

Examples:
  vidmask am show                       # Show current configuration
  vidmask am show --format json         # Show configuration in JSON format
  vidmask am get engine.pipeline        # Get specific config value
  vidmask am set engine.blur_mode light # Persist a value in ~/.vidmask/am.toml
  vidmask am validate                   # Validate current configuration`,
}

var amShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	Long:  "Display the current vidmask configuration merged from all sources",
	RunE:  runAmShow,
}

var amGetCmd = &cobra.Command{
	Use:   "get <key>",
	Short: "Get a specific configuration value",
	Long:  "Get a specific configuration value using dot notation (e.g., engine.pipeline, watcher.debounce_ms)",
	Args:  cobra.ExactArgs(1),
	RunE:  runAmGet,
}

var amSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a configuration value in the user config",
	Long: `Write one value into ~/.vidmask/am.toml.

The resulting file is validated before it is written. The previous file is
kept as am.toml.back1, rotating up to three backups.`,
	Args: cobra.ExactArgs(2),
	RunE: runAmSet,
}

var amValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate current configuration",
	Long:  "Validate the merged configuration and report unknown keys in each config file",
	RunE:  runAmValidate,
}

var amWhereCmd = &cobra.Command{
	Use:   "where",
	Short: "Show where configuration is loaded from",
	Long: `Show the configuration cascade and the source of every setting.

Lists all configuration sources in order of precedence, showing
which files exist and which settings each one provides.`,
	RunE: runAmWhere,
}

var configFormat string

func init() {
	amShowCmd.Flags().StringVar(&configFormat, "format", "toml", "Output format: toml, json, yaml")

	AmCmd.AddCommand(amShowCmd)
	AmCmd.AddCommand(amGetCmd)
	AmCmd.AddCommand(amSetCmd)
	AmCmd.AddCommand(amValidateCmd)
	AmCmd.AddCommand(amWhereCmd)
}

func runAmShow(cmd *cobra.Command, args []string) error {
	cfg, err := am.Load()
	if err != nil {
		return errors.Wrap(err, "failed to load config")
	}

	out, err := formatConfig(cfg, configFormat)
	if err != nil {
		return err
	}
	fmt.Fprint(cmd.OutOrStdout(), out)
	return nil
}

// formatConfig renders cfg as toml, json or yaml
func formatConfig(cfg *am.Config, format string) (string, error) {
	switch format {
	case "json":
		data, err := json.MarshalIndent(cfg, "", "  ")
		if err != nil {
			return "", errors.Wrap(err, "failed to marshal config to JSON")
		}
		return string(data) + "\n", nil

	case "yaml":
		data, err := yaml.Marshal(cfg)
		if err != nil {
			return "", errors.Wrap(err, "failed to marshal config to YAML")
		}
		return "# vidmask configuration\n" + string(data), nil

	case "toml":
		data, err := toml.Marshal(cfg)
		if err != nil {
			return "", errors.Wrap(err, "failed to marshal config to TOML")
		}
		return "# vidmask configuration\n" + string(data), nil
	}
	return "", errors.NewInvalidRequestError("unsupported format: %s (supported: toml, json, yaml)", format)
}

func runAmGet(cmd *cobra.Command, args []string) error {
	key := args[0]

	if _, err := am.Load(); err != nil {
		return errors.Wrap(err, "failed to load config")
	}
	if !am.GetViper().IsSet(key) {
		return errors.WithHint(
			errors.NewNotFoundError("configuration key %q", key),
			"run 'vidmask am where' to list every key")
	}

	fmt.Fprintln(cmd.OutOrStdout(), am.Get(key))
	return nil
}

func runAmSet(cmd *cobra.Command, args []string) error {
	if err := am.SetUserValue(args[0], args[1]); err != nil {
		return err
	}
	am.Reset()

	path, _ := am.UserConfigPath()
	pterm.Success.Printf("%s = %s (%s)\n", args[0], args[1], path)
	if env := am.EnvKey(args[0]); os.Getenv(env) != "" {
		pterm.Warning.Printf("%s is set and overrides this value\n", env)
	}
	return nil
}

func runAmValidate(cmd *cobra.Command, args []string) error {
	cfg, err := am.Load()
	if err != nil {
		return errors.Wrap(err, "failed to load config")
	}

	var unknown []string
	for _, path := range am.ConfigFiles() {
		if _, err := os.Stat(path); err != nil {
			continue
		}
		keys, err := am.CheckUnknownKeys(path)
		if err != nil {
			return err
		}
		for _, k := range keys {
			unknown = append(unknown, fmt.Sprintf("%s (%s)", k, path))
		}
	}

	if err := cfg.Validate(); err != nil {
		return errors.Wrap(err, "configuration validation failed")
	}
	if len(unknown) > 0 {
		return errors.NewInvalidRequestError("unknown configuration keys: %s", strings.Join(unknown, ", "))
	}

	pterm.Success.Println("Configuration is valid")
	return nil
}

func runAmWhere(cmd *cobra.Command, args []string) error {
	intro, err := am.GetConfigIntrospection()
	if err != nil {
		return errors.Wrap(err, "failed to get config introspection")
	}
	out := cmd.OutOrStdout()

	fmt.Fprintln(out, "Configuration cascade (later overrides earlier):")
	fmt.Fprintln(out, "  1. [DEFAULT]  Built-in defaults")
	for i, path := range am.ConfigFiles() {
		state := "missing"
		if _, err := os.Stat(path); err == nil {
			state = "found"
		}
		fmt.Fprintf(out, "  %d. [FILE]     %s (%s)\n", i+2, path, state)
	}
	fmt.Fprintf(out, "  %d. [ENV]      %s_* environment variables\n", len(am.ConfigFiles())+2, am.EnvPrefix)
	fmt.Fprintln(out)

	type group struct {
		source   am.ConfigSource
		path     string
		settings []am.SettingInfo
	}
	groups := map[string]*group{}
	for _, s := range intro.Settings {
		key := string(s.Source) + "|" + s.SourcePath
		if s.Source == am.SourceEnvironment {
			key = string(s.Source)
		}
		g, ok := groups[key]
		if !ok {
			g = &group{source: s.Source, path: s.SourcePath}
			groups[key] = g
		}
		g.settings = append(g.settings, s)
	}

	order := map[am.ConfigSource]int{
		am.SourceDefault:     0,
		am.SourceSystem:      1,
		am.SourceUser:        2,
		am.SourceProject:     3,
		am.SourceEnvironment: 4,
	}
	sorted := make([]*group, 0, len(groups))
	for _, g := range groups {
		sorted = append(sorted, g)
	}
	sort.Slice(sorted, func(i, j int) bool {
		if order[sorted[i].source] != order[sorted[j].source] {
			return order[sorted[i].source] < order[sorted[j].source]
		}
		return sorted[i].path < sorted[j].path
	})

	fmt.Fprintln(out, "Active configuration:")
	for _, g := range sorted {
		switch g.source {
		case am.SourceDefault:
			fmt.Fprintf(out, "\n%s: %d settings\n", g.source, len(g.settings))
		case am.SourceEnvironment:
			fmt.Fprintf(out, "\n%s: %d settings from environment variables\n", g.source, len(g.settings))
		default:
			fmt.Fprintf(out, "\n%s: %d settings from %s\n", g.source, len(g.settings), g.path)
		}
		for _, s := range g.settings {
			value := fmt.Sprintf("%v", s.Value)
			if len(value) > 50 {
				value = value[:47] + "..."
			}
			if g.source == am.SourceEnvironment {
				fmt.Fprintf(out, "  %s = %s (%s)\n", s.Key, value, s.SourcePath)
				continue
			}
			fmt.Fprintf(out, "  %s = %s\n", s.Key, value)
		}
	}
	return nil
}
