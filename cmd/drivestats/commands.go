package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/sweeney/drivestats/internal/config"
	"github.com/sweeney/drivestats/internal/export"
	"github.com/sweeney/drivestats/internal/logic"
	"github.com/sweeney/drivestats/internal/setupfile"
	"github.com/sweeney/drivestats/internal/store"
	"github.com/sweeney/drivestats/internal/telemetry"
)

var (
	statsTrack string

	exportFormat string
	exportOutput string

	setupExportClass   string
	setupExportName    string
	setupExportDir     string
	setupExportReplace bool

	configPrint bool
)

func newStatsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show persisted driver statistics",
		Args:  cobra.NoArgs,
		RunE:  runStatsCmd,
	}
	cmd.Flags().StringVar(&statsTrack, "track", "", "only show this track")
	return cmd
}

func runStatsCmd(cmd *cobra.Command, _ []string) error {
	entries, err := listEntries(cmd)
	if err != nil {
		return err
	}
	if statsTrack != "" {
		filtered := entries[:0]
		for _, e := range entries {
			if strings.EqualFold(e.Key.Track, statsTrack) {
				filtered = append(filtered, e)
			}
		}
		entries = filtered
	}
	out := cmd.OutOrStdout()
	if len(entries) == 0 {
		fmt.Fprintln(out, "no statistics recorded yet")
		return nil
	}
	for _, line := range statsTable(entries) {
		fmt.Fprintln(out, line)
	}
	return nil
}

var statsHeaders = []string{
	"Track", "Subject", "Distance", "Time", "Laps", "Invalid", "Fuel",
	"Races", "Wins", "Podiums", "Penalties", "Best", "Quali", "Race",
}

var statsRightAlign = map[int]bool{2: true, 3: true, 4: true, 5: true, 6: true, 7: true, 8: true, 9: true, 10: true, 11: true, 12: true, 13: true}

func statsTable(entries []store.Entry) []string {
	rows := make([][]string, 0, len(entries))
	for _, e := range entries {
		r := e.Record
		rows = append(rows, []string{
			e.Key.Track,
			e.Key.Subject,
			fmt.Sprintf("%.1f km", r.Meters/1000),
			fmt.Sprintf("%.1f h", r.Seconds/3600),
			strconv.Itoa(r.Valid),
			strconv.Itoa(r.Invalid),
			fmt.Sprintf("%.1f L", r.Liters),
			strconv.Itoa(r.Races),
			strconv.Itoa(r.Wins),
			strconv.Itoa(r.Podiums),
			strconv.Itoa(r.Penalties),
			formatLaptime(r.PersonalBest),
			formatLaptime(r.QualifyingBest),
			formatLaptime(r.RaceBest),
		})
	}
	return formatTable(statsHeaders, rows, statsRightAlign)
}

func formatLaptime(seconds float64) string {
	if !logic.IsSet(seconds) {
		return "-"
	}
	return fmt.Sprintf("%d:%06.3f", int(seconds/60), math.Mod(seconds, 60))
}

func newExportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export persisted statistics as CSV or Parquet",
		Args:  cobra.NoArgs,
		RunE:  runExportCmd,
	}
	cmd.Flags().StringVar(&exportFormat, "format", "csv", `output format: "csv" or "parquet"`)
	cmd.Flags().StringVarP(&exportOutput, "output", "o", "-", `output file ("-" for stdout)`)
	return cmd
}

func runExportCmd(cmd *cobra.Command, _ []string) error {
	var write func(io.Writer, []store.Entry) error
	switch exportFormat {
	case "csv":
		write = export.WriteCSV
	case "parquet":
		write = export.WriteParquet
	default:
		return fmt.Errorf("unknown --format %q", exportFormat)
	}

	entries, err := listEntries(cmd)
	if err != nil {
		return err
	}

	if exportOutput == "-" || exportOutput == "" {
		return write(cmd.OutOrStdout(), entries)
	}
	if err := os.MkdirAll(filepath.Dir(exportOutput), 0o755); err != nil {
		return fmt.Errorf("failed to create output dir: %w", err)
	}
	f, err := os.Create(exportOutput)
	if err != nil {
		return fmt.Errorf("failed to create output: %w", err)
	}
	if err := write(f, entries); err != nil {
		_ = f.Close()
		return fmt.Errorf("failed to export: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to close output: %w", err)
	}
	fmt.Fprintf(cmd.ErrOrStderr(), "exported %d records to %s\n", len(entries), exportOutput)
	return nil
}

// listEntries opens the database named by --db or the config file and
// returns every record.
func listEntries(cmd *cobra.Command) ([]store.Entry, error) {
	fileCfg, err := config.LoadConfig(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	applyStringConfig(cmd, "db", &dbPath, fileCfg.Stats.DB)

	st, err := store.OpenSQLite(dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open db: %w", err)
	}
	defer st.Close()

	entries, err := st.List(context.Background())
	if err != nil {
		return nil, fmt.Errorf("failed to list stats: %w", err)
	}
	return entries, nil
}

func newSetupExportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "setup-export <setup.json>",
		Short: "Convert a setup JSON document into an LMU .svm file",
		Args:  cobra.ExactArgs(1),
		RunE:  runSetupExportCmd,
	}
	cmd.Flags().StringVar(&setupExportClass, "class", "", "vehicle class written to the setup header (required)")
	cmd.Flags().StringVar(&setupExportName, "name", "", "file name without extension (default: input file name)")
	cmd.Flags().StringVar(&setupExportDir, "dir", config.DefaultSetupDir(), "output directory")
	cmd.Flags().BoolVar(&setupExportReplace, "replace", false, "replace an existing file of the same name")
	return cmd
}

func runSetupExportCmd(cmd *cobra.Command, args []string) error {
	if strings.TrimSpace(setupExportClass) == "" {
		return fmt.Errorf("--class is required")
	}

	in, err := os.Open(args[0])
	if err != nil {
		return fmt.Errorf("failed to open setup: %w", err)
	}
	payload, err := setupfile.DecodePayload(in)
	in.Close()
	if err != nil {
		return err
	}

	name := setupExportName
	if name == "" {
		base := filepath.Base(args[0])
		name = strings.TrimSuffix(base, filepath.Ext(base))
	}
	name = logic.Filename(name)
	if name == "" {
		return fmt.Errorf("setup name is empty")
	}

	sink, err := setupfile.NewDirSink(setupExportDir)
	if err != nil {
		return err
	}
	path := sink.Path(name)
	if _, err := os.Stat(path); err == nil {
		if !setupExportReplace {
			return fmt.Errorf("%s already exists (use --replace)", path)
		}
		if err := sink.Remove(name); err != nil {
			return err
		}
	} else if !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to stat setup: %w", err)
	}

	lines := setupfile.ExportLMU(payload, setupExportClass)
	if err := sink.Write(name, lines); err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), path)
	return nil
}

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Create the config file if missing and print its path",
		Args:  cobra.NoArgs,
		RunE:  runConfigCmd,
	}
	cmd.Flags().BoolVar(&configPrint, "print", false, "print the default config template instead")
	return cmd
}

func runConfigCmd(cmd *cobra.Command, _ []string) error {
	out := cmd.OutOrStdout()
	if configPrint {
		fmt.Fprint(out, defaultConfigTemplate())
		return nil
	}

	path := configPath
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if _, err := os.Stat(path); err != nil {
		if !os.IsNotExist(err) {
			return fmt.Errorf("failed to stat config: %w", err)
		}
		if err := os.WriteFile(path, []byte(defaultConfigTemplate()), 0o644); err != nil {
			return fmt.Errorf("failed to write config: %w", err)
		}
	}
	fmt.Fprintln(out, path)
	return nil
}

func defaultConfigTemplate() string {
	return fmt.Sprintf(`# drivestats configuration
# Uncomment a value to enable it. CLI flags override config values.

# brands-file = %q   # YAML map of vehicle name to brand

[poll]
# idle-interval = %q      # Polling interval while not tracking
# active-interval = %q  # Polling interval while tracking
# read-timeout = %q     # Timeout for a single telemetry read

[stats]
# classification = %q  # "Vehicle", "Class" or "Class - Brand"
# podium-by-class = false      # Count wins and podiums within the class
# db = %q

[setup]
# enabled = true
# dir = %q
# identifier = %q
# ext = %q

[source]
# kind = %q           # "mqtt" or "replay"
# path = ""               # Recorded telemetry for kind = "replay"
# topic = %q
# broker = ""             # Defaults to [mqtt] broker

[mqtt]
# broker = %q  # Empty disables event publishing
# heartbeat = %q
# client-id = %q

[http]
# addr = %q

[gpio]
# chip = %q
# pause-pin = 0           # BCM pin of the pause switch, 0 disables
# mode = %q          # "level" or "toggle"
`,
		config.DefaultBrandsPath(),
		defaultIdleInterval.String(),
		defaultActiveInterval.String(),
		defaultReadTimeout.String(),
		defaultClassification,
		config.DefaultDBPath(),
		config.DefaultSetupDir(),
		defaultIdentifier,
		setupfile.DefaultExt,
		defaultSource,
		telemetry.DefaultTopic,
		defaultBroker,
		defaultHeartbeat.String(),
		defaultClientID,
		defaultHTTPAddr,
		defaultGPIOChip,
		defaultPauseMode,
	)
}
