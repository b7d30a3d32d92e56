// Package main provides the CLI entrypoint for qlogstats.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/qlogstats/qlogstats/internal/config"
	"github.com/qlogstats/qlogstats/internal/export"
	"github.com/qlogstats/qlogstats/internal/model"
	"github.com/qlogstats/qlogstats/internal/queries"
	"github.com/qlogstats/qlogstats/internal/query"
	"github.com/qlogstats/qlogstats/internal/stats"
	"github.com/qlogstats/qlogstats/internal/store"
	"github.com/qlogstats/qlogstats/internal/tui"
)

const defaultExportFormat = "csv"

var (
	dbPath     string
	exportDir  string
	exportFmt  string
	chartLimit int

	statsFrom    string
	statsTo      string
	statsBand    string
	statsMode    string
	statsCountry string
	statsChart   bool
	statsExport  bool

	searchPrefix bool

	queryName    string
	queryColumns string
	queryWhere   string
)

func main() {
	rootCmd := newRootCmd()
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "qlogstats",
		Short:         "Statistics browser for QLog logbooks",
		SilenceUsage:  true,
		SilenceErrors: false,
		RunE:          runBrowseCmd,
	}

	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "", "path to the QLog database")
	rootCmd.PersistentFlags().StringVar(&exportDir, "export-dir", "", "directory for exported files")
	rootCmd.PersistentFlags().StringVar(&exportFmt, "format", defaultExportFormat, "export format (csv or txt)")
	rootCmd.PersistentFlags().IntVar(&chartLimit, "limit", 0, "bars shown in chart views (0 = default)")

	rootCmd.AddCommand(newStatsCmd())
	rootCmd.AddCommand(newSearchCmd())
	rootCmd.AddCommand(newQueryCmd())
	rootCmd.AddCommand(newInfoCmd())
	rootCmd.AddCommand(newConfigCmd())

	return rootCmd
}

func runBrowseCmd(cmd *cobra.Command, _ []string) error {
	opts, err := resolveOptions(cmd)
	if err != nil {
		return err
	}
	st, err := openStore()
	if err != nil {
		return err
	}
	defer closeStore(st)

	engine := stats.NewEngine(st)
	browser := tui.NewModel(engine, opts)
	program := tea.NewProgram(browser, tea.WithAltScreen())
	if _, err := program.Run(); err != nil {
		return fmt.Errorf("failed to run TUI: %w", err)
	}
	return nil
}

func newStatsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stats <statistic>",
		Short: "Print a statistic",
		Args:  cobra.ExactArgs(1),
		RunE:  runStatsCmd,
	}
	cmd.Flags().StringVar(&statsFrom, "from", "", "start date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&statsTo, "to", "", "end date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&statsBand, "band", "", "band filter")
	cmd.Flags().StringVar(&statsMode, "mode", "", "mode filter")
	cmd.Flags().StringVar(&statsCountry, "country", "", "country filter")
	cmd.Flags().BoolVar(&statsChart, "chart", false, "render a bar chart instead of a table")
	cmd.Flags().BoolVar(&statsExport, "export", false, "write the result to the export directory")
	return cmd
}

func runStatsCmd(cmd *cobra.Command, args []string) error {
	opts, err := resolveOptions(cmd)
	if err != nil {
		return err
	}
	req, err := statsRequest(args[0])
	if err != nil {
		return err
	}
	st, err := openStore()
	if err != nil {
		return err
	}
	defer closeStore(st)

	engine := stats.NewEngine(st)
	rs, err := engine.Run(context.Background(), req)
	if err != nil {
		if errors.Is(err, stats.ErrUnknownStatistic) {
			return fmt.Errorf("%w (available: %s)", err, strings.Join(engine.Registry().IDs(), ", "))
		}
		return err
	}

	if statsChart {
		desc, _ := engine.Registry().Lookup(args[0])
		if !desc.Chartable {
			return fmt.Errorf("statistic %s has no chart view", args[0])
		}
		points := stats.ChartPoints(desc, rs)
		if err := stats.RenderBarChart(cmd.OutOrStdout(), desc.Label, points, 0, chartLimit); err != nil {
			return fmt.Errorf("failed to render chart: %w", err)
		}
	} else {
		if err := export.RenderTable(cmd.OutOrStdout(), rs); err != nil {
			return fmt.Errorf("failed to write output: %w", err)
		}
	}

	if statsExport {
		path, err := export.Write(opts.ExportDir, args[0], opts.ExportFormat, rs)
		if err != nil {
			return err
		}
		logErrf("Exported to %s\n", path)
	}
	return nil
}

func statsRequest(id string) (query.Request, error) {
	var dates model.DateRange
	if statsFrom != "" {
		parsed, err := time.ParseInLocation("2006-01-02", statsFrom, time.Local)
		if err != nil {
			return query.Request{}, fmt.Errorf("invalid --from value: %w", err)
		}
		dates.From = &parsed
	}
	if statsTo != "" {
		parsed, err := time.ParseInLocation("2006-01-02", statsTo, time.Local)
		if err != nil {
			return query.Request{}, fmt.Errorf("invalid --to value: %w", err)
		}
		dates.To = &parsed
	}
	if err := dates.Validate(); err != nil {
		return query.Request{}, err
	}
	return query.Request{
		Statistic: id,
		Dates:     dates,
		Filters: model.Filters{
			Band:    statsBand,
			Mode:    statsMode,
			Country: statsCountry,
		},
	}, nil
}

func newSearchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "search <term>",
		Short: "Search contacts by callsign",
		Args:  cobra.ExactArgs(1),
		RunE:  runSearchCmd,
	}
	cmd.Flags().BoolVar(&searchPrefix, "prefix", false, "match the callsign prefix only")
	return cmd
}

func runSearchCmd(cmd *cobra.Command, args []string) error {
	st, err := openStore()
	if err != nil {
		return err
	}
	defer closeStore(st)

	engine := stats.NewEngine(st)
	rs, err := engine.Search(context.Background(), args[0], searchPrefix, query.Request{})
	if err != nil {
		return err
	}
	if len(rs.Rows) == 0 {
		logErrf("No contacts matching %q\n", args[0])
		return nil
	}
	if err := export.RenderTable(cmd.OutOrStdout(), rs); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func newQueryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "query",
		Short: "Manage saved queries",
	}
	cmd.AddCommand(newQueryListCmd())
	cmd.AddCommand(newQuerySaveCmd())
	cmd.AddCommand(newQueryRunCmd())
	cmd.AddCommand(newQueryDeleteCmd())
	return cmd
}

func newQueryListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List saved queries",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			manager := queries.NewManager(config.DefaultQueriesPath())
			saved, err := manager.List()
			if err != nil {
				return err
			}
			if len(saved) == 0 {
				logErrln("No saved queries.")
				return nil
			}
			for _, q := range saved {
				if _, err := fmt.Fprintf(cmd.OutOrStdout(), "%s  %s\n", q.ID, q.Name); err != nil {
					return fmt.Errorf("failed to write output: %w", err)
				}
			}
			return nil
		},
	}
}

func newQuerySaveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "save",
		Short: "Save a query",
		Args:  cobra.NoArgs,
		RunE:  runQuerySaveCmd,
	}
	cmd.Flags().StringVar(&queryName, "name", "", "query name")
	cmd.Flags().StringVar(&queryColumns, "columns", "callsign,start_time,band,mode,country", "comma-separated columns")
	cmd.Flags().StringVar(&queryWhere, "where", "", "condition tree as JSON")
	return cmd
}

func runQuerySaveCmd(_ *cobra.Command, _ []string) error {
	if queryName == "" {
		return fmt.Errorf("--name must not be empty")
	}
	var group *query.Group
	if queryWhere != "" {
		parsed, err := query.UnmarshalGroup([]byte(queryWhere))
		if err != nil {
			return fmt.Errorf("invalid --where value: %w", err)
		}
		if _, _, err := parsed.Fragment(); err != nil {
			return fmt.Errorf("invalid --where value: %w", err)
		}
		group = parsed
	}
	columns := splitColumns(queryColumns)
	if len(columns) == 0 {
		return fmt.Errorf("--columns must not be empty")
	}

	manager := queries.NewManager(config.DefaultQueriesPath())
	saved, err := manager.Save(queries.Saved{
		Name:       queryName,
		Columns:    columns,
		Conditions: group,
	})
	if err != nil {
		return err
	}
	logErrf("Saved query %s (%s)\n", saved.Name, saved.ID)
	return nil
}

func newQueryRunCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run <name-or-id>",
		Short: "Run a saved query",
		Args:  cobra.ExactArgs(1),
		RunE:  runQueryRunCmd,
	}
}

func runQueryRunCmd(cmd *cobra.Command, args []string) error {
	manager := queries.NewManager(config.DefaultQueriesPath())
	saved, err := manager.Get(args[0])
	if err != nil {
		return err
	}
	st, err := openStore()
	if err != nil {
		return err
	}
	defer closeStore(st)

	engine := stats.NewEngine(st)
	rs, err := engine.Custom(context.Background(), saved.Columns, query.Request{Conditions: saved.Conditions})
	if err != nil {
		return err
	}
	if len(rs.Rows) == 0 {
		logErrf("No contacts matching query %q\n", saved.Name)
		return nil
	}
	if err := export.RenderTable(cmd.OutOrStdout(), rs); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func newQueryDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <name-or-id>",
		Short: "Delete a saved query",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			manager := queries.NewManager(config.DefaultQueriesPath())
			if err := manager.Delete(args[0]); err != nil {
				return err
			}
			logErrf("Deleted query %s\n", args[0])
			return nil
		},
	}
}

func newInfoCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "info",
		Short: "Show logbook summary",
		Args:  cobra.NoArgs,
		RunE:  runInfoCmd,
	}
}

func runInfoCmd(cmd *cobra.Command, _ []string) error {
	st, err := openStore()
	if err != nil {
		return err
	}
	defer closeStore(st)

	ctx := context.Background()
	total, err := st.TotalContacts(ctx, model.DateRange{}, model.Filters{})
	if err != nil {
		return err
	}
	first, last, err := st.DateRange(ctx)
	if err != nil {
		return err
	}
	bands, err := st.Bands(ctx)
	if err != nil {
		return err
	}
	modes, err := st.Modes(ctx)
	if err != nil {
		return err
	}
	countries, err := st.Countries(ctx)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	lines := []string{
		fmt.Sprintf("Logbook:   %s", st.Path()),
		fmt.Sprintf("Contacts:  %d", total),
		fmt.Sprintf("Range:     %s to %s", orUnknown(first), orUnknown(last)),
		fmt.Sprintf("Bands:     %s", strings.Join(bands, ", ")),
		fmt.Sprintf("Modes:     %s", strings.Join(modes, ", ")),
		fmt.Sprintf("Countries: %d", len(countries)),
	}
	for _, line := range lines {
		if _, err := fmt.Fprintln(out, line); err != nil {
			return fmt.Errorf("failed to write output: %w", err)
		}
	}
	return nil
}

func newConfigCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Create/open config file",
		Args:  cobra.NoArgs,
		RunE:  runConfigCmd,
	}
}

func runConfigCmd(_ *cobra.Command, _ []string) error {
	path := config.DefaultConfigPath()
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

	editor := strings.TrimSpace(os.Getenv("EDITOR"))
	if editor == "" {
		editor = "vi"
	}
	parts := strings.Fields(editor)
	if len(parts) == 0 {
		return fmt.Errorf("editor command is empty")
	}
	cmd := exec.Command(parts[0], append(parts[1:], path)...)
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("failed to open editor: %w", err)
	}
	return nil
}

// resolveOptions merges config file values into flags that were not
// set on the command line, then validates the export format.
func resolveOptions(cmd *cobra.Command) (tui.Options, error) {
	fileCfg, err := config.LoadConfig(config.DefaultConfigPath())
	if err != nil {
		return tui.Options{}, fmt.Errorf("failed to load config: %w", err)
	}
	applyStringConfig(cmd, "db", &dbPath, fileCfg.Database.Path)
	applyStringConfig(cmd, "export-dir", &exportDir, fileCfg.Export.Directory)
	applyStringConfig(cmd, "format", &exportFmt, fileCfg.Export.Format)
	applyIntConfig(cmd, "limit", &chartLimit, fileCfg.Display.Limit)

	if dbPath == "" {
		dbPath = config.DefaultLogbookPath()
	}
	if exportDir == "" {
		exportDir = config.DefaultExportDir()
	}
	format, err := export.ParseFormat(exportFmt)
	if err != nil {
		return tui.Options{}, err
	}
	return tui.Options{ExportDir: exportDir, ExportFormat: format, ChartLimit: chartLimit}, nil
}

func openStore() (*store.Store, error) {
	path := dbPath
	if path == "" {
		path = config.DefaultLogbookPath()
	}
	st, err := store.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open logbook %s: %w", path, err)
	}
	return st, nil
}

func closeStore(st *store.Store) {
	if cerr := st.Close(); cerr != nil {
		logErrf("failed to close logbook: %v\n", cerr)
	}
}

func splitColumns(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		out = append(out, part)
	}
	return out
}

func orUnknown(s string) string {
	if s == "" {
		return "unknown"
	}
	return s
}

func applyStringConfig(cmd *cobra.Command, name string, target, value *string) {
	if value == nil {
		return
	}
	if cmd.Flags().Changed(name) {
		return
	}
	*target = *value
}

func applyIntConfig(cmd *cobra.Command, name string, target, value *int) {
	if value == nil {
		return
	}
	if cmd.Flags().Changed(name) {
		return
	}
	*target = *value
}

func defaultConfigTemplate() string {
	return fmt.Sprintf(`# qlogstats configuration
# Uncomment a value to enable it. CLI flags override config values.

[database]
# path = %q

[export]
# directory = %q
# format = %q   # csv or txt

[display]
# limit = 20    # Bars shown in chart views
`,
		config.DefaultLogbookPath(),
		config.DefaultExportDir(),
		defaultExportFormat,
	)
}

func logErrf(format string, args ...any) {
	if _, err := fmt.Fprintf(os.Stderr, format, args...); err != nil {
		// Best-effort logging to stderr.
		_ = err
	}
}

func logErrln(args ...any) {
	if _, err := fmt.Fprintln(os.Stderr, args...); err != nil {
		// Best-effort logging to stderr.
		_ = err
	}
}
