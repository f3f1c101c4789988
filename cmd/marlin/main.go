package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/san-kum/marlin/internal/config"
	"github.com/san-kum/marlin/internal/ctxlog"
	"github.com/san-kum/marlin/internal/model"
	"github.com/san-kum/marlin/internal/storage"
	"github.com/san-kum/marlin/internal/tui"
	"github.com/san-kum/marlin/internal/viz"
)

var (
	configFile string
	preset     string
	dataDir    string
	workers    int
	live       bool
	plot       bool
	verbose    bool
)

func main() {
	root := &cobra.Command{
		Use:   "marlin",
		Short: "marine lower-trophic-level ecosystem simulation",
	}
	root.PersistentFlags().StringVarP(&configFile, "config", "c", "", "YAML configuration file")
	root.PersistentFlags().StringVarP(&preset, "preset", "p", "", "named preset configuration")
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "run the model and persist the results",
		RunE:  runRun,
	}
	runCmd.Flags().StringVar(&dataDir, "data-dir", "", "override output directory")
	runCmd.Flags().IntVar(&workers, "workers", 0, "tile workers (0 = all CPUs)")
	runCmd.Flags().BoolVar(&live, "live", false, "show live stage progress")
	runCmd.Flags().BoolVar(&plot, "plot", true, "plot biomass after the run")

	templateCmd := &cobra.Command{
		Use:   "template",
		Short: "show the variables and memory a run would produce, without computing",
		RunE:  runTemplate,
	}

	presetsCmd := &cobra.Command{
		Use:   "presets",
		Short: "list preset configurations",
		Run: func(cmd *cobra.Command, args []string) {
			for _, name := range config.ListPresets() {
				fmt.Println(name)
			}
		},
	}

	root.AddCommand(runCmd, templateCmd, presetsCmd)
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func loadConfig() (*config.Config, error) {
	if configFile != "" {
		return config.Load(configFile)
	}
	if preset != "" {
		cfg := config.Preset(preset)
		if cfg == nil {
			return nil, fmt.Errorf("unknown preset %q (have: %s)", preset, strings.Join(config.ListPresets(), ", "))
		}
		return cfg, nil
	}
	return config.Default(), nil
}

func newContext() context.Context {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	return ctxlog.WithLogger(context.Background(), logger)
}

func runRun(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if dataDir != "" {
		cfg.Output.DataDir = dataDir
	}
	if workers > 0 {
		cfg.Workers = workers
	}

	m, err := model.FromConfig(cfg)
	if err != nil {
		return err
	}
	defer m.Close()

	ctx := newContext()
	start := time.Now()
	if live {
		if err := runLive(ctx, cfg, m); err != nil {
			return err
		}
	} else if err := m.Run(ctx); err != nil {
		return err
	}
	elapsed := time.Since(start)

	store := storage.New(cfg.Output.DataDir)
	if err := store.Init(); err != nil {
		return err
	}
	stages := stageNames(m)
	runID, err := store.Save(cfg.Name, stages, m.State, cfg.Output.Variables, elapsed)
	if err != nil {
		return err
	}

	fmt.Println(viz.Summary("run complete", [][2]string{
		{"run", runID},
		{"elapsed", elapsed.Round(time.Millisecond).String()},
		{"variables", strings.Join(m.State.Names(), ", ")},
	}))

	if plot {
		names := make([]string, len(cfg.FunctionalGroups))
		for i, fg := range cfg.FunctionalGroups {
			names[i] = fg.Name
		}
		report, err := viz.BiomassReport(m.State, names)
		if err != nil {
			return err
		}
		fmt.Println(report)
	}
	return nil
}

// runLive runs the kernel under a bubbletea progress view. Quitting the
// view cancels the run and releases the observer, so the CLI never
// blocks on an audience that has left.
func runLive(ctx context.Context, cfg *config.Config, m *model.Model) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	events := make(chan tea.Msg, 16)
	done := make(chan struct{})
	m.Kernel.AddObserver(tui.Observer{Events: events, Done: done})

	program := tea.NewProgram(tui.NewModel(cfg.Name, stageNames(m), events))

	errc := make(chan error, 1)
	go func() {
		err := m.Run(ctx)
		select {
		case events <- tui.FinishedMsg{Err: err}:
		case <-done:
		}
		errc <- err
	}()

	_, uiErr := program.Run()
	cancel()
	close(done)
	err := <-errc
	if uiErr != nil {
		return uiErr
	}
	return err
}

func runTemplate(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	m, err := model.FromConfig(cfg)
	if err != nil {
		return err
	}
	defer m.Close()

	tmpl, err := m.Template()
	if err != nil {
		return err
	}

	names := tmpl.Names()
	sort.Strings(names)
	pairs := make([][2]string, 0, len(names)+1)
	for _, name := range names {
		a, err := tmpl.Get(name)
		if err != nil {
			return err
		}
		pairs = append(pairs, [2]string{name, fmt.Sprintf("%v %v", a.Dims(), a.Shape())})
	}
	pairs = append(pairs, [2]string{"expected memory", fmt.Sprintf("%.2f MB", float64(tmpl.NBytes())/1e6)})
	fmt.Println(viz.Summary("template", pairs))
	return nil
}

func stageNames(m *model.Model) []string {
	units := m.Kernel.Units()
	names := make([]string, len(units))
	for i, u := range units {
		names[i] = u.Name
	}
	return names
}
