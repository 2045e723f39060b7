package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/san-kum/agentsim/internal/automation"
	"github.com/san-kum/agentsim/internal/config"
	"github.com/san-kum/agentsim/internal/experiment"
	"github.com/san-kum/agentsim/internal/export"
	"github.com/san-kum/agentsim/internal/metrics"
	"github.com/san-kum/agentsim/internal/optim"
	"github.com/san-kum/agentsim/internal/sim"
	"github.com/san-kum/agentsim/internal/storage"
	"github.com/san-kum/agentsim/internal/viz"
)

var (
	dataDir string
	verbose bool

	configFile   string
	preset       string
	nAgents      int
	domainSize   float64
	nVoxels      int
	nThreads     int
	dt           float64
	tEnd         float64
	saveInterval float64
	seed         uint64
	integrator   string
	showProgress bool
	noStore      bool

	iteration  int64
	output     string
	exampleIni bool
	traceID    int64
	svgPixels  int

	sweepParam  string
	sweepMin    float64
	sweepMax    float64
	sweepSteps  int
	trials      int
	gridParams  []string
	gridMetric  string

	benchAgents  int
	benchThreads int
	benchTEnd    float64
)

func main() {
	rootCmd := &cobra.Command{
		Use:           "agentsim",
		Short:         "parallel 2D agent simulation with bounded Lennard-Jones interactions",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			level := slog.LevelInfo
			if verbose {
				level = slog.LevelDebug
			}
			slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
		},
	}

	rootCmd.PersistentFlags().StringVar(&dataDir, "data", config.DefaultOutDir, "data directory")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "config file (yaml, or .ini/.gcfg); its out_dir is the data directory unless --data is set")

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "run a simulation",
		Args:  cobra.NoArgs,
		RunE:  runSimulation,
	}
	runCmd.Flags().StringVar(&preset, "preset", "", "use preset configuration")
	runCmd.Flags().IntVar(&nAgents, "agents", config.DefaultAgents, "number of agents")
	runCmd.Flags().Float64Var(&domainSize, "size", config.DefaultDomainSize, "domain edge length")
	runCmd.Flags().IntVar(&nVoxels, "voxels", config.DefaultVoxels, "voxels per axis")
	runCmd.Flags().IntVar(&nThreads, "threads", config.DefaultThreads, "worker threads")
	runCmd.Flags().Float64Var(&dt, "dt", config.DefaultDt, "timestep")
	runCmd.Flags().Float64Var(&tEnd, "t-end", config.DefaultTEnd, "end time")
	runCmd.Flags().Float64Var(&saveInterval, "save-every", config.DefaultSaveInterval, "time between snapshots")
	runCmd.Flags().Uint64Var(&seed, "seed", 0, "random seed")
	runCmd.Flags().StringVar(&integrator, "integrator", config.DefaultIntegrator, "integrator (semi-implicit, euler)")
	runCmd.Flags().BoolVar(&showProgress, "progress", true, "show a progress bar")
	runCmd.Flags().BoolVar(&noStore, "no-store", false, "do not write snapshots to disk")

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "list runs",
		RunE:  listRuns,
	}

	showCmd := &cobra.Command{
		Use:   "show [run_id]",
		Short: "draw agent positions of a saved snapshot",
		Args:  cobra.ExactArgs(1),
		RunE:  showRun,
	}
	showCmd.Flags().Int64Var(&iteration, "iteration", -1, "iteration to draw (default: last)")

	plotCmd := &cobra.Command{
		Use:   "plot [run_id]",
		Short: "plot metrics across save points",
		Args:  cobra.ExactArgs(1),
		RunE:  plotRun,
	}

	exportCSVCmd := &cobra.Command{
		Use:   "export-csv [run_id]",
		Short: "export run snapshots to CSV",
		Args:  cobra.ExactArgs(1),
		RunE:  exportCSV,
	}
	exportCSVCmd.Flags().StringVarP(&output, "output", "o", "-", "output file")

	exportJSONCmd := &cobra.Command{
		Use:   "export-json [run_id]",
		Short: "export run metadata and snapshots to JSON",
		Args:  cobra.ExactArgs(1),
		RunE:  exportJSON,
	}
	exportJSONCmd.Flags().StringVarP(&output, "output", "o", "-", "output file")

	exportSVGCmd := &cobra.Command{
		Use:   "export-svg [run_id]",
		Short: "draw a snapshot or one agent's trajectory as SVG",
		Args:  cobra.ExactArgs(1),
		RunE:  exportSVG,
	}
	exportSVGCmd.Flags().StringVarP(&output, "output", "o", "-", "output file")
	exportSVGCmd.Flags().Int64Var(&iteration, "iteration", -1, "iteration to draw (default: last)")
	exportSVGCmd.Flags().Int64Var(&traceID, "trace", -1, "draw the trajectory of this agent id instead")
	exportSVGCmd.Flags().IntVar(&svgPixels, "pixels", 800, "image edge in pixels")

	presetsCmd := &cobra.Command{
		Use:   "presets [name]",
		Short: "list presets or print one as yaml",
		Args:  cobra.MaximumNArgs(1),
		RunE:  listPresets,
	}
	presetsCmd.Flags().BoolVar(&exampleIni, "example-ini", false, "print an annotated ini config")

	scenarioCmd := &cobra.Command{
		Use:   "scenario [file]",
		Short: "run the steps of a yaml scenario in order",
		Args:  cobra.ExactArgs(1),
		RunE:  runScenario,
	}
	scenarioCmd.Flags().BoolVar(&noStore, "no-store", false, "do not write snapshots to disk")

	sweepCmd := &cobra.Command{
		Use:   "sweep",
		Short: "run a config once per value of one parameter",
		Args:  cobra.NoArgs,
		RunE:  runSweep,
	}
	sweepCmd.Flags().StringVar(&preset, "preset", "", "base preset")
	sweepCmd.Flags().StringVar(&sweepParam, "param", "damping", "parameter name")
	sweepCmd.Flags().Float64Var(&sweepMin, "min", 0, "first value")
	sweepCmd.Flags().Float64Var(&sweepMax, "max", 1, "last value")
	sweepCmd.Flags().IntVar(&sweepSteps, "steps", 5, "number of values")

	ensembleCmd := &cobra.Command{
		Use:   "ensemble",
		Short: "repeat a config with consecutive seeds and count diverging runs",
		Args:  cobra.NoArgs,
		RunE:  runEnsemble,
	}
	ensembleCmd.Flags().StringVar(&preset, "preset", "", "base preset")
	ensembleCmd.Flags().IntVar(&trials, "trials", 10, "number of runs")
	ensembleCmd.Flags().Uint64Var(&seed, "seed", 0, "seed of the first run")

	gridCmd := &cobra.Command{
		Use:   "grid",
		Short: "search a parameter grid for the lowest final metric",
		Args:  cobra.NoArgs,
		RunE:  runGrid,
	}
	gridCmd.Flags().StringVar(&preset, "preset", "", "base preset")
	gridCmd.Flags().StringArrayVar(&gridParams, "param", nil, "name=v1,v2,... (repeatable)")
	gridCmd.Flags().StringVar(&gridMetric, "metric", "energy_drift", "metric to minimize")

	benchCmd := &cobra.Command{
		Use:   "bench",
		Short: "time one thread against --threads and check the results match",
		Args:  cobra.NoArgs,
		RunE:  runBench,
	}
	benchCmd.Flags().IntVar(&benchAgents, "agents", config.DefaultAgents, "number of agents")
	benchCmd.Flags().IntVar(&benchThreads, "threads", config.DefaultThreads, "worker threads")
	benchCmd.Flags().Float64Var(&benchTEnd, "t-end", 1, "end time")

	rootCmd.AddCommand(runCmd, listCmd, showCmd, plotCmd, exportCSVCmd, exportJSONCmd, exportSVGCmd, presetsCmd,
		scenarioCmd, sweepCmd, ensembleCmd, gridCmd, benchCmd)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		slog.Error("command failed", "err", err)
		os.Exit(1)
	}
}

// loadConfig resolves the run configuration: defaults, then a preset, then
// a config file, then any flag set explicitly on the command line.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg := config.DefaultConfig()

	if preset != "" {
		p, ok := config.GetPreset(preset)
		if !ok {
			return nil, fmt.Errorf("unknown preset: %s (available: %v)", preset, config.ListPresets())
		}
		cfg = p
	}

	if configFile != "" {
		loaded, err := config.Load(configFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load config: %w", err)
		}
		cfg = loaded
	}

	flags := cmd.Flags()
	if flags.Changed("agents") {
		cfg.NAgents = nAgents
	}
	if flags.Changed("size") {
		cfg.DomainSize = domainSize
	}
	if flags.Changed("voxels") {
		cfg.NVoxels = nVoxels
	}
	if flags.Changed("threads") {
		cfg.NThreads = nThreads
	}
	if flags.Changed("dt") {
		cfg.Dt = dt
	}
	if flags.Changed("t-end") {
		cfg.TEnd = tEnd
		cfg.SavePoints = nil
	}
	if flags.Changed("save-every") {
		cfg.SaveInterval = saveInterval
		cfg.SavePoints = nil
	}
	if flags.Changed("seed") {
		cfg.Seed = seed
	}
	if flags.Changed("integrator") {
		cfg.Integrator = integrator
	}
	if flags.Changed("data") {
		cfg.OutDir = dataDir
	}
	return cfg, cfg.Validate()
}

func runSimulation(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	opts := []experiment.Option{experiment.WithLogger(slog.Default())}
	if !noStore {
		opts = append(opts, experiment.WithStore(storage.New(cfg.OutDir)))
	}

	var bar *viz.ProgressBar
	if showProgress {
		bar = viz.NewProgressBar("running simulation", os.Stderr)
		opts = append(opts, experiment.WithProgress(bar))
	} else {
		opts = append(opts, experiment.WithProgress(viz.NewLogProgress(slog.Default(), 10)))
	}

	exp := experiment.New(cfg, opts...)
	if err := exp.Setup(); err != nil {
		return err
	}

	if bar != nil {
		bar.Start()
	}
	res, err := exp.Run(cmd.Context())
	if bar != nil {
		bar.Stop()
	}
	if err != nil {
		return err
	}

	fmt.Println(viz.RenderSummary(res))
	return nil
}

// dataDirFor resolves the data directory for every command: --data when
// set, otherwise out_dir of the --config file, otherwise the default.
func dataDirFor(cmd *cobra.Command) (string, error) {
	if cmd.Flags().Changed("data") || configFile == "" {
		return dataDir, nil
	}
	cfg, err := config.Load(configFile)
	if err != nil {
		return "", fmt.Errorf("failed to load config: %w", err)
	}
	return cfg.OutDir, nil
}

func openStore(cmd *cobra.Command) (*storage.Store, error) {
	dir, err := dataDirFor(cmd)
	if err != nil {
		return nil, err
	}
	return storage.New(dir), nil
}

func listRuns(cmd *cobra.Command, args []string) error {
	st, err := openStore(cmd)
	if err != nil {
		return err
	}
	runs, err := st.List()
	if err != nil {
		return err
	}

	if len(runs) == 0 {
		fmt.Println("no runs found")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tTIME\tAGENTS\tVOXELS\tTHREADS\tDT\tT_END\tSNAPSHOTS\tINTEG\tSTATUS")

	for _, run := range runs {
		fmt.Fprintf(w, "%s\t%s\t%d\t%dx%d\t%d\t%g\t%g\t%d\t%s\t%s\n",
			run.ID,
			run.Timestamp.Format("2006-01-02 15:04:05"),
			run.Agents,
			run.Voxels, run.Voxels,
			run.Threads,
			run.Dt,
			run.EndTime,
			run.Snapshots,
			run.Integrator,
			run.Status(),
		)
	}

	return w.Flush()
}

func showRun(cmd *cobra.Command, args []string) error {
	runID := args[0]

	st, err := openStore(cmd)
	if err != nil {
		return err
	}
	meta, err := st.Load(runID)
	if err != nil {
		return err
	}

	iterations, err := st.Iterations(runID)
	if err != nil {
		return err
	}
	if len(iterations) == 0 {
		return fmt.Errorf("run %s has no snapshots", runID)
	}

	k := iterations[len(iterations)-1]
	if iteration >= 0 {
		k = uint64(iteration)
	}
	snap, err := st.LoadSnapshot(runID, k)
	if err != nil {
		return err
	}

	fmt.Printf("run: %s\n", meta.ID)
	fmt.Printf("iteration %d, t = %g, %d agents\n\n", snap.Iteration, snap.Time, len(snap.Agents))
	fmt.Print(viz.RenderAgents(snap.Agents, meta.DomainSize, meta.Voxels, 60, 30))
	return nil
}

func plotRun(cmd *cobra.Command, args []string) error {
	runID := args[0]

	st, err := openStore(cmd)
	if err != nil {
		return err
	}
	meta, err := st.Load(runID)
	if err != nil {
		return err
	}

	snaps, err := st.LoadSnapshots(runID)
	if err != nil {
		return err
	}
	if len(snaps) == 0 {
		return fmt.Errorf("no data to plot")
	}

	fmt.Printf("run: %s\n", meta.ID)
	fmt.Printf("snapshots: %d\n\n", len(snaps))

	rec := metrics.Replay(snaps)
	for _, name := range rec.Names() {
		fmt.Println(viz.PlotSeries(name, rec.Times(), rec.Series(name)))
		fmt.Println()
	}
	return nil
}

func exportCSV(cmd *cobra.Command, args []string) error {
	st, err := openStore(cmd)
	if err != nil {
		return err
	}
	snaps, err := st.LoadSnapshots(args[0])
	if err != nil {
		return err
	}

	if output == "-" {
		return storage.ExportCSV(os.Stdout, snaps)
	}
	f, err := os.Create(output)
	if err != nil {
		return err
	}
	if err := storage.ExportCSV(f, snaps); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func exportJSON(cmd *cobra.Command, args []string) error {
	st, err := openStore(cmd)
	if err != nil {
		return err
	}
	meta, err := st.Load(args[0])
	if err != nil {
		return err
	}
	snaps, err := st.LoadSnapshots(args[0])
	if err != nil {
		return err
	}
	return storage.ExportJSON(output, *meta, snaps)
}

func exportSVG(cmd *cobra.Command, args []string) error {
	runID := args[0]

	st, err := openStore(cmd)
	if err != nil {
		return err
	}
	meta, err := st.Load(runID)
	if err != nil {
		return err
	}

	var svg string
	if traceID >= 0 {
		snaps, err := st.LoadSnapshots(runID)
		if err != nil {
			return err
		}
		svg = export.TrajectorySVG(snaps, uint64(traceID), meta.DomainSize, meta.Voxels, svgPixels, "#ff00ff")
		if svg == "" {
			return fmt.Errorf("agent %d not found in enough snapshots of run %s", traceID, runID)
		}
	} else {
		iterations, err := st.Iterations(runID)
		if err != nil {
			return err
		}
		if len(iterations) == 0 {
			return fmt.Errorf("run %s has no snapshots", runID)
		}
		k := iterations[len(iterations)-1]
		if iteration >= 0 {
			k = uint64(iteration)
		}
		snap, err := st.LoadSnapshot(runID, k)
		if err != nil {
			return err
		}
		svg = export.SnapshotSVG(snap, meta.DomainSize, meta.Voxels, svgPixels)
	}

	if output == "-" {
		_, err = fmt.Print(svg)
		return err
	}
	return os.WriteFile(output, []byte(svg), 0644)
}

func listPresets(cmd *cobra.Command, args []string) error {
	if exampleIni {
		fmt.Println(config.ExampleIniFile)
		return nil
	}

	if len(args) == 1 {
		cfg, ok := config.GetPreset(args[0])
		if !ok {
			return fmt.Errorf("unknown preset: %s (available: %v)", args[0], config.ListPresets())
		}
		data, err := yaml.Marshal(cfg)
		if err != nil {
			return err
		}
		fmt.Print(string(data))
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tAGENTS\tSIZE\tVOXELS\tDT\tT_END\tDAMPING")
	for _, name := range config.ListPresets() {
		cfg, _ := config.GetPreset(name)
		fmt.Fprintf(w, "%s\t%d\t%g\t%d\t%g\t%g\t%g\n",
			name, cfg.NAgents, cfg.DomainSize, cfg.NVoxels, cfg.Dt, cfg.TEnd, cfg.Agent.Damping)
	}
	return w.Flush()
}

func runScenario(cmd *cobra.Command, args []string) error {
	sc, err := automation.LoadScenario(args[0])
	if err != nil {
		return err
	}

	var opts []experiment.Option
	if !noStore {
		st, err := openStore(cmd)
		if err != nil {
			return err
		}
		opts = append(opts, experiment.WithStore(st))
	}
	results, err := automation.RunScenario(cmd.Context(), sc, slog.Default(), opts...)

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "STEP\tRUN\tAGENTS\tSTEPS\tMIGRATIONS\tKINETIC\tDRIFT")
	for _, r := range results {
		fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%d\t%.4g\t%.4g\n",
			r.Name, r.Result.RunID, r.Config.NAgents, r.Result.Stats.Steps, r.Result.Stats.Migrations,
			r.Result.Metrics["kinetic_energy"], r.Result.Metrics["energy_drift"])
	}
	if ferr := w.Flush(); err == nil {
		err = ferr
	}
	return err
}

func runSweep(cmd *cobra.Command, args []string) error {
	base, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	sweep := &automation.ParameterSweep{
		Base:      base,
		ParamName: sweepParam,
		ParamMin:  sweepMin,
		ParamMax:  sweepMax,
		NumSteps:  sweepSteps,
	}
	results, err := automation.RunSweep(cmd.Context(), sweep, slog.Default())
	if err != nil {
		return err
	}

	names := metrics.NewRecorder().Names()
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprint(w, strings.ToUpper(sweepParam))
	for _, name := range names {
		fmt.Fprintf(w, "\t%s", strings.ToUpper(name))
	}
	fmt.Fprintln(w)
	for _, r := range results {
		fmt.Fprintf(w, "%g", r.ParamValue)
		for _, name := range names {
			fmt.Fprintf(w, "\t%.4g", r.Metrics[name])
		}
		fmt.Fprintln(w)
	}
	return w.Flush()
}

func runEnsemble(cmd *cobra.Command, args []string) error {
	base, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	results, err := automation.RunEnsemble(cmd.Context(), &automation.EnsembleConfig{
		Base:      base,
		NumTrials: trials,
		Seed:      base.Seed,
	}, slog.Default())
	if err != nil {
		return err
	}

	for _, r := range results {
		if !r.Stable {
			fmt.Printf("seed %d diverged: %v\n", r.Seed, r.Err)
		}
	}
	stable, unstable := automation.EnsembleStats(results)
	fmt.Printf("%d stable, %d diverged out of %d runs\n", stable, unstable, len(results))
	return nil
}

func runGrid(cmd *cobra.Command, args []string) error {
	base, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	names := make([]string, 0, len(gridParams))
	ranges := make([][]float64, 0, len(gridParams))
	for _, p := range gridParams {
		name, values, err := parseGridParam(p)
		if err != nil {
			return err
		}
		names = append(names, name)
		ranges = append(ranges, values)
	}
	if len(names) == 0 {
		return fmt.Errorf("at least one --param is required (names: %v)", config.ParamNames())
	}

	best, val, tried, err := optim.NewGridSearch(names, ranges).Search(cmd.Context(), base, gridMetric)
	if err != nil {
		return err
	}

	failed := 0
	for _, tr := range tried {
		if tr.Err != nil {
			failed++
			slog.Debug("grid combination failed", "params", tr.Params, "err", tr.Err)
		}
	}
	fmt.Printf("evaluated %d combinations, %d failed\n", len(tried), failed)
	fmt.Printf("best %s = %.6g at", gridMetric, val)
	for _, name := range names {
		fmt.Printf(" %s=%g", name, best[name])
	}
	fmt.Println()
	return nil
}

// parseGridParam splits "name=v1,v2,...".
func parseGridParam(s string) (string, []float64, error) {
	name, list, ok := strings.Cut(s, "=")
	if !ok || name == "" || list == "" {
		return "", nil, fmt.Errorf("grid parameter %q: want name=v1,v2,...", s)
	}
	var values []float64
	for _, field := range strings.Split(list, ",") {
		v, err := strconv.ParseFloat(strings.TrimSpace(field), 64)
		if err != nil {
			return "", nil, fmt.Errorf("grid parameter %s: %w", name, err)
		}
		values = append(values, v)
	}
	return name, values, nil
}

func runBench(cmd *cobra.Command, args []string) error {
	cfg := config.DefaultConfig()
	cfg.NAgents = benchAgents
	cfg.TEnd = benchTEnd
	cfg.SaveInterval = benchTEnd
	if err := cfg.Validate(); err != nil {
		return err
	}

	fmt.Printf("benchmarking %d agents, dt %g, t_end %g\n\n", cfg.NAgents, cfg.Dt, cfg.TEnd)
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "THREADS\tSTEPS\tTIME\tSTEPS/SEC\tMIGRATIONS")

	var reference []sim.Snapshot
	for _, threads := range []int{1, benchThreads} {
		cfg.NThreads = threads
		mem := sim.NewMemoryWriter()
		res, err := experiment.Run(cmd.Context(), cfg,
			experiment.WithWriter(mem),
			experiment.WithLogger(slog.Default()))
		if err != nil {
			return err
		}

		fmt.Fprintf(w, "%d\t%d\t%v\t%.0f\t%d\n",
			threads, res.Stats.Steps, res.Elapsed,
			float64(res.Stats.Steps)/res.Elapsed.Seconds(), res.Stats.Migrations)

		snaps := mem.Snapshots()
		if reference == nil {
			reference = snaps
			continue
		}
		if !sameSnapshots(reference, snaps) {
			w.Flush()
			return fmt.Errorf("results with %d threads differ from the single-threaded run", threads)
		}
	}
	if err := w.Flush(); err != nil {
		return err
	}
	fmt.Println("\nresults are identical across thread counts")
	return nil
}

func sameSnapshots(a, b []sim.Snapshot) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i].Iteration != b[i].Iteration || len(a[i].Agents) != len(b[i].Agents) {
			return false
		}
		for j := range a[i].Agents {
			if a[i].Agents[j] != b[i].Agents[j] {
				return false
			}
		}
	}
	return true
}
