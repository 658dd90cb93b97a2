package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/roach88/crosscheck/internal/await"
	"github.com/roach88/crosscheck/internal/config"
	"github.com/roach88/crosscheck/internal/harness"
	"github.com/roach88/crosscheck/internal/ledger"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	BaseURL     string
	Browser     string
	Headless    bool
	ResultsDir  string
	DB          string
	Filter      string
	MetricsFile string
}

// ScenarioResult holds the result of a single scenario execution.
type ScenarioResult struct {
	Name       string             `json:"name"`
	Pass       bool               `json:"pass"`
	RunID      string             `json:"run_id,omitempty"`
	FailedStep int                `json:"failed_step,omitempty"`
	Errors     []string           `json:"errors,omitempty"`
	Warnings   []string           `json:"warnings,omitempty"`
	Artifacts  []harness.Artifact `json:"artifacts,omitempty"`
	Duration   time.Duration      `json:"duration"`
}

// RunResult holds the overall result.
type RunResult struct {
	Scenarios []ScenarioResult `json:"scenarios"`
	Passed    int              `json:"passed"`
	Failed    int              `json:"failed"`
	Total     int              `json:"total"`
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run [scenario-file|dir|builtin ...]",
		Short: "Run scenarios against the table application",
		Long: `Run scenarios against a running table application.

Each argument is a scenario YAML file, a directory of them, or the name of a
built-in scenario. With no arguments every built-in scenario runs. Settings
come from CROSSCHECK_* environment variables; flags override them.

Exit codes:
  0 - All scenarios passed
  1 - One or more scenarios failed
  2 - Command error (bad config, unknown scenario, browser launch failure)

Examples:
  crosscheck run
  crosscheck run full_game --base-url http://localhost:3000
  crosscheck run ./scenarios --filter join --db runs.db
  crosscheck run --format json --metrics-file crosscheck.prom`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScenarios(cmd, opts, args)
		},
	}

	cmd.Flags().StringVar(&opts.BaseURL, "base-url", "", "application root (CROSSCHECK_BASE_URL)")
	cmd.Flags().StringVar(&opts.Browser, "browser", "", "chromium|firefox|webkit (CROSSCHECK_BROWSER)")
	cmd.Flags().BoolVar(&opts.Headless, "headless", true, "run the browser headless (CROSSCHECK_HEADLESS)")
	cmd.Flags().StringVar(&opts.ResultsDir, "results-dir", "", "screenshot directory (CROSSCHECK_RESULTS_DIR)")
	cmd.Flags().StringVar(&opts.DB, "db", "", "record runs in this SQLite ledger (CROSSCHECK_DB)")
	cmd.Flags().StringVar(&opts.Filter, "filter", "", "only run scenarios whose name contains this")
	cmd.Flags().StringVar(&opts.MetricsFile, "metrics-file", "", "write Prometheus metrics to this textfile")

	return cmd
}

// resolveConfig loads the environment and applies explicitly set flags.
func (o *RunOptions) resolveConfig(cmd *cobra.Command) (config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return config.Config{}, err
	}
	flags := cmd.Flags()
	if flags.Changed("base-url") {
		cfg.BaseURL = o.BaseURL
	}
	if flags.Changed("browser") {
		cfg.Browser = o.Browser
	}
	if flags.Changed("headless") {
		cfg.Headless = o.Headless
	}
	if flags.Changed("results-dir") {
		cfg.ResultsDir = o.ResultsDir
	}
	if flags.Changed("db") {
		cfg.DB = o.DB
	}
	return cfg, cfg.Validate()
}

func runScenarios(cmd *cobra.Command, opts *RunOptions, args []string) error {
	f := opts.formatter(cmd)
	log := opts.logger(cmd.ErrOrStderr())
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	cfg, err := opts.resolveConfig(cmd)
	if err != nil {
		return f.Fail(ExitCommandError, ErrCodeConfig, err, nil)
	}

	cwd, err := os.Getwd()
	if err != nil {
		return f.Fail(ExitCommandError, ErrCodeGeneric, err, nil)
	}
	scenarios, err := harness.Resolve(args, cwd)
	if err != nil {
		return resolveFailure(f, err)
	}
	scenarios = harness.Filter(scenarios, opts.Filter)

	if len(scenarios) == 0 {
		if opts.Format == "json" {
			return outputRunJSON(f, RunResult{Scenarios: []ScenarioResult{}})
		}
		fmt.Fprintln(f.Writer, "No scenarios found.")
		return nil
	}

	var runs *ledger.Ledger
	if cfg.DB != "" {
		runs, err = ledger.Open(cfg.DB)
		if err != nil {
			return f.Fail(ExitCommandError, ErrCodeLedger, err, nil)
		}
		defer runs.Close()
	}

	reg := prometheus.NewRegistry()
	scenarioTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "crosscheck_scenarios_total",
		Help: "Scenario runs by result.",
	}, []string{"result"})
	reg.MustRegister(scenarioTotal)
	engine := await.New(cfg.Policy(), await.WithLogger(log), await.WithMetrics(await.NewMetrics(reg)))

	opener, shutdown, err := opts.launch(ctx, cfg, log)
	if err != nil {
		return f.Fail(ExitCommandError, ErrCodeLaunch, fmt.Errorf("launch %s: %w", cfg.Browser, err), nil)
	}
	defer func() {
		if err := shutdown(); err != nil {
			log.Warn("browser shutdown failed", "error", err)
		}
	}()

	deps := harness.Deps{Opener: opener, Engine: engine, ResultsDir: cfg.ResultsDir, Logger: log}
	result := RunResult{Scenarios: make([]ScenarioResult, 0, len(scenarios)), Total: len(scenarios)}

	for _, sc := range scenarios {
		sr := runScenario(ctx, sc, deps, runs, log)
		if opts.Format != "json" {
			printScenarioText(f.Writer, sr, opts.Verbose)
		}
		result.Scenarios = append(result.Scenarios, sr)
		if sr.Pass {
			result.Passed++
			scenarioTotal.WithLabelValues("pass").Inc()
		} else {
			result.Failed++
			scenarioTotal.WithLabelValues("fail").Inc()
		}
		if ctx.Err() != nil {
			break
		}
	}

	if opts.MetricsFile != "" {
		if err := prometheus.WriteToTextfile(opts.MetricsFile, reg); err != nil {
			log.Warn("metrics textfile not written", "path", opts.MetricsFile, "error", err)
		}
	}

	if opts.Format == "json" {
		if err := outputRunJSON(f, result); err != nil {
			return err
		}
	} else {
		outputRunText(f.Writer, result)
	}
	if result.Failed > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("%d scenario(s) failed", result.Failed))
	}
	return nil
}

// runScenario executes one scenario and records it in the ledger when one is
// configured. A ledger failure is a warning; it never changes the verdict.
func runScenario(ctx context.Context, sc *harness.Scenario, deps harness.Deps, runs *ledger.Ledger, log *slog.Logger) ScenarioResult {
	res, err := harness.Run(ctx, sc, deps)
	if res == nil {
		res = harness.NewResult(sc.Name)
		res.StartedAt = time.Now()
		res.FinishedAt = res.StartedAt
	}
	if err != nil && len(res.Errors) == 0 {
		res.AddError(fmt.Sprintf("execution failed: %v", err))
	}

	sr := ScenarioResult{
		Name:       sc.Name,
		Pass:       res.Pass,
		FailedStep: res.FailedStep,
		Errors:     res.Errors,
		Warnings:   res.Warnings,
		Artifacts:  res.Artifacts,
		Duration:   res.Duration(),
	}

	if runs != nil {
		id, err := runs.RecordRun(context.WithoutCancel(ctx), ledger.FromResult(res))
		if err != nil {
			log.Warn("run not recorded", "scenario", sc.Name, "error", err)
			sr.Warnings = append(sr.Warnings, fmt.Sprintf("ledger: %v", err))
		} else {
			sr.RunID = id
		}
	}
	return sr
}

func resolveFailure(f *OutputFormatter, err error) error {
	var nf *harness.ScenarioNotFoundError
	if errors.As(err, &nf) {
		return f.Fail(ExitCommandError, ErrCodeNotFound, err, nil)
	}
	var inv *harness.InvalidScenarioError
	if errors.As(err, &inv) {
		return f.Fail(ExitCommandError, ErrCodeInvalid, err, inv.Errors)
	}
	return f.Fail(ExitCommandError, ErrCodeGeneric, err, nil)
}

func printScenarioText(w io.Writer, sr ScenarioResult, verbose bool) {
	if sr.Pass {
		fmt.Fprintf(w, "✓ %s (%s)\n", sr.Name, sr.Duration.Round(time.Millisecond))
	} else {
		fmt.Fprintf(w, "✗ %s (%s)\n", sr.Name, sr.Duration.Round(time.Millisecond))
		for _, e := range sr.Errors {
			fmt.Fprintf(w, "  %s\n", e)
		}
	}
	for _, warn := range sr.Warnings {
		fmt.Fprintf(w, "  warning: %s\n", warn)
	}
	if verbose {
		for _, a := range sr.Artifacts {
			if a.Error == "" {
				fmt.Fprintf(w, "  artifact %s: %s\n", a.Actor, a.Path)
			}
		}
		if sr.RunID != "" {
			fmt.Fprintf(w, "  run %s\n", sr.RunID)
		}
	}
}

// outputRunJSON outputs the run result as JSON. A failed scenario turns the
// envelope into an error while still carrying the full result.
func outputRunJSON(f *OutputFormatter, result RunResult) error {
	response := CLIResponse{Status: "ok", Data: result}
	if result.Failed > 0 {
		response.Status = "error"
		response.Error = &CLIError{
			Code:    ErrCodeScenarioFail,
			Message: fmt.Sprintf("%d scenario(s) failed", result.Failed),
		}
	}
	return f.encode(response)
}

// outputRunText outputs the summary line.
func outputRunText(w io.Writer, result RunResult) {
	fmt.Fprintln(w)
	fmt.Fprintf(w, "Summary: %d passed, %d failed, %d total\n", result.Passed, result.Failed, result.Total)
	if result.Failed == 0 {
		fmt.Fprintln(w, "✓ All scenarios passed")
	}
}
