package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"interview-insights-go/internal/annotator"
	"interview-insights-go/internal/budget"
	"interview-insights-go/internal/config"
	"interview-insights-go/internal/corpus"
	"interview-insights-go/internal/events"
	"interview-insights-go/internal/llm"
	"interview-insights-go/internal/logger"
	"interview-insights-go/internal/metrics"
	"interview-insights-go/internal/progress"
	"interview-insights-go/internal/runner"
	"interview-insights-go/internal/store"
	"interview-insights-go/internal/validator"
)

func main() {
	exitFn(run(os.Args, os.Stdout, os.Stderr))
}

var exitFn = os.Exit

func run(args []string, stdout io.Writer, stderr io.Writer) int {
	if len(args) < 2 {
		usage(stderr)
		return 2
	}

	_ = godotenv.Load() // loads .env

	switch args[1] {
	case "run":
		return handleRun(args[2:], stdout, stderr)
	case "annotate":
		return handleAnnotate(args[2:], stdout, stderr)
	case "validate":
		return handleValidate(args[2:], stdout, stderr)
	case "extract":
		return handleExtract(args[2:], stdout, stderr)
	default:
		usage(stderr)
		return 2
	}
}

func handleRun(args []string, stdout io.Writer, stderr io.Writer) int {
	fs := flag.NewFlagSet("run", flag.ContinueOnError)
	fs.SetOutput(stderr)
	force := fs.Bool("force", false, "reprocess interviews that already have artifacts")
	runID := fs.String("run-id", "", "run identifier (default: generated)")
	if err := fs.Parse(args); err != nil {
		fs.Usage()
		return 2
	}

	a, err := buildApp()
	if err != nil {
		fmt.Fprintln(stderr, err.Error())
		return 1
	}
	defer a.shutdown()

	ctx, stop := signalContext()
	defer stop()
	stopStatus := a.startStatus(ctx)
	defer stopStatus()

	summary, workbook, err := a.runner.Run(ctx, *runID, *force)
	if err != nil {
		fmt.Fprintln(stderr, err.Error())
		return 1
	}

	fmt.Fprintf(stdout, "run_id=%s interviews=%d accepted=%d flagged=%d success_rate=%.1f cost_usd=%.4f\n",
		summary.RunID, summary.TotalInterviews, summary.Accepted, summary.Flagged,
		summary.SuccessRate, summary.TotalCostUSD)
	fmt.Fprintf(stdout, "wrote %s\n", workbook)
	return 0
}

func handleAnnotate(args []string, stdout io.Writer, stderr io.Writer) int {
	fs := flag.NewFlagSet("annotate", flag.ContinueOnError)
	fs.SetOutput(stderr)
	force := fs.Bool("force", false, "reprocess interviews that already have artifacts")
	runID := fs.String("run-id", "", "run identifier (default: generated)")
	if err := fs.Parse(args); err != nil {
		fs.Usage()
		return 2
	}

	a, err := buildApp()
	if err != nil {
		fmt.Fprintln(stderr, err.Error())
		return 1
	}
	defer a.shutdown()

	ctx, stop := signalContext()
	defer stop()
	stopStatus := a.startStatus(ctx)
	defer stopStatus()

	result, err := a.runner.Annotate(ctx, *runID, *force)
	if err != nil {
		fmt.Fprintln(stderr, err.Error())
		return 1
	}

	fmt.Fprintf(stdout, "run_id=%s annotated=%d skipped=%d failed=%d remaining=%d cost_usd=%.4f\n",
		result.RunID, result.Annotated, result.Skipped, result.Failed,
		result.Remaining, result.CostUSD)
	return 0
}

func handleValidate(args []string, stdout io.Writer, stderr io.Writer) int {
	fs := flag.NewFlagSet("validate", flag.ContinueOnError)
	fs.SetOutput(stderr)
	if err := fs.Parse(args); err != nil {
		fs.Usage()
		return 2
	}

	a, err := buildApp()
	if err != nil {
		fmt.Fprintln(stderr, err.Error())
		return 1
	}
	defer a.shutdown()

	ctx, stop := signalContext()
	defer stop()

	summary, err := a.runner.Validate(ctx)
	if err != nil {
		fmt.Fprintln(stderr, err.Error())
		return 1
	}

	fmt.Fprintf(stdout, "run_id=%s interviews=%d accepted=%d flagged=%d success_rate=%.1f\n",
		summary.RunID, summary.TotalInterviews, summary.Accepted, summary.Flagged,
		summary.SuccessRate)
	return 0
}

func handleExtract(args []string, stdout io.Writer, stderr io.Writer) int {
	fs := flag.NewFlagSet("extract", flag.ContinueOnError)
	fs.SetOutput(stderr)
	if err := fs.Parse(args); err != nil {
		fs.Usage()
		return 2
	}

	a, err := buildApp()
	if err != nil {
		fmt.Fprintln(stderr, err.Error())
		return 1
	}
	defer a.shutdown()

	ctx, stop := signalContext()
	defer stop()

	path, err := a.runner.Extract(ctx)
	if err != nil {
		fmt.Fprintln(stderr, err.Error())
		return 1
	}

	fmt.Fprintf(stdout, "wrote %s\n", path)
	return 0
}

// app bundles the wired pipeline with everything that needs teardown.
type app struct {
	cfg     *config.Config
	log     *logger.Logger
	runner  *runner.Runner
	tracker *budget.Tracker
	hub     *progress.Hub
	closers []func()
}

func buildApp() (*app, error) {
	log := logger.New()
	cfg, err := config.Load(log)
	if err != nil {
		return nil, err
	}

	metrics.Init(log.Logger)
	metrics.SetEnabled(cfg.HTTP.MetricsEnabled)

	schema, err := config.LoadSchema(cfg.Annotation.SchemaFile)
	if err != nil {
		return nil, err
	}

	loader, err := corpus.NewLoader(cfg.Corpus.InputDir, cfg.Corpus.RosterFile, log)
	if err != nil {
		return nil, err
	}
	st, err := store.NewStore(cfg.Corpus.OutputDir, log)
	if err != nil {
		return nil, err
	}

	provider, err := llm.FromConfig(cfg.LLM, log).Default()
	if err != nil {
		return nil, err
	}

	tracker := budget.NewTracker(cfg.Budget.LimitUSD)
	caller := annotator.NewCaller(provider, schema, tracker, budget.Pricing{
		PromptPer1K:     cfg.Budget.PromptPricePer1K,
		CompletionPer1K: cfg.Budget.CompletionPricePer1K,
	}, cfg.Annotation, cfg.LLM, log)

	a := &app{cfg: cfg, log: log, tracker: tracker}

	deps := runner.Deps{
		Loader:    loader,
		Annotator: annotator.New(caller, cfg.Annotation, log),
		Validator: validator.New(cfg.Annotation, log),
		Store:     st,
		Publisher: events.NewPublisher(cfg.Events, log),
		Tracker:   tracker,
	}

	if cfg.Database.Enabled {
		archive, err := store.NewArchive(cfg.Database, log)
		if err != nil {
			// The disk store stays authoritative; losing the archive
			// only loses the queryable copy.
			log.WithError(err).Warn("Archive unavailable, continuing with disk artifacts only")
		} else {
			deps.Archive = archive
			a.closers = append(a.closers, func() { _ = archive.Close() })
		}
	}

	if err := deps.Publisher.Connect(); err != nil {
		log.WithError(err).Warn("Event broker unavailable, continuing without events")
	}
	a.closers = append(a.closers, deps.Publisher.Close)

	if cfg.HTTP.StatusAddr != "" {
		a.hub = progress.NewHub(log)
		deps.Hub = a.hub
	}

	a.runner = runner.New(cfg, deps, log)
	return a, nil
}

func (a *app) shutdown() {
	for _, fn := range a.closers {
		fn()
	}
}

// startStatus serves metrics and the progress websocket while a stage
// runs. No-op unless STATUS_ADDR is set.
func (a *app) startStatus(ctx context.Context) func() {
	if a.hub == nil {
		return func() {}
	}
	go a.hub.Run(ctx)

	mux := http.NewServeMux()
	metrics.RegisterHandler(mux)
	mux.HandleFunc("/ws/progress", a.hub.ServeWs)
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "ok")
	})
	mux.HandleFunc("/api/status", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"provider":   a.cfg.LLM.Provider,
			"model":      a.cfg.LLM.Model,
			"workers":    a.cfg.Annotation.Workers,
			"spent_usd":  a.tracker.SpentUSD(),
			"limit_usd":  a.tracker.LimitUSD(),
			"exceeded":   a.tracker.Exceeded(),
			"corpus_dir": a.cfg.Corpus.InputDir,
		})
	})

	srv := &http.Server{
		Addr:        a.cfg.HTTP.StatusAddr,
		Handler:     mux,
		ReadTimeout: 15 * time.Second,
	}
	go func() {
		a.log.WithField("addr", srv.Addr).Info("Status server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			a.log.WithError(err).Warn("Status server terminated")
		}
	}()

	return func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func usage(w io.Writer) {
	fmt.Fprint(w, `Interview annotation pipeline

Usage:
  annotator run [-force] [-run-id ID]       annotate, validate, and extract in one pass
  annotator annotate [-force] [-run-id ID]  produce an annotation artifact per corpus document
  annotator validate                        apply acceptance checks and write the summary
  annotator extract                         render the review workbook from the summary

Configuration comes from the environment (a .env file is honored), most
importantly CORPUS_DIR, OUTPUT_DIR, LLM_PROVIDER, OPENAI_API_KEY, and
BUDGET_LIMIT_USD. Set STATUS_ADDR to expose metrics and live progress
over HTTP while a stage runs.
`)
}
