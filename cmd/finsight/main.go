package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/ternarybob/arbor"

	"github.com/finsight-ai/finsight/internal/common"
	"github.com/finsight-ai/finsight/internal/interfaces"
	"github.com/finsight-ai/finsight/internal/services/agent"
	"github.com/finsight-ai/finsight/internal/services/analysis"
	"github.com/finsight-ai/finsight/internal/services/llm"
	"github.com/finsight-ai/finsight/internal/services/resolver"
	"github.com/finsight-ai/finsight/internal/services/scheduler"
	"github.com/finsight-ai/finsight/internal/services/summary"
	"github.com/finsight-ai/finsight/internal/storage/badger"
)

// configFlags collects repeated -config flags; later files override earlier
type configFlags []string

func (c *configFlags) String() string {
	return strings.Join(*c, ",")
}

func (c *configFlags) Set(value string) error {
	*c = append(*c, value)
	return nil
}

func main() {
	var configs configFlags
	flag.Var(&configs, "config", "Path to TOML config file (repeatable; later files override earlier)")
	showVersion := flag.Bool("version", false, "Print version and exit")
	query := flag.String("query", "", "Run a question through the reasoning loop")
	showTrace := flag.Bool("trace", false, "Print the reasoning trace after -query")
	verify := flag.Bool("verify", false, "Verify identifier consistency across collections")
	repair := flag.String("repair", "", "Repair identifiers: to_tickers or to_uuids")
	dryRun := flag.Bool("dry-run", false, "With -repair: report what would change without writing")
	summarize := flag.String("summarize", "", "Generate summaries for an entity id, or 'all'")
	watch := flag.Bool("watch", false, "Start the background scheduler and block until interrupted")
	flag.Parse()

	if *showVersion {
		fmt.Printf("finsight %s\n", common.GetFullVersion())
		return
	}

	if len(configs) == 0 {
		if _, err := os.Stat("finsight.toml"); err == nil {
			configs = append(configs, "finsight.toml")
		}
	}

	config, err := common.LoadFromFiles(configs...)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	common.PrintBanner(common.GetVersion())
	logger := common.InitLogger(config)

	storageManager, err := badger.NewManager(logger, &config.Storage.Badger)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to initialize storage")
	}
	defer storageManager.Close()

	llmService, err := llm.NewService(config, storageManager.KeyValueStorage(), logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to initialize LLM service")
	}
	defer llmService.Close()

	resolverSvc := resolver.NewService(storageManager.DocumentStorage(), storageManager.SummaryStorage(), logger)
	engine := analysis.NewEngine(
		resolverSvc,
		storageManager.DocumentStorage(),
		storageManager.SummaryStorage(),
		llmService,
		&config.Analysis,
		logger,
	)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	switch {
	case *verify:
		runVerify(ctx, resolverSvc)

	case *repair != "":
		runRepair(ctx, resolverSvc, *repair, *dryRun)

	case *summarize != "":
		model := config.Claude.Model
		if config.LLM.DefaultProvider == common.LLMProviderGemini {
			model = config.Gemini.Model
		}
		summarySvc := summary.NewService(
			storageManager.DocumentStorage(),
			storageManager.SummaryStorage(),
			llmService,
			&config.Analysis,
			model,
			logger,
		)
		runSummarize(ctx, summarySvc, *summarize)

	case *query != "":
		registry := agent.NewRegistry(resolverSvc, engine, storageManager.DocumentStorage(), llmService, logger)
		loop := agent.NewLoop(registry, llmService, &config.Agent, logger)
		runQuery(ctx, loop, *query, *showTrace)

	case *watch:
		model := config.Claude.Model
		if config.LLM.DefaultProvider == common.LLMProviderGemini {
			model = config.Gemini.Model
		}
		summarySvc := summary.NewService(
			storageManager.DocumentStorage(),
			storageManager.SummaryStorage(),
			llmService,
			&config.Analysis,
			model,
			logger,
		)
		runWatch(ctx, summarySvc, resolverSvc, storageManager, config, logger)

	default:
		flag.Usage()
		os.Exit(2)
	}
}

func runVerify(ctx context.Context, resolverSvc *resolver.Service) {
	report, err := resolverSvc.VerifyConsistency(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Verification failed: %v\n", err)
		os.Exit(1)
	}
	printReport(report)
	if !report.Consistent() {
		os.Exit(1)
	}
}

func runRepair(ctx context.Context, resolverSvc *resolver.Service, directionArg string, dryRun bool) {
	direction, err := resolver.ParseRepairDirection(directionArg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(2)
	}

	if dryRun {
		fmt.Println("Dry run: reporting current state, no writes.")
		report, err := resolverSvc.VerifyConsistency(ctx)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Verification failed: %v\n", err)
			os.Exit(1)
		}
		printReport(report)
		return
	}

	result, err := resolverSvc.Repair(ctx, direction)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Repair failed: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Repair (%s): scanned %d, rewrote %d, unresolved %d\n",
		result.Direction, result.Scanned, result.Rewritten, result.Unresolved)

	// Verify after repair so the operator sees the resulting state
	report, err := resolverSvc.VerifyConsistency(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Post-repair verification failed: %v\n", err)
		os.Exit(1)
	}
	printReport(report)
}

func printReport(report *resolver.ConsistencyReport) {
	fmt.Printf("Documents: %d  Summaries: %d  Aliases: %d  Conflicts: %d\n",
		report.TotalDocuments, report.TotalSummaries, report.AliasCount, report.ConflictCount)
	fmt.Printf("Compared: %d  Mismatches: %d\n", report.Compared, report.Mismatches)
	fmt.Printf("Transcripts without summary: %d  Summaries without transcript: %d\n",
		report.TranscriptsWithoutSummary, report.SummariesWithoutTranscript)

	for _, sample := range report.MismatchSamples {
		fmt.Printf("  mismatch %s: document=%q summary=%q\n",
			sample.DocumentID, sample.DocumentEntity, sample.SummaryEntity)
	}

	if report.Consistent() {
		fmt.Println("Collections are consistent.")
	} else {
		fmt.Println("Collections are INCONSISTENT. Run -repair to reconcile.")
	}
}

func runSummarize(ctx context.Context, summarySvc *summary.Service, target string) {
	var err error
	if strings.EqualFold(target, "all") {
		err = summarySvc.GenerateAll(ctx)
	} else {
		err = summarySvc.GenerateForEntity(ctx, target)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Summarization failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Println("Summarization complete.")
}

func runQuery(ctx context.Context, loop *agent.Loop, query string, showTrace bool) {
	result, err := loop.Run(ctx, query, nil)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Query failed: %v\n", err)
		os.Exit(1)
	}

	fmt.Println(result.Answer)

	if showTrace {
		fmt.Printf("\n--- trace %s (%d turns) ---\n", result.Trace.TraceID, result.Trace.Turns)
		for i, step := range result.Trace.Steps {
			fmt.Printf("[%d] Thought: %s\n", i+1, step.Thought)
			if step.Action != "" {
				fmt.Printf("    Action: %s\n", step.Action)
			}
			if step.Observation != "" {
				fmt.Printf("    Observation: %s\n", step.Observation)
			}
		}
		if result.Failed {
			fmt.Printf("Failed: %s\n", result.FailureReason)
		}
	}

	if result.Failed {
		os.Exit(1)
	}
}

func runWatch(ctx context.Context, summarySvc *summary.Service, resolverSvc *resolver.Service, storageManager interfaces.StorageManager, config *common.Config, logger arbor.ILogger) {
	sched := scheduler.NewService(summarySvc, resolverSvc, storageManager, &config.Scheduler, logger)
	if err := sched.Start(); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to start scheduler: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("Scheduler running. Press Ctrl+C to stop.")
	<-ctx.Done()
	sched.Stop()
}
