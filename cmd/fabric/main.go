// Package main implements the fabric CLI: submit requests to the agent
// fabric, inspect the component registry, and review workflow history.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"agentfabric/internal/config"
	"agentfabric/internal/executor"
	"agentfabric/internal/history"
	"agentfabric/internal/loader"
	"agentfabric/internal/logging"
	"agentfabric/internal/oracle"
	"agentfabric/internal/orchestrator"
	"agentfabric/internal/registry"
)

var (
	// Global flags
	verbose    bool
	configPath string
	dataDir    string
	timeout    time.Duration

	cfg *config.Config
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "fabric",
	Short: "agentfabric - self-assembling agent and tool fabric",
	Long: `fabric maps a natural-language request onto capabilities, plans a
workflow over registered agents and tools, generates whatever components are
missing, and executes the pipeline over a shared state envelope.

Components are Go source artifacts interpreted at runtime; the registry is
the single durable catalog behind every command.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(configPath)
		if err != nil {
			return err
		}
		if dataDir != "" {
			cfg.Paths = config.PathsFor(dataDir)
		}
		if err := logging.Init(cfg.Logging.Debug || verbose, cfg.Logging.Level); err != nil {
			return fmt.Errorf("initialize logging: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		logging.Sync()
	},
}

// runCmd submits one request through the full pipeline
var runCmd = &cobra.Command{
	Use:   "run [request]",
	Short: "Process a request through the fabric",
	Long: `Processes a natural-language request end to end:
  1. Analyze: map the request onto catalog capabilities
  2. Plan: order components, flag whatever is missing
  3. Generate: create missing tools and agents (unless --no-create)
  4. Execute: run the pipeline, adapting around failures
  5. Record: append the outcome to workflow history`,
	Args: cobra.MinimumNArgs(1),
	RunE: runRequest,
}

// healthCmd scores the registry
var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Score registry health",
	RunE:  runHealth,
}

var (
	runFiles        []string
	runNoCreate     bool
	runNoSeed       bool
	runWorkflowType string
)

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "fabric.yaml", "Configuration file")
	rootCmd.PersistentFlags().StringVarP(&dataDir, "data-dir", "d", "", "Data directory (default: .fabric)")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 5*time.Minute, "Operation timeout")

	runCmd.Flags().StringSliceVar(&runFiles, "file", nil, "Attach a file to the request (repeatable)")
	runCmd.Flags().BoolVar(&runNoCreate, "no-create", false, "Fail instead of generating missing components")
	runCmd.Flags().BoolVar(&runNoSeed, "no-seed", false, "Skip seeding the built-in catalog components")
	runCmd.Flags().StringVar(&runWorkflowType, "workflow-type", "", "Force strategy: sequential, parallel or conditional")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(registryCmd)
	rootCmd.AddCommand(healthCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(analyticsCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func runRequest(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		<-sigCh
		cancel()
	}()

	reg, err := registry.Open(cfg.Paths)
	if err != nil {
		return fmt.Errorf("open registry: %w", err)
	}
	hist, err := history.Open(cfg.History, cfg.Paths.HistoryDB())
	if err != nil {
		return fmt.Errorf("open history: %w", err)
	}
	defer hist.Close()

	tmpl := oracle.NewTemplateOracle()
	if !runNoSeed {
		if _, err := orchestrator.EnsureSeedComponents(ctx, reg, tmpl); err != nil {
			return fmt.Errorf("seed components: %w", err)
		}
	}

	files, err := resolveFiles(runFiles)
	if err != nil {
		return err
	}

	ld := loader.New(reg)
	if err := ld.Watch(cfg.Paths.AgentArtifactsDir(), cfg.Paths.ToolArtifactsDir()); err != nil {
		return fmt.Errorf("watch artifacts: %w", err)
	}
	defer ld.Close()

	orch := orchestrator.New(cfg, reg, tmpl, ld, hist)
	result := orch.ProcessRequest(ctx, strings.Join(args, " "), files, orchestrator.Options{
		AutoCreate:   !runNoCreate,
		WorkflowType: runWorkflowType,
	})

	printResult(result)
	if result.Status == executor.StatusError {
		return fmt.Errorf("workflow %s failed", result.WorkflowID)
	}
	return nil
}

func resolveFiles(paths []string) ([]executor.FileRef, error) {
	var refs []executor.FileRef
	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil {
			return nil, fmt.Errorf("attach file %s: %w", p, err)
		}
		refs = append(refs, executor.FileRef{
			Name: filepath.Base(p),
			Path: p,
			Type: strings.TrimPrefix(filepath.Ext(p), "."),
			Size: info.Size(),
		})
	}
	return refs, nil
}

func printResult(result *orchestrator.WorkflowResult) {
	fmt.Println(strings.Repeat("─", 60))
	fmt.Println(result.Response)
	fmt.Println(strings.Repeat("─", 60))
	fmt.Printf("status: %-10s  grade: %-10s  time: %.2fs\n",
		result.Status, result.Metadata.PerformanceGrade, result.ExecutionTime)
	fmt.Printf("steps: %d  adaptations: %d  components created: %d\n",
		result.Metadata.Steps, result.Metadata.Adaptations, result.Metadata.ComponentsCreated)
	if len(result.Errors) > 0 {
		fmt.Println("errors:")
		for _, e := range result.Errors {
			fmt.Printf("  - %s\n", e)
		}
	}
	fmt.Printf("workflow: %s\n", result.WorkflowID)
}

func runHealth(cmd *cobra.Command, args []string) error {
	reg, err := registry.Open(cfg.Paths)
	if err != nil {
		return fmt.Errorf("open registry: %w", err)
	}

	report := reg.HealthCheck()
	fmt.Printf("health: %s (score %.1f)\n", report.Status, report.Score)
	fmt.Printf("agents: %d/%d valid   tools: %d/%d valid\n",
		report.ValidAgents, report.TotalAgents, report.ValidTools, report.TotalTools)
	for _, missing := range report.Validation.MissingFiles {
		fmt.Printf("  missing artifact: %s\n", missing)
	}
	for _, issue := range report.Validation.DependencyIssues {
		fmt.Printf("  dependency issue: %s\n", issue)
	}
	return nil
}
