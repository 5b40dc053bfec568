// Package main implements registry CLI commands for fabric.
// This file handles listing, validation, backups and cleanup.
package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"agentfabric/internal/registry"
)

// registryCmd groups registry maintenance commands
var registryCmd = &cobra.Command{
	Use:   "registry",
	Short: "Inspect and maintain the component registry",
	Long: `Inspect and maintain the agent/tool registry.

Subcommands:
  list      - List registered agents and tools
  stats     - Show registry statistics
  validate  - Cross-check records against their artifacts
  search    - Find components by name or description
  backup    - Snapshot the registry documents
  restore   - Restore a snapshot
  optimize  - Remove unused tools`,
	RunE: runRegistryList,
}

var registryListCmd = &cobra.Command{
	Use:   "list",
	Short: "List registered agents and tools",
	RunE:  runRegistryList,
}

var registryStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show registry statistics",
	RunE:  runRegistryStats,
}

var registryValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Cross-check every record against its artifact and dependencies",
	RunE:  runRegistryValidate,
}

var registrySearchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Find components by name or description",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runRegistrySearch,
}

var registryBackupCmd = &cobra.Command{
	Use:   "backup",
	Short: "Snapshot the registry documents",
	RunE:  runRegistryBackup,
}

var registryRestoreCmd = &cobra.Command{
	Use:   "restore <name>",
	Short: "Restore a registry snapshot",
	Args:  cobra.ExactArgs(1),
	RunE:  runRegistryRestore,
}

var registryOptimizeCmd = &cobra.Command{
	Use:   "optimize",
	Short: "Remove tools no agent references",
	RunE:  runRegistryOptimize,
}

var (
	backupTag      string
	optimizeDryRun bool
	listAgentsOnly bool
	listToolsOnly  bool
	listActiveOnly bool
)

func init() {
	registryBackupCmd.Flags().StringVar(&backupTag, "tag", "", "Label for the snapshot directory")
	registryOptimizeCmd.Flags().BoolVar(&optimizeDryRun, "dry-run", false, "Report without removing anything")
	registryListCmd.Flags().BoolVar(&listAgentsOnly, "agents", false, "Agents only")
	registryListCmd.Flags().BoolVar(&listToolsOnly, "tools", false, "Tools only")
	registryListCmd.Flags().BoolVar(&listActiveOnly, "active", false, "Active agents only")

	registryCmd.AddCommand(registryListCmd)
	registryCmd.AddCommand(registryStatsCmd)
	registryCmd.AddCommand(registryValidateCmd)
	registryCmd.AddCommand(registrySearchCmd)
	registryCmd.AddCommand(registryBackupCmd)
	registryCmd.AddCommand(registryRestoreCmd)
	registryCmd.AddCommand(registryOptimizeCmd)
}

func openRegistry() (*registry.Registry, error) {
	reg, err := registry.Open(cfg.Paths)
	if err != nil {
		return nil, fmt.Errorf("open registry: %w", err)
	}
	return reg, nil
}

func runRegistryList(cmd *cobra.Command, args []string) error {
	reg, err := openRegistry()
	if err != nil {
		return err
	}

	if !listToolsOnly {
		agents := reg.ListAgents(registry.ListAgentsOptions{ActiveOnly: listActiveOnly})
		fmt.Printf("Agents (%d)\n", len(agents))
		fmt.Println(strings.Repeat("─", 60))
		for _, a := range agents {
			fmt.Printf("  %-32s  runs=%-4d  tools=%s\n",
				a.Name, a.ExecutionCount, strings.Join(a.UsesTools, ","))
		}
	}
	if !listAgentsOnly {
		tools := reg.ListTools(registry.ListToolsOptions{})
		fmt.Printf("Tools (%d)\n", len(tools))
		fmt.Println(strings.Repeat("─", 60))
		for _, t := range tools {
			fmt.Printf("  %-32s  used by %d agent(s)\n", t.Name, len(t.UsedByAgents))
		}
	}
	return nil
}

func runRegistryStats(cmd *cobra.Command, args []string) error {
	reg, err := openRegistry()
	if err != nil {
		return err
	}

	stats := reg.GetStats()
	fmt.Printf("agents: %d   tools: %d   executions: %d\n",
		stats.TotalAgents, stats.TotalTools, stats.TotalExecutions)
	fmt.Printf("avg agent lines: %.1f   avg tool lines: %.1f   tool reuse: %d\n",
		stats.AvgAgentLines, stats.AvgToolLines, stats.ToolReuseCount)
	if stats.MostUsedAgent != "" {
		fmt.Printf("most used agent: %s\n", stats.MostUsedAgent)
	}
	if stats.NewestAgent != "" {
		fmt.Printf("newest agent: %s\n", stats.NewestAgent)
	}
	return nil
}

func runRegistryValidate(cmd *cobra.Command, args []string) error {
	reg, err := openRegistry()
	if err != nil {
		return err
	}

	report := reg.ValidateAll()
	fmt.Printf("valid: %d agent(s), %d tool(s)\n", len(report.ValidAgents), len(report.ValidTools))
	if len(report.InvalidAgents) == 0 && len(report.InvalidTools) == 0 {
		fmt.Println("no problems found")
		return nil
	}
	for _, name := range report.InvalidAgents {
		fmt.Printf("  invalid agent: %s\n", name)
	}
	for _, name := range report.InvalidTools {
		fmt.Printf("  invalid tool: %s\n", name)
	}
	for _, f := range report.MissingFiles {
		fmt.Printf("  missing artifact: %s\n", f)
	}
	for _, issue := range report.DependencyIssues {
		fmt.Printf("  dependency issue: %s\n", issue)
	}
	return nil
}

func runRegistrySearch(cmd *cobra.Command, args []string) error {
	reg, err := openRegistry()
	if err != nil {
		return err
	}

	query := strings.Join(args, " ")
	agents := reg.SearchAgents(query)
	tools := reg.SearchTools(query)
	if len(agents) == 0 && len(tools) == 0 {
		fmt.Printf("nothing matches %q\n", query)
		return nil
	}
	for _, a := range agents {
		fmt.Printf("  agent  %-32s  %s\n", a.Name, a.Description)
	}
	for _, t := range tools {
		fmt.Printf("  tool   %-32s  %s\n", t.Name, t.Description)
	}
	return nil
}

func runRegistryBackup(cmd *cobra.Command, args []string) error {
	reg, err := openRegistry()
	if err != nil {
		return err
	}

	name, err := reg.Backup(backupTag)
	if err != nil {
		return fmt.Errorf("backup registry: %w", err)
	}
	fmt.Printf("backup written: %s\n", name)
	return nil
}

func runRegistryRestore(cmd *cobra.Command, args []string) error {
	reg, err := openRegistry()
	if err != nil {
		return err
	}

	if err := reg.Restore(args[0]); err != nil {
		return fmt.Errorf("restore registry: %w", err)
	}
	fmt.Printf("restored: %s\n", args[0])
	return nil
}

func runRegistryOptimize(cmd *cobra.Command, args []string) error {
	reg, err := openRegistry()
	if err != nil {
		return err
	}

	report, err := reg.Optimize(optimizeDryRun)
	if err != nil {
		return fmt.Errorf("optimize registry: %w", err)
	}
	if len(report.UnusedTools) == 0 {
		fmt.Println("nothing to remove")
		return nil
	}
	verb := "removed"
	if report.DryRun {
		verb = "would remove"
	}
	fmt.Printf("%s %d unused tool(s): %s\n", verb, len(report.UnusedTools),
		strings.Join(report.UnusedTools, ", "))
	return nil
}
