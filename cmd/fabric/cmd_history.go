// Package main implements history and analytics CLI commands for fabric.
package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"agentfabric/internal/analytics"
	"agentfabric/internal/history"
)

// historyCmd lists recent workflow records
var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List recent workflow runs",
	RunE:  runHistory,
}

// analyticsCmd summarizes registry usage and workflow trends
var analyticsCmd = &cobra.Command{
	Use:   "analytics",
	Short: "Summarize component usage and workflow trends",
	RunE:  runAnalytics,
}

var historyLimit int

func init() {
	historyCmd.Flags().IntVar(&historyLimit, "limit", 10, "How many records to show")
}

func openHistory() (*history.Store, error) {
	hist, err := history.Open(cfg.History, cfg.Paths.HistoryDB())
	if err != nil {
		return nil, fmt.Errorf("open history: %w", err)
	}
	return hist, nil
}

func runHistory(cmd *cobra.Command, args []string) error {
	hist, err := openHistory()
	if err != nil {
		return err
	}
	defer hist.Close()

	records := hist.Recent(historyLimit)
	if len(records) == 0 {
		fmt.Println("no workflows recorded yet")
		return nil
	}

	fmt.Println("Workflow history")
	fmt.Println(strings.Repeat("─", 72))
	for _, rec := range records {
		fmt.Printf("%-10s  %-36s  %5.2fs  %s\n",
			rec.Status, rec.WorkflowID, rec.ExecutionTime,
			rec.StartedAt.Format("2006-01-02 15:04:05"))
		fmt.Printf("            %s\n", truncateStr(rec.Request, 60))
		if len(rec.Adaptations) > 0 {
			fmt.Printf("            adaptations: %d\n", len(rec.Adaptations))
		}
	}
	return nil
}

func runAnalytics(cmd *cobra.Command, args []string) error {
	reg, err := openRegistry()
	if err != nil {
		return err
	}
	hist, err := openHistory()
	if err != nil {
		return err
	}
	defer hist.Close()

	report := analytics.New(reg, hist, cfg.History.RecentWindow).Summary()

	fmt.Printf("workflows: %d   recent success rate: %.0f%%   recent avg time: %.2fs\n",
		report.TotalWorkflows, report.RecentSuccessRate*100, report.RecentAverageTime)
	fmt.Printf("mean agent size: %.1f lines   mean tool size: %.1f lines   tools per agent: %.1f\n",
		report.MeanAgentSize, report.MeanToolSize, report.MeanToolsPerAgent)

	if len(report.MostUsedAgents) > 0 {
		fmt.Println("most used agents:")
		for _, a := range report.MostUsedAgents {
			fmt.Printf("  %-32s  runs=%-4d  avg=%.2fs\n", a.Name, a.Executions, a.AvgTime)
		}
	}
	if len(report.UnusedTools) > 0 {
		fmt.Printf("unused tools: %s\n", strings.Join(report.UnusedTools, ", "))
	}
	return nil
}

func truncateStr(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}
