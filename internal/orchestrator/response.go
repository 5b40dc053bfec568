package orchestrator

import (
	"fmt"
	"sort"
	"strings"

	"agentfabric/internal/executor"
	"agentfabric/internal/planner"
)

// synthesizeResponse builds the human-readable summary from the result
// envelopes. No generation involved: the text is assembled from the data
// the agents produced.
func synthesizeResponse(plan *planner.Plan, outcome *executor.Outcome) string {
	var b strings.Builder

	switch outcome.Status {
	case executor.StatusSuccess:
		fmt.Fprintf(&b, "Completed %d step(s) successfully.", outcome.StepsCompleted)
	case executor.StatusPartial:
		fmt.Fprintf(&b, "Completed %d of %d step(s); the rest failed.",
			outcome.StepsCompleted, len(outcome.Steps))
	case executor.StatusCancelled:
		fmt.Fprintf(&b, "The workflow was cancelled after %d step(s).", outcome.StepsCompleted)
	default:
		b.WriteString("The workflow failed.")
		if len(outcome.Errors) > 0 {
			fmt.Fprintf(&b, " First error: %s.", outcome.Errors[0])
		}
		return b.String()
	}

	results := resultsFrom(outcome.State)
	for _, agent := range plan.ExecutionOrder {
		env, ok := results[agent].(map[string]interface{})
		if !ok {
			continue
		}
		line := summarizeEnvelope(agent, env)
		if line != "" {
			b.WriteString("\n")
			b.WriteString(line)
		}
	}

	var failed []string
	for _, step := range outcome.Steps {
		if step.Status == executor.StatusError {
			failed = append(failed, step.Agent)
		}
	}
	if len(failed) > 0 {
		fmt.Fprintf(&b, "\nFailed steps: %s.", strings.Join(failed, ", "))
	}
	return b.String()
}

func summarizeEnvelope(agent string, env map[string]interface{}) string {
	status, _ := env["status"].(string)
	if status == executor.StatusError {
		if meta, ok := env["metadata"].(map[string]interface{}); ok {
			if msg, ok := meta["error"].(string); ok {
				return fmt.Sprintf("- %s: failed (%s)", agent, msg)
			}
		}
		return fmt.Sprintf("- %s: failed", agent)
	}

	data, ok := env["data"].(map[string]interface{})
	if !ok || len(data) == 0 {
		return fmt.Sprintf("- %s: done", agent)
	}
	keys := make([]string, 0, len(data))
	for k := range data {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%s", k, formatValue(data[k])))
	}
	return fmt.Sprintf("- %s: %s", agent, strings.Join(parts, ", "))
}

const maxInlineString = 60

// formatValue renders one data field compactly. Collections collapse to
// counts past a small size so the summary stays a summary.
func formatValue(v interface{}) string {
	switch val := v.(type) {
	case nil:
		return "null"
	case string:
		if len(val) > maxInlineString {
			return fmt.Sprintf("%q...", val[:maxInlineString])
		}
		return fmt.Sprintf("%q", val)
	case float64:
		if val == float64(int64(val)) {
			return fmt.Sprintf("%d", int64(val))
		}
		return fmt.Sprintf("%.2f", val)
	case int:
		return fmt.Sprintf("%d", val)
	case bool:
		return fmt.Sprintf("%t", val)
	case []interface{}:
		if len(val) > 3 {
			return fmt.Sprintf("[%d items]", len(val))
		}
		parts := make([]string, 0, len(val))
		for _, item := range val {
			parts = append(parts, formatValue(item))
		}
		return "[" + strings.Join(parts, ", ") + "]"
	case map[string]interface{}:
		if len(val) > 3 {
			return fmt.Sprintf("{%d fields}", len(val))
		}
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		parts := make([]string, 0, len(keys))
		for _, k := range keys {
			parts = append(parts, fmt.Sprintf("%s: %s", k, formatValue(val[k])))
		}
		return "{" + strings.Join(parts, ", ") + "}"
	default:
		return fmt.Sprintf("%v", val)
	}
}
