package oracle

import (
	"fmt"
	"strings"
)

// =============================================================================
// AGENT TEMPLATES
// =============================================================================
// Every agent artifact is a complete file: the shared boilerplate (input
// resolution and envelope bookkeeping) plus one capability-specific body.
// The boilerplate is what makes agents composable: each one resolves its
// input the same way, so the planner never wires data flow explicitly.

// agentBoilerplate implements the universal input-extraction rule and the
// result-envelope protocol. It is embedded verbatim in every agent artifact;
// artifacts are loaded one per interpreter, so the shared names never clash.
const agentBoilerplate = `func resolve_input(state map[string]interface{}) interface{} {
	if cur, ok := state["current_data"]; ok && cur != nil {
		if m, ok := cur.(map[string]interface{}); ok {
			for _, key := range []string{"text", "data", "content", "value", "result"} {
				if v, ok := m[key]; ok && v != nil {
					return v
				}
			}
			return m
		}
		return cur
	}
	if results, ok := state["results"].(map[string]interface{}); ok {
		if path, ok := state["execution_path"].([]interface{}); ok {
			for i := len(path) - 1; i >= 0; i-- {
				name, _ := path[i].(string)
				if env, ok := results[name].(map[string]interface{}); ok {
					if d, ok := env["data"]; ok && d != nil {
						return d
					}
				}
			}
		}
	}
	for _, key := range []string{"request", "text", "data", "input"} {
		if v, ok := state[key]; ok && v != nil {
			return v
		}
	}
	return nil
}

func input_text(state map[string]interface{}) string {
	switch v := resolve_input(state).(type) {
	case string:
		return v
	case nil:
		return ""
	default:
		if req, ok := state["request"].(string); ok {
			return req
		}
		return fmt.Sprintf("%v", v)
	}
}

func finish_step(state map[string]interface{}, agent string, data interface{}, tools []string, errMsg string) map[string]interface{} {
	metadata := map[string]interface{}{
		"agent":          agent,
		"execution_time": 0.0,
		"tools_used":     tools,
		"warnings":       []string{},
	}
	status := "success"
	if errMsg != "" {
		status = "error"
		metadata["error"] = errMsg
		data = nil
	}
	envelope := map[string]interface{}{"status": status, "data": data, "metadata": metadata}
	results, ok := state["results"].(map[string]interface{})
	if !ok {
		results = map[string]interface{}{}
		state["results"] = results
	}
	results[agent] = envelope
	if status == "success" {
		state["current_data"] = data
	}
	path, _ := state["execution_path"].([]interface{})
	state["execution_path"] = append(path, agent)
	return state
}
`

type agentTemplate struct {
	imports []string
	body    string
}

// Capability-specific agent bodies. Each calls its tools directly; tool
// artifacts are evaluated into the same interpreter before the agent.
var agentTemplates = map[string]agentTemplate{
	"email_extractor": {
		imports: []string{"fmt", "strings"},
		body: `func email_extractor_agent(state map[string]interface{}) map[string]interface{} {
	text := input_text(state)
	emails, _ := extract_emails(text).([]string)
	domains := map[string]int{}
	for _, e := range emails {
		if at := strings.LastIndex(e, "@"); at >= 0 {
			domains[e[at+1:]]++
		}
	}
	data := map[string]interface{}{
		"emails":  emails,
		"count":   len(emails),
		"domains": domains,
	}
	return finish_step(state, "email_extractor", data, []string{"extract_emails"}, "")
}
`,
	},

	"url_extractor": {
		imports: []string{"fmt"},
		body: `func url_extractor_agent(state map[string]interface{}) map[string]interface{} {
	text := input_text(state)
	urls, _ := extract_urls(text).([]string)
	data := map[string]interface{}{
		"urls":  urls,
		"count": len(urls),
	}
	return finish_step(state, "url_extractor", data, []string{"extract_urls"}, "")
}
`,
	},

	"phone_extractor": {
		imports: []string{"fmt"},
		body: `func phone_extractor_agent(state map[string]interface{}) map[string]interface{} {
	text := input_text(state)
	phones, _ := extract_phones(text).([]string)
	data := map[string]interface{}{
		"phones": phones,
		"count":  len(phones),
	}
	return finish_step(state, "phone_extractor", data, []string{"extract_phones"}, "")
}
`,
	},

	"word_counter": {
		imports: []string{"fmt"},
		body: `func word_counter_agent(state map[string]interface{}) map[string]interface{} {
	text := input_text(state)
	count, _ := count_words(text).(int)
	data := map[string]interface{}{
		"word_count": count,
	}
	return finish_step(state, "word_counter", data, []string{"count_words"}, "")
}
`,
	},

	"sentiment_analyzer": {
		imports: []string{"fmt"},
		body: `func sentiment_analyzer_agent(state map[string]interface{}) map[string]interface{} {
	text := input_text(state)
	data, _ := analyze_sentiment(text).(map[string]interface{})
	if data == nil {
		data = map[string]interface{}{"sentiment": "neutral", "score": 0.0}
	}
	return finish_step(state, "sentiment_analyzer", data, []string{"analyze_sentiment"}, "")
}
`,
	},

	"statistics_calculator": {
		imports: []string{"fmt"},
		body: `func statistics_calculator_agent(state map[string]interface{}) map[string]interface{} {
	text := input_text(state)
	mean, _ := calculate_mean(text).(float64)
	std, _ := calculate_std(text).(float64)
	data := map[string]interface{}{
		"mean": mean,
		"std":  std,
	}
	return finish_step(state, "statistics_calculator", data, []string{"calculate_mean", "calculate_std"}, "")
}
`,
	},

	"password_strength_analyzer": {
		// "strings" is omitted: score_password already imports it into the
		// shared interpreter, and yaegi rejects a re-import across Evals.
		imports: []string{"fmt"},
		body: `func password_strength_analyzer_agent(state map[string]interface{}) map[string]interface{} {
	text := input_text(state)
	if idx := strings.Index(text, ":"); idx >= 0 {
		text = text[idx+1:]
	}
	strengths := map[string]string{}
	for _, candidate := range strings.Split(text, ",") {
		password := strings.TrimSpace(candidate)
		if password == "" {
			continue
		}
		label, _ := score_password(password).(string)
		strengths[password] = label
	}
	data := map[string]interface{}{
		"strengths": strengths,
		"count":     len(strengths),
	}
	return finish_step(state, "password_strength_analyzer", data, []string{"score_password"}, "")
}
`,
	},

	"report_generator": {
		imports: []string{"fmt"},
		body: `func report_generator_agent(state map[string]interface{}) map[string]interface{} {
	report, _ := generate_report(resolve_input(state)).(string)
	data := map[string]interface{}{
		"report": report,
	}
	return finish_step(state, "report_generator", data, []string{"generate_report"}, "")
}
`,
	},
}

func (o *TemplateOracle) agentSource(name string, spec Spec) string {
	if tmpl, ok := agentTemplates[name]; ok {
		return buildAgentFile(tmpl.imports, tmpl.body)
	}
	return buildAgentFile([]string{"fmt"}, genericAgentBody(name))
}

// genericAgentBody covers escalated requests with no specialized template:
// it resolves its input, echoes it as the result, and notes that no
// specialized logic ran.
func genericAgentBody(name string) string {
	symbol := AgentSymbol(name)
	return fmt.Sprintf(`func %s(state map[string]interface{}) map[string]interface{} {
	text := input_text(state)
	data := map[string]interface{}{
		"result": text,
		"note":   "no specialized handler for this request",
	}
	return finish_step(state, %q, data, []string{}, "")
}
`, symbol, name)
}

func buildAgentFile(imports []string, body string) string {
	var b strings.Builder
	b.WriteString("package main\n\n")
	switch len(imports) {
	case 0:
	case 1:
		fmt.Fprintf(&b, "import %q\n\n", imports[0])
	default:
		b.WriteString("import (\n")
		for _, imp := range imports {
			fmt.Fprintf(&b, "\t%q\n", imp)
		}
		b.WriteString(")\n\n")
	}
	b.WriteString(agentBoilerplate)
	b.WriteString("\n")
	b.WriteString(body)
	return b.String()
}
