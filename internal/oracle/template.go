package oracle

import (
	"context"
	"fmt"
	"strings"

	"agentfabric/internal/logging"
)

// =============================================================================
// TEMPLATE ORACLE
// =============================================================================
// A deterministic, offline oracle covering the capability catalog. Known
// names resolve to hand-written templates; unknown names fall back to a
// generic passthrough so escalated requests still produce a runnable
// component. An LLM-backed oracle can replace this behind the same
// interface.

// TemplateOracle generates component source from built-in templates.
type TemplateOracle struct{}

// NewTemplateOracle creates the built-in template generator.
func NewTemplateOracle() *TemplateOracle {
	return &TemplateOracle{}
}

// AgentSymbol returns the callable name declared by an agent artifact.
// Names already carrying the _agent suffix keep it.
func AgentSymbol(name string) string {
	if strings.HasSuffix(name, "_agent") {
		return name
	}
	return name + "_agent"
}

// Generate returns source for the named component. It never fails: unknown
// names get generic templates, which is the contract that lets escalated
// requests run end to end.
func (o *TemplateOracle) Generate(ctx context.Context, kind Kind, name string, spec Spec) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", fmt.Errorf("%w: %v", ErrOracleFailure, err)
	}
	if name == "" {
		return "", fmt.Errorf("%w: empty component name", ErrOracleFailure)
	}

	var source string
	switch kind {
	case KindTool:
		source = o.toolSource(name)
	case KindAgent:
		source = o.agentSource(name, spec)
	default:
		return "", fmt.Errorf("%w: unknown kind %q", ErrOracleFailure, kind)
	}

	logging.Oracle().Debugw("generated component",
		"kind", kind,
		"name", name,
		"capability", spec.Capability,
		"bytes", len(source))
	return source, nil
}

func (o *TemplateOracle) toolSource(name string) string {
	if tmpl, ok := toolTemplates[name]; ok {
		return tmpl
	}
	return fmt.Sprintf(genericToolTemplate, name)
}

// Tool templates. Each is a complete file declaring one callable named after
// the tool, taking interface{} and returning interface{}, never panicking.
var toolTemplates = map[string]string{
	"extract_emails": `package main

import "regexp"

func extract_emails(input interface{}) interface{} {
	text, ok := input.(string)
	if !ok {
		return []string{}
	}
	re := regexp.MustCompile("[A-Za-z0-9._%+\\-]+@[A-Za-z0-9.\\-]+\\.[A-Za-z]{2,}")
	seen := map[string]bool{}
	out := []string{}
	for _, m := range re.FindAllString(text, -1) {
		if !seen[m] {
			seen[m] = true
			out = append(out, m)
		}
	}
	return out
}
`,

	"extract_urls": `package main

import "regexp"

func extract_urls(input interface{}) interface{} {
	text, ok := input.(string)
	if !ok {
		return []string{}
	}
	re := regexp.MustCompile("https?://[^\\s<>\"')]+")
	seen := map[string]bool{}
	out := []string{}
	for _, m := range re.FindAllString(text, -1) {
		if !seen[m] {
			seen[m] = true
			out = append(out, m)
		}
	}
	return out
}
`,

	"extract_phones": `package main

import "regexp"

func extract_phones(input interface{}) interface{} {
	text, ok := input.(string)
	if !ok {
		return []string{}
	}
	re := regexp.MustCompile("\\+?[0-9][0-9()\\-\\. ]{6,}[0-9]")
	seen := map[string]bool{}
	out := []string{}
	for _, m := range re.FindAllString(text, -1) {
		if !seen[m] {
			seen[m] = true
			out = append(out, m)
		}
	}
	return out
}
`,

	"count_words": `package main

import "strings"

func count_words(input interface{}) interface{} {
	text, ok := input.(string)
	if !ok {
		return 0
	}
	first := strings.Index(text, "\"")
	last := strings.LastIndex(text, "\"")
	if first >= 0 && last > first {
		text = text[first+1 : last]
	}
	return len(strings.Fields(text))
}
`,

	"analyze_sentiment": `package main

import "strings"

func analyze_sentiment(input interface{}) interface{} {
	text, ok := input.(string)
	if !ok {
		return map[string]interface{}{"sentiment": "neutral", "score": 0.0}
	}
	positive := []string{"good", "great", "excellent", "love", "happy", "wonderful", "best", "amazing"}
	negative := []string{"bad", "terrible", "awful", "hate", "sad", "worst", "horrible", "poor"}
	lowered := strings.ToLower(text)
	score := 0
	for _, w := range positive {
		score += strings.Count(lowered, w)
	}
	for _, w := range negative {
		score -= strings.Count(lowered, w)
	}
	sentiment := "neutral"
	if score > 0 {
		sentiment = "positive"
	} else if score < 0 {
		sentiment = "negative"
	}
	return map[string]interface{}{"sentiment": sentiment, "score": float64(score)}
}
`,

	"calculate_mean": `package main

import (
	"regexp"
	"strconv"
)

func calculate_mean(input interface{}) interface{} {
	var values []float64
	switch v := input.(type) {
	case []float64:
		values = v
	case []interface{}:
		for _, x := range v {
			if f, ok := x.(float64); ok {
				values = append(values, f)
			}
		}
	case string:
		re := regexp.MustCompile("-?[0-9]+(\\.[0-9]+)?")
		for _, m := range re.FindAllString(v, -1) {
			if f, err := strconv.ParseFloat(m, 64); err == nil {
				values = append(values, f)
			}
		}
	}
	if len(values) == 0 {
		return 0.0
	}
	sum := 0.0
	for _, f := range values {
		sum += f
	}
	return sum / float64(len(values))
}
`,

	"calculate_std": `package main

import (
	"math"
	"regexp"
	"strconv"
)

func calculate_std(input interface{}) interface{} {
	var values []float64
	switch v := input.(type) {
	case []float64:
		values = v
	case []interface{}:
		for _, x := range v {
			if f, ok := x.(float64); ok {
				values = append(values, f)
			}
		}
	case string:
		re := regexp.MustCompile("-?[0-9]+(\\.[0-9]+)?")
		for _, m := range re.FindAllString(v, -1) {
			if f, err := strconv.ParseFloat(m, 64); err == nil {
				values = append(values, f)
			}
		}
	}
	if len(values) == 0 {
		return 0.0
	}
	sum := 0.0
	for _, f := range values {
		sum += f
	}
	mean := sum / float64(len(values))
	variance := 0.0
	for _, f := range values {
		variance += (f - mean) * (f - mean)
	}
	return math.Sqrt(variance / float64(len(values)))
}
`,

	"score_password": `package main

import "strings"

func score_password(input interface{}) interface{} {
	password, ok := input.(string)
	if !ok {
		return "Weak"
	}
	score := 0
	if len(password) >= 8 {
		score++
	}
	if len(password) >= 12 {
		score++
	}
	if strings.ContainsAny(password, "abcdefghijklmnopqrstuvwxyz") {
		score++
	}
	if strings.ContainsAny(password, "ABCDEFGHIJKLMNOPQRSTUVWXYZ") {
		score++
	}
	if strings.ContainsAny(password, "0123456789") {
		score++
	}
	if strings.ContainsAny(password, "!@#$%^&*()-_=+[]{};:,.<>?/|\\~" + "\"'") {
		score++
	}
	switch {
	case score >= 5:
		return "Strong"
	case score >= 3:
		return "Moderate"
	default:
		return "Weak"
	}
}
`,

	"generate_report": `package main

import (
	"fmt"
	"strings"
)

func generate_report(input interface{}) interface{} {
	var b strings.Builder
	b.WriteString("REPORT\n======\n")
	switch v := input.(type) {
	case string:
		b.WriteString(v)
	case map[string]interface{}:
		for key, value := range v {
			b.WriteString(fmt.Sprintf("%s: %v\n", key, value))
		}
	default:
		b.WriteString(fmt.Sprintf("%v", v))
	}
	return b.String()
}
`,
}

// genericToolTemplate is the fallback for tool names outside the catalog:
// a passthrough that honors the never-panic contract.
const genericToolTemplate = `package main

func %s(input interface{}) interface{} {
	if input == nil {
		return ""
	}
	return input
}
`
