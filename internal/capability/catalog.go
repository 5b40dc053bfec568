// Package capability maps free-text requests onto the components able to
// serve them. Matching is deterministic: a fixed intent×object keyword
// catalog, no model in the loop.
package capability

import (
	"sort"
	"strings"

	"agentfabric/internal/logging"
)

// =============================================================================
// CAPABILITY CATALOG
// =============================================================================

// Capability names an agent and the tools it needs. It is transient: produced
// per request, never persisted.
type Capability struct {
	Name  string   `json:"name"`
	Agent string   `json:"agent"`
	Tools []string `json:"tools"`
}

// Intent verb families. A catalog entry matches only when one of its intent
// verbs appears somewhere in the request.
var (
	extractVerbs  = []string{"extract", "find", "get", "pull", "grab"}
	analyzeVerbs  = []string{"analyze", "analyse", "examine", "assess", "evaluate", "check"}
	generateVerbs = []string{"generate", "create", "make", "build", "produce", "write"}
	countVerbs    = []string{"count", "tally"}
	computeVerbs  = []string{"compute", "calculate", "mean", "average", "sum"}
	classifyVerbs = []string{"classify", "categorize", "label", "score", "rate"}
)

type catalogEntry struct {
	name  string
	agent string
	tools []string
	verbs []string
	nouns []string
}

// The fixed catalog. Entry order is the tie-break when two entries match at
// the same position in the request.
var catalog = []catalogEntry{
	{
		name:  "email_extraction",
		agent: "email_extractor",
		tools: []string{"extract_emails"},
		verbs: extractVerbs,
		nouns: []string{"email", "e-mail"},
	},
	{
		name:  "url_extraction",
		agent: "url_extractor",
		tools: []string{"extract_urls"},
		verbs: extractVerbs,
		nouns: []string{"url", "link", "hyperlink"},
	},
	{
		name:  "phone_extraction",
		agent: "phone_extractor",
		tools: []string{"extract_phones"},
		verbs: extractVerbs,
		nouns: []string{"phone", "telephone"},
	},
	{
		name:  "sentiment_analysis",
		agent: "sentiment_analyzer",
		tools: []string{"analyze_sentiment"},
		verbs: analyzeVerbs,
		nouns: []string{"sentiment", "mood", "tone"},
	},
	{
		name:  "statistics",
		agent: "statistics_calculator",
		tools: []string{"calculate_mean", "calculate_std"},
		verbs: computeVerbs,
		nouns: []string{"statistic", "numbers", "mean", "average", "deviation"},
	},
	{
		name:  "word_count",
		agent: "word_counter",
		tools: []string{"count_words"},
		verbs: countVerbs,
		nouns: []string{"word"},
	},
	{
		name:  "password_strength",
		agent: "password_strength_analyzer",
		tools: []string{"score_password"},
		verbs: append(analyzeVerbs, classifyVerbs...),
		nouns: []string{"password"},
	},
	{
		name:  "report_generation",
		agent: "report_generator",
		tools: []string{"generate_report"},
		verbs: generateVerbs,
		nouns: []string{"report", "summary", "chart"},
	},
}

// Known returns every catalog capability in catalog order. Seeding uses it
// to pre-register the built-in components.
func Known() []Capability {
	out := make([]Capability, 0, len(catalog))
	for _, e := range catalog {
		out = append(out, Capability{
			Name:  e.name,
			Agent: e.agent,
			Tools: append([]string(nil), e.tools...),
		})
	}
	return out
}

// Analyzer matches requests against the catalog and classifies complexity.
type Analyzer struct{}

// NewAnalyzer creates an analyzer over the built-in catalog.
func NewAnalyzer() *Analyzer {
	return &Analyzer{}
}

// Analyze returns the capabilities the request asks for, ordered by where
// their object noun first appears in the request. Duplicate capabilities are
// dropped. An unmatched request yields an empty (non-nil) list; the planner
// escalates those to the oracle.
func (a *Analyzer) Analyze(request string) []Capability {
	lowered := strings.ToLower(request)

	type match struct {
		pos   int
		order int
		cap   Capability
	}
	var matches []match

	for i, entry := range catalog {
		pos := firstNounIndex(lowered, entry.nouns)
		if pos < 0 {
			continue
		}
		if !containsAnyWord(lowered, entry.verbs) {
			continue
		}
		matches = append(matches, match{
			pos:   pos,
			order: i,
			cap: Capability{
				Name:  entry.name,
				Agent: entry.agent,
				Tools: append([]string(nil), entry.tools...),
			},
		})
	}

	sort.SliceStable(matches, func(i, j int) bool {
		if matches[i].pos != matches[j].pos {
			return matches[i].pos < matches[j].pos
		}
		return matches[i].order < matches[j].order
	})

	caps := make([]Capability, 0, len(matches))
	seen := make(map[string]bool, len(matches))
	for _, m := range matches {
		if seen[m.cap.Name] {
			continue
		}
		seen[m.cap.Name] = true
		caps = append(caps, m.cap)
	}

	logging.Capability().Debugw("analyzed request",
		"capabilities", len(caps),
		"request_words", len(strings.Fields(request)))
	return caps
}

// firstNounIndex returns the byte offset of the earliest noun occurrence,
// or -1 when none appears.
func firstNounIndex(lowered string, nouns []string) int {
	best := -1
	for _, noun := range nouns {
		if idx := strings.Index(lowered, noun); idx >= 0 {
			if best < 0 || idx < best {
				best = idx
			}
		}
	}
	return best
}

// containsAnyWord reports whether any of the given words occurs in the
// lowered request. Substring matching is deliberate: "extracting" matches
// "extract".
func containsAnyWord(lowered string, words []string) bool {
	for _, w := range words {
		if strings.Contains(lowered, w) {
			return true
		}
	}
	return false
}
