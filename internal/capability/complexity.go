package capability

import (
	"regexp"
	"strings"
)

// =============================================================================
// COMPLEXITY CLASSIFICATION
// =============================================================================
// Tags a request as simple, pipeline, or complex. The executor uses the tag
// to choose one-shot vs. staged execution.

// Complexity buckets.
type Complexity string

const (
	Simple   Complexity = "simple"
	Pipeline Complexity = "pipeline"
	Complex  Complexity = "complex"
)

// Sequencing indicators. Any of these implies the request describes at least
// two ordered stages.
var (
	sequenceWords = []string{
		"then", "after", "next", "followed by", "afterwards", "finally",
		"subsequently", "first", "second",
	}

	numberedStepPattern = regexp.MustCompile(`(?m)(^|\s)\d+[.)]\s`)
)

// Word-count thresholds. Long requests tend to bundle several tasks even
// without explicit sequencing words.
const (
	pipelineWordThreshold = 25
	complexWordThreshold  = 50
)

// Classify tags the request. fileCount is the number of attached files;
// capabilityCount is the size of the matched capability list (two or more
// capabilities is at least a pipeline).
func (a *Analyzer) Classify(request string, fileCount, capabilityCount int) Complexity {
	lowered := strings.ToLower(request)
	words := len(strings.Fields(request))

	sequenced := 0
	for _, w := range sequenceWords {
		sequenced += strings.Count(lowered, w)
	}
	numbered := len(numberedStepPattern.FindAllString(request, -1))

	switch {
	case numbered >= 2,
		words > complexWordThreshold,
		fileCount > 1 && sequenced > 0,
		capabilityCount > 2:
		return Complex
	case sequenced > 0,
		numbered == 1,
		fileCount > 1,
		capabilityCount >= 2,
		words > pipelineWordThreshold:
		return Pipeline
	default:
		return Simple
	}
}
