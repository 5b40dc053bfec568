package capability

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAnalyzeSingleCapability(t *testing.T) {
	a := NewAnalyzer()

	caps := a.Analyze("Extract emails from: Contact us at foo@bar.com or baz@qux.io")
	require.Len(t, caps, 1)
	assert.Equal(t, "email_extraction", caps[0].Name)
	assert.Equal(t, "email_extractor", caps[0].Agent)
	assert.Equal(t, []string{"extract_emails"}, caps[0].Tools)
}

func TestAnalyzeOrderFollowsRequest(t *testing.T) {
	a := NewAnalyzer()

	caps := a.Analyze("Extract URLs and then count the words in the original text.")
	require.Len(t, caps, 2)
	assert.Equal(t, "url_extractor", caps[0].Agent)
	assert.Equal(t, "word_counter", caps[1].Agent)

	// Reversed mention order reverses the capability order.
	caps = a.Analyze("Count the words, then extract the URLs.")
	require.Len(t, caps, 2)
	assert.Equal(t, "word_counter", caps[0].Agent)
	assert.Equal(t, "url_extractor", caps[1].Agent)
}

func TestAnalyzeRequiresIntentVerb(t *testing.T) {
	a := NewAnalyzer()

	// Noun alone is not a request for the capability.
	caps := a.Analyze("My email is foo@bar.com")
	assert.Empty(t, caps)
}

func TestAnalyzeUnmatchedRequest(t *testing.T) {
	a := NewAnalyzer()

	caps := a.Analyze("Translate this document into French")
	assert.NotNil(t, caps)
	assert.Empty(t, caps)
}

func TestAnalyzeDeduplicates(t *testing.T) {
	a := NewAnalyzer()

	caps := a.Analyze("Extract emails and find every email address in the text")
	require.Len(t, caps, 1)
	assert.Equal(t, "email_extractor", caps[0].Agent)
}

func TestAnalyzePasswordStrength(t *testing.T) {
	a := NewAnalyzer()

	caps := a.Analyze("Analyze password strength of: Passw0rd!, hunter2")
	require.Len(t, caps, 1)
	assert.Equal(t, "password_strength_analyzer", caps[0].Agent)
	assert.Equal(t, []string{"score_password"}, caps[0].Tools)
}

func TestAnalyzeCaseInsensitive(t *testing.T) {
	a := NewAnalyzer()

	caps := a.Analyze("EXTRACT THE PHONE NUMBERS")
	require.NotEmpty(t, caps)
	assert.Equal(t, "phone_extractor", caps[0].Agent)
}

func TestClassify(t *testing.T) {
	a := NewAnalyzer()

	tests := []struct {
		name            string
		request         string
		fileCount       int
		capabilityCount int
		want            Complexity
	}{
		{"short single task", "Count words in \"the quick brown fox jumps\"", 0, 1, Simple},
		{"sequence word", "Extract URLs and then count the words in the original text.", 0, 2, Pipeline},
		{"two capabilities", "Extract emails and count words", 0, 2, Pipeline},
		{"multiple files", "Summarize the attachments", 3, 1, Pipeline},
		{"numbered steps", "1. extract emails 2. count words 3. build a report", 0, 3, Complex},
		{"files plus sequencing", "Merge these, then chart the result", 2, 1, Complex},
		{"empty request", "", 0, 0, Simple},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := a.Classify(tt.request, tt.fileCount, tt.capabilityCount)
			assert.Equal(t, tt.want, got)
		})
	}
}
