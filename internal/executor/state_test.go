package executor

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtractInputUnwrapsCurrentData(t *testing.T) {
	state := NewState("some request", nil)
	state["current_data"] = map[string]interface{}{"text": "payload"}
	assert.Equal(t, "payload", ExtractInput(state))

	state["current_data"] = map[string]interface{}{"other": 1}
	assert.Equal(t, map[string]interface{}{"other": 1}, ExtractInput(state))

	state["current_data"] = "plain string"
	assert.Equal(t, "plain string", ExtractInput(state))
}

func TestExtractInputWalksExecutionPathBackwards(t *testing.T) {
	state := NewState("some request", nil)
	state["results"] = map[string]interface{}{
		"first": map[string]interface{}{
			"status": StatusSuccess,
			"data":   map[string]interface{}{"n": 1},
		},
		"second": map[string]interface{}{
			"status": StatusError,
			"data":   nil,
		},
	}
	state["execution_path"] = []interface{}{"first", "second"}

	// The failed newest step has no data, so the older result wins.
	assert.Equal(t, map[string]interface{}{"n": 1}, ExtractInput(state))
}

func TestExtractInputFallsBackToRequest(t *testing.T) {
	state := NewState("count everything", nil)
	assert.Equal(t, "count everything", ExtractInput(state))

	assert.Nil(t, ExtractInput(map[string]interface{}{}))
}
