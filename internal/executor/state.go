// Package executor runs planned agents over a shared state envelope,
// collects their result envelopes, grades the run, and drives adaptation
// on failure.
package executor

import "fmt"

// Envelope statuses. Every per-agent result carries exactly one.
const (
	StatusSuccess = "success"
	StatusPartial = "partial"
	StatusError   = "error"
)

// Terminal workflow statuses add cancelled to the envelope set.
const StatusCancelled = "cancelled"

// FileRef describes an attached file handed to a workflow.
type FileRef struct {
	Name string `json:"name"`
	Path string `json:"path"`
	Type string `json:"type"`
	Size int64  `json:"size"`
}

// NewState seeds a fresh state envelope for one workflow. The envelope is a
// plain map so interpreted agents can read and mutate it without bridging
// types.
func NewState(request string, files []FileRef) map[string]interface{} {
	fileList := make([]interface{}, 0, len(files))
	for _, f := range files {
		fileList = append(fileList, map[string]interface{}{
			"name": f.Name,
			"path": f.Path,
			"type": f.Type,
			"size": f.Size,
		})
	}
	return map[string]interface{}{
		"request":        request,
		"files":          fileList,
		"current_data":   nil,
		"results":        map[string]interface{}{},
		"errors":         []interface{}{},
		"execution_path": []interface{}{},
	}
}

// unwrapKeys are tried, in order, when current_data is a map: a step that
// published a wrapped payload exposes its inner value to the next step.
var unwrapKeys = []string{"text", "data", "content", "value", "result"}

// ExtractInput resolves the working input for the next step, mirroring the
// contract interpreted agents implement: current_data first (unwrapping
// common payload keys), then the newest prior result's data walking
// execution_path backwards, then the raw request.
func ExtractInput(state map[string]interface{}) interface{} {
	if current, ok := state["current_data"]; ok && current != nil {
		if m, ok := current.(map[string]interface{}); ok {
			for _, key := range unwrapKeys {
				if v, ok := m[key]; ok && v != nil {
					return v
				}
			}
		}
		return current
	}

	results, _ := state["results"].(map[string]interface{})
	path, _ := state["execution_path"].([]interface{})
	for i := len(path) - 1; i >= 0; i-- {
		name, ok := path[i].(string)
		if !ok {
			continue
		}
		env, ok := results[name].(map[string]interface{})
		if !ok {
			continue
		}
		if data, ok := env["data"]; ok && data != nil {
			return data
		}
	}

	for _, key := range []string{"request", "text", "data", "input"} {
		if v, ok := state[key]; ok && v != nil {
			return v
		}
	}
	return nil
}

// cloneState deep-copies an envelope so parallel children never observe
// each other. Values outside maps and slices are shared; agents treat data
// payloads as immutable once published.
func cloneState(state map[string]interface{}) map[string]interface{} {
	return cloneMap(state)
}

func cloneMap(m map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(m))
	for k, v := range m {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v interface{}) interface{} {
	switch t := v.(type) {
	case map[string]interface{}:
		return cloneMap(t)
	case []interface{}:
		out := make([]interface{}, len(t))
		for i, e := range t {
			out[i] = cloneValue(e)
		}
		return out
	default:
		return v
	}
}

// Envelope is the typed view over one agent's result map.
type Envelope struct {
	Status   string
	Data     interface{}
	Metadata map[string]interface{}
}

// EnvelopeFrom reads the result envelope an agent left under its name.
// The second return is false when the agent published nothing usable.
func EnvelopeFrom(state map[string]interface{}, agent string) (Envelope, bool) {
	results, ok := state["results"].(map[string]interface{})
	if !ok {
		return Envelope{}, false
	}
	raw, ok := results[agent].(map[string]interface{})
	if !ok {
		return Envelope{}, false
	}
	env := Envelope{Data: raw["data"]}
	env.Status, _ = raw["status"].(string)
	env.Metadata, _ = raw["metadata"].(map[string]interface{})
	if env.Status == "" {
		return Envelope{}, false
	}
	return env, true
}

// writeEnvelope publishes an envelope under the agent's name, mirroring the
// protocol generated agents follow, and records the step in the execution
// path. Used when the executor synthesizes envelopes for failed steps.
func writeEnvelope(state map[string]interface{}, agent string, env Envelope) {
	results, ok := state["results"].(map[string]interface{})
	if !ok {
		results = map[string]interface{}{}
		state["results"] = results
	}
	results[agent] = map[string]interface{}{
		"status":   env.Status,
		"data":     env.Data,
		"metadata": env.Metadata,
	}
	appendPath(state, agent)
}

func appendPath(state map[string]interface{}, agent string) {
	path, _ := state["execution_path"].([]interface{})
	for _, p := range path {
		if p == agent {
			return
		}
	}
	state["execution_path"] = append(path, agent)
}

// appendError records a step error on the envelope's append-only error list.
func appendError(state map[string]interface{}, agent string, err error) {
	errs, _ := state["errors"].([]interface{})
	state["errors"] = append(errs, map[string]interface{}{
		"agent": agent,
		"error": fmt.Sprintf("%v", err),
	})
}

// errorEnvelope synthesizes the envelope shape for a failed step: data is
// nil and the metadata carries the error string.
func errorEnvelope(agent string, err error, seconds float64) Envelope {
	return Envelope{
		Status: StatusError,
		Data:   nil,
		Metadata: map[string]interface{}{
			"agent":          agent,
			"execution_time": seconds,
			"tools_used":     []string{},
			"warnings":       []string{},
			"error":          fmt.Sprintf("%v", err),
		},
	}
}
