package registry

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// agentsDocument is the on-disk shape of agents.json.
type agentsDocument struct {
	Agents map[string]*AgentRecord `json:"agents"`
}

// toolsDocument is the on-disk shape of tools.json.
type toolsDocument struct {
	Tools map[string]*ToolRecord `json:"tools"`
}

func (r *Registry) loadAll() error {
	var agentsDoc agentsDocument
	if err := readJSONFile(r.paths.AgentsFile(), &agentsDoc); err != nil {
		return fmt.Errorf("load agents registry: %w", err)
	}
	if agentsDoc.Agents != nil {
		r.agents = agentsDoc.Agents
	}

	var toolsDoc toolsDocument
	if err := readJSONFile(r.paths.ToolsFile(), &toolsDoc); err != nil {
		return fmt.Errorf("load tools registry: %w", err)
	}
	if toolsDoc.Tools != nil {
		r.tools = toolsDoc.Tools
	}

	// Keys are authoritative for identity; heal records whose name drifted.
	for name, rec := range r.agents {
		rec.Name = name
	}
	for name, rec := range r.tools {
		rec.Name = name
	}
	return nil
}

func (r *Registry) saveAgentsLocked() error {
	return writeJSONFileAtomic(r.paths.AgentsFile(), agentsDocument{Agents: r.agents})
}

func (r *Registry) saveToolsLocked() error {
	return writeJSONFileAtomic(r.paths.ToolsFile(), toolsDocument{Tools: r.tools})
}

func (r *Registry) saveAllLocked() error {
	if err := r.saveAgentsLocked(); err != nil {
		return err
	}
	return r.saveToolsLocked()
}

func readJSONFile(path string, v interface{}) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	if len(data) == 0 {
		return nil
	}
	return json.Unmarshal(data, v)
}

func writeJSONFileAtomic(path string, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal %s: %w", filepath.Base(path), err)
	}
	return writeFileAtomic(path, append(data, '\n'))
}

// writeFileAtomic writes via a temp file in the target directory and renames
// it into place, so readers never observe a partial file.
func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		os.Remove(tmpName)
		return err
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return err
	}
	return nil
}
