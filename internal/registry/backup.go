package registry

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"agentfabric/internal/logging"
)

// BackupMetadata is the sidecar written next to each backup.
type BackupMetadata struct {
	Timestamp time.Time `json:"timestamp"`
	Tag       string    `json:"tag,omitempty"`
	Stats     Stats     `json:"stats"`
}

// Backup writes a point-in-time copy of both registry documents plus a
// metadata sidecar under the backup directory. Returns the backup name.
func (r *Registry) Backup(tag string) (string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	name := "backup_" + time.Now().UTC().Format("20060102_150405")
	if tag != "" {
		name += "_" + tag
	}
	dir := filepath.Join(r.paths.BackupDir(), name)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create backup dir: %w", err)
	}

	if err := copyFile(r.paths.AgentsFile(), filepath.Join(dir, "agents.json")); err != nil {
		return "", fmt.Errorf("backup agents: %w", err)
	}
	if err := copyFile(r.paths.ToolsFile(), filepath.Join(dir, "tools.json")); err != nil {
		return "", fmt.Errorf("backup tools: %w", err)
	}

	meta := BackupMetadata{
		Timestamp: time.Now().UTC(),
		Tag:       tag,
		Stats:     r.statsLocked(),
	}
	data, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal backup metadata: %w", err)
	}
	if err := writeFileAtomic(filepath.Join(dir, "metadata.json"), append(data, '\n')); err != nil {
		return "", fmt.Errorf("write backup metadata: %w", err)
	}

	logging.Registry().Infow("backup created", "name", name)
	return name, nil
}

// Restore replaces the live registry documents with the named backup and
// reloads the in-memory catalogs.
func (r *Registry) Restore(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	dir := filepath.Join(r.paths.BackupDir(), name)
	if _, err := os.Stat(dir); err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%w: %s", ErrBackupNotFound, name)
		}
		return err
	}

	agentsData, err := os.ReadFile(filepath.Join(dir, "agents.json"))
	if err != nil {
		return fmt.Errorf("read backup agents: %w", err)
	}
	toolsData, err := os.ReadFile(filepath.Join(dir, "tools.json"))
	if err != nil {
		return fmt.Errorf("read backup tools: %w", err)
	}

	if err := writeFileAtomic(r.paths.AgentsFile(), agentsData); err != nil {
		return fmt.Errorf("restore agents: %w", err)
	}
	if err := writeFileAtomic(r.paths.ToolsFile(), toolsData); err != nil {
		return fmt.Errorf("restore tools: %w", err)
	}

	r.agents = make(map[string]*AgentRecord)
	r.tools = make(map[string]*ToolRecord)
	if err := r.loadAll(); err != nil {
		return err
	}
	r.rebuildBackRefs()

	logging.Registry().Infow("registry restored", "backup", name)
	return nil
}

// ListBackups returns available backup names, newest first.
func (r *Registry) ListBackups() ([]string, error) {
	entries, err := os.ReadDir(r.paths.BackupDir())
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var names []string
	for _, e := range entries {
		if e.IsDir() {
			names = append(names, e.Name())
		}
	}
	sort.Sort(sort.Reverse(sort.StringSlice(names)))
	return names, nil
}

func copyFile(src, dst string) error {
	data, err := os.ReadFile(src)
	if err != nil {
		if os.IsNotExist(err) {
			// Nothing persisted yet; back up an empty document.
			data = []byte("{}\n")
		} else {
			return err
		}
	}
	return writeFileAtomic(dst, data)
}
