package config

import "path/filepath"

// PathsConfig locates the registry documents, generated component artifacts,
// backups and the workflow history database under one data directory.
type PathsConfig struct {
	DataDir string `yaml:"data_dir"`
}

func defaultPaths() PathsConfig {
	return PathsFor(".fabric")
}

// PathsFor builds a PathsConfig rooted at dir.
func PathsFor(dir string) PathsConfig {
	return PathsConfig{DataDir: dir}
}

// AgentsFile is the persisted agent registry document.
func (p PathsConfig) AgentsFile() string {
	return filepath.Join(p.DataDir, "agents.json")
}

// ToolsFile is the persisted tool registry document.
func (p PathsConfig) ToolsFile() string {
	return filepath.Join(p.DataDir, "tools.json")
}

// AgentArtifactsDir holds generated agent source files.
func (p PathsConfig) AgentArtifactsDir() string {
	return filepath.Join(p.DataDir, "generated", "agents")
}

// ToolArtifactsDir holds generated tool source files.
func (p PathsConfig) ToolArtifactsDir() string {
	return filepath.Join(p.DataDir, "generated", "tools")
}

// BackupDir holds point-in-time registry backups.
func (p PathsConfig) BackupDir() string {
	return filepath.Join(p.DataDir, "registry_backups")
}

// HistoryDB is the SQLite workflow history database.
func (p PathsConfig) HistoryDB() string {
	return filepath.Join(p.DataDir, "history.db")
}
