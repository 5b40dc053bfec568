// Package history keeps the bounded per-process workflow record list, with
// optional SQLite durability so analytics survive restarts.
package history

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"agentfabric/internal/config"
	"agentfabric/internal/logging"
)

// Step is one executed step inside a workflow record.
type Step struct {
	Agent    string  `json:"agent"`
	Status   string  `json:"status"`
	Error    string  `json:"error,omitempty"`
	Duration float64 `json:"duration"`
	Attempts int     `json:"attempts"`
}

// Adaptation is one recorded adaptation decision.
type Adaptation struct {
	Step    string `json:"step"`
	Reason  string `json:"reason"`
	Action  string `json:"action"`
	Outcome string `json:"outcome"`
}

// Record is the terminal state of one workflow.
type Record struct {
	WorkflowID     string       `json:"workflow_id"`
	Request        string       `json:"request"`
	Status         string       `json:"status"`
	StartedAt      time.Time    `json:"started_at"`
	CompletedAt    time.Time    `json:"completed_at"`
	ExecutionTime  float64      `json:"execution_time"`
	Type           string       `json:"type"`
	Steps          []Step       `json:"steps"`
	StepsCompleted int          `json:"steps_completed"`
	TotalSteps     int          `json:"total_steps"`
	FilesCount     int          `json:"files_count"`
	Adaptations    []Adaptation `json:"adaptations"`
	Errors         []string     `json:"errors"`
}

// Store is the single-appender history list. The in-memory window is capped;
// the SQLite table, when enabled, keeps everything.
type Store struct {
	mu      sync.RWMutex
	cap     int
	records []Record
	db      *sql.DB
}

// Open creates a history store. dbPath is ignored unless cfg.Durable is set.
func Open(cfg config.HistoryConfig, dbPath string) (*Store, error) {
	s := &Store{cap: cfg.MaxRecords}

	if cfg.Durable {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
			return nil, fmt.Errorf("create history dir: %w", err)
		}
		db, err := sql.Open("sqlite", dbPath)
		if err != nil {
			return nil, fmt.Errorf("open history db: %w", err)
		}
		if err := ensureSchema(db); err != nil {
			db.Close()
			return nil, err
		}
		s.db = db
		if err := s.loadRecent(); err != nil {
			db.Close()
			return nil, err
		}
		logging.History().Debugw("history store opened", "path", dbPath, "loaded", len(s.records))
	}
	return s, nil
}

func ensureSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS workflow_records (
		workflow_id TEXT PRIMARY KEY,
		request TEXT NOT NULL,
		status TEXT NOT NULL,
		started_at DATETIME NOT NULL,
		completed_at DATETIME NOT NULL,
		execution_time REAL NOT NULL,
		type TEXT NOT NULL,
		steps TEXT NOT NULL,
		steps_completed INTEGER NOT NULL,
		total_steps INTEGER NOT NULL,
		files_count INTEGER NOT NULL,
		adaptations TEXT NOT NULL,
		errors TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_records_started ON workflow_records(started_at);
	CREATE INDEX IF NOT EXISTS idx_records_status ON workflow_records(status);
	`
	if _, err := db.Exec(schema); err != nil {
		return fmt.Errorf("ensure history schema: %w", err)
	}
	return nil
}

// loadRecent warms the in-memory window from the newest persisted records.
func (s *Store) loadRecent() error {
	rows, err := s.db.Query(`
		SELECT workflow_id, request, status, started_at, completed_at,
		       execution_time, type, steps, steps_completed, total_steps,
		       files_count, adaptations, errors
		FROM workflow_records
		ORDER BY started_at DESC
		LIMIT ?`, s.cap)
	if err != nil {
		return fmt.Errorf("load history: %w", err)
	}
	defer rows.Close()

	var loaded []Record
	for rows.Next() {
		var rec Record
		var steps, adaptations, errs string
		if err := rows.Scan(&rec.WorkflowID, &rec.Request, &rec.Status,
			&rec.StartedAt, &rec.CompletedAt, &rec.ExecutionTime, &rec.Type,
			&steps, &rec.StepsCompleted, &rec.TotalSteps, &rec.FilesCount,
			&adaptations, &errs); err != nil {
			return fmt.Errorf("scan history row: %w", err)
		}
		decodeJSON(steps, &rec.Steps)
		decodeJSON(adaptations, &rec.Adaptations)
		decodeJSON(errs, &rec.Errors)
		loaded = append(loaded, rec)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate history rows: %w", err)
	}

	// Rows came newest-first; in memory we keep append order.
	for i := len(loaded) - 1; i >= 0; i-- {
		s.records = append(s.records, loaded[i])
	}
	return nil
}

// Append records a finished workflow. The in-memory window drops its oldest
// entry once the cap is reached; the durable table keeps all rows.
func (s *Store) Append(rec Record) error {
	s.mu.Lock()
	s.records = append(s.records, rec)
	if s.cap > 0 && len(s.records) > s.cap {
		s.records = s.records[len(s.records)-s.cap:]
	}
	db := s.db
	s.mu.Unlock()

	if db == nil {
		return nil
	}

	_, err := db.Exec(`
		INSERT OR REPLACE INTO workflow_records (
			workflow_id, request, status, started_at, completed_at,
			execution_time, type, steps, steps_completed, total_steps,
			files_count, adaptations, errors
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.WorkflowID, rec.Request, rec.Status, rec.StartedAt, rec.CompletedAt,
		rec.ExecutionTime, rec.Type, encodeJSON(rec.Steps), rec.StepsCompleted,
		rec.TotalSteps, rec.FilesCount, encodeJSON(rec.Adaptations),
		encodeJSON(rec.Errors))
	if err != nil {
		return fmt.Errorf("persist workflow record: %w", err)
	}
	return nil
}

// Recent returns up to n records, newest first.
func (s *Store) Recent(n int) []Record {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if n <= 0 || n > len(s.records) {
		n = len(s.records)
	}
	out := make([]Record, 0, n)
	for i := len(s.records) - 1; i >= len(s.records)-n; i-- {
		out = append(out, s.records[i])
	}
	return out
}

// Len reports the in-memory window size.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

// SuccessRate is the fraction of the last n workflows that succeeded.
// Zero workflows yields zero.
func (s *Store) SuccessRate(n int) float64 {
	recent := s.Recent(n)
	if len(recent) == 0 {
		return 0
	}
	ok := 0
	for _, rec := range recent {
		if rec.Status == "success" {
			ok++
		}
	}
	return float64(ok) / float64(len(recent))
}

// AverageTime is the mean execution time in seconds over the last n
// workflows.
func (s *Store) AverageTime(n int) float64 {
	recent := s.Recent(n)
	if len(recent) == 0 {
		return 0
	}
	total := 0.0
	for _, rec := range recent {
		total += rec.ExecutionTime
	}
	return total / float64(len(recent))
}

// Close releases the durable store, if any.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

func encodeJSON(v interface{}) string {
	data, err := json.Marshal(v)
	if err != nil {
		return "null"
	}
	return string(data)
}

func decodeJSON(data string, v interface{}) {
	if data == "" {
		return
	}
	if err := json.Unmarshal([]byte(data), v); err != nil {
		logging.History().Warnw("undecodable history column", "error", err)
	}
}
