package config

import "fmt"

// HistoryConfig configures the workflow history log.
type HistoryConfig struct {
	// MaxRecords caps the in-memory history ring.
	MaxRecords int `yaml:"max_records"`

	// RecentWindow is the default N for recent success-rate and
	// recent-average-time analytics queries.
	RecentWindow int `yaml:"recent_window"`

	// Durable enables the SQLite-backed history log alongside the ring.
	Durable bool `yaml:"durable"`
}

func defaultHistory() HistoryConfig {
	return HistoryConfig{
		MaxRecords:   200,
		RecentWindow: 20,
		Durable:      true,
	}
}

func (h HistoryConfig) validate() error {
	if h.MaxRecords < 1 {
		return fmt.Errorf("history max records must be at least 1, got %d", h.MaxRecords)
	}
	if h.RecentWindow < 1 {
		return fmt.Errorf("history recent window must be at least 1, got %d", h.RecentWindow)
	}
	return nil
}
