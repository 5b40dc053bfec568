package config

import (
	"fmt"
	"time"
)

// ExecutionConfig configures the pipeline executor and adaptation controller.
type ExecutionConfig struct {
	// WorkflowTimeout bounds one end-to-end workflow run.
	WorkflowTimeout time.Duration `yaml:"workflow_timeout"`

	// StepTimeout bounds a single agent invocation.
	StepTimeout time.Duration `yaml:"step_timeout"`

	// ExcellentThreshold is the total-time bound for an "excellent" grade.
	ExcellentThreshold time.Duration `yaml:"excellent_threshold"`

	// GoodThreshold is the total-time bound for a "good" grade.
	GoodThreshold time.Duration `yaml:"good_threshold"`

	// MaxAdaptations is the per-workflow adaptation budget.
	MaxAdaptations int `yaml:"max_adaptations"`

	// MaxParallelAgents caps fan-out width under the parallel strategy.
	MaxParallelAgents int `yaml:"max_parallel_agents"`
}

func defaultExecution() ExecutionConfig {
	return ExecutionConfig{
		WorkflowTimeout:    300 * time.Second,
		StepTimeout:        30 * time.Second,
		ExcellentThreshold: 5 * time.Second,
		GoodThreshold:      15 * time.Second,
		MaxAdaptations:     3,
		MaxParallelAgents:  4,
	}
}

func (e ExecutionConfig) validate() error {
	if e.StepTimeout <= 0 || e.WorkflowTimeout <= 0 {
		return fmt.Errorf("execution timeouts must be positive (step=%v workflow=%v)", e.StepTimeout, e.WorkflowTimeout)
	}
	if e.StepTimeout > e.WorkflowTimeout {
		return fmt.Errorf("step timeout %v exceeds workflow timeout %v", e.StepTimeout, e.WorkflowTimeout)
	}
	if e.ExcellentThreshold > e.GoodThreshold {
		return fmt.Errorf("excellent threshold %v exceeds good threshold %v", e.ExcellentThreshold, e.GoodThreshold)
	}
	if e.MaxAdaptations < 0 {
		return fmt.Errorf("max adaptations must be non-negative, got %d", e.MaxAdaptations)
	}
	if e.MaxParallelAgents < 1 {
		return fmt.Errorf("max parallel agents must be at least 1, got %d", e.MaxParallelAgents)
	}
	return nil
}
