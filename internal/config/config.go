// Package config loads and validates the scenario files driving the rex
// CLI: YAML parsed strictly, checked against an embedded JSON schema, and
// logically validated before the runtime touches it.
package config

import (
	"time"

	"github.com/pelagornis/go-rex/pkg/rex/v1/effect"
)

// Step kinds, exactly one of which must be set per step.
const (
	StepKindAction   = "action"
	StepKindNavigate = "navigate"
	StepKindJump     = "jump_to"
	StepKindWait     = "wait"
)

// Action types understood by the scenario reducer.
const (
	ActionSet       = "set"
	ActionIncrement = "increment"
	ActionMerge     = "merge"
	ActionDelete    = "delete"
)

// Navigation directions for navigate steps.
const (
	NavigateUndo = "undo"
	NavigateRedo = "redo"
)

// Scenario is the top-level structure of a rex scenario YAML file.
type Scenario struct {
	Name          string                 `yaml:"name"`
	SchemaVersion string                 `yaml:"schemaVersion"`
	InitialState  map[string]interface{} `yaml:"initialState,omitempty"`

	// EffectStrategy selects the store's effect scheduling strategy;
	// empty means concurrent.
	EffectStrategy string `yaml:"effectStrategy,omitempty"`
	// TimeTravel enables the history buffer, required by navigate and
	// jump_to steps.
	TimeTravel bool `yaml:"timeTravel,omitempty"`
	// Middlewares names middleware registered in the scenario runtime's
	// registry, applied in the given order.
	Middlewares []string `yaml:"middlewares,omitempty"`

	Steps []Step `yaml:"steps"`

	// FilePath stores the source file path for logging and error
	// messages. It is not parsed from the YAML.
	FilePath string `yaml:"-"`
}

// Step is one scripted operation against the store. Exactly one of
// Action, Navigate, JumpTo, or Wait must be set.
type Step struct {
	Name string `yaml:"name,omitempty"`

	// Action dispatches a scenario action.
	Action *ActionConfig `yaml:"action,omitempty"`
	// Navigate is "undo" or "redo".
	Navigate string `yaml:"navigate,omitempty"`
	// JumpTo moves the history cursor to a snapshot index.
	JumpTo *int `yaml:"jump_to,omitempty"`
	// Wait pauses the script for a duration, letting async effects land.
	Wait string `yaml:"wait,omitempty"`

	// InternalID is assigned during loading and used in logs and reports.
	InternalID string `yaml:"-"`
}

// ActionConfig describes a dispatched action and how its dispatch is
// wrapped in effects.
type ActionConfig struct {
	// Type is one of set, increment, merge, delete.
	Type   string                 `yaml:"type"`
	Params map[string]interface{} `yaml:"params,omitempty"`

	// Delay routes the dispatch through a delayed effect instead of
	// dispatching directly.
	Delay string `yaml:"delay,omitempty"`
	// Key tags the dispatch effect for latestOnly replacement.
	Key string `yaml:"key,omitempty"`
	// Retry wraps the dispatch effect in the retry combinator.
	Retry *RetryConfig `yaml:"retry,omitempty"`
}

// RetryConfig mirrors the effect package's retry knobs in YAML form.
type RetryConfig struct {
	Attempts      int      `yaml:"attempts,omitempty"`
	Delay         string   `yaml:"delay,omitempty"`
	MaxDelay      string   `yaml:"max_delay,omitempty"`
	BackoffFactor *float64 `yaml:"backoff_factor,omitempty"`
	Jitter        *float64 `yaml:"jitter,omitempty"`
}

// Kind returns which step kind is set, or "" when none is.
func (s *Step) Kind() string {
	switch {
	case s.Action != nil:
		return StepKindAction
	case s.Navigate != "":
		return StepKindNavigate
	case s.JumpTo != nil:
		return StepKindJump
	case s.Wait != "":
		return StepKindWait
	}
	return ""
}

// GetDelay returns the parsed dispatch delay, or 0 when unset or invalid.
func (a *ActionConfig) GetDelay() time.Duration {
	if a.Delay == "" {
		return 0
	}
	d, err := time.ParseDuration(a.Delay)
	if err != nil || d < 0 {
		return 0
	}
	return d
}

// EffectRetryConfig converts the YAML retry block into the effect
// package's config. Defaults: one attempt, one second base delay.
func (a *ActionConfig) EffectRetryConfig() effect.RetryConfig {
	cfg := effect.RetryConfig{Attempts: 1, Delay: time.Second}
	if a.Retry == nil {
		return cfg
	}
	if a.Retry.Attempts >= 1 {
		cfg.Attempts = a.Retry.Attempts
	}
	if a.Retry.Delay != "" {
		if d, err := time.ParseDuration(a.Retry.Delay); err == nil && d > 0 {
			cfg.Delay = d
		}
	}
	if a.Retry.MaxDelay != "" {
		if d, err := time.ParseDuration(a.Retry.MaxDelay); err == nil && d > 0 {
			cfg.MaxDelay = d
		}
	}
	if a.Retry.BackoffFactor != nil && *a.Retry.BackoffFactor >= 1.0 {
		cfg.BackoffFactor = *a.Retry.BackoffFactor
	}
	if a.Retry.Jitter != nil {
		jitter := *a.Retry.Jitter
		if jitter < 0.0 {
			jitter = 0.0
		} else if jitter > 1.0 {
			jitter = 1.0
		}
		cfg.Jitter = jitter
	}
	return cfg
}

// GetWait returns the parsed wait duration, or 0 when unset or invalid.
func (s *Step) GetWait() time.Duration {
	if s.Wait == "" {
		return 0
	}
	d, err := time.ParseDuration(s.Wait)
	if err != nil || d < 0 {
		return 0
	}
	return d
}
