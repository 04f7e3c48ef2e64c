package config

import (
	"fmt"
	"regexp"
	"time"

	rex "github.com/pelagornis/go-rex/pkg/rex/v1"
	rexerrors "github.com/pelagornis/go-rex/pkg/rex/v1/errors"
)

// Pre-compiled regex for validating step names.
var stepNameRegex = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

// ValidateScenarioStructure performs logical validation of a parsed
// Scenario: cross-field consistency and rules that cannot be fully
// expressed in JSON Schema alone. It returns every validation error found.
func ValidateScenarioStructure(s *Scenario) []error {
	var errs []error

	if len(s.Steps) == 0 {
		errs = append(errs, rexerrors.NewValidationError("scenario must contain at least one step in 'steps' list", nil))
	}

	if _, err := rex.ParseEffectStrategy(s.EffectStrategy); err != nil {
		errs = append(errs, err)
	}

	stepNames := make(map[string]bool)
	for i := range s.Steps {
		step := &s.Steps[i]
		stepDisplayName := fmt.Sprintf("step %d", i)
		if step.Name != "" {
			stepDisplayName = fmt.Sprintf("step %d ('%s')", i, step.Name)
		}

		if step.Name != "" {
			if !stepNameRegex.MatchString(step.Name) {
				errs = append(errs, rexerrors.NewValidationError(fmt.Sprintf("%s: name contains invalid characters (allowed: alphanumeric, underscore, hyphen)", stepDisplayName), nil))
			}
			if stepNames[step.Name] {
				errs = append(errs, rexerrors.NewValidationError(fmt.Sprintf("%s: duplicate step name '%s'", stepDisplayName, step.Name), nil))
			}
			stepNames[step.Name] = true
		}

		kinds := countStepKinds(step)
		if kinds == 0 {
			errs = append(errs, rexerrors.NewValidationError(fmt.Sprintf("%s: must set exactly one of 'action', 'navigate', 'jump_to', or 'wait'", stepDisplayName), nil))
			continue
		}
		if kinds > 1 {
			errs = append(errs, rexerrors.NewValidationError(fmt.Sprintf("%s: 'action', 'navigate', 'jump_to', and 'wait' are mutually exclusive", stepDisplayName), nil))
			continue
		}

		switch step.Kind() {
		case StepKindAction:
			errs = append(errs, validateAction(step.Action, stepDisplayName)...)
		case StepKindNavigate:
			if step.Navigate != NavigateUndo && step.Navigate != NavigateRedo {
				errs = append(errs, rexerrors.NewValidationError(fmt.Sprintf("%s: navigate must be '%s' or '%s', got '%s'", stepDisplayName, NavigateUndo, NavigateRedo, step.Navigate), nil))
			}
			if !s.TimeTravel {
				errs = append(errs, rexerrors.NewValidationError(fmt.Sprintf("%s: navigate steps require 'timeTravel: true'", stepDisplayName), nil))
			}
		case StepKindJump:
			if *step.JumpTo < 0 {
				errs = append(errs, rexerrors.NewValidationError(fmt.Sprintf("%s: jump_to cannot be negative", stepDisplayName), nil))
			}
			if !s.TimeTravel {
				errs = append(errs, rexerrors.NewValidationError(fmt.Sprintf("%s: jump_to steps require 'timeTravel: true'", stepDisplayName), nil))
			}
		case StepKindWait:
			if d, err := time.ParseDuration(step.Wait); err != nil || d < 0 {
				errs = append(errs, rexerrors.NewValidationError(fmt.Sprintf("%s: wait is not a valid non-negative duration: '%s'", stepDisplayName, step.Wait), nil))
			}
		}
	}

	return errs
}

func countStepKinds(s *Step) int {
	kinds := 0
	if s.Action != nil {
		kinds++
	}
	if s.Navigate != "" {
		kinds++
	}
	if s.JumpTo != nil {
		kinds++
	}
	if s.Wait != "" {
		kinds++
	}
	return kinds
}

func validateAction(a *ActionConfig, stepDisplayName string) []error {
	var errs []error

	switch a.Type {
	case ActionSet, ActionIncrement, ActionMerge, ActionDelete:
	default:
		errs = append(errs, rexerrors.NewValidationError(fmt.Sprintf("%s: unknown action type '%s'", stepDisplayName, a.Type), nil))
		return errs
	}

	// Per-type parameter requirements. The scenario reducer re-checks on
	// dispatch; catching them here fails the file at load time instead.
	switch a.Type {
	case ActionSet:
		if _, ok := a.Params["path"]; !ok {
			errs = append(errs, rexerrors.NewValidationError(fmt.Sprintf("%s: set action requires a 'path' parameter", stepDisplayName), nil))
		}
		if _, ok := a.Params["value"]; !ok {
			errs = append(errs, rexerrors.NewValidationError(fmt.Sprintf("%s: set action requires a 'value' parameter", stepDisplayName), nil))
		}
	case ActionIncrement, ActionDelete:
		if _, ok := a.Params["path"]; !ok {
			errs = append(errs, rexerrors.NewValidationError(fmt.Sprintf("%s: %s action requires a 'path' parameter", stepDisplayName, a.Type), nil))
		}
	case ActionMerge:
		if _, ok := a.Params["value"]; !ok {
			errs = append(errs, rexerrors.NewValidationError(fmt.Sprintf("%s: merge action requires a 'value' parameter", stepDisplayName), nil))
		}
	}

	if a.Delay != "" {
		if d, err := time.ParseDuration(a.Delay); err != nil || d < 0 {
			errs = append(errs, rexerrors.NewValidationError(fmt.Sprintf("%s: delay is not a valid non-negative duration: '%s'", stepDisplayName, a.Delay), nil))
		}
	}
	if a.Retry != nil {
		if a.Retry.Attempts < 1 {
			errs = append(errs, rexerrors.NewValidationError(fmt.Sprintf("%s: retry attempts must be at least 1", stepDisplayName), nil))
		}
		if a.Retry.Delay != "" {
			if d, err := time.ParseDuration(a.Retry.Delay); err != nil || d < 0 {
				errs = append(errs, rexerrors.NewValidationError(fmt.Sprintf("%s: retry delay is not a valid non-negative duration: '%s'", stepDisplayName, a.Retry.Delay), nil))
			}
		}
	}
	return errs
}
