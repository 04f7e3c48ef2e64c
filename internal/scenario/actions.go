// Package scenario implements the demo runtime behind the rex CLI: a
// reducer over a generic map state, scripted actions, a middleware
// registry, and a runner that drives a store from a loaded scenario file.
package scenario

import (
	"fmt"

	"github.com/pelagornis/go-rex/internal/config"
	"github.com/pelagornis/go-rex/internal/paramutil"
	rex "github.com/pelagornis/go-rex/pkg/rex/v1"
	"github.com/pelagornis/go-rex/pkg/rex/v1/effect"
	rexerrors "github.com/pelagornis/go-rex/pkg/rex/v1/errors"
)

// State is the scenario store's state shape: a string-keyed tree of
// YAML-compatible values.
type State = map[string]interface{}

// SetAction writes Value at the dotted Path, creating intermediate maps.
type SetAction struct {
	Path  string
	Value interface{}
}

// IncrementAction adds By to the integer at Path. A missing or non-numeric
// value counts as zero.
type IncrementAction struct {
	Path string
	By   int
}

// MergeAction shallow-merges Value into the state's top level.
type MergeAction struct {
	Value map[string]interface{}
}

// DeleteAction removes the value at the dotted Path. Deleting a missing
// path is a no-op.
type DeleteAction struct {
	Path string
}

// RunEffectAction asks the reducer to schedule the carried effect without
// changing state. The runner uses it to route delayed, retried, and keyed
// dispatches through the store's effect queue.
type RunEffectAction struct {
	Effect effect.Effect
}

// ActionFromConfig converts a validated scenario action block into the
// corresponding action value, extracting and type-checking its params.
func ActionFromConfig(ac *config.ActionConfig) (rex.Action, error) {
	switch ac.Type {
	case config.ActionSet:
		path, err := paramutil.GetRequiredString(ac.Params, "path")
		if err != nil {
			return nil, err
		}
		value, err := paramutil.GetRequiredValue(ac.Params, "value")
		if err != nil {
			return nil, err
		}
		return SetAction{Path: path, Value: value}, nil

	case config.ActionIncrement:
		path, err := paramutil.GetRequiredString(ac.Params, "path")
		if err != nil {
			return nil, err
		}
		by, found, err := paramutil.GetOptionalInt(ac.Params, "by")
		if err != nil {
			return nil, err
		}
		if !found {
			by = 1
		}
		return IncrementAction{Path: path, By: by}, nil

	case config.ActionMerge:
		value, found, err := paramutil.GetOptionalMap(ac.Params, "value")
		if err != nil {
			return nil, err
		}
		if !found {
			return nil, rexerrors.NewValidationError("missing required parameter 'value'", nil)
		}
		return MergeAction{Value: value}, nil

	case config.ActionDelete:
		path, err := paramutil.GetRequiredString(ac.Params, "path")
		if err != nil {
			return nil, err
		}
		return DeleteAction{Path: path}, nil
	}
	return nil, rexerrors.NewValidationError(fmt.Sprintf("unknown action type '%s'", ac.Type), nil)
}
