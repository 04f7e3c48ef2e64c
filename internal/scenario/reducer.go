package scenario

import (
	"strings"

	"github.com/pelagornis/go-rex/internal/util"
	rex "github.com/pelagornis/go-rex/pkg/rex/v1"
	"github.com/pelagornis/go-rex/pkg/rex/v1/effect"
)

// Reducer returns the scenario reducer. Every transition deep-copies the
// state before mutating, so committed snapshots (and the time-travel
// history) never alias each other.
func Reducer() rex.Reducer[State] {
	return rex.ReducerFunc[State](func(state State, action rex.Action) (State, []effect.Effect) {
		switch a := action.(type) {
		case SetAction:
			next := copyState(state)
			setPath(next, a.Path, util.DeepCopy(a.Value))
			return next, nil

		case IncrementAction:
			next := copyState(state)
			current, _ := getPath(next, a.Path)
			n, ok := asInt(current)
			if !ok {
				n = 0
			}
			setPath(next, a.Path, n+a.By)
			return next, nil

		case MergeAction:
			next := copyState(state)
			for k, v := range a.Value {
				next[k] = util.DeepCopy(v)
			}
			return next, nil

		case DeleteAction:
			next := copyState(state)
			deletePath(next, a.Path)
			return next, nil

		case RunEffectAction:
			return state, []effect.Effect{a.Effect}
		}
		return state, nil
	})
}

func copyState(state State) State {
	if state == nil {
		return State{}
	}
	return util.DeepCopyStringMap(state)
}

func asInt(v interface{}) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int32:
		return int(n), true
	case int64:
		return int(n), true
	case float64:
		if n == float64(int(n)) {
			return int(n), true
		}
	}
	return 0, false
}

// splitPath splits a dotted path into segments. An empty path addresses
// nothing.
func splitPath(path string) []string {
	if path == "" {
		return nil
	}
	return strings.Split(path, ".")
}

// getPath walks the dotted path through nested string-keyed maps.
func getPath(m map[string]interface{}, path string) (interface{}, bool) {
	segs := splitPath(path)
	if len(segs) == 0 {
		return nil, false
	}
	current := m
	for i, seg := range segs {
		v, ok := current[seg]
		if !ok {
			return nil, false
		}
		if i == len(segs)-1 {
			return v, true
		}
		child, ok := v.(map[string]interface{})
		if !ok {
			return nil, false
		}
		current = child
	}
	return nil, false
}

// setPath writes value at the dotted path, creating intermediate maps and
// replacing non-map intermediates.
func setPath(m map[string]interface{}, path string, value interface{}) {
	segs := splitPath(path)
	if len(segs) == 0 {
		return
	}
	current := m
	for _, seg := range segs[:len(segs)-1] {
		child, ok := current[seg].(map[string]interface{})
		if !ok {
			child = map[string]interface{}{}
			current[seg] = child
		}
		current = child
	}
	current[segs[len(segs)-1]] = value
}

// deletePath removes the value at the dotted path, if present.
func deletePath(m map[string]interface{}, path string) {
	segs := splitPath(path)
	if len(segs) == 0 {
		return
	}
	current := m
	for _, seg := range segs[:len(segs)-1] {
		child, ok := current[seg].(map[string]interface{})
		if !ok {
			return
		}
		current = child
	}
	delete(current, segs[len(segs)-1])
}
