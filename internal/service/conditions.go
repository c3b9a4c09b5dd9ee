package service

import (
	"fmt"
	"sync"

	"aquafarm"
)

// ConditionFunc is a pure predicate over (value, min, max). Min/max come
// from the owning job and may be nil when the condition does not need them.
type ConditionFunc func(value float64, min, max *float64) bool

var (
	condMu    sync.RWMutex
	condTable = map[aquafarm.TriggerCondition]ConditionFunc{
		aquafarm.CondAlways: func(_ float64, _, _ *float64) bool { return true },
		aquafarm.CondAboveMax: func(v float64, _, max *float64) bool {
			return max != nil && v > *max
		},
		aquafarm.CondBelowMin: func(v float64, min, _ *float64) bool {
			return min != nil && v < *min
		},
		aquafarm.CondWithinRange: func(v float64, min, max *float64) bool {
			return min != nil && max != nil && *min <= v && v <= *max
		},
	}
)

// RegisterCondition adds or replaces a trigger condition. New condition kinds
// plug in here without touching the evaluator's control flow.
func RegisterCondition(name aquafarm.TriggerCondition, fn ConditionFunc) error {
	if name == "" || fn == nil {
		return fmt.Errorf("register condition: empty name or nil func")
	}
	condMu.Lock()
	defer condMu.Unlock()
	condTable[name] = fn
	return nil
}

// lookupCondition returns the predicate for a condition tag, or false when
// the tag is unknown.
func lookupCondition(name aquafarm.TriggerCondition) (ConditionFunc, bool) {
	condMu.RLock()
	defer condMu.RUnlock()
	fn, ok := condTable[name]
	return fn, ok
}
