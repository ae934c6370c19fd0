// Package outputhook implements the post-execution hook pipeline: rule
// evaluation, priority-ordered application, and recursion protection.
// Adapted from the teacher's internal/hooks registry (priority-sorted
// registration, panic-safe dispatch) narrowed from arbitrary lifecycle
// events down to the single result-post-processing event this system
// needs.
package outputhook

import (
	"context"
	"fmt"
	"strconv"
	"strings"
)

// Priority mirrors the teacher's ordering convention: lower runs earlier.
type Priority int

const (
	PriorityHighest Priority = 0
	PriorityHigh    Priority = 25
	PriorityNormal  Priority = 50
	PriorityLow     Priority = 75
	PriorityLowest  Priority = 100
)

// Context carries the information a HookRule and Hook.Process need about
// the call being post-processed.
type Context struct {
	ToolName string
	ToolType string
	Args     map[string]any
	Extra    context.Context
}

// ConditionKind enumerates the HookRule condition kinds from spec.md §3.
type ConditionKind string

const (
	ConditionOutputLength ConditionKind = "output_length"
	ConditionContentType  ConditionKind = "content_type"
	ConditionToolType     ConditionKind = "tool_type"
	ConditionToolName     ConditionKind = "tool_name"
)

// Operator is the comparison operator for an output_length condition.
type Operator string

const (
	OpLess           Operator = "<"
	OpLessOrEqual    Operator = "<="
	OpGreater        Operator = ">"
	OpGreaterOrEqual Operator = ">="
	OpEqual          Operator = "=="
)

// Condition is one predicate clause of a HookRule.
type Condition struct {
	Kind ConditionKind

	// output_length
	Operator  Operator
	Threshold int

	// content_type: "json" | "text"
	ContentType string

	// tool_type / tool_name equality
	Equals string
}

// Rule is a conjunction of Conditions evaluated over a result. Per
// spec.md §3, a rule with no conditions always triggers.
type Rule struct {
	Conditions []Condition
}

// Matches evaluates all conditions (AND semantics) against result and ctx.
func (r Rule) Matches(result any, ctx Context) bool {
	if len(r.Conditions) == 0 {
		return true
	}
	for _, c := range r.Conditions {
		if !c.matches(result, ctx) {
			return false
		}
	}
	return true
}

func (c Condition) matches(result any, ctx Context) bool {
	switch c.Kind {
	case ConditionOutputLength:
		length := len(stringify(result))
		return compare(length, c.Operator, c.Threshold)
	case ConditionContentType:
		return contentTypeOf(result) == c.ContentType
	case ConditionToolType:
		return ctx.ToolType == c.Equals
	case ConditionToolName:
		return ctx.ToolName == c.Equals
	default:
		return false
	}
}

func compare(value int, op Operator, threshold int) bool {
	switch op {
	case OpLess:
		return value < threshold
	case OpLessOrEqual:
		return value <= threshold
	case OpGreater:
		return value > threshold
	case OpGreaterOrEqual:
		return value >= threshold
	case OpEqual:
		return value == threshold
	default:
		return false
	}
}

// contentTypeOf reports "text" for string results and "json" for anything
// else structured, matching spec.md §3's content_type condition.
func contentTypeOf(result any) string {
	if _, ok := result.(string); ok {
		return "text"
	}
	return "json"
}

func stringify(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case fmt.Stringer:
		return val.String()
	case nil:
		return ""
	default:
		return fmt.Sprintf("%v", val)
	}
}

// ParseOperator converts an operator token (as it would appear in a YAML
// config file) into an Operator, rejecting anything outside the accepted
// set so a typo'd rule fails at load time instead of silently misfiring.
func ParseOperator(s string) (Operator, error) {
	switch Operator(s) {
	case OpLess, OpLessOrEqual, OpGreater, OpGreaterOrEqual, OpEqual:
		return Operator(s), nil
	default:
		return "", fmt.Errorf("unknown output_length operator %q", s)
	}
}

// ParseThreshold is a small helper for config loaders that decode
// thresholds as strings.
func ParseThreshold(s string) (int, error) {
	return strconv.Atoi(strings.TrimSpace(s))
}
