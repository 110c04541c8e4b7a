package formengine

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
)

// Operator is a comparison supported in conditional logic
type Operator string

const (
	OpEquals      Operator = "equals"
	OpNotEquals   Operator = "notEquals"
	OpIn          Operator = "in"
	OpGreaterThan Operator = "greaterThan"
	OpLessThan    Operator = "lessThan"
	OpIsEmpty     Operator = "isEmpty"
)

var operatorAliases = map[string]Operator{
	"equals":       OpEquals,
	"eq":           OpEquals,
	"==":           OpEquals,
	"notequals":    OpNotEquals,
	"not_equals":   OpNotEquals,
	"neq":          OpNotEquals,
	"!=":           OpNotEquals,
	"in":           OpIn,
	"greaterthan":  OpGreaterThan,
	"greater_than": OpGreaterThan,
	"gt":           OpGreaterThan,
	">":            OpGreaterThan,
	"lessthan":     OpLessThan,
	"less_than":    OpLessThan,
	"lt":           OpLessThan,
	"<":            OpLessThan,
	"isempty":      OpIsEmpty,
	"is_empty":     OpIsEmpty,
	"empty":        OpIsEmpty,
}

// ErrInvalidCondition is returned for conditional logic that cannot be parsed
var ErrInvalidCondition = errors.New("invalid conditional logic")

// Lookup resolves a field name to its current response value.
// known is false when the template has no field with that name.
type Lookup interface {
	Lookup(name string) (value string, known bool)
}

// Condition is a node of a parsed conditional-logic tree
type Condition interface {
	Eval(l Lookup) bool
	fields(into map[string]struct{})
}

// Comparison compares one field's current value against a literal
type Comparison struct {
	Field string
	Op    Operator
	Value any
}

// And is true when every child is true
type And struct {
	Children []Condition
}

// Or is true when at least one child is true
type Or struct {
	Children []Condition
}

// ParseCondition parses stored conditional logic. Blank input, "null" and "{}" mean no condition.
//
// Accepted shapes:
//
//	{"field": "hasDependents", "equals": true}
//	{"field": "age", "operator": "greaterThan", "value": 18}
//	{"and": [...]} / {"all": [...]}
//	{"or": [...]}  / {"any": [...]}
//
// A top-level array is treated as an implicit "and".
func ParseCondition(raw string) (Condition, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" || raw == "null" || raw == "{}" {
		return nil, nil
	}

	var node any
	if err := json.Unmarshal([]byte(raw), &node); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCondition, err)
	}
	return parseNode(node)
}

func parseNode(node any) (Condition, error) {
	switch n := node.(type) {
	case []any:
		children, err := parseChildren(n)
		if err != nil {
			return nil, err
		}
		return And{Children: children}, nil
	case map[string]any:
		return parseObject(n)
	default:
		return nil, fmt.Errorf("%w: expected object, got %T", ErrInvalidCondition, node)
	}
}

func parseObject(n map[string]any) (Condition, error) {
	for _, key := range []string{"and", "all"} {
		if v, ok := n[key]; ok {
			children, err := parseGroup(key, v)
			if err != nil {
				return nil, err
			}
			return And{Children: children}, nil
		}
	}
	for _, key := range []string{"or", "any"} {
		if v, ok := n[key]; ok {
			children, err := parseGroup(key, v)
			if err != nil {
				return nil, err
			}
			return Or{Children: children}, nil
		}
	}

	field, _ := n["field"].(string)
	field = strings.TrimSpace(field)
	if field == "" {
		return nil, fmt.Errorf("%w: comparison needs a field name", ErrInvalidCondition)
	}

	var (
		op    Operator
		value any
		found bool
	)

	if rawOp, ok := n["operator"]; ok {
		op, found = lookupOperator(rawOp)
		value = n["value"]
	} else if rawOp, ok := n["op"]; ok {
		op, found = lookupOperator(rawOp)
		value = n["value"]
	} else {
		keys := make([]string, 0, len(n))
		for k := range n {
			if k != "field" {
				keys = append(keys, k)
			}
		}
		sort.Strings(keys)
		for _, k := range keys {
			if candidate, ok := operatorAliases[strings.ToLower(k)]; ok {
				if found {
					return nil, fmt.Errorf("%w: more than one operator for field %q", ErrInvalidCondition, field)
				}
				op, value, found = candidate, n[k], true
			}
		}
	}

	if !found {
		return nil, fmt.Errorf("%w: missing or unknown operator for field %q", ErrInvalidCondition, field)
	}

	switch op {
	case OpIn:
		list, ok := value.([]any)
		if !ok {
			list = []any{value}
		}
		value = list
	case OpIsEmpty:
		if value == nil {
			value = true
		}
		if _, ok := value.(bool); !ok {
			return nil, fmt.Errorf("%w: isEmpty takes a boolean", ErrInvalidCondition)
		}
	case OpGreaterThan, OpLessThan:
		if _, ok := value.([]any); ok {
			return nil, fmt.Errorf("%w: %s takes a single value", ErrInvalidCondition, op)
		}
	}

	return Comparison{Field: field, Op: op, Value: value}, nil
}

func parseGroup(key string, v any) ([]Condition, error) {
	list, ok := v.([]any)
	if !ok {
		return nil, fmt.Errorf("%w: %q must be a list", ErrInvalidCondition, key)
	}
	if len(list) == 0 {
		return nil, fmt.Errorf("%w: %q must not be empty", ErrInvalidCondition, key)
	}
	return parseChildren(list)
}

func parseChildren(list []any) ([]Condition, error) {
	children := make([]Condition, 0, len(list))
	for _, item := range list {
		child, err := parseNode(item)
		if err != nil {
			return nil, err
		}
		children = append(children, child)
	}
	return children, nil
}

func lookupOperator(raw any) (Operator, bool) {
	s, ok := raw.(string)
	if !ok {
		return "", false
	}
	op, ok := operatorAliases[strings.ToLower(strings.TrimSpace(s))]
	return op, ok
}

// ReferencedFields lists the field names a condition reads, sorted
func ReferencedFields(c Condition) []string {
	if c == nil {
		return nil
	}
	set := map[string]struct{}{}
	c.fields(set)
	names := make([]string, 0, len(set))
	for name := range set {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Evaluate returns true for a nil condition
func Evaluate(c Condition, l Lookup) bool {
	if c == nil {
		return true
	}
	return c.Eval(l)
}

func (a And) Eval(l Lookup) bool {
	for _, c := range a.Children {
		if !c.Eval(l) {
			return false
		}
	}
	return true
}

func (a And) fields(into map[string]struct{}) {
	for _, c := range a.Children {
		c.fields(into)
	}
}

func (o Or) Eval(l Lookup) bool {
	for _, c := range o.Children {
		if c.Eval(l) {
			return true
		}
	}
	return false
}

func (o Or) fields(into map[string]struct{}) {
	for _, c := range o.Children {
		c.fields(into)
	}
}

func (c Comparison) fields(into map[string]struct{}) {
	into[c.Field] = struct{}{}
}

// Eval is fail-closed: unknown fields are false, and empty values are false for every operator except isEmpty.
func (c Comparison) Eval(l Lookup) bool {
	raw, known := l.Lookup(c.Field)
	if !known {
		return false
	}

	values := splitStored(raw)
	empty := len(values) == 0

	if c.Op == OpIsEmpty {
		want, _ := c.Value.(bool)
		return empty == want
	}
	if empty {
		return false
	}

	switch c.Op {
	case OpEquals:
		return anyMatch(values, []any{c.Value})
	case OpNotEquals:
		return !anyMatch(values, []any{c.Value})
	case OpIn:
		list, _ := c.Value.([]any)
		return anyMatch(values, list)
	case OpGreaterThan:
		cmp, ok := compareOrdered(values[0], c.Value)
		return ok && cmp > 0
	case OpLessThan:
		cmp, ok := compareOrdered(values[0], c.Value)
		return ok && cmp < 0
	}
	return false
}

// StoredValues splits a stored value into its items. Multiselect values are JSON arrays.
func StoredValues(raw string) []string {
	return splitStored(raw)
}

// splitStored expands a multiselect JSON array into its elements. Blank values yield nothing.
func splitStored(raw string) []string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	if strings.HasPrefix(raw, "[") {
		var items []any
		if err := json.Unmarshal([]byte(raw), &items); err == nil {
			out := make([]string, 0, len(items))
			for _, item := range items {
				if s := strings.TrimSpace(stringify(item)); s != "" {
					out = append(out, s)
				}
			}
			return out
		}
	}
	return []string{raw}
}

func anyMatch(values []string, literals []any) bool {
	for _, v := range values {
		for _, lit := range literals {
			if matches(v, lit) {
				return true
			}
		}
	}
	return false
}

func matches(stored string, lit any) bool {
	switch l := lit.(type) {
	case nil:
		return false
	case bool:
		b, ok := parseBool(stored)
		return ok && b == l
	case float64:
		f, ok := toFloat(stored)
		return ok && f == l
	case string:
		if stored == l {
			return true
		}
		if a, ok := toFloat(stored); ok {
			if b, ok := toFloat(l); ok {
				return a == b
			}
		}
		if a, ok := parseBool(stored); ok {
			if b, ok := parseBool(l); ok {
				return a == b
			}
		}
		return strings.EqualFold(stored, l)
	default:
		return stored == stringify(lit)
	}
}

// compareOrdered compares numerically when both sides are numbers, otherwise as dates
func compareOrdered(stored string, lit any) (int, bool) {
	if a, ok := toFloat(stored); ok {
		if b, ok := toFloat(lit); ok {
			switch {
			case a < b:
				return -1, true
			case a > b:
				return 1, true
			}
			return 0, true
		}
	}
	if a, ok := parseDate(stored); ok {
		if b, ok := parseDate(lit); ok {
			return a.Compare(b), true
		}
	}
	return 0, false
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		return f, err == nil
	}
	return 0, false
}

func parseBool(s string) (bool, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "true", "yes", "1", "on":
		return true, true
	case "false", "no", "0", "off":
		return false, true
	}
	return false, false
}

var dateLayouts = []string{
	"2006-01-02",
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
}

func parseDate(v any) (time.Time, bool) {
	s, ok := v.(string)
	if !ok {
		return time.Time{}, false
	}
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

func stringify(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case bool:
		return strconv.FormatBool(x)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	default:
		b, err := json.Marshal(x)
		if err != nil {
			return fmt.Sprint(x)
		}
		return string(b)
	}
}
