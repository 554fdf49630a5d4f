package engine

import (
	"fmt"
	"regexp"
	"sync"

	"github.com/aethra/hera/internal/models"
)

// Predicate is a named custom validation rule. It reports whether the value
// passes and, when it does not, a human-readable failure message.
type Predicate func(value interface{}) (ok bool, msg string)

// ValidationResult is the outcome of evaluating declared validation rules.
// Rule failure is a normal outcome, not an error: a record may be persisted
// with an invalid status and enforced later by the caller's workflow.
type ValidationResult struct {
	Status   string   `json:"status"`
	Messages []string `json:"messages,omitempty"`
}

// Validator evaluates declared validation_rules documents against resolved
// field values. Custom named predicates are registered up front; a rule
// referencing an unregistered predicate leaves the record pending rather
// than failing it.
type Validator struct {
	mu      sync.RWMutex
	custom  map[string]Predicate
	regexes sync.Map // pattern -> *regexp.Regexp
}

// NewValidator creates a validator with no custom predicates registered.
func NewValidator() *Validator {
	return &Validator{custom: make(map[string]Predicate)}
}

// Register adds a named custom predicate.
func (v *Validator) Register(name string, p Predicate) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.custom[name] = p
}

// Validate evaluates every declared rule against the resolved value and
// aggregates all failures. The context map carries sibling field values for
// required_if conditions; it may be nil.
func (v *Validator) Validate(value interface{}, rules map[string]interface{}, context map[string]interface{}) ValidationResult {
	if len(rules) == 0 {
		return ValidationResult{Status: models.ValidationStatusValid}
	}

	var messages []string
	pending := false

	if min, ok := ruleNumber(rules, "min_length"); ok {
		if s, isStr := value.(string); isStr && len(s) < int(min) {
			messages = append(messages, fmt.Sprintf("value must be at least %d characters", int(min)))
		}
	}
	if max, ok := ruleNumber(rules, "max_length"); ok {
		if s, isStr := value.(string); isStr && len(s) > int(max) {
			messages = append(messages, fmt.Sprintf("value must be at most %d characters", int(max)))
		}
	}
	if min, ok := ruleNumber(rules, "min_value"); ok {
		if n, isNum := numeric(value); isNum && n < min {
			messages = append(messages, fmt.Sprintf("value must be at least %v", min))
		}
	}
	if max, ok := ruleNumber(rules, "max_value"); ok {
		if n, isNum := numeric(value); isNum && n > max {
			messages = append(messages, fmt.Sprintf("value must be at most %v", max))
		}
	}

	if pattern, ok := rules["pattern"].(string); ok && pattern != "" {
		re, err := v.compile(pattern)
		if err != nil {
			messages = append(messages, fmt.Sprintf("invalid pattern %q", pattern))
		} else if s, isStr := value.(string); isStr && !re.MatchString(s) {
			messages = append(messages, fmt.Sprintf("value does not match pattern %q", pattern))
		}
	}

	if allowed := ruleValues(rules, "allowed_values"); len(allowed) > 0 {
		found := false
		for _, a := range allowed {
			if fmt.Sprintf("%v", a) == fmt.Sprintf("%v", value) {
				found = true
				break
			}
		}
		if !found {
			messages = append(messages, fmt.Sprintf("value %v is not among the allowed values", value))
		}
	}

	if cond, ok := rules["required_if"].(map[string]interface{}); ok {
		for field, expected := range cond {
			actual, present := context[field]
			if present && fmt.Sprintf("%v", actual) == fmt.Sprintf("%v", expected) && isEmpty(value) {
				messages = append(messages, fmt.Sprintf("value is required when %s is %v", field, expected))
			}
		}
	}

	for _, name := range ruleNames(rules, "custom") {
		v.mu.RLock()
		p, registered := v.custom[name]
		v.mu.RUnlock()
		if !registered {
			pending = true
			continue
		}
		if ok, msg := p(value); !ok {
			if msg == "" {
				msg = fmt.Sprintf("custom rule %q failed", name)
			}
			messages = append(messages, msg)
		}
	}

	switch {
	case len(messages) > 0:
		return ValidationResult{Status: models.ValidationStatusInvalid, Messages: messages}
	case pending:
		return ValidationResult{Status: models.ValidationStatusPending}
	default:
		return ValidationResult{Status: models.ValidationStatusValid}
	}
}

func (v *Validator) compile(pattern string) (*regexp.Regexp, error) {
	if cached, ok := v.regexes.Load(pattern); ok {
		return cached.(*regexp.Regexp), nil
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, err
	}
	v.regexes.Store(pattern, re)
	return re, nil
}

func ruleNumber(rules map[string]interface{}, key string) (float64, bool) {
	raw, ok := rules[key]
	if !ok {
		return 0, false
	}
	return numeric(raw)
}

// ruleValues normalizes a rule list that may arrive as []interface{} (from
// a decoded JSON document) or []string (from an in-process caller).
func ruleValues(rules map[string]interface{}, key string) []interface{} {
	switch v := rules[key].(type) {
	case []interface{}:
		return v
	case []string:
		out := make([]interface{}, len(v))
		for i, s := range v {
			out[i] = s
		}
		return out
	default:
		return nil
	}
}

func ruleNames(rules map[string]interface{}, key string) []string {
	switch v := rules[key].(type) {
	case string:
		return []string{v}
	case []interface{}:
		var names []string
		for _, item := range v {
			if s, ok := item.(string); ok {
				names = append(names, s)
			}
		}
		return names
	case []string:
		return v
	default:
		return nil
	}
}

func numeric(value interface{}) (float64, bool) {
	switch n := value.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case int32:
		return float64(n), true
	default:
		return 0, false
	}
}

func isEmpty(value interface{}) bool {
	if value == nil {
		return true
	}
	if s, ok := value.(string); ok {
		return s == ""
	}
	return false
}
