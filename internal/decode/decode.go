// Package decode turns agent output into validated records.
//
// Agent output is supposed to be a JSON document matching a named schema but
// often arrives wrapped in code fences, behind a "Label:" prefix or inside
// prose. Into tries a fixed list of rules in order and stops at the first one
// that yields a parseable document.
package decode

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"offer-crew/internal/common/validation"
	"offer-crew/internal/models"
)

// Rule names one decoding step.
type Rule string

const (
	RuleTyped      Rule = "typed"
	RuleStructured Rule = "structured"
	RuleDirect     Rule = "direct"
	RuleStripFence Rule = "strip-fence"
	RuleStripLabel Rule = "strip-label"
	RuleEmbedded   Rule = "embedded"
)

// Error reports a document that no rule could turn into the target schema.
type Error struct {
	Schema string
	Rules  []Rule
	Err    error
}

func (e *Error) Error() string {
	names := make([]string, 0, len(e.Rules))
	for _, r := range e.Rules {
		names = append(names, string(r))
	}
	return fmt.Sprintf("could not parse output into %s (rules: %s): %v", e.Schema, strings.Join(names, ", "), e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

type validator interface {
	Validate() error
}

var (
	labelRegex = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_ \-]*:\s*`)
	langRegex  = regexp.MustCompile(`^[A-Za-z0-9_+\-]*$`)
)

// Option adjusts how Into treats a parsed document.
type Option func(*options)

type options struct {
	set map[string]interface{}
}

// WithField sets a top-level key on the parsed document before it is
// validated, replacing whatever the agent wrote there.
func WithField(key string, value interface{}) Option {
	return func(o *options) {
		if o.set == nil {
			o.set = map[string]interface{}{}
		}
		o.set[key] = value
	}
}

// Into decodes raw into a *T checked against the named schema.
func Into[T any](raw any, schema string, opts ...Option) (*T, Rule, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	switch v := raw.(type) {
	case nil:
		return nil, "", &Error{Schema: schema, Err: errors.New("empty output")}
	case *T:
		if v == nil {
			return nil, "", &Error{Schema: schema, Rules: []Rule{RuleTyped}, Err: errors.New("nil record")}
		}
		if len(o.set) > 0 {
			return reencode[T](v, schema, RuleTyped, o)
		}
		if err := check(v); err != nil {
			return nil, RuleTyped, &Error{Schema: schema, Rules: []Rule{RuleTyped}, Err: err}
		}
		return v, RuleTyped, nil
	case T:
		out := v
		if len(o.set) > 0 {
			return reencode[T](&out, schema, RuleTyped, o)
		}
		if err := check(&out); err != nil {
			return nil, RuleTyped, &Error{Schema: schema, Rules: []Rule{RuleTyped}, Err: err}
		}
		return &out, RuleTyped, nil
	case map[string]interface{}, []interface{}:
		return reencode[T](v, schema, RuleStructured, o)
	case []byte:
		return fromText[T](string(v), schema, nil, o)
	case string:
		return fromText[T](v, schema, nil, o)
	case fmt.Stringer:
		return fromText[T](v.String(), schema, nil, o)
	default:
		return nil, "", &Error{Schema: schema, Err: fmt.Errorf("unsupported output type %T", raw)}
	}
}

// reencode marshals an already structured value and decodes it as text,
// reporting rule as the one that matched.
func reencode[T any](v interface{}, schema string, rule Rule, o options) (*T, Rule, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, rule, &Error{Schema: schema, Rules: []Rule{rule}, Err: err}
	}
	out, _, err := fromText[T](string(data), schema, []Rule{rule}, o)
	if err != nil {
		return nil, rule, err
	}
	return out, rule, nil
}

type candidate struct {
	rule Rule
	text string
}

func candidates(text string) []candidate {
	trimmed := strings.TrimSpace(text)
	out := []candidate{{RuleDirect, trimmed}}

	unfenced := trimmed
	if s, ok := stripFence(trimmed); ok {
		unfenced = s
		out = append(out, candidate{RuleStripFence, s})
	}
	if s, ok := stripLabel(unfenced); ok {
		out = append(out, candidate{RuleStripLabel, s})
	}
	if s := extractJSON(trimmed); s != "" {
		out = append(out, candidate{RuleEmbedded, s})
	}
	return out
}

func fromText[T any](text string, schema string, tried []Rule, o options) (*T, Rule, error) {
	var lastErr error = errors.New("empty output")
	for _, c := range candidates(text) {
		tried = append(tried, c.rule)
		if c.text == "" {
			continue
		}

		var doc interface{}
		if err := json.Unmarshal([]byte(c.text), &doc); err != nil {
			lastErr = err
			continue
		}

		body := c.text
		if obj, ok := doc.(map[string]interface{}); ok && len(o.set) > 0 {
			for k, v := range o.set {
				obj[k] = v
			}
			data, err := json.Marshal(obj)
			if err != nil {
				lastErr = err
				continue
			}
			body = string(data)
		}

		out, err := validate[T](body, doc, schema)
		if err != nil {
			return nil, c.rule, &Error{Schema: schema, Rules: tried, Err: err}
		}
		return out, c.rule, nil
	}
	return nil, "", &Error{Schema: schema, Rules: tried, Err: lastErr}
}

func validate[T any](text string, doc interface{}, schema string) (*T, error) {
	if schema != "" {
		document, err := models.Schema(schema)
		if err != nil {
			return nil, err
		}
		result, err := validation.ValidateDocument(document, doc)
		if err != nil {
			return nil, err
		}
		if !result.Valid {
			return nil, fmt.Errorf("schema validation failed: %s", result.Summary())
		}
	}

	var out T
	if err := json.Unmarshal([]byte(text), &out); err != nil {
		return nil, err
	}
	if err := check(&out); err != nil {
		return nil, err
	}
	return &out, nil
}

func check(v interface{}) error {
	if vv, ok := v.(validator); ok {
		return vv.Validate()
	}
	return nil
}

// stripFence removes a surrounding ``` fence and an optional language tag line.
func stripFence(s string) (string, bool) {
	if !strings.HasPrefix(s, "```") || !strings.HasSuffix(s, "```") || len(s) < 6 {
		return "", false
	}
	inner := s[3 : len(s)-3]
	if nl := strings.IndexByte(inner, '\n'); nl >= 0 {
		first := strings.TrimSpace(inner[:nl])
		if langRegex.MatchString(first) {
			inner = inner[nl+1:]
		}
	}
	return strings.TrimSpace(inner), true
}

// stripLabel removes a leading "Label:" when what follows looks like JSON.
func stripLabel(s string) (string, bool) {
	loc := labelRegex.FindStringIndex(s)
	if loc == nil {
		return "", false
	}
	rest := strings.TrimSpace(s[loc[1]:])
	if !strings.HasPrefix(rest, "{") && !strings.HasPrefix(rest, "[") {
		return "", false
	}
	return rest, true
}

// extractJSON returns the first balanced span of s that starts at a '{' and
// parses as JSON. Spans that balance but do not parse, like "{brand}", are
// skipped and the scan resumes at the next '{'.
func extractJSON(s string) string {
	for start := strings.IndexByte(s, '{'); start != -1; {
		if end := balancedEnd(s, start); end != -1 && json.Valid([]byte(s[start:end])) {
			return s[start:end]
		}
		next := strings.IndexByte(s[start+1:], '{')
		if next == -1 {
			break
		}
		start += next + 1
	}
	return ""
}

// balancedEnd returns the index just past the brace that closes the one at
// start, or -1 when it is never closed.
func balancedEnd(s string, start int) int {
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		c := s[i]
		if escaped {
			escaped = false
			continue
		}
		if c == '\\' && inString {
			escaped = true
			continue
		}
		if c == '"' {
			inString = !inString
			continue
		}
		if inString {
			continue
		}
		switch c {
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return i + 1
			}
		}
	}
	return -1
}
