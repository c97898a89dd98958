// Package validation is a small declarative rule engine for nested, typed
// structures. A Schema is a list of fields, nested objects and repeated
// elements; every rule may read the whole subject, so conditional
// required-ness and cross-field checks are expressed as predicates.
package validation

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

const (
	CodeRequired = "REQUIRED_FIELD_MISSING"
	CodePattern  = "PATTERN_MISMATCH"
	CodeRange    = "OUT_OF_RANGE"
	CodeEnum     = "INVALID_ENUM_VALUE"
	CodeInvalid  = "INVALID_VALUE"
)

type ValidationResult struct {
	Valid  bool              `json:"valid"`
	Errors []ValidationError `json:"errors,omitempty"`
}

type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

func (vr *ValidationResult) add(err ValidationError) {
	vr.Errors = append(vr.Errors, err)
	vr.Valid = false
}

// GetErrorMessages returns a simple list of error messages
func (vr *ValidationResult) GetErrorMessages() []string {
	messages := make([]string, len(vr.Errors))
	for i, err := range vr.Errors {
		messages[i] = fmt.Sprintf("%s: %s", err.Field, err.Message)
	}
	return messages
}

// HasErrors checks if validation has errors for specific field
func (vr *ValidationResult) HasErrors(field string) bool {
	for _, err := range vr.Errors {
		if err.Field == field {
			return true
		}
	}
	return false
}

// GetErrorsForField returns errors for a field and everything nested under it.
func (vr *ValidationResult) GetErrorsForField(field string) []ValidationError {
	var fieldErrors []ValidationError
	for _, err := range vr.Errors {
		if err.Field == field || strings.HasPrefix(err.Field, field+".") || strings.HasPrefix(err.Field, field+"[") {
			fieldErrors = append(fieldErrors, err)
		}
	}
	return fieldErrors
}

// First returns the first error in declaration order, which is the field a
// form should scroll to.
func (vr *ValidationResult) First() (ValidationError, bool) {
	if len(vr.Errors) == 0 {
		return ValidationError{}, false
	}
	return vr.Errors[0], true
}

type ruleKind int

const (
	kindGuard ruleKind = iota
	kindRequired
	kindCheck
)

// Rule is one constraint on a string field of subject T.
type Rule[T any] struct {
	kind    ruleKind
	when    func(T) bool
	code    string
	message string
	test    func(value string, subject T) bool
}

// OnlyWhen skips the field entirely, format checks included, unless pred holds.
func OnlyWhen[T any](pred func(T) bool) Rule[T] {
	return Rule[T]{kind: kindGuard, when: pred}
}

// Required fails on an empty (whitespace-only) value.
func Required[T any](message string) Rule[T] {
	return Rule[T]{kind: kindRequired, code: CodeRequired, message: message}
}

// RequiredWhen fails on an empty value while pred holds; otherwise an empty
// value is accepted and the remaining checks are skipped.
func RequiredWhen[T any](pred func(T) bool, message string) Rule[T] {
	return Rule[T]{kind: kindRequired, when: pred, code: CodeRequired, message: message}
}

// Matches requires a non-empty value to match re.
func Matches[T any](re *regexp.Regexp, message string) Rule[T] {
	return Rule[T]{kind: kindCheck, code: CodePattern, message: message, test: func(v string, _ T) bool {
		return re.MatchString(v)
	}}
}

// IntBetween requires a non-empty value to parse, after comma stripping, to
// an integer in [min, max].
func IntBetween[T any](min, max int64, message string) Rule[T] {
	return Rule[T]{kind: kindCheck, code: CodeRange, message: message, test: func(v string, _ T) bool {
		n, err := strconv.ParseInt(strings.ReplaceAll(v, ",", ""), 10, 64)
		return err == nil && n >= min && n <= max
	}}
}

// OneOf requires a non-empty value to be one of values.
func OneOf[T any](message string, values ...string) Rule[T] {
	return Rule[T]{kind: kindCheck, code: CodeEnum, message: message, test: func(v string, _ T) bool {
		for _, allowed := range values {
			if v == allowed {
				return true
			}
		}
		return false
	}}
}

// Test runs an arbitrary predicate over a non-empty value and the subject.
func Test[T any](code, message string, fn func(value string, subject T) bool) Rule[T] {
	return Rule[T]{kind: kindCheck, code: code, message: message, test: fn}
}

type node[T any] interface {
	validate(prefix string, subject T, res *ValidationResult)
}

// Schema validates subjects of type T.
type Schema[T any] struct {
	nodes []node[T]
}

func NewSchema[T any]() *Schema[T] {
	return &Schema[T]{}
}

// Field declares a string field read through value.
func (s *Schema[T]) Field(name string, value func(T) string, rules ...Rule[T]) *Schema[T] {
	s.nodes = append(s.nodes, &field[T]{name: name, value: value, rules: rules})
	return s
}

// Validate runs every rule and returns the errors in declaration order.
func (s *Schema[T]) Validate(subject T) *ValidationResult {
	res := &ValidationResult{Valid: true}
	s.validate("", subject, res)
	return res
}

// ValidateField returns only the errors at or below path.
func (s *Schema[T]) ValidateField(subject T, path string) []ValidationError {
	return s.Validate(subject).GetErrorsForField(path)
}

func (s *Schema[T]) validate(prefix string, subject T, res *ValidationResult) {
	for _, n := range s.nodes {
		n.validate(prefix, subject, res)
	}
}

type field[T any] struct {
	name  string
	value func(T) string
	rules []Rule[T]
}

func (f *field[T]) validate(prefix string, subject T, res *ValidationResult) {
	path := join(prefix, f.name)
	v := strings.TrimSpace(f.value(subject))

	for _, r := range f.rules {
		if r.kind == kindGuard && !r.when(subject) {
			return
		}
	}
	for _, r := range f.rules {
		if r.kind != kindRequired || v != "" {
			continue
		}
		if r.when == nil || r.when(subject) {
			res.add(ValidationError{Field: path, Code: r.code, Message: r.message})
			return
		}
	}
	if v == "" {
		return
	}
	for _, r := range f.rules {
		if r.kind == kindCheck && !r.test(v, subject) {
			res.add(ValidationError{Field: path, Code: r.code, Message: r.message})
			return
		}
	}
}

type nested[T, E any] struct {
	name string
	get  func(T) E
	sub  *Schema[E]
}

func (n *nested[T, E]) validate(prefix string, subject T, res *ValidationResult) {
	n.sub.validate(join(prefix, n.name), n.get(subject), res)
}

// Nest validates a sub-structure of T with its own schema under name.
func Nest[T, E any](s *Schema[T], name string, get func(T) E, sub *Schema[E]) *Schema[T] {
	s.nodes = append(s.nodes, &nested[T, E]{name: name, get: get, sub: sub})
	return s
}

// EachOptions configures a repeated element.
type EachOptions[T any] struct {
	// When gates the whole sequence; nil means always.
	When func(T) bool
	// Count is the number of elements that must be present and valid; nil
	// means every element present.
	Count func(T) int
	// Label, if set, prefixes element messages (e.g. "子会社2の").
	Label func(index int) string
	// MissingMessage is reported at name[i] for absent elements.
	MissingMessage string
}

type each[T, E any] struct {
	name  string
	items func(T) []E
	sub   *Schema[E]
	opts  EachOptions[T]
}

func (e *each[T, E]) validate(prefix string, subject T, res *ValidationResult) {
	if e.opts.When != nil && !e.opts.When(subject) {
		return
	}
	items := e.items(subject)
	count := len(items)
	if e.opts.Count != nil {
		count = e.opts.Count(subject)
	}

	for i := 0; i < count; i++ {
		path := fmt.Sprintf("%s[%d]", join(prefix, e.name), i)
		label := ""
		if e.opts.Label != nil {
			label = e.opts.Label(i)
		}
		if i >= len(items) {
			res.add(ValidationError{Field: path, Code: CodeRequired, Message: label + e.opts.MissingMessage})
			continue
		}

		elem := &ValidationResult{Valid: true}
		e.sub.validate(path, items[i], elem)
		for _, err := range elem.Errors {
			err.Message = label + err.Message
			res.add(err)
		}
	}
}

// Each validates the first Count elements of a sequence with sub.
func Each[T, E any](s *Schema[T], name string, items func(T) []E, sub *Schema[E], opts EachOptions[T]) *Schema[T] {
	s.nodes = append(s.nodes, &each[T, E]{name: name, items: items, sub: sub, opts: opts})
	return s
}

func join(prefix, name string) string {
	if prefix == "" {
		return name
	}
	return prefix + "." + name
}

// Shared contact formats. Phone numbers are Japanese domestic numbers of
// 10 or 11 digits without separators.
var (
	EmailPattern = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)
	PhonePattern = regexp.MustCompile(`^\d{10,11}$`)
)
