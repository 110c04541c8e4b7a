package formengine

import (
	"encoding/json"
	"fmt"
	"html"
	"math"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/asaskevich/govalidator"
	"github.com/microcosm-cc/bluemonday"
)

// Violation names a field and the rule its value broke
type Violation struct {
	Field   string `json:"field"`
	Rule    string `json:"rule"`
	Message string `json:"message"`
}

// DefaultMaxTextLength caps textual values when a field declares no maxLength
const DefaultMaxTextLength = 10000

const canonicalDate = "2006-01-02"

var (
	textPolicy      = bluemonday.StrictPolicy()
	phoneSeparators = strings.NewReplacer(" ", "", "(", "", ")", "", ".", "", "-", "")
	dateTokens      = strings.NewReplacer("YYYY", "2006", "YY", "06", "MM", "01", "DD", "02")
)

// IsEmptyValue reports whether a submitted value counts as no answer
func IsEmptyValue(raw any) bool {
	switch v := raw.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(v) == ""
	case []any:
		return len(v) == 0
	case []string:
		return len(v) == 0
	}
	return false
}

// IsEmptyStored reports whether a normalized stored value counts as no answer
func IsEmptyStored(value string) bool {
	return len(splitStored(value)) == 0
}

// Validate checks a raw submitted value against the field's type and rules and returns its
// normalized string form. Required is enforced only when enforceRequired is set, which callers
// do for active fields. An empty value that is not required normalizes to "".
func (f *Field) Validate(raw any, enforceRequired bool) (string, *Violation) {
	if IsEmptyValue(raw) {
		return f.checkRequired(enforceRequired)
	}

	var (
		value string
		v     *Violation
	)
	switch f.Type {
	case FieldNumber:
		value, v = f.validateNumber(raw)
	case FieldDate:
		value, v = f.validateDate(raw)
	case FieldSelect:
		value, v = f.validateSelect(raw)
	case FieldMultiselect:
		value, v = f.validateMultiselect(raw)
	case FieldBoolean:
		value, v = f.validateBoolean(raw)
	case FieldFileRef:
		value, v = f.validateFileRef(raw)
	default:
		value, v = f.validateText(raw)
	}
	if v != nil {
		return "", v
	}
	if IsEmptyStored(value) {
		return f.checkRequired(enforceRequired)
	}
	return value, nil
}

func (f *Field) checkRequired(enforceRequired bool) (string, *Violation) {
	if enforceRequired && f.IsRequired {
		return "", &Violation{Field: f.Name, Rule: "required", Message: fmt.Sprintf("%s is required", f.displayName())}
	}
	return "", nil
}

func (f *Field) violation(rule, message string) *Violation {
	if f.Rules.Message != "" {
		message = f.Rules.Message
	}
	return &Violation{Field: f.Name, Rule: rule, Message: message}
}

func (f *Field) displayName() string {
	if f.Label != "" {
		return f.Label
	}
	return f.Name
}

// maxSanitizePasses bounds the decode and strip loop for nested entity encodings
const maxSanitizePasses = 8

// SanitizeText strips markup and surrounding whitespace from free text. Entities are decoded
// and the result stripped again until stable, so encoded markup never comes back as a tag.
func SanitizeText(s string) string {
	for i := 0; i < maxSanitizePasses; i++ {
		cleaned := textPolicy.Sanitize(s)
		decoded := html.UnescapeString(cleaned)
		if decoded == s {
			return strings.TrimSpace(decoded)
		}
		s = decoded
	}
	return strings.TrimSpace(textPolicy.Sanitize(s))
}

func (f *Field) validateText(raw any) (string, *Violation) {
	s, ok := scalarString(raw)
	if !ok {
		return "", f.violation("type", fmt.Sprintf("%s must be text", f.displayName()))
	}
	s = SanitizeText(s)
	if s == "" {
		return "", nil
	}

	length := utf8.RuneCountInString(s)
	if f.Rules.MinLength != nil && length < *f.Rules.MinLength {
		return "", f.violation("minLength", fmt.Sprintf("%s must be at least %d characters", f.displayName(), *f.Rules.MinLength))
	}
	maxLength := DefaultMaxTextLength
	if f.Rules.MaxLength != nil {
		maxLength = *f.Rules.MaxLength
	}
	if length > maxLength {
		return "", f.violation("maxLength", fmt.Sprintf("%s must be at most %d characters", f.displayName(), maxLength))
	}
	if f.pattern != nil && !f.pattern.MatchString(s) {
		return "", f.violation("pattern", fmt.Sprintf("%s has an invalid format", f.displayName()))
	}

	switch f.Type {
	case FieldEmail:
		if !govalidator.StringLength(s, "3", "254") || !govalidator.IsEmail(s) {
			return "", f.violation("email", fmt.Sprintf("%s must be a valid email address", f.displayName()))
		}
		s = strings.ToLower(s)
	case FieldPhone:
		digits := strings.TrimPrefix(phoneSeparators.Replace(s), "+")
		if !govalidator.IsNumeric(digits) || !govalidator.StringLength(digits, "7", "15") {
			return "", f.violation("phone", fmt.Sprintf("%s must be a valid phone number", f.displayName()))
		}
	}
	return s, nil
}

func (f *Field) validateNumber(raw any) (string, *Violation) {
	n, ok := toFloat(raw)
	if !ok || math.IsNaN(n) || math.IsInf(n, 0) {
		return "", f.violation("type", fmt.Sprintf("%s must be a number", f.displayName()))
	}
	if lo, ok := toFloat(f.Rules.Min); ok && n < lo {
		return "", f.violation("min", fmt.Sprintf("%s must be at least %s", f.displayName(), formatNumber(lo)))
	}
	if hi, ok := toFloat(f.Rules.Max); ok && n > hi {
		return "", f.violation("max", fmt.Sprintf("%s must be at most %s", f.displayName(), formatNumber(hi)))
	}
	return formatNumber(n), nil
}

func (f *Field) validateDate(raw any) (string, *Violation) {
	s, ok := raw.(string)
	if !ok {
		return "", f.violation("type", fmt.Sprintf("%s must be a date", f.displayName()))
	}
	t, ok := f.parseDateValue(strings.TrimSpace(s))
	if !ok {
		return "", f.violation("format", fmt.Sprintf("%s must be a valid date", f.displayName()))
	}
	if lo, ok := f.ruleDate(f.Rules.Min); ok && t.Before(lo) {
		return "", f.violation("min", fmt.Sprintf("%s must be on or after %s", f.displayName(), lo.Format(canonicalDate)))
	}
	if hi, ok := f.ruleDate(f.Rules.Max); ok && t.After(hi) {
		return "", f.violation("max", fmt.Sprintf("%s must be on or before %s", f.displayName(), hi.Format(canonicalDate)))
	}
	return t.Format(canonicalDate), nil
}

func (f *Field) parseDateValue(s string) (time.Time, bool) {
	if f.Rules.Format != "" {
		t, err := time.Parse(dateTokens.Replace(f.Rules.Format), s)
		if err == nil {
			return truncateDay(t), true
		}
		// The canonical form is always accepted so stored values round-trip.
		if t, err := time.Parse(canonicalDate, s); err == nil {
			return t, true
		}
		return time.Time{}, false
	}
	t, ok := parseDate(s)
	return truncateDay(t), ok
}

func (f *Field) ruleDate(v any) (time.Time, bool) {
	s, ok := v.(string)
	if !ok || strings.TrimSpace(s) == "" {
		return time.Time{}, false
	}
	return f.parseDateValue(strings.TrimSpace(s))
}

func truncateDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func (f *Field) validateSelect(raw any) (string, *Violation) {
	s, ok := scalarString(raw)
	if !ok {
		return "", f.violation("type", fmt.Sprintf("%s accepts a single choice", f.displayName()))
	}
	s = strings.TrimSpace(s)
	value, ok := f.matchOption(s)
	if !ok {
		return "", f.violation("options", fmt.Sprintf("%s must be one of the listed options", f.displayName()))
	}
	return value, nil
}

func (f *Field) validateMultiselect(raw any) (string, *Violation) {
	var items []string
	switch v := raw.(type) {
	case []any:
		for _, item := range v {
			s, ok := scalarString(item)
			if !ok {
				return "", f.violation("type", fmt.Sprintf("%s accepts a list of choices", f.displayName()))
			}
			items = append(items, s)
		}
	case []string:
		items = v
	case string:
		items = splitStored(v)
	default:
		s, ok := scalarString(v)
		if !ok {
			return "", f.violation("type", fmt.Sprintf("%s accepts a list of choices", f.displayName()))
		}
		items = []string{s}
	}

	seen := make(map[string]bool, len(items))
	selected := make([]string, 0, len(items))
	for _, item := range items {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		value, ok := f.matchOption(item)
		if !ok {
			return "", f.violation("options", fmt.Sprintf("%q is not an option for %s", item, f.displayName()))
		}
		if !seen[value] {
			seen[value] = true
			selected = append(selected, value)
		}
	}

	if len(selected) == 0 {
		return "", nil
	}
	if f.Rules.MinSelected != nil && len(selected) < *f.Rules.MinSelected {
		return "", f.violation("minSelected", fmt.Sprintf("choose at least %d options for %s", *f.Rules.MinSelected, f.displayName()))
	}
	if f.Rules.MaxSelected != nil && len(selected) > *f.Rules.MaxSelected {
		return "", f.violation("maxSelected", fmt.Sprintf("choose at most %d options for %s", *f.Rules.MaxSelected, f.displayName()))
	}

	out, err := json.Marshal(selected)
	if err != nil {
		return "", f.violation("type", fmt.Sprintf("%s accepts a list of choices", f.displayName()))
	}
	return string(out), nil
}

// matchOption returns the canonical option value
func (f *Field) matchOption(s string) (string, bool) {
	for _, o := range f.Options {
		if o.Value == s {
			return o.Value, true
		}
	}
	for _, o := range f.Options {
		if strings.EqualFold(o.Value, s) {
			return o.Value, true
		}
	}
	return "", false
}

func (f *Field) validateBoolean(raw any) (string, *Violation) {
	var (
		b  bool
		ok bool
	)
	switch v := raw.(type) {
	case bool:
		b, ok = v, true
	case string:
		b, ok = parseBool(v)
	case float64:
		if v == 0 || v == 1 {
			b, ok = v == 1, true
		}
	}
	if !ok {
		return "", f.violation("type", fmt.Sprintf("%s must be yes or no", f.displayName()))
	}
	return strconv.FormatBool(b), nil
}

// validateFileRef only checks shape; the caller verifies the document belongs to the form
func (f *Field) validateFileRef(raw any) (string, *Violation) {
	s, ok := raw.(string)
	if !ok {
		return "", f.violation("type", fmt.Sprintf("%s must reference an uploaded document", f.displayName()))
	}
	return strings.TrimSpace(s), nil
}

func scalarString(raw any) (string, bool) {
	switch v := raw.(type) {
	case string:
		return v, true
	case float64, bool, int, int64:
		return stringify(v), true
	case json.Number:
		return v.String(), true
	}
	return "", false
}

func formatNumber(n float64) string {
	return strconv.FormatFloat(n, 'f', -1, 64)
}
