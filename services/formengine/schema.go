package formengine

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"law_flow_forms/models"
)

// Rules are the per-field validation rules stored as JSON in FormField.ValidationRules
type Rules struct {
	MinLength   *int   `json:"minLength,omitempty"`
	MaxLength   *int   `json:"maxLength,omitempty"`
	Pattern     string `json:"pattern,omitempty"`
	Min         any    `json:"min,omitempty"` // number for numeric fields, date string for date fields
	Max         any    `json:"max,omitempty"`
	Format      string `json:"format,omitempty"` // date input layout, e.g. "DD/MM/YYYY"
	MinSelected *int   `json:"minSelected,omitempty"`
	MaxSelected *int   `json:"maxSelected,omitempty"`
	Message     string `json:"message,omitempty"` // overrides the default rule message
}

// Option is one allowed value of an enumerated field
type Option struct {
	Value string `json:"value"`
	Label string `json:"label"`
}

// Field is a compiled FormField
type Field struct {
	ID         string
	SectionID  string
	Name       string
	Label      string
	Type       FieldType
	IsRequired bool
	Rules      Rules
	Options    []Option
	Condition  Condition
	Model      *models.FormField

	pattern *regexp.Regexp
}

// Section is a compiled FormSection with its fields in display order
type Section struct {
	ID        string
	ParentID  string
	Title     string
	Condition Condition
	Fields    []*Field
	Model     *models.FormSection
}

// Document is a compiled FormRequiredDocument slot
type Document struct {
	ID         string
	IsRequired bool
	Condition  Condition
	Model      *models.FormRequiredDocument
}

// Schema is an immutable, pre-parsed view of a template. It is safe for concurrent use.
type Schema struct {
	TemplateID string
	Sections   []*Section
	Documents  []*Document

	sectionsByID  map[string]*Section
	fieldsByID    map[string]*Field
	fieldsByName  map[string]*Field
	documentsByID map[string]*Document
}

// SchemaError collects every structural problem found while compiling a template
type SchemaError struct {
	Problems []Violation
}

func (e *SchemaError) Error() string {
	parts := make([]string, 0, len(e.Problems))
	for _, p := range e.Problems {
		parts = append(parts, fmt.Sprintf("%s: %s", p.Field, p.Message))
	}
	return "invalid template: " + strings.Join(parts, "; ")
}

// Compile parses every rule, option list and condition of a template once.
// It fails with a *CycleError when section dependencies loop and a *SchemaError for anything else.
func Compile(t *models.FormTemplate) (*Schema, error) {
	s := &Schema{
		TemplateID:    t.ID,
		sectionsByID:  make(map[string]*Section, len(t.Sections)),
		fieldsByID:    make(map[string]*Field),
		fieldsByName:  make(map[string]*Field),
		documentsByID: make(map[string]*Document, len(t.RequiredDocuments)),
	}
	var problems []Violation
	addProblem := func(path, rule, msg string) {
		problems = append(problems, Violation{Field: path, Rule: rule, Message: msg})
	}

	sections := make([]*models.FormSection, len(t.Sections))
	for i := range t.Sections {
		sections[i] = &t.Sections[i]
	}
	sort.SliceStable(sections, func(i, j int) bool { return sections[i].SortOrder < sections[j].SortOrder })

	parents := make(map[string]string, len(sections))
	for i, m := range sections {
		path := fmt.Sprintf("sections[%d]", i)
		sec := &Section{ID: m.ID, Title: m.Title, Model: m}
		if m.DependsOnSectionID != nil {
			sec.ParentID = *m.DependsOnSectionID
		}
		if _, dup := s.sectionsByID[m.ID]; dup {
			addProblem(path, "duplicate", "duplicate section id")
			continue
		}

		cond, err := ParseCondition(m.ConditionalLogic)
		if err != nil {
			addProblem(path+".conditionalLogic", "condition", err.Error())
		}
		sec.Condition = cond

		fields := make([]*models.FormField, len(m.Fields))
		for j := range m.Fields {
			fields[j] = &m.Fields[j]
		}
		sort.SliceStable(fields, func(a, b int) bool { return fields[a].SortOrder < fields[b].SortOrder })

		for j, fm := range fields {
			fpath := fmt.Sprintf("%s.fields[%d]", path, j)
			f, fieldProblems := compileField(fm, sec.ID, fpath)
			problems = append(problems, fieldProblems...)
			if f == nil {
				continue
			}
			if _, dup := s.fieldsByName[f.Name]; dup {
				addProblem(fpath+".name", "duplicate", fmt.Sprintf("field name %q is used more than once", f.Name))
				continue
			}
			s.fieldsByName[f.Name] = f
			s.fieldsByID[f.ID] = f
			sec.Fields = append(sec.Fields, f)
		}

		s.sectionsByID[sec.ID] = sec
		s.Sections = append(s.Sections, sec)
		parents[sec.ID] = sec.ParentID
	}

	for i, sec := range s.Sections {
		if sec.ParentID == "" {
			continue
		}
		if _, ok := s.sectionsByID[sec.ParentID]; !ok {
			addProblem(fmt.Sprintf("sections[%d].dependsOnSectionId", i), "reference", "parent section does not belong to this template")
		}
	}

	docs := make([]*models.FormRequiredDocument, len(t.RequiredDocuments))
	for i := range t.RequiredDocuments {
		docs[i] = &t.RequiredDocuments[i]
	}
	sort.SliceStable(docs, func(i, j int) bool { return docs[i].SortOrder < docs[j].SortOrder })

	for i, dm := range docs {
		path := fmt.Sprintf("requiredDocuments[%d]", i)
		cond, err := ParseCondition(dm.ConditionalLogic)
		if err != nil {
			addProblem(path+".conditionalLogic", "condition", err.Error())
		}
		if dm.MaxFileSize < 0 {
			addProblem(path+".maxFileSize", "range", "max file size cannot be negative")
		}
		d := &Document{ID: dm.ID, IsRequired: dm.IsRequired, Condition: cond, Model: dm}
		s.documentsByID[d.ID] = d
		s.Documents = append(s.Documents, d)
	}

	if err := DetectSectionCycle(parents); err != nil {
		return nil, err
	}
	if len(problems) > 0 {
		return nil, &SchemaError{Problems: problems}
	}
	return s, nil
}

func compileField(m *models.FormField, sectionID, path string) (*Field, []Violation) {
	var problems []Violation
	add := func(suffix, rule, msg string) {
		problems = append(problems, Violation{Field: path + suffix, Rule: rule, Message: msg})
	}

	name := strings.TrimSpace(m.Name)
	if name == "" {
		add(".name", "required", "field name is required")
		return nil, problems
	}

	f := &Field{
		ID:         m.ID,
		SectionID:  sectionID,
		Name:       name,
		Label:      m.Label,
		Type:       NormalizeFieldType(m.FieldType),
		IsRequired: m.IsRequired,
		Model:      m,
	}

	if raw := strings.TrimSpace(m.ValidationRules); raw != "" && raw != "null" {
		if err := json.Unmarshal([]byte(raw), &f.Rules); err != nil {
			add(".validationRules", "rules", "validation rules are not valid JSON")
		}
	}
	if f.Rules.Pattern != "" {
		re, err := regexp.Compile(f.Rules.Pattern)
		if err != nil {
			add(".validationRules.pattern", "pattern", "pattern is not a valid regular expression")
		}
		f.pattern = re
	}

	opts, err := parseOptions(m.Options)
	if err != nil {
		add(".options", "options", err.Error())
	}
	f.Options = opts
	if err == nil && f.Type.IsEnumerated() && len(opts) == 0 {
		add(".options", "options", fmt.Sprintf("%s fields need at least one option", f.Type))
	}

	cond, err := ParseCondition(m.ConditionalLogic)
	if err != nil {
		add(".conditionalLogic", "condition", err.Error())
	}
	f.Condition = cond

	return f, problems
}

// parseOptions accepts ["a","b"] or [{"value":"a","label":"A"}]
func parseOptions(raw string) ([]Option, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" || raw == "null" {
		return nil, nil
	}

	var items []any
	if err := json.Unmarshal([]byte(raw), &items); err != nil {
		return nil, errors.New("options must be a JSON array")
	}

	opts := make([]Option, 0, len(items))
	for _, item := range items {
		switch v := item.(type) {
		case map[string]any:
			value := stringify(v["value"])
			label, _ := v["label"].(string)
			if value == "" {
				return nil, errors.New("every option needs a value")
			}
			if label == "" {
				label = value
			}
			opts = append(opts, Option{Value: value, Label: label})
		case nil:
			return nil, errors.New("options cannot contain null")
		default:
			value := stringify(v)
			opts = append(opts, Option{Value: value, Label: value})
		}
	}
	return opts, nil
}

// Field returns the compiled field with the given id
func (s *Schema) Field(id string) (*Field, bool) {
	f, ok := s.fieldsByID[id]
	return f, ok
}

// FieldByName returns the compiled field with the given name
func (s *Schema) FieldByName(name string) (*Field, bool) {
	f, ok := s.fieldsByName[name]
	return f, ok
}

// Section returns the compiled section with the given id
func (s *Schema) Section(id string) (*Section, bool) {
	sec, ok := s.sectionsByID[id]
	return sec, ok
}

// Document returns the compiled document slot with the given id
func (s *Schema) Document(id string) (*Document, bool) {
	d, ok := s.documentsByID[id]
	return d, ok
}
