package formengine

import "strings"

// FieldType is the closed set of field kinds the engine knows how to validate
type FieldType string

const (
	FieldText        FieldType = "text"
	FieldTextarea    FieldType = "textarea"
	FieldEmail       FieldType = "email"
	FieldPhone       FieldType = "phone"
	FieldNumber      FieldType = "number"
	FieldDate        FieldType = "date"
	FieldSelect      FieldType = "select"
	FieldMultiselect FieldType = "multiselect"
	FieldBoolean     FieldType = "boolean"
	FieldFileRef     FieldType = "file_ref"
	FieldCustom      FieldType = "custom"
)

var fieldTypeAliases = map[string]FieldType{
	"text":        FieldText,
	"string":      FieldText,
	"short_text":  FieldText,
	"textarea":    FieldTextarea,
	"long_text":   FieldTextarea,
	"paragraph":   FieldTextarea,
	"email":       FieldEmail,
	"phone":       FieldPhone,
	"tel":         FieldPhone,
	"number":      FieldNumber,
	"numeric":     FieldNumber,
	"integer":     FieldNumber,
	"decimal":     FieldNumber,
	"currency":    FieldNumber,
	"date":        FieldDate,
	"datetime":    FieldDate,
	"select":      FieldSelect,
	"radio":       FieldSelect,
	"dropdown":    FieldSelect,
	"multiselect": FieldMultiselect,
	"checkboxes":  FieldMultiselect,
	"multi":       FieldMultiselect,
	"boolean":     FieldBoolean,
	"bool":        FieldBoolean,
	"checkbox":    FieldBoolean,
	"yes_no":      FieldBoolean,
	"file":        FieldFileRef,
	"file_ref":    FieldFileRef,
	"upload":      FieldFileRef,
	"document":    FieldFileRef,
}

// NormalizeFieldType maps an authored type string onto the closed enum.
// Unrecognised types fall back to FieldCustom.
func NormalizeFieldType(raw string) FieldType {
	key := strings.ToLower(strings.TrimSpace(raw))
	key = strings.NewReplacer("-", "_", " ", "_").Replace(key)
	if t, ok := fieldTypeAliases[key]; ok {
		return t
	}
	return FieldCustom
}

// IsTextual reports whether values of this type are free text
func (t FieldType) IsTextual() bool {
	switch t {
	case FieldText, FieldTextarea, FieldEmail, FieldPhone, FieldCustom:
		return true
	}
	return false
}

// IsEnumerated reports whether values must come from the field's options
func (t FieldType) IsEnumerated() bool {
	return t == FieldSelect || t == FieldMultiselect
}
