package formengine

import (
	"testing"

	"law_flow_forms/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func strPtr(s string) *string { return &s }

// dependentsTemplate has an Employment section and a Dependents section that
// depends on it and is only shown when hasDependents is true.
func dependentsTemplate() *models.FormTemplate {
	return &models.FormTemplate{
		ID:   "tpl-1",
		Name: "Family intake",
		Sections: []models.FormSection{
			{
				ID:        "s1",
				Title:     "Employment",
				SortOrder: 1,
				Fields: []models.FormField{
					{ID: "f-employer", Name: "employer", Label: "Employer", FieldType: "text", IsRequired: true, SortOrder: 1},
					{ID: "f-has", Name: "hasDependents", Label: "Any dependents?", FieldType: "checkbox", SortOrder: 2},
				},
			},
			{
				ID:                 "s2",
				Title:              "Dependents",
				SortOrder:          2,
				DependsOnSectionID: strPtr("s1"),
				ConditionalLogic:   `{"field":"hasDependents","equals":true}`,
				Fields: []models.FormField{
					{ID: "f-count", Name: "dependentCount", Label: "How many", FieldType: "integer", IsRequired: true, SortOrder: 1},
					{ID: "f-names", Name: "dependentNames", Label: "Names", FieldType: "textarea", IsRequired: true, SortOrder: 2},
					{
						ID: "f-school", Name: "schoolName", Label: "School", FieldType: "text", IsRequired: true, SortOrder: 3,
						ConditionalLogic: `{"field":"dependentCount","greaterThan":0}`,
					},
				},
			},
			{
				ID:                 "s3",
				Title:              "Childcare",
				SortOrder:          3,
				DependsOnSectionID: strPtr("s2"),
				Fields: []models.FormField{
					{ID: "f-care", Name: "childcare", Label: "Childcare", FieldType: "radio", Options: `["none","daycare","nanny"]`, SortOrder: 1},
				},
			},
		},
		RequiredDocuments: []models.FormRequiredDocument{
			{ID: "d-id", Name: "Photo ID", DocumentType: "ID", IsRequired: true, SortOrder: 1},
			{
				ID: "d-birth", Name: "Birth certificates", DocumentType: "BIRTH_CERT", IsRequired: true, SortOrder: 2,
				ConditionalLogic: `{"field":"hasDependents","equals":true}`,
			},
		},
	}
}

func compileDependents(t *testing.T) *Schema {
	t.Helper()
	s, err := Compile(dependentsTemplate())
	require.NoError(t, err)
	return s
}

func TestCompileOrdersAndIndexes(t *testing.T) {
	s := compileDependents(t)

	require.Len(t, s.Sections, 3)
	assert.Equal(t, "s1", s.Sections[0].ID)
	assert.Equal(t, "s2", s.Sections[1].ParentID)

	f, ok := s.FieldByName("hasDependents")
	require.True(t, ok)
	assert.Equal(t, FieldBoolean, f.Type)

	care, ok := s.Field("f-care")
	require.True(t, ok)
	assert.Equal(t, FieldSelect, care.Type)
	assert.Len(t, care.Options, 3)

	fields := 0
	for _, sec := range s.Sections {
		fields += len(sec.Fields)
	}
	assert.Equal(t, 6, fields)
}

func TestCompileRejectsBadTemplates(t *testing.T) {
	t.Run("Duplicate field names", func(t *testing.T) {
		tpl := dependentsTemplate()
		tpl.Sections[1].Fields[0].Name = "employer"
		_, err := Compile(tpl)

		var schemaErr *SchemaError
		require.ErrorAs(t, err, &schemaErr)
		assert.Equal(t, "duplicate", schemaErr.Problems[0].Rule)
	})

	t.Run("Cycle between sections", func(t *testing.T) {
		tpl := dependentsTemplate()
		tpl.Sections[0].DependsOnSectionID = strPtr("s3")
		_, err := Compile(tpl)
		assert.ErrorIs(t, err, ErrSectionCycle)
	})

	t.Run("Unknown parent section", func(t *testing.T) {
		tpl := dependentsTemplate()
		tpl.Sections[2].DependsOnSectionID = strPtr("other-template-section")
		_, err := Compile(tpl)

		var schemaErr *SchemaError
		require.ErrorAs(t, err, &schemaErr)
		assert.Equal(t, "reference", schemaErr.Problems[0].Rule)
	})

	t.Run("Invalid JSON columns", func(t *testing.T) {
		tpl := dependentsTemplate()
		tpl.Sections[0].Fields[0].ValidationRules = `{"minLength":`
		tpl.Sections[2].Fields[0].Options = `{"a":1}`
		tpl.RequiredDocuments[0].ConditionalLogic = `{"field":"x"}`
		_, err := Compile(tpl)

		var schemaErr *SchemaError
		require.ErrorAs(t, err, &schemaErr)
		assert.Len(t, schemaErr.Problems, 3)
	})

	t.Run("Select without options", func(t *testing.T) {
		tpl := dependentsTemplate()
		tpl.Sections[2].Fields[0].Options = ""
		_, err := Compile(tpl)

		var schemaErr *SchemaError
		require.ErrorAs(t, err, &schemaErr)
		require.Len(t, schemaErr.Problems, 1)
		assert.Equal(t, "options", schemaErr.Problems[0].Rule)
		assert.Contains(t, schemaErr.Problems[0].Field, ".options")
	})

	t.Run("Multiselect with empty option list", func(t *testing.T) {
		tpl := dependentsTemplate()
		tpl.Sections[2].Fields[0].FieldType = "checkboxes"
		tpl.Sections[2].Fields[0].Options = "[]"
		_, err := Compile(tpl)

		var schemaErr *SchemaError
		require.ErrorAs(t, err, &schemaErr)
		assert.Equal(t, "options", schemaErr.Problems[0].Rule)
	})

	t.Run("Invalid pattern", func(t *testing.T) {
		tpl := dependentsTemplate()
		tpl.Sections[0].Fields[0].ValidationRules = `{"pattern":"[a-"}`
		_, err := Compile(tpl)
		assert.Error(t, err)
	})
}

func TestResolveDependentSections(t *testing.T) {
	s := compileDependents(t)

	t.Run("Initial active set hides dependents", func(t *testing.T) {
		active := s.Resolve(map[string]string{})
		assert.Equal(t, []string{"s1"}, active.SectionIDs())
		assert.Equal(t, []string{"f-employer", "f-has"}, active.FieldIDs())
		assert.Equal(t, []string{"d-id"}, active.DocumentIDs())
	})

	t.Run("Governing field activates the chain", func(t *testing.T) {
		active := s.Resolve(map[string]string{"f-has": "true"})
		assert.Equal(t, []string{"s1", "s2", "s3"}, active.SectionIDs())
		assert.True(t, active.Fields["f-count"])
		assert.False(t, active.Fields["f-school"], "field condition is still false")
		assert.Equal(t, []string{"d-birth", "d-id"}, active.DocumentIDs())
	})

	t.Run("Field condition inside active section", func(t *testing.T) {
		active := s.Resolve(map[string]string{"f-has": "true", "f-count": "2"})
		assert.True(t, active.Fields["f-school"])
	})

	t.Run("Stale answers in an inactive section do not activate it", func(t *testing.T) {
		active := s.Resolve(map[string]string{"f-has": "false", "f-count": "2"})
		assert.False(t, active.Sections["s2"])
		assert.False(t, active.Sections["s3"])
		assert.False(t, active.Fields["f-school"])
	})
}

func TestResolveToggleIsDeterministic(t *testing.T) {
	s := compileDependents(t)

	responses := map[string]string{"f-employer": "ACME", "f-has": "true", "f-count": "1"}
	before := s.Resolve(responses)

	responses["f-has"] = "false"
	toggled := s.Resolve(responses)
	assert.NotEqual(t, before.SectionIDs(), toggled.SectionIDs())

	responses["f-has"] = "true"
	after := s.Resolve(responses)

	assert.Equal(t, before.SectionIDs(), after.SectionIDs())
	assert.Equal(t, before.FieldIDs(), after.FieldIDs())
	assert.Equal(t, before.DocumentIDs(), after.DocumentIDs())
}
