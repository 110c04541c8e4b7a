package services

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"law_flow_forms/services/formengine"

	"github.com/xuri/excelize/v2"
)

const (
	sheetResponses = "Responses"
	sheetDocuments = "Documents"
	sheetSummary   = "Summary"
)

// ExportClientForm renders a form's answers and documents as an xlsx workbook.
// Questions follow template order; inactive questions are included and marked as such.
func (s *ClientFormService) ExportClientForm(firmID, formID string) (*bytes.Buffer, string, error) {
	form, err := s.findFirmForm(firmID, formID)
	if err != nil {
		return nil, "", err
	}
	st, err := s.loadState(form)
	if err != nil {
		return nil, "", err
	}
	active, completion := st.completion()
	values := st.values()

	responses := make(map[string]int, len(st.responses))
	for i, r := range st.responses {
		responses[r.FieldID] = i
	}

	f := excelize.NewFile()
	defer f.Close()

	headerStyle, _ := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	titleStyle, _ := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true, Size: 14}})

	// Summary
	f.SetSheetName("Sheet1", sheetSummary)
	f.SetCellValue(sheetSummary, "A1", form.Title)
	f.SetCellStyle(sheetSummary, "A1", "A1", titleStyle)
	summary := [][2]interface{}{
		{"Template", fmt.Sprintf("%s (v%d)", st.template.Name, st.template.Version)},
		{"Status", form.EffectiveStatus(s.now())},
		{"Completion", fmt.Sprintf("%.2f%%", completion.Percentage)},
		{"Assigned", form.CreatedAt.Format("2006-01-02 15:04")},
		{"Submitted", formatOptionalTime(form.SubmittedAt)},
		{"Reviewed", formatOptionalTime(form.ReviewedAt)},
		{"Expires", formatOptionalTime(form.ExpiresAt)},
		{"Missing", strings.Join(completion.MissingFields, ", ")},
	}
	for i, row := range summary {
		label, _ := excelize.CoordinatesToCellName(1, i+3)
		value, _ := excelize.CoordinatesToCellName(2, i+3)
		f.SetCellValue(sheetSummary, label, row[0])
		f.SetCellValue(sheetSummary, value, row[1])
		f.SetCellStyle(sheetSummary, label, label, headerStyle)
	}
	f.SetColWidth(sheetSummary, "A", "A", 18)
	f.SetColWidth(sheetSummary, "B", "B", 50)

	// Responses
	f.NewSheet(sheetResponses)
	headers := []string{"Section", "Question", "Field", "Type", "Answer", "Required", "Active", "Verified", "Updated"}
	for i, header := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		f.SetCellValue(sheetResponses, cell, header)
	}
	f.SetCellStyle(sheetResponses, "A1", "I1", headerStyle)

	row := 2
	for _, sec := range st.schema.Sections {
		for _, field := range sec.Fields {
			cells := []interface{}{
				sec.Title,
				field.Label,
				field.Name,
				string(field.Type),
				exportValue(field, values[field.ID]),
				yesNo(field.IsRequired),
				yesNo(active.Fields[field.ID]),
				"",
				"",
			}
			if i, ok := responses[field.ID]; ok {
				r := st.responses[i]
				cells[7] = yesNo(r.IsVerified)
				cells[8] = r.UpdatedAt.Format("2006-01-02 15:04")
			}
			for col, v := range cells {
				cell, _ := excelize.CoordinatesToCellName(col+1, row)
				f.SetCellValue(sheetResponses, cell, v)
			}
			row++
		}
	}
	f.SetColWidth(sheetResponses, "A", "B", 30)
	f.SetColWidth(sheetResponses, "C", "D", 16)
	f.SetColWidth(sheetResponses, "E", "E", 50)

	// Documents
	f.NewSheet(sheetDocuments)
	docHeaders := []string{"Slot", "Type", "File", "Size (bytes)", "SHA-256", "Verified", "Uploaded"}
	for i, header := range docHeaders {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		f.SetCellValue(sheetDocuments, cell, header)
	}
	f.SetCellStyle(sheetDocuments, "A1", "G1", headerStyle)
	for i, d := range st.documents {
		slot := ""
		if d.RequiredDocumentID != nil {
			if doc, ok := st.schema.Document(*d.RequiredDocumentID); ok {
				slot = doc.Model.Name
			}
		}
		cells := []interface{}{slot, d.DocumentType, d.FileOriginalName, d.FileSize, d.ContentHash, yesNo(d.IsVerified), d.CreatedAt.Format("2006-01-02 15:04")}
		for col, v := range cells {
			cell, _ := excelize.CoordinatesToCellName(col+1, i+2)
			f.SetCellValue(sheetDocuments, cell, v)
		}
	}
	f.SetColWidth(sheetDocuments, "A", "C", 28)
	f.SetColWidth(sheetDocuments, "E", "E", 66)

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, "", NewInternalError(fmt.Errorf("failed to write excel buffer: %w", err))
	}

	name := fmt.Sprintf("client-form-%s-%s.xlsx", form.ID[:8], s.now().Format("20060102"))
	return buf, name, nil
}

// exportValue renders stored values for humans: multiselect arrays become comma lists
// and select values use their option label
func exportValue(field *formengine.Field, value string) string {
	if value == "" {
		return ""
	}
	switch field.Type {
	case formengine.FieldMultiselect:
		parts := formengine.StoredValues(value)
		for i, p := range parts {
			parts[i] = optionLabel(field, p)
		}
		return strings.Join(parts, ", ")
	case formengine.FieldSelect:
		return optionLabel(field, value)
	case formengine.FieldBoolean:
		if value == "true" {
			return "Yes"
		}
		return "No"
	}
	return value
}

func optionLabel(field *formengine.Field, value string) string {
	for _, o := range field.Options {
		if o.Value == value && o.Label != "" {
			return o.Label
		}
	}
	return value
}

func yesNo(b bool) string {
	if b {
		return "Yes"
	}
	return "No"
}

func formatOptionalTime(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format("2006-01-02 15:04")
}
