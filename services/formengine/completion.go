package formengine

import "math"

// Completion summarises how much of the active required set is satisfied
type Completion struct {
	RequiredFields     int      `json:"requiredFields"`
	SatisfiedFields    int      `json:"satisfiedFields"`
	RequiredDocuments  int      `json:"requiredDocuments"`
	SatisfiedDocuments int      `json:"satisfiedDocuments"`
	Percentage         float64  `json:"percentage"`
	MissingFields      []string `json:"missingFields"`
	MissingDocuments   []string `json:"missingDocuments"`
}

// IsComplete reports whether nothing required and active is outstanding
func (c Completion) IsComplete() bool {
	return len(c.MissingFields) == 0 && len(c.MissingDocuments) == 0
}

// Complete computes completion from scratch over the active set.
// responses is keyed by field id; uploaded holds the ids of slots that have at least one document.
func (s *Schema) Complete(active ActiveSet, responses map[string]string, uploaded map[string]bool) Completion {
	c := Completion{MissingFields: []string{}, MissingDocuments: []string{}}

	for _, sec := range s.Sections {
		if !active.Sections[sec.ID] {
			continue
		}
		for _, f := range sec.Fields {
			if !f.IsRequired || !active.Fields[f.ID] {
				continue
			}
			c.RequiredFields++
			if !IsEmptyStored(responses[f.ID]) {
				c.SatisfiedFields++
			} else {
				c.MissingFields = append(c.MissingFields, f.Name)
			}
		}
	}

	for _, d := range s.Documents {
		if !d.IsRequired || !active.Documents[d.ID] {
			continue
		}
		c.RequiredDocuments++
		if uploaded[d.ID] {
			c.SatisfiedDocuments++
		} else {
			c.MissingDocuments = append(c.MissingDocuments, d.ID)
		}
	}

	c.Percentage = Percentage(c.SatisfiedFields+c.SatisfiedDocuments, c.RequiredFields+c.RequiredDocuments)
	return c
}

// Percentage is round(100 * satisfied / max(1, total), 2), clamped to [0, 100]
func Percentage(satisfied, total int) float64 {
	denominator := total
	if denominator < 1 {
		denominator = 1
	}
	p := math.Round(100*float64(satisfied)/float64(denominator)*100) / 100
	return math.Max(0, math.Min(100, p))
}
