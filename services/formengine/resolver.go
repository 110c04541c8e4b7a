package formengine

import "sort"

// ActiveSet holds the ids of the sections, fields and document slots currently in play
type ActiveSet struct {
	Sections  map[string]bool
	Fields    map[string]bool
	Documents map[string]bool
}

// SectionIDs returns the active section ids, sorted
func (a ActiveSet) SectionIDs() []string { return sortedKeys(a.Sections) }

// FieldIDs returns the active field ids, sorted
func (a ActiveSet) FieldIDs() []string { return sortedKeys(a.Fields) }

// DocumentIDs returns the active document slot ids, sorted
func (a ActiveSet) DocumentIDs() []string { return sortedKeys(a.Documents) }

func sortedKeys(m map[string]bool) []string {
	keys := make([]string, 0, len(m))
	for k, v := range m {
		if v {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys
}

// schemaLookup resolves condition field names against a response map keyed by field id
type schemaLookup struct {
	schema    *Schema
	responses map[string]string
}

func (l schemaLookup) Lookup(name string) (string, bool) {
	f, ok := l.schema.fieldsByName[name]
	if !ok {
		return "", false
	}
	return l.responses[f.ID], true
}

// LookupFor exposes a response map (field id -> value) as a condition Lookup
func (s *Schema) LookupFor(responses map[string]string) Lookup {
	return schemaLookup{schema: s, responses: responses}
}

// Resolve computes the active set for a response map keyed by field id. It is pure:
// the same responses always yield the same set.
//
// A section is active when its own condition holds and its parent section is active.
// A field is active when its section is active and its own condition holds.
// A document slot is active when its condition holds.
func (s *Schema) Resolve(responses map[string]string) ActiveSet {
	lookup := s.LookupFor(responses)
	active := ActiveSet{
		Sections:  make(map[string]bool, len(s.Sections)),
		Fields:    make(map[string]bool),
		Documents: make(map[string]bool, len(s.Documents)),
	}

	memo := make(map[string]bool, len(s.Sections))
	inProgress := make(map[string]bool)

	var sectionActive func(id string) bool
	sectionActive = func(id string) bool {
		if v, ok := memo[id]; ok {
			return v
		}
		sec, ok := s.sectionsByID[id]
		if !ok || inProgress[id] {
			// Compile rejects cycles; an unreachable parent is treated as inactive.
			return false
		}
		inProgress[id] = true
		result := Evaluate(sec.Condition, lookup)
		if result && sec.ParentID != "" {
			result = sectionActive(sec.ParentID)
		}
		delete(inProgress, id)
		memo[id] = result
		return result
	}

	for _, sec := range s.Sections {
		if !sectionActive(sec.ID) {
			continue
		}
		active.Sections[sec.ID] = true
		for _, f := range sec.Fields {
			if Evaluate(f.Condition, lookup) {
				active.Fields[f.ID] = true
			}
		}
	}

	for _, d := range s.Documents {
		if Evaluate(d.Condition, lookup) {
			active.Documents[d.ID] = true
		}
	}

	return active
}
