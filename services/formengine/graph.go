package formengine

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// ErrSectionCycle is returned when dependsOnSectionId links form a loop
var ErrSectionCycle = errors.New("section dependency cycle")

// CycleError reports the sections that form a dependency loop
type CycleError struct {
	Path []string
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("section dependency cycle: %s", strings.Join(e.Path, " -> "))
}

func (e *CycleError) Unwrap() error {
	return ErrSectionCycle
}

// DetectSectionCycle runs a depth-first search over child -> parent links.
// Parents that are not keys of the map are treated as roots; callers check unknown references separately.
func DetectSectionCycle(parents map[string]string) error {
	const (
		unvisited = iota
		visiting
		done
	)

	state := make(map[string]int, len(parents))

	ids := make([]string, 0, len(parents))
	for id := range parents {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	var visit func(id string, path []string) error
	visit = func(id string, path []string) error {
		switch state[id] {
		case done:
			return nil
		case visiting:
			start := 0
			for i, p := range path {
				if p == id {
					start = i
					break
				}
			}
			loop := append(append([]string{}, path[start:]...), id)
			return &CycleError{Path: loop}
		}

		state[id] = visiting
		if parent, ok := parents[id]; ok && parent != "" {
			if _, known := parents[parent]; known {
				if err := visit(parent, append(path, id)); err != nil {
					return err
				}
			}
		}
		state[id] = done
		return nil
	}

	for _, id := range ids {
		if err := visit(id, nil); err != nil {
			return err
		}
	}
	return nil
}
