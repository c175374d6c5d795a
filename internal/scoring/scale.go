package scoring

import (
	"strings"

	"github.com/elonr01/survey-server/internal/methodology"
	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

// ScaleMapper converts answer labels to their 1..5 value.
type ScaleMapper struct {
	order    []string
	families map[string]map[string]int
}

func NewScaleMapper(scales []methodology.Scale) *ScaleMapper {
	m := &ScaleMapper{families: make(map[string]map[string]int, len(scales))}
	for _, s := range scales {
		values := make(map[string]int, len(s.Labels)+len(s.Aliases))
		for i, l := range s.Labels {
			values[normalizeLabel(l)] = i + 1
		}
		for alias, v := range s.Aliases {
			values[normalizeLabel(alias)] = v
		}
		m.order = append(m.order, s.Name)
		m.families[s.Name] = values
	}
	return m
}

// A Caser keeps state, so each call gets its own.
func normalizeLabel(label string) string {
	return cases.Fold().String(norm.NFC.String(strings.TrimSpace(label)))
}

// Map looks the label up in the preferred family first, then in every family
// in priority order. Unknown labels report ok=false.
func (m *ScaleMapper) Map(label, preferred string, reverse bool) (int, bool) {
	key := normalizeLabel(label)
	if key == "" {
		return 0, false
	}

	if v, ok := m.families[preferred][key]; ok {
		return orient(v, reverse), true
	}
	for _, name := range m.order {
		if v, ok := m.families[name][key]; ok {
			return orient(v, reverse), true
		}
	}
	return 0, false
}

// Position is the 1-based position of label within one family only.
func (m *ScaleMapper) Position(label, family string) (int, bool) {
	v, ok := m.families[family][normalizeLabel(label)]
	return v, ok
}

func orient(v int, reverse bool) int {
	if reverse {
		return 6 - v
	}
	return v
}
