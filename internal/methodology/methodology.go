package methodology

import (
	"embed"
	"fmt"
	"sort"

	"gopkg.in/yaml.v3"
)

// Default is the questionnaire used when a company names an unknown methodology.
const Default = "HSE-IT (35 itens)"

//go:embed data/*.yaml
var definitions embed.FS

// Scale is one 5-point answer family. A label's 1-based position is its value.
type Scale struct {
	Name    string         `yaml:"name" json:"name"`
	Labels  []string       `yaml:"labels" json:"labels"`
	Aliases map[string]int `yaml:"aliases" json:"aliases,omitempty"`
}

type Question struct {
	ID      string   `yaml:"id" json:"id"`
	Text    string   `yaml:"text" json:"text"`
	Reverse bool     `yaml:"reverse" json:"reverse"`
	Scale   string   `yaml:"scale" json:"scale"`
	Help    string   `yaml:"help" json:"help,omitempty"`
	Options []string `yaml:"-" json:"options"`
}

type Dimension struct {
	Name      string     `yaml:"name" json:"name"`
	Questions []Question `yaml:"questions" json:"questions"`
}

type Methodology struct {
	Name        string      `yaml:"name" json:"name"`
	Description string      `yaml:"description" json:"description"`
	Dimensions  []Dimension `yaml:"dimensions" json:"dimensions"`
}

// Questions flattens the dimensions in declaration order.
func (m *Methodology) Questions() []Question {
	var out []Question
	for _, d := range m.Dimensions {
		out = append(out, d.Questions...)
	}
	return out
}

func (m *Methodology) DimensionNames() []string {
	names := make([]string, len(m.Dimensions))
	for i, d := range m.Dimensions {
		names[i] = d.Name
	}
	return names
}

// Catalog holds the answer scales and the questionnaires that reference them.
type Catalog struct {
	scales        []Scale
	methodologies map[string]*Methodology
}

// Load parses the embedded definitions.
func Load() (*Catalog, error) {
	raw, err := definitions.ReadFile("data/scales.yaml")
	if err != nil {
		return nil, fmt.Errorf("read scales: %w", err)
	}
	var scales []Scale
	if err := yaml.Unmarshal(raw, &scales); err != nil {
		return nil, fmt.Errorf("parse scales: %w", err)
	}

	c := &Catalog{scales: scales, methodologies: make(map[string]*Methodology)}

	entries, err := definitions.ReadDir("data")
	if err != nil {
		return nil, fmt.Errorf("list definitions: %w", err)
	}
	for _, e := range entries {
		if e.Name() == "scales.yaml" {
			continue
		}
		raw, err := definitions.ReadFile("data/" + e.Name())
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", e.Name(), err)
		}
		var m Methodology
		if err := yaml.Unmarshal(raw, &m); err != nil {
			return nil, fmt.Errorf("parse %s: %w", e.Name(), err)
		}
		if err := c.add(&m); err != nil {
			return nil, fmt.Errorf("%s: %w", e.Name(), err)
		}
	}

	if _, ok := c.methodologies[Default]; !ok {
		return nil, fmt.Errorf("default methodology %q is not defined", Default)
	}
	return c, nil
}

// MustLoad is Load for process start-up; the definitions are compiled in.
func MustLoad() *Catalog {
	c, err := Load()
	if err != nil {
		panic(err)
	}
	return c
}

func (c *Catalog) add(m *Methodology) error {
	if m.Name == "" {
		return fmt.Errorf("methodology without name")
	}
	seen := make(map[string]bool)
	for di := range m.Dimensions {
		d := &m.Dimensions[di]
		for qi := range d.Questions {
			q := &d.Questions[qi]
			if seen[q.Text] {
				return fmt.Errorf("duplicate question text %q", q.Text)
			}
			seen[q.Text] = true

			s, ok := c.Scale(q.Scale)
			if !ok {
				return fmt.Errorf("question %s: unknown scale %q", q.ID, q.Scale)
			}
			q.Options = s.Labels
		}
	}
	c.methodologies[m.Name] = m
	return nil
}

func (c *Catalog) Scales() []Scale {
	return c.scales
}

func (c *Catalog) Scale(name string) (Scale, bool) {
	for _, s := range c.scales {
		if s.Name == name {
			return s, true
		}
	}
	return Scale{}, false
}

func (c *Catalog) Get(name string) (*Methodology, bool) {
	m, ok := c.methodologies[name]
	return m, ok
}

// Resolve returns the named methodology, or the default one.
func (c *Catalog) Resolve(name string) *Methodology {
	if m, ok := c.methodologies[name]; ok {
		return m
	}
	return c.methodologies[Default]
}

func (c *Catalog) Names() []string {
	names := make([]string, 0, len(c.methodologies))
	for n := range c.methodologies {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
