package scoring

import (
	_ "embed"
	"fmt"

	"gopkg.in/yaml.v3"
)

//go:embed data/recommendations.yaml
var recommendationsYAML []byte

// missingDimension is the average assumed for a dimension absent from the input.
const missingDimension = 5.0

const (
	PlanOwnerPending = "A Definir em Reunião"
	PlanTimeframe    = "30 a 60 dias"
)

type Suggestion struct {
	Title     string `yaml:"title" json:"title"`
	Strategy  string `yaml:"strategy" json:"strategy"`
	Area      string `yaml:"area" json:"area"`
	Owner     string `yaml:"owner" json:"owner"`
	Timeframe string `yaml:"timeframe" json:"timeframe"`
}

// ActionItem is an editable row of a company action plan.
type ActionItem struct {
	Title     string `json:"title"`
	Strategy  string `json:"strategy"`
	Area      string `json:"area"`
	Owner     string `json:"owner"`
	Timeframe string `json:"timeframe"`
}

type Rule struct {
	Dimensions  []string     `yaml:"dimensions"`
	Suggestions []Suggestion `yaml:"suggestions"`
}

type RuleSet struct {
	Threshold float64      `yaml:"threshold"`
	Rules     []Rule       `yaml:"rules"`
	Fallback  []Suggestion `yaml:"fallback"`
}

func LoadRules() (*RuleSet, error) {
	var rs RuleSet
	if err := yaml.Unmarshal(recommendationsYAML, &rs); err != nil {
		return nil, fmt.Errorf("parse recommendation rules: %w", err)
	}
	if rs.Threshold <= 0 || len(rs.Rules) == 0 || len(rs.Fallback) == 0 {
		return nil, fmt.Errorf("recommendation rules are incomplete")
	}
	return &rs, nil
}

func (r Rule) fires(dims map[string]float64, threshold float64) bool {
	for _, name := range r.Dimensions {
		v, ok := dims[name]
		if !ok {
			v = missingDimension
		}
		if v < threshold {
			return true
		}
	}
	return false
}

// Select concatenates the blocks of every rule that fires, in rule order,
// or returns the fallback block when none does.
func (rs *RuleSet) Select(dims map[string]float64) []Suggestion {
	var out []Suggestion
	for _, r := range rs.Rules {
		if r.fires(dims, rs.Threshold) {
			out = append(out, r.Suggestions...)
		}
	}
	if len(out) == 0 {
		out = append(out, rs.Fallback...)
	}
	return out
}

func (e *Engine) Recommend(dims map[string]float64) []Suggestion {
	return e.rules.Select(dims)
}

// DefaultActionPlan seeds a plan from suggestions, leaving owner and
// deadline to be agreed by the company.
func DefaultActionPlan(suggestions []Suggestion) []ActionItem {
	plan := make([]ActionItem, len(suggestions))
	for i, s := range suggestions {
		plan[i] = ActionItem{
			Title:     s.Title,
			Strategy:  s.Strategy,
			Area:      s.Area,
			Owner:     PlanOwnerPending,
			Timeframe: PlanTimeframe,
		}
	}
	return plan
}
