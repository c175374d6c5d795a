package scoring

import (
	"math"
	"time"

	"github.com/elonr01/survey-server/internal/methodology"
)

// Submission is the part of a stored response the engine reads.
// A zero CreatedAt marks an undated response.
type Submission struct {
	Sector    string
	Answers   map[string]string
	CreatedAt time.Time
}

// Engine computes every derived survey figure. It holds no per-company state
// and is safe for concurrent use.
type Engine struct {
	mapper *ScaleMapper
	rules  *RuleSet
}

func New(catalog *methodology.Catalog) (*Engine, error) {
	rules, err := LoadRules()
	if err != nil {
		return nil, err
	}
	return &Engine{
		mapper: NewScaleMapper(catalog.Scales()),
		rules:  rules,
	}, nil
}

func (e *Engine) Mapper() *ScaleMapper {
	return e.mapper
}

func (e *Engine) value(q methodology.Question, answers map[string]string) (int, bool) {
	label, ok := answers[q.Text]
	if !ok || label == "" {
		return 0, false
	}
	return e.mapper.Map(label, q.Scale, q.Reverse)
}

// Exact ties round to even, so 3.25 -> 3.2 and 3.125 -> 3.12.
func round1(v float64) float64 { return math.RoundToEven(v*10) / 10 }
func round2(v float64) float64 { return math.RoundToEven(v*100) / 100 }
