package scoring

import (
	"github.com/elonr01/survey-server/internal/methodology"
)

type DimensionScore struct {
	Name    string  `json:"name"`
	Average float64 `json:"average"`
}

// QuestionRisk is the 0..100 risk of one question; nil Risk means nobody gave
// a mappable answer.
type QuestionRisk struct {
	Dimension string `json:"dimension"`
	ID        string `json:"id"`
	Text      string `json:"text"`
	Risk      *int   `json:"risk"`
}

type Analytics struct {
	Responded  int              `json:"responded"`
	Score      float64          `json:"score"`
	Dimensions []DimensionScore `json:"dimensions"`
	Questions  []QuestionRisk   `json:"questions"`
}

func (a Analytics) DimensionMap() map[string]float64 {
	out := make(map[string]float64, len(a.Dimensions))
	for _, d := range a.Dimensions {
		out[d.Name] = d.Average
	}
	return out
}

// HasData reports whether at least one dimension produced an average.
func (a Analytics) HasData() bool {
	for _, d := range a.Dimensions {
		if d.Average > 0 {
			return true
		}
	}
	return false
}

// ScoreResponse is the mean mapped value over every answered question,
// rounded to 2 decimals, or 0 when nothing maps.
func (e *Engine) ScoreResponse(m *methodology.Methodology, answers map[string]string) float64 {
	var sum, count int
	for _, d := range m.Dimensions {
		for _, q := range d.Questions {
			if v, ok := e.value(q, answers); ok {
				sum += v
				count++
			}
		}
	}
	if count == 0 {
		return 0
	}
	return round2(float64(sum) / float64(count))
}

// Aggregate computes company analytics from its responses.
func (e *Engine) Aggregate(m *methodology.Methodology, subs []Submission) Analytics {
	a := Analytics{
		Responded:  len(subs),
		Dimensions: make([]DimensionScore, len(m.Dimensions)),
	}

	var nonZero []float64
	for i, d := range m.Dimensions {
		var dimSum, dimCount int
		for _, q := range d.Questions {
			var qSum, qCount int
			for _, s := range subs {
				v, ok := e.value(q, s.Answers)
				if !ok {
					continue
				}
				qSum += v
				qCount++
			}
			dimSum += qSum
			dimCount += qCount

			a.Questions = append(a.Questions, QuestionRisk{
				Dimension: d.Name,
				ID:        q.ID,
				Text:      q.Text,
				Risk:      questionRisk(qSum, qCount),
			})
		}

		avg := 0.0
		if dimCount > 0 {
			avg = round1(float64(dimSum) / float64(dimCount))
		}
		a.Dimensions[i] = DimensionScore{Name: d.Name, Average: avg}
		if avg > 0 {
			nonZero = append(nonZero, avg)
		}
	}

	if len(nonZero) > 0 {
		var total float64
		for _, v := range nonZero {
			total += v
		}
		a.Score = round1(total / float64(len(nonZero)))
	}
	return a
}

func questionRisk(sum, count int) *int {
	if count == 0 {
		return nil
	}
	mean := float64(sum) / float64(count)
	risk := (5.0 - mean) / 4.0 * 100
	if risk < 0 {
		risk = 0
	}
	if risk > 100 {
		risk = 100
	}
	r := int(risk)
	return &r
}
