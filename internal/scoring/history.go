package scoring

import (
	"sort"
	"time"

	"github.com/elonr01/survey-server/internal/methodology"
)

// UndatedPeriod labels responses without a usable timestamp.
const UndatedPeriod = "Lote Anterior"

const periodLayout = "01/2006"

type PeriodRecord struct {
	Period     string           `json:"period"`
	Score      float64          `json:"score"`
	Headcount  int              `json:"headcount"`
	Responded  int              `json:"responded"`
	Adhesion   int              `json:"adhesion"`
	Dimensions []DimensionScore `json:"dimensions"`
}

func PeriodLabel(t time.Time) string {
	if t.IsZero() {
		return UndatedPeriod
	}
	return t.Format(periodLayout)
}

// History buckets responses by calendar month and aggregates each bucket.
// Records come back oldest first, undated ones ahead of all dated ones.
func (e *Engine) History(m *methodology.Methodology, subs []Submission, headcount int) []PeriodRecord {
	var order []string
	buckets := make(map[string][]Submission)
	for _, s := range subs {
		label := PeriodLabel(s.CreatedAt)
		if _, ok := buckets[label]; !ok {
			order = append(order, label)
		}
		buckets[label] = append(buckets[label], s)
	}

	records := make([]PeriodRecord, 0, len(order))
	for _, label := range order {
		group := buckets[label]
		a := e.Aggregate(m, group)

		adhesion := 0
		if headcount > 0 {
			adhesion = int(float64(len(group)) / float64(headcount) * 100)
		}
		records = append(records, PeriodRecord{
			Period:     label,
			Score:      a.Score,
			Headcount:  headcount,
			Responded:  len(group),
			Adhesion:   adhesion,
			Dimensions: a.Dimensions,
		})
	}

	sort.SliceStable(records, func(i, j int) bool {
		return periodTime(records[i].Period).Before(periodTime(records[j].Period))
	})
	return records
}

func periodTime(label string) time.Time {
	t, err := time.Parse(periodLayout, label)
	if err != nil {
		return time.Time{}
	}
	return t
}

type DimensionDelta struct {
	Name  string  `json:"name"`
	A     float64 `json:"a"`
	B     float64 `json:"b"`
	Delta float64 `json:"delta"`
}

// Comparison contrasts a reference period A with a later period B.
type Comparison struct {
	PeriodA          string           `json:"period_a"`
	PeriodB          string           `json:"period_b"`
	ScoreA           float64          `json:"score_a"`
	ScoreB           float64          `json:"score_b"`
	Delta            float64          `json:"delta"`
	ChangePercentage float64          `json:"change_percentage"`
	Improved         bool             `json:"improved"`
	Dimensions       []DimensionDelta `json:"dimensions"`
	Evolution        string           `json:"evolution"`
}

const (
	evolutionImproved  = "uma melhoria clara na estabilidade mental das equipes."
	evolutionWorsening = "um momento que exige muita vigilância e atuação imediata devido à queda geral nas notas das equipes."
)

func ComparePeriods(a, b PeriodRecord) Comparison {
	c := Comparison{
		PeriodA: a.Period,
		PeriodB: b.Period,
		ScoreA:  a.Score,
		ScoreB:  b.Score,
		Delta:   round1(b.Score - a.Score),
	}

	switch {
	case a.Score > 0:
		c.ChangePercentage = round2((b.Score - a.Score) / a.Score * 100)
	case b.Score > 0:
		c.ChangePercentage = 100
	}

	c.Improved = b.Score-a.Score > 0
	c.Evolution = evolutionWorsening
	if c.Improved {
		c.Evolution = evolutionImproved
	}

	bDims := make(map[string]float64, len(b.Dimensions))
	for _, d := range b.Dimensions {
		bDims[d.Name] = d.Average
	}
	for _, d := range a.Dimensions {
		bv := bDims[d.Name]
		c.Dimensions = append(c.Dimensions, DimensionDelta{
			Name:  d.Name,
			A:     d.Average,
			B:     bv,
			Delta: round1(bv - d.Average),
		})
	}
	return c
}
