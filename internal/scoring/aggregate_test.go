package scoring

import (
	"testing"

	"github.com/elonr01/survey-server/internal/methodology"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestEngine(t *testing.T) (*Engine, *methodology.Catalog) {
	t.Helper()
	c, err := methodology.Load()
	require.NoError(t, err)
	e, err := New(c)
	require.NoError(t, err)
	return e, c
}

// twoDimensions is a small questionnaire: one reverse frequency question and
// one agreement question.
func twoDimensions() *methodology.Methodology {
	return &methodology.Methodology{
		Name: "test",
		Dimensions: []methodology.Dimension{
			{Name: "Demandas", Questions: []methodology.Question{
				{ID: "d1", Text: "Tenho prazos impossíveis de cumprir?", Reverse: true, Scale: "frequency"},
			}},
			{Name: "Papel na Empresa", Questions: []methodology.Question{
				{ID: "p1", Text: "Sei claramente o que é esperado de mim?", Scale: "agreement"},
			}},
		},
	}
}

func answers(kv ...string) map[string]string {
	out := make(map[string]string, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		out[kv[i]] = kv[i+1]
	}
	return out
}

func TestScoreResponse(t *testing.T) {
	e, _ := newTestEngine(t)
	m := twoDimensions()

	t.Run("mean over mapped answers", func(t *testing.T) {
		got := e.ScoreResponse(m, answers(
			"Tenho prazos impossíveis de cumprir?", "Raramente",
			"Sei claramente o que é esperado de mim?", "Concordo Totalmente",
		))
		assert.Equal(t, 4.5, got)
	})

	t.Run("rounds to two decimals", func(t *testing.T) {
		m := &methodology.Methodology{Dimensions: []methodology.Dimension{{Name: "x", Questions: []methodology.Question{
			{Text: "a", Scale: "frequency"}, {Text: "b", Scale: "frequency"}, {Text: "c", Scale: "frequency"},
		}}}}
		got := e.ScoreResponse(m, answers("a", "Sempre", "b", "Sempre", "c", "Raramente"))
		assert.Equal(t, 4.0, got)

		got = e.ScoreResponse(m, answers("a", "Sempre", "b", "Raramente", "c", "Raramente"))
		assert.Equal(t, 3.0, got)

		got = e.ScoreResponse(m, answers("a", "Sempre", "b", "Sempre", "c", "Frequentemente"))
		assert.Equal(t, 4.67, got)
	})

	t.Run("exact ties round to even", func(t *testing.T) {
		var qs []methodology.Question
		for _, text := range []string{"a", "b", "c", "d", "e", "f", "g", "h"} {
			qs = append(qs, methodology.Question{Text: text, Scale: "frequency"})
		}
		m := &methodology.Methodology{Dimensions: []methodology.Dimension{{Name: "x", Questions: qs}}}

		// 25/8 = 3.125
		got := e.ScoreResponse(m, answers(
			"a", "Sempre", "b", "Sempre", "c", "Às vezes", "d", "Às vezes",
			"e", "Às vezes", "f", "Raramente", "g", "Raramente", "h", "Raramente",
		))
		assert.Equal(t, 3.12, got)
	})

	t.Run("unknown labels are skipped", func(t *testing.T) {
		got := e.ScoreResponse(m, answers(
			"Tenho prazos impossíveis de cumprir?", "Talvez",
			"Sei claramente o que é esperado de mim?", "Concordo",
		))
		assert.Equal(t, 4.0, got)
	})

	t.Run("nothing mappable", func(t *testing.T) {
		assert.Equal(t, 0.0, e.ScoreResponse(m, nil))
	})
}

func TestAggregate(t *testing.T) {
	e, c := newTestEngine(t)
	m := twoDimensions()

	t.Run("reverse scored example", func(t *testing.T) {
		subs := []Submission{
			{Answers: answers("Tenho prazos impossíveis de cumprir?", "Sempre")},
			{Answers: answers("Tenho prazos impossíveis de cumprir?", "Nunca")},
		}
		a := e.Aggregate(m, subs)

		assert.Equal(t, 2, a.Responded)
		assert.Equal(t, 3.0, a.DimensionMap()["Demandas"])
		assert.Equal(t, 0.0, a.DimensionMap()["Papel na Empresa"])
		require.NotNil(t, a.Questions[0].Risk)
		assert.Equal(t, 50, *a.Questions[0].Risk)
		assert.Nil(t, a.Questions[1].Risk)
		assert.Equal(t, 3.0, a.Score)
	})

	t.Run("risk bounds", func(t *testing.T) {
		healthy := e.Aggregate(m, []Submission{
			{Answers: answers("Tenho prazos impossíveis de cumprir?", "Nunca/Quase Nunca", "Sei claramente o que é esperado de mim?", "Concordo Totalmente")},
		})
		assert.Equal(t, 0, *healthy.Questions[0].Risk)
		assert.Equal(t, 0, *healthy.Questions[1].Risk)

		worst := e.Aggregate(m, []Submission{
			{Answers: answers("Tenho prazos impossíveis de cumprir?", "Sempre", "Sei claramente o que é esperado de mim?", "Discordo Totalmente")},
		})
		assert.Equal(t, 100, *worst.Questions[0].Risk)
		assert.Equal(t, 100, *worst.Questions[1].Risk)
	})

	t.Run("risk truncates", func(t *testing.T) {
		a := e.Aggregate(m, []Submission{
			{Answers: answers("Sei claramente o que é esperado de mim?", "Concordo")},
			{Answers: answers("Sei claramente o que é esperado de mim?", "Concordo")},
			{Answers: answers("Sei claramente o que é esperado de mim?", "Discordo")},
		})
		// mean 3.333 -> 41.67%
		assert.Equal(t, 41, *a.Questions[1].Risk)
		assert.Equal(t, 3.3, a.DimensionMap()["Papel na Empresa"])
	})

	t.Run("dimension ties round to even", func(t *testing.T) {
		q := "Tenho prazos impossíveis de cumprir?"
		m := &methodology.Methodology{Dimensions: []methodology.Dimension{{Name: "Demandas", Questions: []methodology.Question{
			{Text: q, Scale: "frequency"},
		}}}}
		// 13/4 = 3.25
		a := e.Aggregate(m, []Submission{
			{Answers: answers(q, "Sempre")},
			{Answers: answers(q, "Às vezes")},
			{Answers: answers(q, "Às vezes")},
			{Answers: answers(q, "Raramente")},
		})
		assert.Equal(t, 3.2, a.DimensionMap()["Demandas"])
		assert.Equal(t, 3.2, a.Score)
	})

	t.Run("zero responses", func(t *testing.T) {
		hse := c.Resolve(methodology.Default)
		a := e.Aggregate(hse, nil)

		assert.Equal(t, 0, a.Responded)
		assert.Equal(t, 0.0, a.Score)
		assert.Len(t, a.Dimensions, 7)
		for _, d := range a.Dimensions {
			assert.Equal(t, 0.0, d.Average, d.Name)
		}
		assert.Len(t, a.Questions, 35)
		for _, q := range a.Questions {
			assert.Nil(t, q.Risk)
		}
		assert.False(t, a.HasData())
	})

	t.Run("score averages non-zero dimensions only", func(t *testing.T) {
		a := e.Aggregate(m, []Submission{
			{Answers: answers("Tenho prazos impossíveis de cumprir?", "Raramente", "Sei claramente o que é esperado de mim?", "Neutro")},
		})
		assert.Equal(t, 4.0, a.DimensionMap()["Demandas"])
		assert.Equal(t, 3.0, a.DimensionMap()["Papel na Empresa"])
		assert.Equal(t, 3.5, a.Score)
	})

	t.Run("idempotent", func(t *testing.T) {
		subs := []Submission{
			{Answers: answers("Tenho prazos impossíveis de cumprir?", "Às vezes", "Sei claramente o que é esperado de mim?", "Concordo")},
			{Answers: answers("Tenho prazos impossíveis de cumprir?", "Frequentemente")},
		}
		assert.Equal(t, e.Aggregate(m, subs), e.Aggregate(m, subs))
	})
}
