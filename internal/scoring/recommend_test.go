package scoring

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadRules(t *testing.T) {
	rs, err := LoadRules()
	require.NoError(t, err)

	assert.Equal(t, 3.8, rs.Threshold)
	require.Len(t, rs.Rules, 7)

	sizes := make([]int, len(rs.Rules))
	for i, r := range rs.Rules {
		sizes[i] = len(r.Suggestions)
	}
	assert.Equal(t, []int{5, 4, 5, 3, 4, 2, 3}, sizes)
	assert.Len(t, rs.Fallback, 2)
}

func TestRecommend(t *testing.T) {
	e, _ := newTestEngine(t)
	rs := e.rules

	t.Run("healthy dimensions get the fallback", func(t *testing.T) {
		got := e.Recommend(map[string]float64{"Demandas": 4.2, "Controle": 3.8, "Gestão de Mudança": 5})
		assert.Equal(t, rs.Fallback, got)
	})

	t.Run("empty input gets the fallback", func(t *testing.T) {
		assert.Equal(t, rs.Fallback, e.Recommend(nil))
	})

	t.Run("single low dimension fires only its block", func(t *testing.T) {
		got := e.Recommend(map[string]float64{"Controle": 2.0, "Demandas": 4.5})
		assert.Equal(t, rs.Rules[1].Suggestions, got)
	})

	t.Run("alternative names trigger the same block", func(t *testing.T) {
		got := e.Recommend(map[string]float64{"Ambiente Ofensivo (Últimos 12 meses)": 3.79})
		assert.Equal(t, rs.Rules[3].Suggestions, got)
	})

	t.Run("several blocks keep rule order", func(t *testing.T) {
		got := e.Recommend(map[string]float64{"Saúde, Bem-estar e Rotina": 1.0, "Demandas": 2.0})
		want := append(append([]Suggestion{}, rs.Rules[0].Suggestions...), rs.Rules[6].Suggestions...)
		assert.Equal(t, want, got)
	})

	t.Run("zero counts as low", func(t *testing.T) {
		got := e.Recommend(map[string]float64{"Gestão de Mudança": 0})
		assert.Equal(t, rs.Rules[5].Suggestions, got)
	})
}

func TestDefaultActionPlan(t *testing.T) {
	plan := DefaultActionPlan([]Suggestion{{Title: "t", Strategy: "s", Area: "a", Owner: "RH", Timeframe: "15 dias"}})

	require.Len(t, plan, 1)
	assert.Equal(t, ActionItem{Title: "t", Strategy: "s", Area: "a", Owner: PlanOwnerPending, Timeframe: PlanTimeframe}, plan[0])
}
