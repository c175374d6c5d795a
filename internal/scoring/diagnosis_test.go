package scoring

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDiagnosis(t *testing.T) {
	t.Run("names dimensions under three", func(t *testing.T) {
		text := Diagnosis([]DimensionScore{
			{Name: "Demandas", Average: 2.1},
			{Name: "Controle", Average: 0},
			{Name: "Relacionamentos", Average: 2.9},
			{Name: "Papel na Empresa", Average: 3.0},
		})
		assert.True(t, strings.HasPrefix(text, diagnosisIntro))
		assert.Contains(t, text, "**Demandas, Relacionamentos**")
		assert.NotContains(t, text, diagnosisHealthy)
		assert.True(t, strings.HasSuffix(text, diagnosisClosing))
	})

	t.Run("healthy", func(t *testing.T) {
		text := Diagnosis([]DimensionScore{{Name: "Demandas", Average: 4.0}})
		assert.Equal(t, diagnosisIntro+diagnosisHealthy+diagnosisClosing, text)
	})
}

func TestBands(t *testing.T) {
	assert.Equal(t, BandCritical, DimensionBand(2.99))
	assert.Equal(t, BandAttention, DimensionBand(3.0))
	assert.Equal(t, BandAttention, DimensionBand(3.9))
	assert.Equal(t, BandSafe, DimensionBand(4.0))

	r := func(v int) *int { return &v }
	assert.Equal(t, BandInsufficient, QuestionBand(nil))
	assert.Equal(t, BandHigh, QuestionBand(r(55)))
	assert.Equal(t, BandMedium, QuestionBand(r(54)))
	assert.Equal(t, BandMedium, QuestionBand(r(21)))
	assert.Equal(t, BandLow, QuestionBand(r(20)))
	assert.Equal(t, BandLow, QuestionBand(r(0)))
}
