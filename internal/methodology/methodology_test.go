package methodology

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	c, err := Load()
	require.NoError(t, err)

	t.Run("scales in consultation order", func(t *testing.T) {
		var names []string
		for _, s := range c.Scales() {
			names = append(names, s.Name)
			assert.Len(t, s.Labels, 5, s.Name)
		}
		assert.Equal(t, []string{"frequency", "agreement", "intensity", "satisfaction", "health"}, names)
	})

	t.Run("hse-it", func(t *testing.T) {
		m, ok := c.Get("HSE-IT (35 itens)")
		require.True(t, ok)
		assert.Len(t, m.Questions(), 35)
		assert.Equal(t, []string{
			"Demandas", "Controle", "Suporte do Gestor", "Suporte dos Colegas",
			"Relacionamentos", "Papel na Empresa", "Gestão de Mudança",
		}, m.DimensionNames())

		first := m.Dimensions[0].Questions[0]
		assert.Equal(t, "h1", first.ID)
		assert.True(t, first.Reverse)
		assert.Equal(t, "Nunca/Quase Nunca", first.Options[0])

		role := m.Dimensions[5].Questions[0]
		assert.Equal(t, "agreement", role.Scale)
		assert.False(t, role.Reverse)
	})

	t.Run("copsoq", func(t *testing.T) {
		m, ok := c.Get("COPSOQ II (Versão Média PT)")
		require.True(t, ok)
		assert.Len(t, m.Questions(), 76)
		assert.Len(t, m.Dimensions, 8)
	})

	t.Run("unknown name resolves to default", func(t *testing.T) {
		m := c.Resolve("Questionário Inexistente")
		assert.Equal(t, Default, m.Name)
	})

	t.Run("names sorted", func(t *testing.T) {
		assert.Equal(t, []string{"COPSOQ II (Versão Média PT)", "HSE-IT (35 itens)"}, c.Names())
	})
}

func TestCatalogAddRejectsUnknownScale(t *testing.T) {
	c := &Catalog{methodologies: map[string]*Methodology{}}
	err := c.add(&Methodology{
		Name: "x",
		Dimensions: []Dimension{{
			Name:      "d",
			Questions: []Question{{ID: "q1", Text: "q", Scale: "nope"}},
		}},
	})
	assert.ErrorContains(t, err, "unknown scale")
}
