package scoring

import (
	"strings"
)

const (
	diagnosisIntro   = "O presente diagnóstico mapeou os principais indicadores de saúde e bem-estar no ambiente de trabalho da equipe. A avaliação foi baseada em rigorosas metodologias de saúde ocupacional. "
	diagnosisHealthy = "Os resultados indicam um ambiente de trabalho globalmente saudável, equilibrado e com bons níveis de proteção e bem-estar. As métricas avaliadas encontram-se dentro de parâmetros muito positivos. "
	diagnosisClosing = "Recomendamos que as lideranças e a equipe de RH analisem as ações propostas a seguir, procurando aplicar melhorias contínuas para fortalecer ainda mais o clima organizacional."

	diagnosisRiskPrefix = "A análise revela que os fatores associados a **"
	diagnosisRiskSuffix = "** requerem atenção especial por parte da liderança, pois apresentam resultados abaixo do recomendável (Score Inferior a 3.0). Quando não gerenciados adequadamente, estes fatores podem contribuir para o aumento do estresse, desgaste emocional e rotatividade na equipe. "
)

const diagnosisRiskLimit = 3.0

// AtRisk lists the dimensions averaging above zero but below 3.0.
func AtRisk(dims []DimensionScore) []string {
	var out []string
	for _, d := range dims {
		if d.Average > 0 && d.Average < diagnosisRiskLimit {
			out = append(out, d.Name)
		}
	}
	return out
}

// Diagnosis writes the technical opinion paragraph of a report.
func Diagnosis(dims []DimensionScore) string {
	var b strings.Builder
	b.WriteString(diagnosisIntro)
	if risks := AtRisk(dims); len(risks) > 0 {
		b.WriteString(diagnosisRiskPrefix)
		b.WriteString(strings.Join(risks, ", "))
		b.WriteString(diagnosisRiskSuffix)
	} else {
		b.WriteString(diagnosisHealthy)
	}
	b.WriteString(diagnosisClosing)
	return b.String()
}

type Band string

const (
	BandCritical     Band = "CENÁRIO CRÍTICO"
	BandAttention    Band = "MOMENTO DE ATENÇÃO"
	BandSafe         Band = "AMBIENTE SEGURO"
	BandHigh         Band = "Risco Alto"
	BandMedium       Band = "Risco Médio"
	BandLow          Band = "Risco Baixo"
	BandInsufficient Band = "Dados Insuficientes"
)

func DimensionBand(avg float64) Band {
	switch {
	case avg < 3:
		return BandCritical
	case avg < 4:
		return BandAttention
	default:
		return BandSafe
	}
}

func QuestionBand(risk *int) Band {
	switch {
	case risk == nil:
		return BandInsufficient
	case *risk >= 55:
		return BandHigh
	case *risk > 20:
		return BandMedium
	default:
		return BandLow
	}
}
