package intent

import (
	"testing"

	"github.com/ashureev/lanne/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestModelPredictsTrainingDomain(t *testing.T) {
	t.Parallel()

	ds, err := DefaultDataset()
	require.NoError(t, err)
	m, err := Train(ds.Samples)
	require.NoError(t, err)

	tests := []struct {
		text string
		want domain.Intent
	}{
		{"boa noite", domain.IntentGreeting},
		{"valeu pela ajuda", domain.IntentCasual},
		{"como instalar o docker no debian", domain.IntentTechnical},
		{"quais portas estao abertas", domain.IntentTechnical},
	}
	for _, tt := range tests {
		got, ok := m.Predict(tt.text)
		require.True(t, ok, tt.text)
		assert.Equal(t, tt.want, got.Intent, tt.text)
		assert.Greater(t, got.Confidence, 0.5, tt.text)
		assert.LessOrEqual(t, got.Confidence, 1.0, tt.text)
	}
}

func TestModelAbsentForUnknownVocabulary(t *testing.T) {
	t.Parallel()

	m, err := Train(map[domain.Intent][]string{domain.IntentGreeting: {"oi"}, domain.IntentCasual: {"valeu"}})
	require.NoError(t, err)
	_, ok := m.Predict("zzz qqq")
	assert.False(t, ok)
}

func TestTrainRequiresSamples(t *testing.T) {
	t.Parallel()

	_, err := Train(nil)
	assert.ErrorIs(t, err, errNoSamples)
}

func TestParseDatasetRejectsUnknownLabel(t *testing.T) {
	t.Parallel()

	_, err := ParseDataset([]byte("training_samples:\n  WEATHER: [chuva]\n"))
	assert.Error(t, err)
}

func TestNormalize(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "ola tudo bem", normalize("  Olá, tudo   bem?! "))
	assert.Equal(t, []string{"qual", "meu", "ip", "qual_meu", "meu_ip"}, features("qual meu ip"))
}
