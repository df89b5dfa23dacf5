package intent

import (
	"errors"
	"math"
	"strings"

	"github.com/ashureev/lanne/internal/domain"
)

var errNoSamples = errors.New("intent model: no training samples")

// Prediction is a statistical label with its posterior probability.
type Prediction struct {
	Intent     domain.Intent
	Confidence float64
}

// Predictor is the statistical tier of the classifier.
type Predictor interface {
	// Predict returns false when the text carries no known feature.
	Predict(text string) (Prediction, bool)
}

// Model is a multinomial naive Bayes classifier over unigram and bigram
// features with Laplace smoothing. It is immutable after Train.
type Model struct {
	labels     []domain.Intent
	logPrior   map[domain.Intent]float64
	logProb    map[domain.Intent]map[string]float64
	logUnseen  map[domain.Intent]float64
	vocabulary map[string]struct{}
}

var _ Predictor = (*Model)(nil)

// Train fits a model on labelled phrases.
func Train(samples map[domain.Intent][]string) (*Model, error) {
	counts := make(map[domain.Intent]map[string]int)
	totals := make(map[domain.Intent]int)
	docs := make(map[domain.Intent]int)
	vocab := make(map[string]struct{})
	totalDocs := 0

	for _, label := range domain.Intents {
		for _, s := range samples[label] {
			feats := features(normalize(s))
			if len(feats) == 0 {
				continue
			}
			if counts[label] == nil {
				counts[label] = make(map[string]int)
			}
			for _, f := range feats {
				counts[label][f]++
				totals[label]++
				vocab[f] = struct{}{}
			}
			docs[label]++
			totalDocs++
		}
	}
	if totalDocs == 0 {
		return nil, errNoSamples
	}

	m := &Model{
		logPrior:   make(map[domain.Intent]float64),
		logProb:    make(map[domain.Intent]map[string]float64),
		logUnseen:  make(map[domain.Intent]float64),
		vocabulary: vocab,
	}
	v := float64(len(vocab))
	for _, label := range domain.Intents {
		if docs[label] == 0 {
			continue
		}
		m.labels = append(m.labels, label)
		m.logPrior[label] = math.Log(float64(docs[label]) / float64(totalDocs))
		denom := float64(totals[label]) + v
		probs := make(map[string]float64, len(counts[label]))
		for f, n := range counts[label] {
			probs[f] = math.Log((float64(n) + 1) / denom)
		}
		m.logProb[label] = probs
		m.logUnseen[label] = math.Log(1 / denom)
	}
	return m, nil
}

// Predict classifies text. Features never seen in training are ignored.
func (m *Model) Predict(text string) (Prediction, bool) {
	var known []string
	for _, f := range features(normalize(text)) {
		if _, ok := m.vocabulary[f]; ok {
			known = append(known, f)
		}
	}
	if len(known) == 0 {
		return Prediction{}, false
	}

	scores := make([]float64, len(m.labels))
	best := 0
	for i, label := range m.labels {
		score := m.logPrior[label]
		for _, f := range known {
			if p, ok := m.logProb[label][f]; ok {
				score += p
			} else {
				score += m.logUnseen[label]
			}
		}
		scores[i] = score
		if score > scores[best] {
			best = i
		}
	}

	var sum float64
	for _, s := range scores {
		sum += math.Exp(s - scores[best])
	}
	return Prediction{Intent: m.labels[best], Confidence: 1 / sum}, true
}

// features returns unigrams followed by bigrams of a normalized text.
func features(norm string) []string {
	tokens := strings.Fields(norm)
	out := make([]string, 0, 2*len(tokens))
	out = append(out, tokens...)
	for i := 1; i < len(tokens); i++ {
		out = append(out, tokens[i-1]+"_"+tokens[i])
	}
	return out
}
