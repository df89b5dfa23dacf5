package intent

import (
	_ "embed"
	"fmt"
	"os"

	"github.com/ashureev/lanne/internal/domain"
	"gopkg.in/yaml.v3"
)

//go:embed intent_dataset.yaml
var defaultDataset []byte

// Dataset holds labelled training phrases and heuristic keywords.
type Dataset struct {
	Samples  map[domain.Intent][]string
	Keywords map[domain.Intent][]string
}

type datasetFile struct {
	TrainingSamples map[string][]string            `yaml:"training_samples"`
	Keywords        map[string]map[string][]string `yaml:"keywords"`
}

// DefaultDataset returns the dataset embedded in the binary.
func DefaultDataset() (Dataset, error) {
	return ParseDataset(defaultDataset)
}

// LoadDataset reads a dataset file. An empty path selects the embedded dataset.
func LoadDataset(path string) (Dataset, error) {
	if path == "" {
		return DefaultDataset()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Dataset{}, fmt.Errorf("read intent dataset %s: %w", path, err)
	}
	return ParseDataset(data)
}

// ParseDataset decodes a YAML dataset. Unknown labels are rejected.
func ParseDataset(data []byte) (Dataset, error) {
	var f datasetFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return Dataset{}, fmt.Errorf("decode intent dataset: %w", err)
	}

	ds := Dataset{
		Samples:  make(map[domain.Intent][]string),
		Keywords: make(map[domain.Intent][]string),
	}
	for label, samples := range f.TrainingSamples {
		intent, ok := domain.ParseIntent(label)
		if !ok {
			return Dataset{}, fmt.Errorf("intent dataset: unknown label %q", label)
		}
		ds.Samples[intent] = append(ds.Samples[intent], samples...)
	}
	for label, groups := range f.Keywords {
		intent, ok := domain.ParseIntent(label)
		if !ok {
			return Dataset{}, fmt.Errorf("intent dataset: unknown keyword label %q", label)
		}
		for _, words := range groups {
			for _, w := range words {
				ds.Keywords[intent] = append(ds.Keywords[intent], normalize(w))
			}
		}
	}
	return ds, nil
}
