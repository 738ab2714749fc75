package topology

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Load reads and parses a topology document from path, then validates it.
func Load(path string) (*Document, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("topology: reading %s: %w", path, err)
	}
	var doc Document
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("topology: parsing %s: %w", path, err)
	}
	applyDefaults(&doc)
	if err := Validate(&doc); err != nil {
		return nil, err
	}
	return &doc, nil
}

// applyDefaults fills in the radio noise-figure and sensitivity defaults.
func applyDefaults(doc *Document) {
	for _, node := range doc.Nodes {
		for _, iface := range node.Interfaces {
			if iface.NoiseFigureDB == 0 {
				iface.NoiseFigureDB = DefaultNoiseFigureDB
			}
			if iface.RxSensitivityDBm == 0 {
				iface.RxSensitivityDBm = DefaultRxSensitivityDBm
			}
		}
	}
}
