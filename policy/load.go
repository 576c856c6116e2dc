package policy

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Decode parses a YAML (or JSON) policy document without validating it.
func Decode(data []byte) (Document, error) {
	var doc Document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		if jerr := json.Unmarshal(data, &doc); jerr != nil {
			return Document{}, fmt.Errorf("parse policy (tried YAML and JSON): %w", err)
		}
	}
	return doc, nil
}

// LoadFile reads, decodes and validates the policy at path.
func LoadFile(path string) (*Policy, []Warning, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("read policy file: %w", err)
	}
	doc, err := Decode(data)
	if err != nil {
		return nil, nil, err
	}
	return Validate(doc)
}

// SaveToFile writes doc as YAML, or JSON when path ends in .json.
func (doc Document) SaveToFile(path string) error {
	var (
		data []byte
		err  error
	)
	if strings.HasSuffix(path, ".json") {
		data, err = json.MarshalIndent(doc, "", "  ")
	} else {
		data, err = yaml.Marshal(doc)
	}
	if err != nil {
		return fmt.Errorf("marshal policy: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write policy file: %w", err)
	}
	return nil
}

// Example returns a starter core/satellite document.
func Example() Document {
	capW := 0.6
	return Document{
		BaseCurrency: "EUR",
		Buckets: map[string]map[string]float64{
			"core":      {"VWCE": 0.8, "AGGH": 0.2},
			"satellite": {"SMH": 0.5, "CSPX": 0.5},
		},
		BucketWeights: map[string]float64{"core": 0.9, "satellite": 0.1},
		Constraints: ConstraintsDoc{
			MinTradeValue:     50,
			MaxPositionWeight: &capW,
			NoSell:            true,
		},
		DriftThresholds:      ThresholdsDoc{Soft: 0.02, Hard: 0.05},
		Costs:                CostsDoc{CommissionRate: 0.001, FXSpreadBps: 25},
		ContributionDefaults: ContributionDoc{Amount: 1000, Currency: "EUR", Universe: "core", DayOfMonth: 1},
	}
}
