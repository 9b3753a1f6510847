package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// ModelPricing holds USD prices for one completion model. Token prices are
// per million tokens; SearchPerCall is the price of one web-search
// invocation.
type ModelPricing struct {
	InputPerMTok  float64 `yaml:"input_per_mtok"`
	OutputPerMTok float64 `yaml:"output_per_mtok"`
	SearchPerCall float64 `yaml:"search_per_call"`
}

// Pricing maps model names to their prices. The zero value of a lookup
// yields zero cost, so unknown models are billed as free rather than
// failing the run.
type Pricing map[string]ModelPricing

// defaultPricing covers the models shipped in the default configuration.
var defaultPricing = Pricing{
	"gpt-4o":                 {InputPerMTok: 2.50, OutputPerMTok: 10.00, SearchPerCall: 0.01},
	"gpt-4o-mini":            {InputPerMTok: 0.15, OutputPerMTok: 0.60, SearchPerCall: 0.01},
	"claude-sonnet-4-latest": {InputPerMTok: 3.00, OutputPerMTok: 15.00, SearchPerCall: 0.01},
}

// LoadPricing reads a YAML pricing table and merges it over the built-in
// defaults. An empty path returns the defaults unchanged.
func LoadPricing(path string) (Pricing, error) {
	pricing := make(Pricing, len(defaultPricing))
	for k, v := range defaultPricing {
		pricing[k] = v
	}

	if path == "" {
		return pricing, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read pricing file: %w", err)
	}

	var fileTable Pricing
	if err := yaml.Unmarshal(data, &fileTable); err != nil {
		return nil, fmt.Errorf("parse pricing file: %w", err)
	}

	for k, v := range fileTable {
		pricing[k] = v
	}
	return pricing, nil
}

// For returns the pricing for model, or a zero table when unknown.
func (p Pricing) For(model string) ModelPricing {
	return p[model]
}
