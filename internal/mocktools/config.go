package mocktools

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config describes a scripted tool host.
//
//	name: demo
//	tools:
//	  - name: get_weather
//	    description: Weather for a city
//	    inputSchema:
//	      type: object
//	      properties:
//	        city: {type: string}
//	      required: [city]
//	    responses:
//	      - condition: {city: Atlantis}
//	        error: city not found
//	      - response: "It is sunny in {{ .city }}."
type Config struct {
	Name  string       `yaml:"name"`
	Tools []ToolConfig `yaml:"tools"`
}

// ToolConfig is one scripted tool.
type ToolConfig struct {
	Name        string         `yaml:"name"`
	Description string         `yaml:"description,omitempty"`
	InputSchema map[string]any `yaml:"inputSchema,omitempty"`
	Responses   []Response     `yaml:"responses"`
}

// Response is picked when all Condition entries equal the call arguments. A response
// without a condition is the fallback.
type Response struct {
	Condition map[string]any `yaml:"condition,omitempty"`
	// Response is returned as text when it is a string, as JSON otherwise. Strings are
	// Go templates over the call arguments.
	Response any    `yaml:"response,omitempty"`
	Error    string `yaml:"error,omitempty"`
	Delay    string `yaml:"delay,omitempty"`
}

// LoadConfig reads a tool host script from a YAML file.
func LoadConfig(path string) (Config, error) {
	var cfg Config
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("failed to read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid tool script %s: %w", path, err)
	}
	if cfg.Name == "" {
		cfg.Name = "mock-tools"
	}
	return cfg, nil
}

// Validate checks that every tool is named once and can answer.
func (c Config) Validate() error {
	seen := make(map[string]bool, len(c.Tools))
	for i, t := range c.Tools {
		if t.Name == "" {
			return fmt.Errorf("tool #%d has no name", i+1)
		}
		if seen[t.Name] {
			return fmt.Errorf("tool %q is defined twice", t.Name)
		}
		seen[t.Name] = true
		if len(t.Responses) == 0 {
			return fmt.Errorf("tool %q has no responses", t.Name)
		}
	}
	return nil
}
