package agent

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Definition declares a named decision type loaded from YAML. Kind selects
// the implementation: "random", "script", or "llm".
type Definition struct {
	Name string `yaml:"name"`
	Kind string `yaml:"kind"`

	// Script settings, used when Kind is "script". The path is resolved
	// relative to the definition file's directory.
	Script           string `yaml:"script"`
	InstructionLimit int    `yaml:"instruction_limit"`

	// LLM settings, used when Kind is "llm". APIKeyEnv names the environment
	// variable holding the key so credentials stay out of the YAML.
	Model       string  `yaml:"model"`
	MaxTokens   int64   `yaml:"max_tokens"`
	Temperature float64 `yaml:"temperature"`
	APIKeyEnv   string  `yaml:"api_key_env"`
}

// Validate checks that the definition satisfies basic invariants.
//
// Precondition: d must not be nil.
// Postcondition: Returns nil iff Name is non-empty, Kind is one of the known
// kinds, and the kind-specific fields are set; returns an error on the first
// violation otherwise.
func (d *Definition) Validate() error {
	if d.Name == "" {
		return fmt.Errorf("agent definition: name must not be empty")
	}
	switch d.Kind {
	case "random":
	case "script":
		if d.Script == "" {
			return fmt.Errorf("agent definition %q: script path must not be empty", d.Name)
		}
	case "llm":
		if d.Model == "" {
			return fmt.Errorf("agent definition %q: model must not be empty", d.Name)
		}
		if d.APIKeyEnv == "" {
			return fmt.Errorf("agent definition %q: api_key_env must not be empty", d.Name)
		}
	default:
		return fmt.Errorf("agent definition %q: unknown kind %q", d.Name, d.Kind)
	}
	return nil
}

// LoadDefinitionFromBytes parses a single decision-type definition from raw
// YAML bytes.
//
// Precondition: data must be valid YAML for a single Definition.
// Postcondition: Returns a validated *Definition, or an error.
func LoadDefinitionFromBytes(data []byte) (*Definition, error) {
	var def Definition
	if err := yaml.Unmarshal(data, &def); err != nil {
		return nil, fmt.Errorf("parsing agent definition YAML: %w", err)
	}
	if err := def.Validate(); err != nil {
		return nil, err
	}
	return &def, nil
}

// LoadDefinitions reads all *.yaml files in dir and returns the parsed
// definitions.
//
// Precondition: dir must be a readable directory.
// Postcondition: Returns all definitions or an error on the first parse or
// validate failure; on error, the partial result is discarded.
func LoadDefinitions(dir string) ([]*Definition, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading agent definitions dir %q: %w", dir, err)
	}

	var defs []*Definition
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".yaml") {
			continue
		}

		path := filepath.Join(dir, entry.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading %q: %w", path, err)
		}

		def, err := LoadDefinitionFromBytes(data)
		if err != nil {
			return nil, fmt.Errorf("loading %q: %w", path, err)
		}
		defs = append(defs, def)
	}
	return defs, nil
}

// RegisterDefinitions loads every definition in dir and registers a matching
// factory under its name. Script paths are resolved relative to dir.
//
// Postcondition: On success every definition in dir is resolvable through
// registry; on error the registry may hold a prefix of the definitions.
func RegisterDefinitions(registry *Registry, dir string, scriptInstructionLimit int) error {
	defs, err := LoadDefinitions(dir)
	if err != nil {
		return err
	}
	for _, def := range defs {
		factory, err := factoryFor(def, dir, scriptInstructionLimit)
		if err != nil {
			return err
		}
		if err := registry.Register(def.Name, factory); err != nil {
			return err
		}
	}
	return nil
}

func factoryFor(def *Definition, dir string, scriptInstructionLimit int) (Factory, error) {
	switch def.Kind {
	case "random":
		return RandomFactory(0), nil
	case "script":
		limit := def.InstructionLimit
		if limit <= 0 {
			limit = scriptInstructionLimit
		}
		path := def.Script
		if !filepath.IsAbs(path) {
			path = filepath.Join(dir, path)
		}
		return ScriptFactory(path, limit), nil
	case "llm":
		key := os.Getenv(def.APIKeyEnv)
		if key == "" {
			return nil, fmt.Errorf("agent definition %q: environment variable %s is not set", def.Name, def.APIKeyEnv)
		}
		return LLMFactory(LLMConfig{
			APIKey:      key,
			Model:       def.Model,
			MaxTokens:   def.MaxTokens,
			Temperature: def.Temperature,
		}), nil
	default:
		return nil, fmt.Errorf("agent definition %q: unknown kind %q", def.Name, def.Kind)
	}
}
