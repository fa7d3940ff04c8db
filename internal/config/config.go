package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"gopkg.in/yaml.v3"
	sigsyaml "sigs.k8s.io/yaml"
)

// GlobalConfig holds tool-wide settings shared by every build.
type GlobalConfig struct {
	WorkDir   string        `yaml:"workDir" json:"workDir"`
	CacheDir  string        `yaml:"cacheDir" json:"cacheDir"`
	OutputDir string        `yaml:"outputDir" json:"outputDir"`
	Workers   int           `yaml:"workers" json:"workers"`
	Keyring   string        `yaml:"keyring" json:"keyring"`
	Logging   LoggingConfig `yaml:"logging" json:"logging"`
}

// LoggingConfig controls log output.
type LoggingConfig struct {
	Level string `yaml:"level" json:"level"`
}

// GlConfig is the process-wide configuration, populated by Load.
var GlConfig = Default()

// configSchema validates the shape of the tool configuration file.
const configSchema = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "additionalProperties": false,
  "properties": {
    "workDir":   {"type": "string", "minLength": 1},
    "cacheDir":  {"type": "string", "minLength": 1},
    "outputDir": {"type": "string", "minLength": 1},
    "workers":   {"type": "integer", "minimum": 1, "maximum": 64},
    "keyring":   {"type": "string"},
    "logging": {
      "type": "object",
      "additionalProperties": false,
      "properties": {
        "level": {"enum": ["debug", "info", "warn", "error"]}
      }
    }
  }
}`

// Default returns the built-in configuration used when no file is given.
func Default() *GlobalConfig {
	return &GlobalConfig{
		WorkDir:   "builds",
		CacheDir:  "cache",
		OutputDir: "artifacts",
		Workers:   4,
		Logging:   LoggingConfig{Level: "info"},
	}
}

// Load reads, validates and applies a YAML configuration file on top of
// the defaults. The loaded configuration becomes GlConfig.
func Load(path string) (*GlobalConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}

	if err := validateSchema(data); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}

	GlConfig = cfg
	return cfg, nil
}

// validateSchema checks the raw YAML document against configSchema.
func validateSchema(data []byte) error {
	jsonData, err := sigsyaml.YAMLToJSON(data)
	if err != nil {
		return fmt.Errorf("converting to JSON: %w", err)
	}

	schema, err := jsonschema.CompileString("config.schema.json", configSchema)
	if err != nil {
		return fmt.Errorf("compiling config schema: %w", err)
	}

	var doc interface{}
	dec := json.NewDecoder(bytes.NewReader(jsonData))
	dec.UseNumber()
	if err := dec.Decode(&doc); err != nil {
		return fmt.Errorf("decoding config document: %w", err)
	}

	if err := schema.Validate(doc); err != nil {
		return fmt.Errorf("validating config: %w", err)
	}
	return nil
}

// AbsCacheDir returns the absolute path to the cache directory.
func (c *GlobalConfig) AbsCacheDir() (string, error) {
	return filepath.Abs(c.CacheDir)
}

// AbsWorkDir returns the absolute path to the work directory.
func (c *GlobalConfig) AbsWorkDir() (string, error) {
	return filepath.Abs(c.WorkDir)
}

// AbsOutputDir returns the absolute path to the artifact output directory.
func (c *GlobalConfig) AbsOutputDir() (string, error) {
	return filepath.Abs(c.OutputDir)
}

// CreateDirs ensures work, cache and output directories exist.
func (c *GlobalConfig) CreateDirs() error {
	for _, dir := range []string{c.WorkDir, c.CacheDir, c.OutputDir} {
		abs, err := filepath.Abs(dir)
		if err != nil {
			return fmt.Errorf("resolving directory %s: %w", dir, err)
		}
		if err := createDirIfNotExists(abs); err != nil {
			return fmt.Errorf("creating directory %s: %w", abs, err)
		}
	}
	return nil
}

// Helper function to create directories
func createDirIfNotExists(dir string) error {
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		return os.MkdirAll(dir, 0755)
	}
	return nil
}
