// ABOUTME: Configuration loading and parsing for the skill host
// ABOUTME: Supports YAML files with environment variable expansion

package config

import (
	"fmt"
	"os"
	"regexp"

	"gopkg.in/yaml.v3"
)

// Config represents the complete skill-host configuration
type Config struct {
	Database DatabaseConfig `yaml:"database"`
	Bot      BotConfig      `yaml:"bot"`
	Skills   []SkillConfig  `yaml:"skills"`
	Flows    []FlowConfig   `yaml:"flows"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// BotConfig holds notice and welcome text for the root bot. Empty fields fall
// back to the library defaults.
type BotConfig struct {
	WelcomeText       string `yaml:"welcome_text"`
	NotUnderstoodText string `yaml:"not_understood_text"`
	SkillEndedText    string `yaml:"skill_ended_text"`
	SkillFailureText  string `yaml:"skill_failure_text"`
}

// SkillConfig describes one remote skill endpoint and its app credentials.
type SkillConfig struct {
	ID        string `yaml:"id"`
	Endpoint  string `yaml:"endpoint"`
	AppID     string `yaml:"app_id"`
	AppSecret string `yaml:"app_secret"`
}

// FlowConfig maps a routing key to a skill flow. The flow tag defaults to the
// key; a semantic action, when present, is attached to the activity that
// starts the flow.
type FlowConfig struct {
	Key            string                `yaml:"key"`
	Flow           string                `yaml:"flow"`
	Skill          string                `yaml:"skill"`
	SemanticAction *SemanticActionConfig `yaml:"semantic_action"`
}

// SemanticActionConfig is the configured decoration for a flow starter.
type SemanticActionConfig struct {
	Name     string         `yaml:"name"`
	Entities map[string]any `yaml:"entities"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Load reads a configuration file from the given path and returns a parsed
// Config. Environment variables in the format ${VAR_NAME} are expanded.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	expanded := expandEnvVars(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

// expandEnvVars replaces ${VAR_NAME} patterns with the corresponding
// environment variable values. Unset variables become empty strings.
func expandEnvVars(s string) string {
	re := regexp.MustCompile(`\$\{([^}]+)\}`)

	return re.ReplaceAllStringFunc(s, func(match string) string {
		varName := re.FindStringSubmatch(match)[1]
		return os.Getenv(varName)
	})
}

// Validate checks that all required configuration fields are present and
// consistent. Returns an error describing the first failure encountered.
func (c *Config) Validate() error {
	if c.Database.Path == "" {
		return fmt.Errorf("database.path is required")
	}

	skillIDs := make(map[string]bool, len(c.Skills))
	for i, sk := range c.Skills {
		if sk.ID == "" {
			return fmt.Errorf("skills[%d].id is required", i)
		}
		if sk.Endpoint == "" {
			return fmt.Errorf("skill %s: endpoint is required", sk.ID)
		}
		if skillIDs[sk.ID] {
			return fmt.Errorf("skill %s: duplicate id", sk.ID)
		}
		skillIDs[sk.ID] = true
	}

	for i, flow := range c.Flows {
		if flow.Key == "" {
			return fmt.Errorf("flows[%d].key is required", i)
		}
		if flow.Skill == "" {
			return fmt.Errorf("flow %s: skill is required", flow.Key)
		}
		if !skillIDs[flow.Skill] {
			return fmt.Errorf("flow %s: unknown skill %s", flow.Key, flow.Skill)
		}
		if flow.SemanticAction != nil && flow.SemanticAction.Name == "" {
			return fmt.Errorf("flow %s: semantic_action.name is required", flow.Key)
		}
	}

	return nil
}

// StarterKeys returns the configured flow keys in declaration order. The host
// uses them as the welcome menu's suggested actions.
func (c *Config) StarterKeys() []string {
	keys := make([]string, len(c.Flows))
	for i, flow := range c.Flows {
		keys[i] = flow.Key
	}
	return keys
}
