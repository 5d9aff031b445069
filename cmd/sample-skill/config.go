// ABOUTME: Configuration loading for the sample skill
// ABOUTME: Loads TOML config with environment variable expansion

package main

import (
	"fmt"
	"os"
	"regexp"
	"strings"

	"github.com/BurntSushi/toml"
)

type Config struct {
	Skill   SkillConfig   `toml:"skill"`
	Logging LoggingConfig `toml:"logging"`
}

type SkillConfig struct {
	Addr      string `toml:"addr"`
	Path      string `toml:"path"`
	IntroText string `toml:"intro_text"`
	EndPhrase string `toml:"end_phrase"`
	AppID     string `toml:"app_id"`
	AppSecret string `toml:"app_secret"`
}

type LoggingConfig struct {
	Level string `toml:"level"`
}

// Load reads config from the given path, expanding environment variables.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	// Expand environment variables (${VAR} syntax)
	expanded := expandEnvVars(string(data))

	var cfg Config
	if _, err := toml.Decode(expanded, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	cfg.applyDefaults()
	return &cfg, nil
}

// expandEnvVars replaces ${VAR} with environment variable values.
func expandEnvVars(s string) string {
	re := regexp.MustCompile(`\$\{([^}]+)\}`)
	return re.ReplaceAllStringFunc(s, func(match string) string {
		varName := strings.TrimSuffix(strings.TrimPrefix(match, "${"), "}")
		return os.Getenv(varName)
	})
}

func (c *Config) applyDefaults() {
	if c.Skill.Addr == "" {
		c.Skill.Addr = "localhost:8480"
	}
	if c.Skill.Path == "" {
		c.Skill.Path = "/skill"
	}
	if c.Skill.IntroText == "" {
		c.Skill.IntroText = "Hi, I'm the sample skill. Say something and I'll echo it."
	}
	if c.Skill.EndPhrase == "" {
		c.Skill.EndPhrase = "end"
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
}
