package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// UserConfig represents ~/.rapid/config.yaml.
type UserConfig struct {
	CurrentProfile string             `yaml:"current-profile"`
	Profiles       map[string]Profile `yaml:"profiles"`
}

// Profile is one named set of connection settings.
type Profile struct {
	ClientID     string `yaml:"client-id,omitempty"`
	ClientSecret string `yaml:"client-secret,omitempty"`
	URL          string `yaml:"url,omitempty"`
	SSMPrefix    string `yaml:"ssm-prefix,omitempty"`
	Region       string `yaml:"region,omitempty"`
	AWSProfile   string `yaml:"aws-profile,omitempty"`
	// Static AWS keys for SSM and S3 access. Leave empty to use the default
	// credential chain.
	AWSAccessKeyID     string `yaml:"aws-access-key-id,omitempty"`
	AWSSecretAccessKey string `yaml:"aws-secret-access-key,omitempty"`
	Output             string `yaml:"output,omitempty"`
}

// ActiveProfile returns the named profile, or the current profile when
// override is empty. A missing current profile yields an empty Profile.
func (c *UserConfig) ActiveProfile(override string) (Profile, error) {
	name := c.CurrentProfile
	if override != "" {
		name = override
	}

	p, ok := c.Profiles[name]
	if !ok && override != "" {
		return Profile{}, fmt.Errorf("profile %q not found", override)
	}

	return p, nil
}

// ConfigDir returns the path to ~/.rapid/.
func ConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".rapid")
}

// ConfigPath returns the path to ~/.rapid/config.yaml.
func ConfigPath() string {
	return filepath.Join(ConfigDir(), "config.yaml")
}

// LoadUserConfig reads ~/.rapid/config.yaml. A missing file yields an empty
// config.
func LoadUserConfig() (*UserConfig, error) {
	data, err := os.ReadFile(ConfigPath())
	if errors.Is(err, fs.ErrNotExist) {
		return &UserConfig{Profiles: map[string]Profile{}}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var cfg UserConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if cfg.Profiles == nil {
		cfg.Profiles = map[string]Profile{}
	}

	return &cfg, nil
}

// SaveUserConfig writes ~/.rapid/config.yaml.
func SaveUserConfig(cfg *UserConfig) error {
	if err := os.MkdirAll(ConfigDir(), 0o700); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	return os.WriteFile(ConfigPath(), data, 0o600)
}
