// Package auth resolves rAPId credentials and exchanges them for bearer tokens.
//
// Credentials come from an explicit Config. Environment lookup is a separate
// step (ConfigFromEnv) meant for the calling shell or CLI, and credentials can
// also be read from AWS SSM Parameter Store (LoadConfigFromSSM).
package auth

import (
	"os"
	"time"

	"github.com/no10ds/rapid-sdk-go/rapiderr"
)

// Environment variables consulted by ConfigFromEnv.
const (
	EnvClientID     = "RAPID_CLIENT_ID"
	EnvClientSecret = "RAPID_CLIENT_SECRET"
	EnvURL          = "RAPID_URL"
)

// DefaultTimeout bounds every outbound HTTP request.
const DefaultTimeout = 30 * time.Second

// Config holds the credentials for one rAPId instance.
type Config struct {
	ClientID     string
	ClientSecret string
	// URL is the base URL of the instance, e.g. https://rapid.example.gov.uk/api.
	URL string
}

// Validate checks that every field is set.
func (c Config) Validate() error {
	switch {
	case c.ClientID == "":
		return &rapiderr.CannotFindCredentialError{EnvVar: EnvClientID}
	case c.ClientSecret == "":
		return &rapiderr.CannotFindCredentialError{EnvVar: EnvClientSecret}
	case c.URL == "":
		return &rapiderr.CannotFindCredentialError{EnvVar: EnvURL}
	}

	return nil
}

// Resolve returns explicit when non-empty, otherwise the value of envVar.
func Resolve(explicit, envVar string) (string, error) {
	if explicit != "" {
		return explicit, nil
	}

	if v := os.Getenv(envVar); v != "" {
		return v, nil
	}

	return "", &rapiderr.CannotFindCredentialError{EnvVar: envVar}
}

// ConfigFromEnv fills any empty argument from RAPID_CLIENT_ID,
// RAPID_CLIENT_SECRET and RAPID_URL.
func ConfigFromEnv(clientID, clientSecret, url string) (Config, error) {
	var (
		cfg Config
		err error
	)

	if cfg.ClientID, err = Resolve(clientID, EnvClientID); err != nil {
		return Config{}, err
	}
	if cfg.ClientSecret, err = Resolve(clientSecret, EnvClientSecret); err != nil {
		return Config{}, err
	}
	if cfg.URL, err = Resolve(url, EnvURL); err != nil {
		return Config{}, err
	}

	return cfg, nil
}
