// Package config provides configuration management for the wcpctl CLI.
//
// Configuration is merged from four layers: built-in defaults, a
// wcpctl.yaml file, WCP_-prefixed environment variables, and
// command-line flags, in increasing order of precedence.
package config

import (
	"time"

	"github.com/wcap/wcplib/pkg/dbx"
)

// Config holds all wcpctl configuration options.
type Config struct {
	Verbose      bool   `koanf:"verbose"`
	OutputFormat string `koanf:"output"`

	Vault VaultConfig `koanf:"vault"`
	SMTP  SMTPConfig  `koanf:"smtp"`
	Graph GraphConfig `koanf:"graph"`
	State StateConfig `koanf:"state"`
	Log   LogConfig   `koanf:"log"`

	// Databases maps connection aliases onto warehouse targets for the
	// db subcommands.
	Databases map[string]dbx.Config `koanf:"databases"`
}

// VaultConfig holds credentials for the password vault API.
type VaultConfig struct {
	URL     string        `koanf:"url"`
	APIKey  string        `koanf:"api_key"`
	Timeout time.Duration `koanf:"timeout"`
}

// SMTPConfig names the mail relay used by notify and reports.
type SMTPConfig struct {
	Host string `koanf:"host"`
	Port int    `koanf:"port"`
}

// GraphConfig holds the Microsoft Graph application registration.
type GraphConfig struct {
	TenantID        string `koanf:"tenant_id"`
	ClientID        string `koanf:"client_id"`
	ClientSecret    string `koanf:"client_secret"`
	NotificationURL string `koanf:"notification_url"`

	// Store optionally names a JSON file for subscription records.
	// When empty, records live in the state database.
	Store string `koanf:"store"`

	// BaseURL and LoginURL default to the public cloud endpoints and
	// exist for sovereign clouds and tests.
	BaseURL  string `koanf:"base_url"`
	LoginURL string `koanf:"login_url"`
}

// StateConfig locates the local state database.
type StateConfig struct {
	Path string `koanf:"path"`
}

// LogConfig controls structured logging.
type LogConfig struct {
	Level   string `koanf:"level"`
	Format  string `koanf:"format"`
	Dir     string `koanf:"dir"`
	Console bool   `koanf:"console"`
}

// Default configuration values.
const (
	DefaultOutput       = "auto"
	DefaultLogLevel     = "info"
	DefaultLogFormat    = "text"
	DefaultVaultTimeout = 30 * time.Second
)
