// Package dbx provides warehouse access over database/sql with
// automatic reconnection.
//
// Concrete drivers live in subdirectories and register themselves with
// this package's registry. Import the ones a program needs with a
// blank identifier:
//
//	import (
//		_ "github.com/wcap/wcplib/pkg/dbx/oracle"
//		_ "github.com/wcap/wcplib/pkg/dbx/postgres"
//	)
//
// Operations that hit a transient outage (listener down, dropped
// session, exhausted temp space) are retried on a long, patient
// schedule sized for overnight warehouse maintenance windows.
package dbx

import (
	"fmt"
	"strconv"
	"time"

	"github.com/wcap/wcplib/pkg/vault"
)

// Pool and retry defaults applied by New when the config leaves them
// zero.
const (
	DefaultMinConns   = 2
	DefaultMaxConns   = 5
	DefaultRetryLimit = 50
	DefaultRetryWait  = 5 * time.Minute
)

// Config describes one warehouse connection.
type Config struct {
	Driver   string `koanf:"driver"`
	User     string `koanf:"user"`
	Password string `koanf:"password"`
	Host     string `koanf:"host"`
	Port     int    `koanf:"port"`

	// Oracle targets name a Service or an SID; Postgres targets name a
	// Database. The connector validates what it needs.
	Service  string `koanf:"service"`
	SID      string `koanf:"sid"`
	Database string `koanf:"database"`

	MinConns int `koanf:"min_conns"`
	MaxConns int `koanf:"max_conns"`

	// Reconnect policy for retryable driver errors. RetryLimit counts
	// retries, not attempts.
	RetryLimit int           `koanf:"retry_limit"`
	RetryWait  time.Duration `koanf:"retry_wait"`

	// VaultID optionally names the password entry a CLI target pulls
	// its login from before connecting.
	VaultID int `koanf:"vault_id"`
}

func (c Config) withDefaults() Config {
	if c.MinConns <= 0 {
		c.MinConns = DefaultMinConns
	}
	if c.MaxConns <= 0 {
		c.MaxConns = DefaultMaxConns
	}
	if c.RetryLimit <= 0 {
		c.RetryLimit = DefaultRetryLimit
	}
	if c.RetryWait <= 0 {
		c.RetryWait = DefaultRetryWait
	}
	return c
}

// FromCredential copies a vault entry onto cfg: username, password and
// the connection details held in the entry's generic fields (Host,
// Port, and Service, SID or Database depending on the warehouse).
func FromCredential(cfg Config, cred *vault.Credential) (Config, error) {
	cfg.User = cred.UserName
	cfg.Password = cred.Password
	if v := cred.Field("Host"); v != "" {
		cfg.Host = v
	}
	if v := cred.Field("Port"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return cfg, fmt.Errorf("vault entry for %q has port %q: %w", cred.UserName, v, err)
		}
		cfg.Port = port
	}
	if v := cred.Field("Service"); v != "" {
		cfg.Service = v
	}
	if v := cred.Field("SID"); v != "" {
		cfg.SID = v
	}
	if v := cred.Field("Database"); v != "" {
		cfg.Database = v
	}
	return cfg, nil
}

// Stmt pairs a statement with its bind arguments for ExecAll.
type Stmt struct {
	Query string
	Args  []any
}

// Result holds a fully fetched query result.
type Result struct {
	Columns []string
	Rows    [][]any
}
