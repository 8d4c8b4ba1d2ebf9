// Package postgres provides the Postgres warehouse connector.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib" // registers the pgx database/sql driver

	"github.com/wcap/wcplib/pkg/dbx"
)

// RetryableCodes are the SQLSTATE values worth waiting out: the
// server refusing new sessions while starting up or shutting down.
var RetryableCodes = []string{"08001", "08004"}

// Connector implements dbx.Connector for Postgres.
type Connector struct {
	logger *slog.Logger
}

// New returns a Postgres connector. If logger is nil, a discard
// logger is used.
func New(logger *slog.Logger) *Connector {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Connector{logger: logger}
}

// Name reports the registry name.
func (c *Connector) Name() string { return "postgres" }

// Open dials the warehouse.
func (c *Connector) Open(ctx context.Context, cfg dbx.Config) (*sql.DB, error) {
	if cfg.Database == "" {
		return nil, fmt.Errorf("postgres target needs a database name")
	}

	c.logger.Debug("connecting to postgres",
		slog.String("host", cfg.Host),
		slog.String("database", cfg.Database))

	db, err := sql.Open("pgx", buildDSN(cfg))
	if err != nil {
		return nil, fmt.Errorf("open postgres connection: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return db, nil
}

// buildDSN constructs a key/value connection string.
func buildDSN(cfg dbx.Config) string {
	host := cfg.Host
	if host == "" {
		host = "localhost"
	}
	port := cfg.Port
	if port == 0 {
		port = 5432
	}

	parts := []string{
		fmt.Sprintf("host=%s", host),
		fmt.Sprintf("port=%d", port),
		fmt.Sprintf("dbname=%s", cfg.Database),
	}
	if cfg.User != "" {
		parts = append(parts, fmt.Sprintf("user=%s", cfg.User))
	}
	if cfg.Password != "" {
		parts = append(parts, fmt.Sprintf("password=%s", cfg.Password))
	}
	return strings.Join(parts, " ")
}

// QuoteIdent validates and lower-cases a table or column reference.
func (c *Connector) QuoteIdent(ident string) (string, error) {
	return dbx.QuoteIdent(ident, strings.ToLower)
}

// Placeholder formats Postgres positional binds ($1, $2, ...).
func (c *Connector) Placeholder(i int) string {
	return fmt.Sprintf("$%d", i)
}

// Retryable reports outage-shaped errors: connection-class SQLSTATEs,
// plus dial failures and dropped connections.
func (c *Connector) Retryable(err error) bool {
	if err == nil {
		return false
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		for _, code := range RetryableCodes {
			if pgErr.Code == code {
				return true
			}
		}
		// Class 08 covers the remaining connection exceptions.
		return strings.HasPrefix(pgErr.Code, "08")
	}
	var netErr net.Error
	return errors.As(err, &netErr) || errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF)
}

// Ensure Connector implements dbx.Connector.
var _ dbx.Connector = (*Connector)(nil)
