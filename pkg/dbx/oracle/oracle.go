// Package oracle provides the Oracle warehouse connector.
package oracle

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"strings"

	go_ora "github.com/sijms/go-ora/v2"

	"github.com/wcap/wcplib/pkg/dbx"
)

// RetryableCodes are the outage signatures worth waiting out:
// instance starting up, object no longer exists, library cache lock,
// temp segment exhausted.
var RetryableCodes = []string{"ORA-01033", "ORA-08103", "ORA-04021", "ORA-01652"}

// Connector implements dbx.Connector for Oracle.
type Connector struct {
	logger *slog.Logger
}

// New returns an Oracle connector. If logger is nil, a discard logger
// is used.
func New(logger *slog.Logger) *Connector {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Connector{logger: logger}
}

// Name reports the registry name.
func (c *Connector) Name() string { return "oracle" }

// Open dials the warehouse, by service name when one is set and by
// SID otherwise.
func (c *Connector) Open(ctx context.Context, cfg dbx.Config) (*sql.DB, error) {
	dsn, err := buildDSN(cfg)
	if err != nil {
		return nil, err
	}

	c.logger.Debug("connecting to oracle",
		slog.String("host", cfg.Host),
		slog.String("service", cfg.Service),
		slog.String("sid", cfg.SID))

	db, err := sql.Open("oracle", dsn)
	if err != nil {
		return nil, fmt.Errorf("open oracle connection: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping oracle: %w", err)
	}
	return db, nil
}

func buildDSN(cfg dbx.Config) (string, error) {
	if cfg.Service == "" && cfg.SID == "" {
		return "", fmt.Errorf("oracle target needs a service name or SID")
	}

	port := cfg.Port
	if port == 0 {
		port = 1521
	}
	var opts map[string]string
	if cfg.Service == "" {
		opts = map[string]string{"SID": cfg.SID}
	}
	return go_ora.BuildUrl(cfg.Host, port, cfg.Service, cfg.User, cfg.Password, opts), nil
}

// QuoteIdent validates and upper-cases a table or column reference.
func (c *Connector) QuoteIdent(ident string) (string, error) {
	return dbx.QuoteIdent(ident, strings.ToUpper)
}

// Placeholder formats Oracle positional binds (:1, :2, ...).
func (c *Connector) Placeholder(i int) string {
	return fmt.Sprintf(":%d", i)
}

// Retryable reports outage-shaped errors: the listed ORA codes, plus
// dial failures and dropped connections, which surface as net or EOF
// errors rather than server codes.
func (c *Connector) Retryable(err error) bool {
	if err == nil {
		return false
	}
	var netErr net.Error
	if errors.As(err, &netErr) || errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return true
	}
	msg := err.Error()
	for _, code := range RetryableCodes {
		if strings.Contains(msg, code) {
			return true
		}
	}
	return false
}

// Ensure Connector implements dbx.Connector.
var _ dbx.Connector = (*Connector)(nil)
