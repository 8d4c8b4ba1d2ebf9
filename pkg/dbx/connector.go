package dbx

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"sort"
	"sync"
)

// Connector is the per-warehouse driver contract. Implementations
// open database/sql handles, classify transient errors, and carry
// their dialect's identifier and placeholder rules.
type Connector interface {
	// Name reports the registry name ("oracle", "postgres").
	Name() string

	// Open dials the warehouse and verifies the connection.
	Open(ctx context.Context, cfg Config) (*sql.DB, error)

	// QuoteIdent validates and quotes a table or column reference
	// before it is spliced into generated SQL.
	QuoteIdent(ident string) (string, error)

	// Placeholder formats the i-th bind marker, 1-based.
	Placeholder(i int) string

	// Retryable reports whether err is a transient outage worth
	// waiting out.
	Retryable(err error) bool
}

var (
	registryMu sync.RWMutex
	registry   = make(map[string]func(*slog.Logger) Connector)
)

// Register adds a connector factory to the registry. Driver packages
// call this from init().
func Register(name string, factory func(*slog.Logger) Connector) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[name] = factory
}

// Drivers returns all registered driver names, sorted.
func Drivers() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func lookup(name string, logger *slog.Logger) (Connector, error) {
	if name == "" {
		return nil, fmt.Errorf("driver not specified")
	}
	registryMu.RLock()
	factory, ok := registry[name]
	registryMu.RUnlock()
	if !ok {
		return nil, &UnknownDriverError{Driver: name, Available: Drivers()}
	}
	return factory(logger), nil
}

// UnknownDriverError is returned when a config names a driver no
// imported package registered.
type UnknownDriverError struct {
	Driver    string
	Available []string
}

func (e *UnknownDriverError) Error() string {
	return fmt.Sprintf("unknown database driver %q (available: %v)", e.Driver, e.Available)
}
