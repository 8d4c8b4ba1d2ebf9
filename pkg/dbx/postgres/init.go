// This file registers the Postgres connector with the dbx registry.
// Import this package with a blank identifier to register it:
//
//	import _ "github.com/wcap/wcplib/pkg/dbx/postgres"
package postgres

import (
	"log/slog"

	"github.com/wcap/wcplib/pkg/dbx"
)

func init() {
	dbx.Register("postgres", func(l *slog.Logger) dbx.Connector { return New(l) })
}
