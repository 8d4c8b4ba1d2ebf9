// This file registers the Oracle connector with the dbx registry.
// Import this package with a blank identifier to register it:
//
//	import _ "github.com/wcap/wcplib/pkg/dbx/oracle"
package oracle

import (
	"log/slog"

	"github.com/wcap/wcplib/pkg/dbx"
)

func init() {
	dbx.Register("oracle", func(l *slog.Logger) dbx.Connector { return New(l) })
}
