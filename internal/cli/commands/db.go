package commands

import (
	"context"
	"fmt"
	"maps"
	"os"
	"slices"
	"strings"
	"sync"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/wcap/wcplib/internal/cli/output"
	"github.com/wcap/wcplib/pkg/dbx"
)

// pingConcurrency bounds parallel connection checks.
const pingConcurrency = 4

// NewDBCommand creates the db command group.
func NewDBCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "db",
		Short: "Work with configured warehouse connections",
	}
	cmd.AddCommand(newDBPingCommand())
	cmd.AddCommand(newDBExecCommand())
	cmd.AddCommand(newDBShellCommand())
	return cmd
}

// pingResult is the JSON shape for connection checks.
type pingResult struct {
	Alias  string `json:"alias"`
	Driver string `json:"driver,omitempty"`
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

func newDBPingCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ping [alias...]",
		Short: "Check warehouse connectivity",
		Long: `Open each named connection and ping it. Without arguments every
configured database is checked.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cmdCtx := NewCommandContextWithoutState(cmd)
			r := cmdCtx.Renderer

			aliases := args
			if len(aliases) == 0 {
				aliases = slices.Sorted(maps.Keys(cmdCtx.Cfg.Databases))
			}
			if len(aliases) == 0 {
				return fmt.Errorf("no databases configured")
			}

			results := make([]pingResult, len(aliases))
			var mu sync.Mutex

			g, ctx := errgroup.WithContext(cmd.Context())
			g.SetLimit(pingConcurrency)
			for i, alias := range aliases {
				g.Go(func() error {
					res := pingTarget(ctx, cmdCtx, alias)
					mu.Lock()
					results[i] = res
					mu.Unlock()
					return nil
				})
			}
			_ = g.Wait()

			failed := 0
			for _, res := range results {
				if res.Status != "ok" {
					failed++
				}
			}

			if r.EffectiveMode() == output.ModeJSON {
				if err := r.JSON(results); err != nil {
					return err
				}
			} else {
				for _, res := range results {
					status := "success"
					detail := res.Driver
					if res.Status != "ok" {
						status = "failed"
						detail = res.Error
					}
					r.StatusLine(res.Alias, status, detail)
				}
			}

			if failed > 0 {
				return fmt.Errorf("%d of %d databases unreachable", failed, len(aliases))
			}
			return nil
		},
	}
	return cmd
}

func pingTarget(ctx context.Context, cmdCtx *CommandContext, alias string) pingResult {
	res := pingResult{Alias: alias, Status: "ok"}
	if cfg, ok := cmdCtx.Cfg.Databases[alias]; ok {
		res.Driver = cfg.Driver
	}

	db, err := cmdCtx.Database(ctx, alias)
	if err != nil {
		res.Status = "failed"
		res.Error = err.Error()
		return res
	}
	defer func() { _ = db.Close() }()

	if err := db.Ping(ctx); err != nil {
		res.Status = "failed"
		res.Error = err.Error()
	}
	return res
}

func newDBExecCommand() *cobra.Command {
	var scriptFile string

	cmd := &cobra.Command{
		Use:   "exec <alias> [statement]",
		Short: "Execute SQL against a warehouse",
		Long: `Execute a statement, or a script of semicolon-separated statements
from --file, against the named connection. Script statements run in a
single transaction.`,
		Example: `  # One statement
  wcpctl db exec prodbi "DELETE FROM stage_well_headers"

  # A maintenance script
  wcpctl db exec prodbi --file cleanup.sql`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 2 && scriptFile != "" {
				return fmt.Errorf("statement argument and --file are mutually exclusive")
			}
			if len(args) == 1 && scriptFile == "" {
				return fmt.Errorf("provide a statement or --file")
			}

			cmdCtx := NewCommandContextWithoutState(cmd)
			r := cmdCtx.Renderer
			ctx := cmd.Context()

			db, err := cmdCtx.Database(ctx, args[0])
			if err != nil {
				return err
			}
			defer func() { _ = db.Close() }()

			if scriptFile != "" {
				script, err := os.ReadFile(scriptFile)
				if err != nil {
					return fmt.Errorf("failed to read script: %w", err)
				}
				stmts := splitStatements(string(script))
				if len(stmts) == 0 {
					return fmt.Errorf("%s contains no statements", scriptFile)
				}
				if err := db.ExecAll(ctx, stmts); err != nil {
					return err
				}
				r.Success(fmt.Sprintf("%d statements executed on %s", len(stmts), args[0]))
				return nil
			}

			if err := db.Exec(ctx, args[1]); err != nil {
				return err
			}
			r.Success(fmt.Sprintf("statement executed on %s", args[0]))
			return nil
		},
	}

	cmd.Flags().StringVar(&scriptFile, "file", "", "Read semicolon-separated statements from a file")

	return cmd
}

// splitStatements cuts a script on semicolons, dropping empty chunks.
// Semicolons inside string literals are not handled; scripts with
// literal semicolons should run one statement at a time.
func splitStatements(script string) []dbx.Stmt {
	var stmts []dbx.Stmt
	for _, chunk := range strings.Split(script, ";") {
		chunk = strings.TrimSpace(chunk)
		if chunk == "" {
			continue
		}
		stmts = append(stmts, dbx.Stmt{Query: chunk})
	}
	return stmts
}
