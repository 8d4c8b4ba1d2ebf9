package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/chzyer/readline"
	"github.com/spf13/cobra"

	"github.com/wcap/wcplib/internal/cli/output"
	"github.com/wcap/wcplib/pkg/dbx"
)

func newDBShellCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "shell <alias>",
		Short: "Open an interactive SQL shell",
		Long: `Open an interactive SQL shell on the named connection.

Statements end with a semicolon and may span lines. Backslash
commands: \dt lists tables, \h shows help, \q quits.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cmdCtx := NewCommandContextWithoutState(cmd)
			ctx := cmd.Context()

			db, err := cmdCtx.Database(ctx, args[0])
			if err != nil {
				return err
			}
			defer func() { _ = db.Close() }()

			return runShell(ctx, cmd, cmdCtx, db, args[0])
		},
	}
	return cmd
}

func runShell(ctx context.Context, cmd *cobra.Command, cmdCtx *CommandContext, db *dbx.DB, alias string) error {
	r := cmdCtx.Renderer
	prompt := alias + "> "
	const contPrompt = "  ...> "

	historyFile := ""
	if home, err := os.UserHomeDir(); err == nil {
		historyFile = filepath.Join(home, ".wcplib", "shell_history")
	}

	rl, err := readline.NewEx(&readline.Config{
		Prompt:          prompt,
		HistoryFile:     historyFile,
		InterruptPrompt: "^C",
		EOFPrompt:       `\q`,
		Stdin:           io.NopCloser(cmd.InOrStdin()),
		Stdout:          cmd.OutOrStdout(),
		Stderr:          cmd.ErrOrStderr(),
	})
	if err != nil {
		return fmt.Errorf("failed to initialize shell: %w", err)
	}
	defer func() { _ = rl.Close() }()

	r.Printf("Connected to %s (%s)\n", alias, db.Driver())
	r.Println(`Statements end with ';'. Type \h for help, \q to quit.`)
	r.Println("")

	var buffer strings.Builder
	for {
		line, err := rl.Readline()
		if errors.Is(err, readline.ErrInterrupt) {
			buffer.Reset()
			rl.SetPrompt(prompt)
			continue
		}
		if errors.Is(err, io.EOF) {
			break
		}

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		// Backslash commands work only outside a pending statement.
		if buffer.Len() == 0 && strings.HasPrefix(line, `\`) {
			if quit := handleShellCommand(ctx, r, db, line); quit {
				break
			}
			continue
		}

		buffer.WriteString(line)
		if !strings.HasSuffix(line, ";") {
			buffer.WriteString(" ")
			rl.SetPrompt(contPrompt)
			continue
		}
		rl.SetPrompt(prompt)

		query := strings.TrimSuffix(strings.TrimSpace(buffer.String()), ";")
		buffer.Reset()

		if err := runShellStatement(ctx, r, db, query); err != nil {
			_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "Error: %v\n", err)
		}
	}

	return nil
}

func runShellStatement(ctx context.Context, r *output.Renderer, db *dbx.DB, query string) error {
	started := time.Now()
	if isQueryStatement(query) {
		res, err := db.Query(ctx, query)
		if err != nil {
			return err
		}
		renderResult(r, res)
		r.Printf("(%d rows in %s)\n\n", len(res.Rows), time.Since(started).Round(time.Millisecond))
		return nil
	}

	if err := db.Exec(ctx, query); err != nil {
		return err
	}
	r.Printf("OK (%s)\n\n", time.Since(started).Round(time.Millisecond))
	return nil
}

// isQueryStatement reports whether the statement produces a result
// set and should be fetched rather than executed.
func isQueryStatement(query string) bool {
	head := strings.ToUpper(strings.TrimSpace(query))
	for _, prefix := range []string{"SELECT", "WITH", "SHOW", "EXPLAIN", "DESC", "VALUES"} {
		if strings.HasPrefix(head, prefix) {
			return true
		}
	}
	return false
}

// renderResult writes a fetched result set as a table, or as JSON
// when the renderer is in JSON mode.
func renderResult(r *output.Renderer, res *dbx.Result) {
	if r.EffectiveMode() == output.ModeJSON {
		out := make([]map[string]any, 0, len(res.Rows))
		for _, row := range res.Rows {
			m := make(map[string]any, len(res.Columns))
			for i, col := range res.Columns {
				m[col] = normalizeValue(row[i])
			}
			out = append(out, m)
		}
		_ = r.JSON(out)
		return
	}

	if len(res.Rows) == 0 {
		return
	}
	rows := make([][]string, 0, len(res.Rows))
	for _, row := range res.Rows {
		cells := make([]string, len(row))
		for i, v := range row {
			cells[i] = formatValue(v)
		}
		rows = append(rows, cells)
	}
	r.Table(res.Columns, rows)
}

func handleShellCommand(ctx context.Context, r *output.Renderer, db *dbx.DB, line string) (quit bool) {
	parts := strings.Fields(line)
	switch parts[0] {
	case `\q`, `\quit`:
		return true

	case `\h`, `\help`:
		r.Println(`
Commands:
  \dt             List tables
  \h              Show this help message
  \q              Quit the shell

Statements end with a semicolon and may span lines.`)
		return false

	case `\dt`:
		res, err := db.Query(ctx, tableListQuery(db.Driver()))
		if err != nil {
			r.Error(err.Error())
			return false
		}
		renderResult(r, res)
		r.Printf("(%d tables)\n\n", len(res.Rows))
		return false

	default:
		r.Error(fmt.Sprintf(`unknown command %s (type \h for help)`, parts[0]))
		return false
	}
}

// tableListQuery returns the driver's catalog query for \dt.
func tableListQuery(driver string) string {
	switch driver {
	case "postgres":
		return `SELECT table_name FROM information_schema.tables WHERE table_schema = 'public' ORDER BY table_name`
	case "oracle":
		return `SELECT table_name FROM user_tables ORDER BY table_name`
	default:
		return `SELECT name AS table_name FROM sqlite_master WHERE type = 'table' ORDER BY name`
	}
}

func formatValue(v any) string {
	switch val := v.(type) {
	case nil:
		return "NULL"
	case []byte:
		return string(val)
	case time.Time:
		return val.Format(time.RFC3339)
	default:
		return fmt.Sprintf("%v", v)
	}
}

func normalizeValue(v any) any {
	if b, ok := v.([]byte); ok {
		return string(b)
	}
	return v
}
