package commands

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/wcap/wcplib/internal/state"
	"github.com/wcap/wcplib/pkg/mailer"
	"github.com/wcap/wcplib/pkg/vault"
)

const configFileName = "wcpctl.yaml"

// NewInitCommand creates the init command.
func NewInitCommand() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "init [directory]",
		Short: "Write a starter wcpctl.yaml",
		Long: `Write a starter wcpctl.yaml with the default endpoints and
commented examples for every section.

Secrets are left empty: fill in vault.api_key and the graph
application registration, or provide them through WCP_-prefixed
environment variables.`,
		Example: `  # Initialize in the current directory
  wcpctl init

  # Initialize in a new directory
  wcpctl init ops-config

  # Overwrite an existing config
  wcpctl init --force`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := "."
			if len(args) > 0 {
				dir = args[0]
			}
			cmdCtx := NewCommandContextWithoutState(cmd)
			return runInit(cmdCtx, dir, force)
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Overwrite existing configuration")

	return cmd
}

func runInit(cmdCtx *CommandContext, dir string, force bool) error {
	r := cmdCtx.Renderer

	if dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	configPath := filepath.Join(dir, configFileName)
	if _, err := os.Stat(configPath); err == nil && !force {
		return fmt.Errorf("%s already exists. Use --force to overwrite", configPath)
	}

	if err := os.WriteFile(configPath, []byte(starterConfig()), 0o600); err != nil {
		return fmt.Errorf("failed to write %s: %w", configPath, err)
	}

	r.StatusLine(configPath, "success", "")
	r.Println("")
	r.Success("wcpctl configuration initialized!")
	r.Println("")
	r.Println("Next steps:")
	r.Println("  1. Fill in vault.api_key (or export WCP_VAULT__API_KEY)")
	r.Println("  2. Add warehouse targets under databases:")
	r.Println("  3. Run 'wcpctl doctor' to verify connectivity")

	return nil
}

// starterConfig renders the starter file from the package defaults so
// the template never drifts from the code.
func starterConfig() string {
	return fmt.Sprintf(`# wcpctl configuration.
# Every value can be overridden with a WCP_-prefixed environment
# variable; a double underscore separates nesting levels, e.g.
# WCP_VAULT__API_KEY overrides vault.api_key.

vault:
  url: %s
  api_key: ""
  timeout: 30s

smtp:
  host: %s
  port: %d

graph:
  tenant_id: ""
  client_id: ""
  client_secret: ""
  notification_url: ""
  # store: /path/to/subscriptions.json

state:
  path: %s

log:
  level: info
  format: text
  # dir: logs

databases: {}
  # prodbi:
  #   driver: oracle
  #   host: ora.wcap.ca
  #   port: 1521
  #   service: PRODBI
  #   vault_id: 4711
  # staging:
  #   driver: postgres
  #   host: pg.wcap.ca
  #   database: staging
  #   user: etl
`, vault.DefaultBaseURL, mailer.DefaultHost, mailer.DefaultPort, state.DefaultPath)
}
