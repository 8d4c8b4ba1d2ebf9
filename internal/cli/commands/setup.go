package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"net/http"
	"os"
	"slices"
	"strings"

	"github.com/spf13/cobra"

	"github.com/wcap/wcplib/internal/cli/config"
	"github.com/wcap/wcplib/internal/cli/output"
	"github.com/wcap/wcplib/internal/state"
	"github.com/wcap/wcplib/pkg/dbx"
	_ "github.com/wcap/wcplib/pkg/dbx/oracle"   // register oracle connector
	_ "github.com/wcap/wcplib/pkg/dbx/postgres" // register postgres connector
	"github.com/wcap/wcplib/pkg/graph"
	"github.com/wcap/wcplib/pkg/logging"
	"github.com/wcap/wcplib/pkg/mailer"
	"github.com/wcap/wcplib/pkg/vault"
)

// CommandContext holds common dependencies for CLI commands.
type CommandContext struct {
	Cfg      *config.Config
	Logger   *slog.Logger
	State    *state.Store
	Renderer *output.Renderer
}

// NewCommandContext creates a CommandContext with an open, migrated
// state store. Returns the context and a cleanup function that must be
// called (typically via defer).
func NewCommandContext(cmd *cobra.Command) (*CommandContext, func(), error) {
	cmdCtx := NewCommandContextWithoutState(cmd)

	store, err := state.Open(cmdCtx.Cfg.State.Path, logging.ForComponent(cmdCtx.Logger, "state"))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open state database: %w", err)
	}
	if err := store.Migrate(); err != nil {
		_ = store.Close()
		return nil, nil, fmt.Errorf("failed to migrate state database: %w", err)
	}

	cmdCtx.State = store
	cleanup := func() {
		_ = store.Close()
	}
	return cmdCtx, cleanup, nil
}

// NewCommandContextWithoutState creates a CommandContext without
// opening the state database. Useful for commands that don't touch
// local state.
func NewCommandContextWithoutState(cmd *cobra.Command) *CommandContext {
	cfg := getConfig()
	logger := config.GetLogger(cmd.Context())
	mode := output.Mode(cfg.OutputFormat)
	r := output.NewRenderer(cmd.OutOrStdout(), cmd.ErrOrStderr(), mode)

	return &CommandContext{
		Cfg:      cfg,
		Logger:   logger,
		Renderer: r,
	}
}

// getConfig returns the current configuration. It uses
// config.GetCurrentConfig() if available, otherwise loads from the
// environment.
func getConfig() *config.Config {
	if cfg := config.GetCurrentConfig(); cfg != nil {
		return cfg
	}
	if cfg, err := config.Load(os.Getenv("WCP_CONFIG"), nil); err == nil {
		return cfg
	}
	return &config.Config{OutputFormat: config.DefaultOutput}
}

// VaultClient builds a vault client from the configuration.
func (c *CommandContext) VaultClient() (*vault.Client, error) {
	if c.Cfg.Vault.APIKey == "" {
		return nil, errors.New("vault API key is not configured (set vault.api_key or WCP_VAULT__API_KEY)")
	}
	opts := []vault.ClientOption{vault.WithLogger(logging.ForComponent(c.Logger, "vault"))}
	if c.Cfg.Vault.URL != "" {
		opts = append(opts, vault.WithBaseURL(c.Cfg.Vault.URL))
	}
	if c.Cfg.Vault.Timeout > 0 {
		opts = append(opts, vault.WithHTTPClient(&http.Client{Timeout: c.Cfg.Vault.Timeout}))
	}
	return vault.NewClient(c.Cfg.Vault.APIKey, opts...), nil
}

// GraphClient builds a Microsoft Graph client from the configuration.
func (c *CommandContext) GraphClient() (*graph.Client, error) {
	g := c.Cfg.Graph
	if g.TenantID == "" || g.ClientID == "" || g.ClientSecret == "" {
		return nil, errors.New("graph credentials are not configured (set graph.tenant_id, graph.client_id and graph.client_secret)")
	}

	var tokenOpts []graph.TokenOption
	if g.LoginURL != "" {
		tokenOpts = append(tokenOpts, graph.WithLoginURL(g.LoginURL))
	}
	tokens := graph.NewTokenSource(g.TenantID, g.ClientID, g.ClientSecret, tokenOpts...)

	opts := []graph.ClientOption{graph.WithLogger(logging.ForComponent(c.Logger, "graph"))}
	if g.BaseURL != "" {
		opts = append(opts, graph.WithBaseURL(g.BaseURL))
	}
	return graph.NewClient(tokens, opts...), nil
}

// SubscriptionStore returns the configured subscription store. A path
// in graph.store selects the JSON file store; otherwise records live
// in the state database.
func (c *CommandContext) SubscriptionStore() (graph.Store, error) {
	if c.Cfg.Graph.Store != "" {
		return graph.NewFileStore(c.Cfg.Graph.Store), nil
	}
	if c.State == nil {
		return nil, errors.New("state database is not open")
	}
	return c.State, nil
}

// Mailer builds an SMTP client from the configuration.
func (c *CommandContext) Mailer() *mailer.Client {
	opts := []mailer.Option{mailer.WithLogger(logging.ForComponent(c.Logger, "mailer"))}
	if c.Cfg.SMTP.Host != "" {
		opts = append(opts, mailer.WithHost(c.Cfg.SMTP.Host))
	}
	if c.Cfg.SMTP.Port > 0 {
		opts = append(opts, mailer.WithPort(c.Cfg.SMTP.Port))
	}
	return mailer.New(opts...)
}

// Database opens the aliased warehouse connection. When the target
// names a vault entry and carries no password, the login is pulled
// from the vault first.
func (c *CommandContext) Database(ctx context.Context, alias string) (*dbx.DB, error) {
	dbCfg, ok := c.Cfg.Databases[alias]
	if !ok {
		known := slices.Sorted(maps.Keys(c.Cfg.Databases))
		if len(known) == 0 {
			return nil, fmt.Errorf("unknown database %q (no databases configured)", alias)
		}
		return nil, fmt.Errorf("unknown database %q (configured: %s)", alias, strings.Join(known, ", "))
	}

	if dbCfg.Password == "" && dbCfg.VaultID > 0 {
		vc, err := c.VaultClient()
		if err != nil {
			return nil, fmt.Errorf("database %q needs vault entry %d: %w", alias, dbCfg.VaultID, err)
		}
		cred, err := vc.Get(ctx, dbCfg.VaultID)
		if err != nil {
			return nil, fmt.Errorf("fetch vault entry %d for %q: %w", dbCfg.VaultID, alias, err)
		}
		dbCfg, err = dbx.FromCredential(dbCfg, cred)
		if err != nil {
			return nil, err
		}
	}

	return dbx.Open(ctx, dbCfg, logging.ForComponent(c.Logger, "dbx"))
}
