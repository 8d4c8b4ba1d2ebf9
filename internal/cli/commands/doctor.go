package commands

import (
	"context"
	"fmt"
	"net"
	"sort"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/wcap/wcplib/internal/cli/config"
	"github.com/wcap/wcplib/internal/cli/output"
	"github.com/wcap/wcplib/internal/state"
	"github.com/wcap/wcplib/pkg/graph"
	"github.com/wcap/wcplib/pkg/logging"
	"github.com/wcap/wcplib/pkg/vault"
)

const (
	checkTimeout    = 10 * time.Second
	smtpDialTimeout = 3 * time.Second

	// doctorConcurrency bounds parallel connectivity checks.
	doctorConcurrency = 4
)

// DoctorOptions holds options for the doctor command.
type DoctorOptions struct {
	Format string // Output format: text, json
}

// NewDoctorCommand creates the doctor command.
func NewDoctorCommand() *cobra.Command {
	opts := &DoctorOptions{}
	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Run a comprehensive environment health check",
		Long: `Probe everything wcpctl is configured to talk to and report what
works and what does not.

The doctor command checks:
- Configuration file and local state database
- Vault, SMTP relay and Graph credentials
- Every configured database connection

Checks for services without credentials in the configuration are
skipped, not failed.`,
		Example: `  # Run the health check
  wcpctl doctor

  # Output as JSON
  wcpctl doctor --format json`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runDoctor(cmd, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.Format, "format", "f", "", "Output format: text, json")

	return cmd
}

// DoctorOutput is the JSON output for the doctor command.
type DoctorOutput struct {
	Checks  []HealthCheck `json:"checks"`
	Passed  int           `json:"passed"`
	Failed  int           `json:"failed"`
	Skipped int           `json:"skipped"`
}

// HealthCheck represents a single health check result.
type HealthCheck struct {
	Name   string `json:"name"`
	Group  string `json:"group"`
	Status string `json:"status"` // "pass", "error", "skipped"
	Detail string `json:"detail,omitempty"`
}

// healthProbe is one named check waiting to run.
type healthProbe struct {
	name  string
	group string
	run   func(ctx context.Context) (string, error)
}

func runDoctor(cmd *cobra.Command, opts *DoctorOptions) error {
	cmdCtx := NewCommandContextWithoutState(cmd)
	r := cmdCtx.Renderer

	// Override renderer if format flag is set
	if opts.Format != "" {
		r = output.NewRenderer(cmd.OutOrStdout(), cmd.ErrOrStderr(), output.Mode(opts.Format))
	}

	probes, skipped := buildProbes(cmdCtx)
	results := make([]HealthCheck, len(probes))

	g, gctx := errgroup.WithContext(cmd.Context())
	g.SetLimit(doctorConcurrency)
	for i, probe := range probes {
		g.Go(func() error {
			ctx, cancel := context.WithTimeout(gctx, checkTimeout)
			defer cancel()

			check := HealthCheck{Name: probe.name, Group: probe.group, Status: "pass"}
			detail, err := probe.run(ctx)
			if err != nil {
				check.Status = "error"
				check.Detail = err.Error()
			} else {
				check.Detail = detail
			}
			results[i] = check
			return nil
		})
	}
	_ = g.Wait()

	doctorOutput := buildDoctorOutput(append(results, skipped...))

	switch r.EffectiveMode() {
	case output.ModeJSON:
		return r.JSON(doctorOutput)
	default:
		return renderDoctorText(r, doctorOutput)
	}
}

// buildProbes assembles the runnable checks plus the pre-resolved
// skipped ones for services without configuration.
func buildProbes(cmdCtx *CommandContext) ([]healthProbe, []HealthCheck) {
	cfg := cmdCtx.Cfg
	var probes []healthProbe
	var skipped []HealthCheck

	probes = append(probes, healthProbe{
		name:  "config",
		group: "environment",
		run: func(_ context.Context) (string, error) {
			if used := config.GetConfigFileUsed(); used != "" {
				return used, nil
			}
			return "built-in defaults (run wcpctl init)", nil
		},
	})

	probes = append(probes, healthProbe{
		name:  "state",
		group: "environment",
		run: func(ctx context.Context) (string, error) {
			store, err := state.Open(cfg.State.Path, logging.ForComponent(cmdCtx.Logger, "state"))
			if err != nil {
				return "", err
			}
			defer store.Close()
			if err := store.Migrate(); err != nil {
				return "", err
			}
			if err := store.Ping(ctx); err != nil {
				return "", err
			}
			version, err := store.Version()
			if err != nil {
				return "", err
			}
			return fmt.Sprintf("schema v%d at %s", version, store.Path()), nil
		},
	})

	if cfg.Vault.APIKey == "" {
		skipped = append(skipped, HealthCheck{
			Name: "vault", Group: "services", Status: "skipped", Detail: "vault.api_key not set",
		})
	} else {
		probes = append(probes, healthProbe{
			name:  "vault",
			group: "services",
			run: func(ctx context.Context) (string, error) {
				client, err := cmdCtx.VaultClient()
				if err != nil {
					return "", err
				}
				creds, err := client.List(ctx, vault.FTPPasswordListID)
				if err != nil {
					return "", err
				}
				return fmt.Sprintf("list %d readable (%d credentials)", vault.FTPPasswordListID, len(creds)), nil
			},
		})
	}

	probes = append(probes, healthProbe{
		name:  "smtp",
		group: "services",
		run: func(_ context.Context) (string, error) {
			addr := net.JoinHostPort(cfg.SMTP.Host, fmt.Sprintf("%d", cfg.SMTP.Port))
			conn, err := net.DialTimeout("tcp", addr, smtpDialTimeout)
			if err != nil {
				return "", err
			}
			_ = conn.Close()
			return addr, nil
		},
	})

	if cfg.Graph.TenantID == "" || cfg.Graph.ClientID == "" || cfg.Graph.ClientSecret == "" {
		skipped = append(skipped, HealthCheck{
			Name: "graph", Group: "services", Status: "skipped", Detail: "graph credentials not set",
		})
	} else {
		probes = append(probes, healthProbe{
			name:  "graph",
			group: "services",
			run: func(ctx context.Context) (string, error) {
				var opts []graph.TokenOption
				if cfg.Graph.LoginURL != "" {
					opts = append(opts, graph.WithLoginURL(cfg.Graph.LoginURL))
				}
				tokens := graph.NewTokenSource(cfg.Graph.TenantID, cfg.Graph.ClientID, cfg.Graph.ClientSecret, opts...)
				if _, err := tokens.Token(ctx); err != nil {
					return "", err
				}
				return "token acquired", nil
			},
		})
	}

	if len(cfg.Databases) == 0 {
		skipped = append(skipped, HealthCheck{
			Name: "databases", Group: "databases", Status: "skipped", Detail: "none configured",
		})
	} else {
		aliases := make([]string, 0, len(cfg.Databases))
		for alias := range cfg.Databases {
			aliases = append(aliases, alias)
		}
		sort.Strings(aliases)
		for _, alias := range aliases {
			probes = append(probes, healthProbe{
				name:  alias,
				group: "databases",
				run: func(ctx context.Context) (string, error) {
					db, err := cmdCtx.Database(ctx, alias)
					if err != nil {
						return "", err
					}
					defer db.Close()
					if err := db.Ping(ctx); err != nil {
						return "", err
					}
					return db.Driver(), nil
				},
			})
		}
	}

	return probes, skipped
}

func buildDoctorOutput(checks []HealthCheck) *DoctorOutput {
	sort.SliceStable(checks, func(i, j int) bool {
		if checks[i].Group != checks[j].Group {
			return groupRank(checks[i].Group) < groupRank(checks[j].Group)
		}
		return false
	})

	out := &DoctorOutput{Checks: checks}
	for _, check := range checks {
		switch check.Status {
		case "pass":
			out.Passed++
		case "skipped":
			out.Skipped++
		default:
			out.Failed++
		}
	}
	return out
}

func groupRank(group string) int {
	switch group {
	case "environment":
		return 0
	case "services":
		return 1
	default:
		return 2
	}
}

func renderDoctorText(r *output.Renderer, out *DoctorOutput) error {
	styles := r.Styles()

	r.Println("")
	r.Println(styles.Header1.Render("WCP Environment Health Report"))
	r.Println(styles.Muted.Render(strings.Repeat("=", 55)))
	r.Println("")

	currentGroup := ""
	titleCaser := cases.Title(language.English)
	for _, check := range out.Checks {
		if check.Group != currentGroup {
			if currentGroup != "" {
				r.Println("")
			}
			currentGroup = check.Group
			r.Println(styles.Bold.Render("   " + titleCaser.String(currentGroup)))
			r.Println(styles.Muted.Render("   " + strings.Repeat("-", 40)))
		}

		icon := styles.StatusSuccess.String()
		switch check.Status {
		case "error":
			icon = styles.StatusFailed.String()
		case "skipped":
			icon = styles.Warning.Render("!")
		}

		line := fmt.Sprintf("   %s %s", icon, check.Name)
		if check.Detail != "" {
			line += " " + styles.Muted.Render("("+check.Detail+")")
		}
		r.Println(line)
	}

	r.Println("")
	r.Println(styles.Muted.Render(strings.Repeat("=", 55)))

	summaryStyle := styles.Success
	if out.Failed > 0 {
		summaryStyle = styles.Error
	}
	summary := fmt.Sprintf("%d passed, %d failed, %d skipped", out.Passed, out.Failed, out.Skipped)
	r.Printf("   %s\n", summaryStyle.Render(summary))
	r.Println("")

	return nil
}
