package commands

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/wcap/wcplib/internal/cli/output"
	"github.com/wcap/wcplib/pkg/graph"
)

// renewConcurrency bounds parallel Graph API calls during --all runs.
const renewConcurrency = 4

// NewGraphCommand creates the graph command group.
func NewGraphCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "graph",
		Short: "Manage Microsoft Graph change subscriptions",
	}
	cmd.AddCommand(newGraphListCommand())
	cmd.AddCommand(newGraphCreateCommand())
	cmd.AddCommand(newGraphDiffCommand())
	cmd.AddCommand(newGraphRenewCommand())
	cmd.AddCommand(newGraphReauthorizeCommand())
	cmd.AddCommand(newGraphUpdateURLCommand())
	cmd.AddCommand(newGraphDeleteCommand())
	return cmd
}

// graphContext builds a command context plus the subscription store,
// opening the state database only when it backs the store.
func graphContext(cmd *cobra.Command) (*CommandContext, graph.Store, func(), error) {
	if cfg := getConfig(); cfg.Graph.Store != "" {
		cmdCtx := NewCommandContextWithoutState(cmd)
		return cmdCtx, graph.NewFileStore(cfg.Graph.Store), func() {}, nil
	}

	cmdCtx, cleanup, err := NewCommandContext(cmd)
	if err != nil {
		return nil, nil, nil, err
	}
	store, err := cmdCtx.SubscriptionStore()
	if err != nil {
		cleanup()
		return nil, nil, nil, err
	}
	return cmdCtx, store, cleanup, nil
}

// subscriptionOutput is the JSON shape for subscription records.
type subscriptionOutput struct {
	ID              string `json:"id"`
	Resource        string `json:"resource"`
	Class           string `json:"class,omitempty"`
	ChangeType      string `json:"change_type,omitempty"`
	NotificationURL string `json:"notification_url,omitempty"`
	Expiration      string `json:"expiration,omitempty"`
	Due             bool   `json:"due,omitempty"`
}

func recordToOutput(rec graph.Record, now time.Time, window time.Duration) subscriptionOutput {
	out := subscriptionOutput{
		ID:              rec.ID,
		Resource:        rec.Resource,
		Class:           rec.Class,
		ChangeType:      rec.ChangeType,
		NotificationURL: rec.NotificationURL,
	}
	if !rec.Expiration.IsZero() {
		out.Expiration = graph.FormatTime(rec.Expiration)
	}
	out.Due = len(graph.Due([]graph.Record{rec}, window, now)) == 1
	return out
}

func renderSubscriptions(r *output.Renderer, recs []graph.Record, window time.Duration) error {
	now := time.Now()

	if r.EffectiveMode() == output.ModeJSON {
		out := make([]subscriptionOutput, 0, len(recs))
		for _, rec := range recs {
			out = append(out, recordToOutput(rec, now, window))
		}
		return r.JSON(out)
	}

	if len(recs) == 0 {
		r.Println("(no subscriptions)")
		return nil
	}

	rows := make([][]string, 0, len(recs))
	for _, rec := range recs {
		expires := "-"
		if !rec.Expiration.IsZero() {
			expires = rec.Expiration.Local().Format("2006-01-02 15:04")
		}
		if len(graph.Due([]graph.Record{rec}, window, now)) == 1 {
			expires += " (due)"
		}
		rows = append(rows, []string{rec.ID, rec.Resource, rec.Class, rec.ChangeType, expires})
	}
	r.Table([]string{"ID", "Resource", "Class", "Change Type", "Expires"}, rows)
	return nil
}

func newGraphListCommand() *cobra.Command {
	var (
		remote bool
		window time.Duration
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List tracked subscriptions",
		Long: `List subscriptions from the local store. With --remote, the live
subscriptions of the application registration are listed instead.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cmdCtx, store, cleanup, err := graphContext(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			if remote {
				client, err := cmdCtx.GraphClient()
				if err != nil {
					return err
				}
				subs, err := client.Subscriptions(cmd.Context())
				if err != nil {
					return fmt.Errorf("failed to list remote subscriptions: %w", err)
				}
				recs := make([]graph.Record, 0, len(subs))
				for _, sub := range subs {
					recs = append(recs, graph.Record{
						ID:              sub.ID,
						Resource:        sub.Resource,
						ChangeType:      sub.ChangeType,
						NotificationURL: sub.NotificationURL,
						Expiration:      sub.ExpirationDateTime,
					})
				}
				sort.Slice(recs, func(i, j int) bool { return recs[i].ID < recs[j].ID })
				return renderSubscriptions(cmdCtx.Renderer, recs, window)
			}

			recs, err := store.List(cmd.Context())
			if err != nil {
				return fmt.Errorf("failed to list subscriptions: %w", err)
			}
			return renderSubscriptions(cmdCtx.Renderer, recs, window)
		},
	}

	cmd.Flags().BoolVar(&remote, "remote", false, "List live subscriptions from the Graph API")
	cmd.Flags().DurationVar(&window, "window", graph.DefaultRenewalWindow, "Window for marking subscriptions due for renewal")

	return cmd
}

func newGraphCreateCommand() *cobra.Command {
	var (
		resource        string
		class           string
		changeType      string
		notificationURL string
		clientState     string
	)

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a subscription and track it",
		Long: `Create a change subscription and record it in the local store.

The resource class picks the expiration lifetime; unknown classes get
the 24 hour default.`,
		Example: `  # Watch a shared mailbox
  wcpctl graph create --resource "users/jobs@wcap.ca/messages" --class mail

  # Watch a drive with an explicit change type
  wcpctl graph create --resource "drives/b!x/root" --class onedrive --change-type updated`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cmdCtx, store, cleanup, err := graphContext(cmd)
			if err != nil {
				return err
			}
			defer cleanup()
			r := cmdCtx.Renderer

			client, err := cmdCtx.GraphClient()
			if err != nil {
				return err
			}

			url := notificationURL
			if url == "" {
				url = cmdCtx.Cfg.Graph.NotificationURL
			}

			sub, err := client.Create(cmd.Context(), graph.CreateRequest{
				Resource:        resource,
				Class:           class,
				ChangeType:      changeType,
				NotificationURL: url,
				ClientState:     clientState,
			})
			if err != nil {
				return fmt.Errorf("failed to create subscription: %w", err)
			}

			rec := graph.Record{
				ID:              sub.ID,
				Resource:        sub.Resource,
				Class:           class,
				ChangeType:      sub.ChangeType,
				NotificationURL: sub.NotificationURL,
				ClientState:     sub.ClientState,
				Expiration:      sub.ExpirationDateTime,
			}
			if err := store.Put(cmd.Context(), rec); err != nil {
				return fmt.Errorf("subscription %s created but not tracked: %w", sub.ID, err)
			}

			if r.EffectiveMode() == output.ModeJSON {
				return r.JSON(recordToOutput(rec, time.Now(), graph.DefaultRenewalWindow))
			}
			r.Success(fmt.Sprintf("subscription %s created, expires %s", sub.ID, graph.FormatTime(sub.ExpirationDateTime)))
			return nil
		},
	}

	cmd.Flags().StringVar(&resource, "resource", "", "Resource path to watch (required)")
	cmd.Flags().StringVar(&class, "class", "", "Resource class deciding the lifetime (mail, calendar, onedrive, ...)")
	cmd.Flags().StringVar(&changeType, "change-type", "created", "Comma-separated change types")
	cmd.Flags().StringVar(&notificationURL, "notification-url", "", "Webhook URL (default: graph.notification_url)")
	cmd.Flags().StringVar(&clientState, "client-state", "", "Client state echoed in notifications (default: random)")
	_ = cmd.MarkFlagRequired("resource")

	return cmd
}

// diffOutput is the JSON shape for graph diff.
type diffOutput struct {
	Dead      []string `json:"dead"`
	Untracked []string `json:"untracked"`
}

func newGraphDiffCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "diff",
		Short: "Compare tracked subscriptions against the Graph API",
		Long: `Compare the local store against the live subscriptions.

Dead entries exist locally but not remotely; untracked subscriptions
exist remotely but are not in the store.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cmdCtx, store, cleanup, err := graphContext(cmd)
			if err != nil {
				return err
			}
			defer cleanup()
			r := cmdCtx.Renderer

			client, err := cmdCtx.GraphClient()
			if err != nil {
				return err
			}

			dead, untracked, err := graph.Diff(cmd.Context(), client, store)
			if err != nil {
				return fmt.Errorf("failed to diff subscriptions: %w", err)
			}

			if r.EffectiveMode() == output.ModeJSON {
				out := diffOutput{Dead: dead, Untracked: untracked}
				if out.Dead == nil {
					out.Dead = []string{}
				}
				if out.Untracked == nil {
					out.Untracked = []string{}
				}
				return r.JSON(out)
			}

			if len(dead) == 0 && len(untracked) == 0 {
				r.Success("local store matches the Graph API")
				return nil
			}
			if len(dead) > 0 {
				r.Header(2, fmt.Sprintf("Dead (%d tracked but gone remotely)", len(dead)))
				for _, id := range dead {
					r.StatusLine(id, "failed", "")
				}
			}
			if len(untracked) > 0 {
				r.Header(2, fmt.Sprintf("Untracked (%d live but not tracked)", len(untracked)))
				for _, id := range untracked {
					r.StatusLine(id, "warn", "")
				}
			}
			return nil
		},
	}
	return cmd
}

func newGraphRenewCommand() *cobra.Command {
	var (
		all    bool
		window time.Duration
	)

	cmd := &cobra.Command{
		Use:   "renew [id...]",
		Short: "Renew subscriptions before they lapse",
		Long: `Push the expiration of the named subscriptions forward by their
class lifetime. With --all, every tracked subscription expiring within
the window is renewed.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !all && len(args) == 0 {
				return fmt.Errorf("name subscription ids or use --all")
			}

			cmdCtx, store, cleanup, err := graphContext(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			client, err := cmdCtx.GraphClient()
			if err != nil {
				return err
			}

			recs, err := selectRecords(cmd.Context(), store, args, all)
			if err != nil {
				return err
			}
			if all {
				recs = graph.Due(recs, window, time.Now())
			}
			if len(recs) == 0 {
				cmdCtx.Renderer.Println("nothing to renew")
				return nil
			}

			return fanOut(cmd.Context(), cmdCtx.Renderer, recs, "renewed", func(ctx context.Context, rec graph.Record) (string, error) {
				expires, err := client.Renew(ctx, rec.ID, rec.Class)
				if err != nil {
					return "", err
				}
				rec.Expiration = expires
				if err := store.Put(ctx, rec); err != nil {
					return "", fmt.Errorf("renewed but not tracked: %w", err)
				}
				return "expires " + graph.FormatTime(expires), nil
			})
		},
	}

	cmd.Flags().BoolVar(&all, "all", false, "Renew every subscription due within the window")
	cmd.Flags().DurationVar(&window, "window", graph.DefaultRenewalWindow, "Renew subscriptions expiring within this window")

	return cmd
}

func newGraphReauthorizeCommand() *cobra.Command {
	var all bool

	cmd := &cobra.Command{
		Use:   "reauthorize [id...]",
		Short: "Reauthorize subscriptions",
		Long: `Ask Graph to re-run the notification URL validation handshake for
the named subscriptions, or for every tracked one with --all.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !all && len(args) == 0 {
				return fmt.Errorf("name subscription ids or use --all")
			}

			cmdCtx, store, cleanup, err := graphContext(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			client, err := cmdCtx.GraphClient()
			if err != nil {
				return err
			}

			recs, err := selectRecords(cmd.Context(), store, args, all)
			if err != nil {
				return err
			}
			if len(recs) == 0 {
				cmdCtx.Renderer.Println("nothing to reauthorize")
				return nil
			}

			return fanOut(cmd.Context(), cmdCtx.Renderer, recs, "reauthorized", func(ctx context.Context, rec graph.Record) (string, error) {
				return "", client.Reauthorize(ctx, rec.ID)
			})
		},
	}

	cmd.Flags().BoolVar(&all, "all", false, "Reauthorize every tracked subscription")

	return cmd
}

func newGraphUpdateURLCommand() *cobra.Command {
	var (
		all bool
		url string
	)

	cmd := &cobra.Command{
		Use:   "update-url [id...]",
		Short: "Point subscriptions at a new notification URL",
		Long: `Update the notification URL of the named subscriptions, or of every
tracked one with --all. The URL defaults to graph.notification_url.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !all && len(args) == 0 {
				return fmt.Errorf("name subscription ids or use --all")
			}

			cmdCtx, store, cleanup, err := graphContext(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			target := url
			if target == "" {
				target = cmdCtx.Cfg.Graph.NotificationURL
			}
			if target == "" {
				return fmt.Errorf("no notification URL (use --url or set graph.notification_url)")
			}

			client, err := cmdCtx.GraphClient()
			if err != nil {
				return err
			}

			recs, err := selectRecords(cmd.Context(), store, args, all)
			if err != nil {
				return err
			}
			if len(recs) == 0 {
				cmdCtx.Renderer.Println("nothing to update")
				return nil
			}

			return fanOut(cmd.Context(), cmdCtx.Renderer, recs, "updated", func(ctx context.Context, rec graph.Record) (string, error) {
				if err := client.UpdateNotificationURL(ctx, rec.ID, target); err != nil {
					return "", err
				}
				rec.NotificationURL = target
				if err := store.Put(ctx, rec); err != nil {
					return "", fmt.Errorf("updated but not tracked: %w", err)
				}
				return target, nil
			})
		},
	}

	cmd.Flags().BoolVar(&all, "all", false, "Update every tracked subscription")
	cmd.Flags().StringVar(&url, "url", "", "New notification URL (default: graph.notification_url)")

	return cmd
}

func newGraphDeleteCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "delete <id>...",
		Short: "Delete subscriptions and stop tracking them",
		Long: `Delete the named subscriptions from the Graph API and drop them
from the local store. A subscription already gone remotely is still
dropped locally.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cmdCtx, store, cleanup, err := graphContext(cmd)
			if err != nil {
				return err
			}
			defer cleanup()
			r := cmdCtx.Renderer

			client, err := cmdCtx.GraphClient()
			if err != nil {
				return err
			}

			failed := 0
			for _, id := range args {
				err := client.Delete(cmd.Context(), id)
				if err != nil && !errors.Is(err, graph.ErrNotFound) {
					r.StatusLine(id, "failed", err.Error())
					failed++
					continue
				}
				detail := "deleted"
				if errors.Is(err, graph.ErrNotFound) {
					detail = "already gone remotely"
				}
				if err := store.Delete(cmd.Context(), id); err != nil && !errors.Is(err, graph.ErrNotFound) {
					r.StatusLine(id, "failed", err.Error())
					failed++
					continue
				}
				r.StatusLine(id, "success", detail)
			}

			if failed > 0 {
				return fmt.Errorf("%d of %d deletions failed", failed, len(args))
			}
			return nil
		},
	}
	return cmd
}

// selectRecords resolves the records named by args, or every tracked
// record when all is set.
func selectRecords(ctx context.Context, store graph.Store, args []string, all bool) ([]graph.Record, error) {
	if all {
		recs, err := store.List(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list subscriptions: %w", err)
		}
		return recs, nil
	}

	recs := make([]graph.Record, 0, len(args))
	for _, id := range args {
		// Store errors already name the subscription.
		rec, err := store.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		recs = append(recs, *rec)
	}
	return recs, nil
}

// fanOut runs op over the records with bounded concurrency, printing a
// status line per record. It returns an error when any record failed.
func fanOut(ctx context.Context, r *output.Renderer, recs []graph.Record, verb string, op func(context.Context, graph.Record) (string, error)) error {
	type outcome struct {
		rec    graph.Record
		detail string
		err    error
	}
	outcomes := make([]outcome, len(recs))
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(renewConcurrency)
	for i, rec := range recs {
		g.Go(func() error {
			detail, err := op(gctx, rec)
			mu.Lock()
			outcomes[i] = outcome{rec: rec, detail: detail, err: err}
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	failed := 0
	for _, oc := range outcomes {
		if oc.err != nil {
			r.StatusLine(oc.rec.ID, "failed", oc.err.Error())
			failed++
			continue
		}
		r.StatusLine(oc.rec.ID, "success", oc.detail)
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d subscriptions not %s", failed, len(recs), verb)
	}
	return nil
}
