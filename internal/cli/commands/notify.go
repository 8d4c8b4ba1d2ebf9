package commands

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"
	"gopkg.in/yaml.v3"

	"github.com/wcap/wcplib/pkg/mailer"
)

// NewNotifyCommand creates the notify command group.
func NewNotifyCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "notify",
		Short: "Send mail through the company relay",
	}
	cmd.AddCommand(newNotifySendCommand())
	cmd.AddCommand(newNotifyReportCommand())
	return cmd
}

// messageFile is the YAML shape of --message-file. Explicit flags
// override whatever the file sets.
type messageFile struct {
	From        string   `yaml:"from"`
	To          []string `yaml:"to"`
	Cc          []string `yaml:"cc"`
	Bcc         []string `yaml:"bcc"`
	Subject     string   `yaml:"subject"`
	Body        string   `yaml:"body"`
	HTML        bool     `yaml:"html"`
	Attachments []string `yaml:"attachments"`
}

func newNotifySendCommand() *cobra.Command {
	var (
		msgFile  string
		from     string
		to       []string
		cc       []string
		bcc      []string
		subject  string
		body     string
		bodyFile string
		html     bool
		attach   []string
	)

	cmd := &cobra.Command{
		Use:   "send",
		Short: "Send a mail message",
		Long: `Send a message through the relay configured under smtp.

The message can be assembled from flags, from a YAML file via
--message-file, or both; flags win over the file.`,
		Example: `  wcpctl notify send --from jobs@wcap.ca --to ops@wcap.ca \
      --subject "Nightly sync done" --body "All 14 feeds loaded."

  wcpctl notify send --message-file alert.yaml --attach run.log`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cmdCtx := NewCommandContextWithoutState(cmd)

			msg := mailer.Message{}
			if msgFile != "" {
				loaded, err := loadMessageFile(msgFile)
				if err != nil {
					return err
				}
				msg = loaded
			}

			flags := cmd.Flags()
			if flags.Changed("from") {
				msg.From = from
			}
			if flags.Changed("to") {
				msg.To = to
			}
			if flags.Changed("cc") {
				msg.Cc = cc
			}
			if flags.Changed("bcc") {
				msg.Bcc = bcc
			}
			if flags.Changed("subject") {
				msg.Subject = subject
			}
			if flags.Changed("html") {
				msg.HTML = html
			}
			if len(attach) > 0 {
				msg.Attachments = append(msg.Attachments, attach...)
			}

			switch {
			case flags.Changed("body") && bodyFile != "":
				return fmt.Errorf("--body and --body-file are mutually exclusive")
			case flags.Changed("body"):
				msg.Body = body
			case bodyFile != "":
				data, err := os.ReadFile(bodyFile)
				if err != nil {
					return fmt.Errorf("failed to read body file: %w", err)
				}
				msg.Body = string(data)
			}

			if msg.From == "" {
				return fmt.Errorf("no sender (use --from or the message file)")
			}
			if len(msg.To) == 0 {
				return fmt.Errorf("no recipients (use --to or the message file)")
			}

			if err := cmdCtx.Mailer().Send(cmd.Context(), msg); err != nil {
				return fmt.Errorf("failed to send message: %w", err)
			}
			cmdCtx.Renderer.Success(fmt.Sprintf("message sent to %s", strings.Join(msg.To, ", ")))
			return nil
		},
	}

	cmd.Flags().StringVar(&msgFile, "message-file", "", "YAML file describing the message")
	cmd.Flags().StringVar(&from, "from", "", "Sender address")
	cmd.Flags().StringSliceVar(&to, "to", nil, "Recipient addresses")
	cmd.Flags().StringSliceVar(&cc, "cc", nil, "Cc addresses")
	cmd.Flags().StringSliceVar(&bcc, "bcc", nil, "Bcc addresses")
	cmd.Flags().StringVar(&subject, "subject", "", "Subject line")
	cmd.Flags().StringVar(&body, "body", "", "Message body")
	cmd.Flags().StringVar(&bodyFile, "body-file", "", "Read the body from a file")
	cmd.Flags().BoolVar(&html, "html", false, "Send the body as text/html")
	cmd.Flags().StringSliceVar(&attach, "attach", nil, "Attach a file (repeatable)")

	return cmd
}

func loadMessageFile(path string) (mailer.Message, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return mailer.Message{}, fmt.Errorf("failed to read message file: %w", err)
	}
	var mf messageFile
	if err := yaml.Unmarshal(data, &mf); err != nil {
		return mailer.Message{}, fmt.Errorf("failed to parse message file: %w", err)
	}
	return mailer.Message{
		From:        mf.From,
		To:          mf.To,
		Cc:          mf.Cc,
		Bcc:         mf.Bcc,
		Subject:     mf.Subject,
		Body:        mf.Body,
		HTML:        mf.HTML,
		Attachments: mf.Attachments,
	}, nil
}

func newNotifyReportCommand() *cobra.Command {
	var (
		body     string
		bodyFile string
	)

	cmd := &cobra.Command{
		Use:   "report <subject>",
		Short: "Send a job report to the reporting mailbox",
		Long: `Send a report with the canned automation sender and recipient.
The body comes from --body, --body-file, or standard input.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cmdCtx := NewCommandContextWithoutState(cmd)

			text := body
			switch {
			case cmd.Flags().Changed("body") && bodyFile != "":
				return fmt.Errorf("--body and --body-file are mutually exclusive")
			case bodyFile != "":
				data, err := os.ReadFile(bodyFile)
				if err != nil {
					return fmt.Errorf("failed to read body file: %w", err)
				}
				text = string(data)
			case !cmd.Flags().Changed("body"):
				if f, ok := cmd.InOrStdin().(*os.File); ok && term.IsTerminal(int(f.Fd())) {
					return fmt.Errorf("no body (use --body, --body-file or pipe the body)")
				}
				data, err := io.ReadAll(cmd.InOrStdin())
				if err != nil {
					return fmt.Errorf("failed to read body from stdin: %w", err)
				}
				text = string(data)
			}

			if err := cmdCtx.Mailer().Report(cmd.Context(), args[0], text); err != nil {
				return fmt.Errorf("failed to send report: %w", err)
			}
			cmdCtx.Renderer.Success("report sent")
			return nil
		},
	}

	cmd.Flags().StringVar(&body, "body", "", "Report body")
	cmd.Flags().StringVar(&bodyFile, "body-file", "", "Read the body from a file")

	return cmd
}
