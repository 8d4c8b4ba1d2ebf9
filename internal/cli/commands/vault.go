package commands

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/wcap/wcplib/internal/cli/output"
	"github.com/wcap/wcplib/pkg/vault"
)

const passwordMask = "********"

// NewVaultCommand creates the vault command group.
func NewVaultCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "vault",
		Short: "Query the password vault",
	}
	cmd.AddCommand(newVaultListCommand())
	cmd.AddCommand(newVaultGetCommand())
	cmd.AddCommand(newVaultPasswordCommand())
	return cmd
}

// credentialOutput is the JSON shape for vault entries.
type credentialOutput struct {
	PasswordID int               `json:"password_id"`
	Title      string            `json:"title"`
	UserName   string            `json:"username"`
	Password   string            `json:"password,omitempty"`
	URL        string            `json:"url,omitempty"`
	Fields     map[string]string `json:"fields,omitempty"`
}

func credentialToOutput(cred vault.Credential, show bool) credentialOutput {
	out := credentialOutput{
		PasswordID: cred.PasswordID,
		Title:      cred.Title,
		UserName:   cred.UserName,
		Password:   cred.Password,
		URL:        cred.URL,
		Fields:     cred.Fields,
	}
	if !show && out.Password != "" {
		out.Password = passwordMask
	}
	return out
}

func newVaultListCommand() *cobra.Command {
	var showPassword bool

	cmd := &cobra.Command{
		Use:   "list <list-id>",
		Short: "List credentials in a password list",
		Long: `List every credential in a vault password list.

Passwords are masked unless --show-password is given.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			listID, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("list id must be numeric, got %q", args[0])
			}

			cmdCtx := NewCommandContextWithoutState(cmd)
			r := cmdCtx.Renderer

			client, err := vaultClient(cmdCtx, cmd)
			if err != nil {
				return err
			}

			creds, err := client.List(cmd.Context(), listID)
			if err != nil {
				return fmt.Errorf("failed to list passwords: %w", err)
			}

			if r.EffectiveMode() == output.ModeJSON {
				out := make([]credentialOutput, 0, len(creds))
				for _, cred := range creds {
					out = append(out, credentialToOutput(cred, showPassword))
				}
				return r.JSON(out)
			}

			if len(creds) == 0 {
				r.Println("(no credentials)")
				return nil
			}

			rows := make([][]string, 0, len(creds))
			for _, cred := range creds {
				pw := cred.Password
				if !showPassword && pw != "" {
					pw = passwordMask
				}
				rows = append(rows, []string{
					strconv.Itoa(cred.PasswordID), cred.Title, cred.UserName, pw, cred.URL,
				})
			}
			r.Table([]string{"ID", "Title", "Username", "Password", "URL"}, rows)
			return nil
		},
	}

	cmd.Flags().BoolVar(&showPassword, "show-password", false, "Show passwords in clear text")

	return cmd
}

func newVaultGetCommand() *cobra.Command {
	var showPassword bool

	cmd := &cobra.Command{
		Use:   "get <password-id>",
		Short: "Show a single credential",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			passwordID, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("password id must be numeric, got %q", args[0])
			}

			cmdCtx := NewCommandContextWithoutState(cmd)
			r := cmdCtx.Renderer

			client, err := vaultClient(cmdCtx, cmd)
			if err != nil {
				return err
			}

			cred, err := client.Get(cmd.Context(), passwordID)
			if err != nil {
				return fmt.Errorf("failed to fetch password %d: %w", passwordID, err)
			}

			if r.EffectiveMode() == output.ModeJSON {
				return r.JSON(credentialToOutput(*cred, showPassword))
			}

			pw := cred.Password
			if !showPassword && pw != "" {
				pw = passwordMask
			}
			styles := r.Styles()
			r.Println(styles.Header2.Render(cred.Title))
			r.Printf("  %-10s %d\n", "ID", cred.PasswordID)
			r.Printf("  %-10s %s\n", "Username", cred.UserName)
			r.Printf("  %-10s %s\n", "Password", pw)
			if cred.URL != "" {
				r.Printf("  %-10s %s\n", "URL", cred.URL)
			}
			for name, value := range cred.Fields {
				r.Printf("  %-10s %s\n", name, value)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&showPassword, "show-password", false, "Show the password in clear text")

	return cmd
}

func newVaultPasswordCommand() *cobra.Command {
	var (
		length     int
		noDigits   bool
		noSpecial  bool
		specialSet string
	)

	cmd := &cobra.Command{
		Use:   "password",
		Short: "Generate a password matching the vault rules",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cmdCtx := NewCommandContextWithoutState(cmd)
			r := cmdCtx.Renderer

			policy := vault.DefaultPasswordPolicy()
			policy.Length = length
			if noDigits {
				policy.Numbers = false
				policy.ForceNumber = false
			}
			if noSpecial {
				policy.Special = false
				policy.ForceSpecial = false
			}
			if specialSet != "" {
				policy.SpecialSet = specialSet
			}

			password, err := vault.GeneratePassword(policy)
			if err != nil {
				return err
			}

			if r.EffectiveMode() == output.ModeJSON {
				return r.JSON(map[string]string{"password": password})
			}
			r.Println(password)
			return nil
		},
	}

	cmd.Flags().IntVar(&length, "length", vault.DefaultPasswordPolicy().Length, "Password length")
	cmd.Flags().BoolVar(&noDigits, "no-digits", false, "Exclude digits")
	cmd.Flags().BoolVar(&noSpecial, "no-special", false, "Exclude special characters")
	cmd.Flags().StringVar(&specialSet, "special-set", "", "Restrict special characters to this set")

	return cmd
}

// vaultClient builds a vault client, prompting for the API key on a
// terminal when it is not configured.
func vaultClient(cmdCtx *CommandContext, cmd *cobra.Command) (*vault.Client, error) {
	if cmdCtx.Cfg.Vault.APIKey == "" {
		if f, ok := cmd.InOrStdin().(*os.File); ok && term.IsTerminal(int(f.Fd())) {
			_, _ = fmt.Fprint(cmd.ErrOrStderr(), "Vault API key: ")
			key, err := term.ReadPassword(int(f.Fd()))
			_, _ = fmt.Fprintln(cmd.ErrOrStderr())
			if err != nil {
				return nil, fmt.Errorf("failed to read API key: %w", err)
			}
			cmdCtx.Cfg.Vault.APIKey = strings.TrimSpace(string(key))
		}
	}
	return cmdCtx.VaultClient()
}
