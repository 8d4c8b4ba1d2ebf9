package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/wcap/wcplib/internal/release"
)

// NewReleaseCommand creates the release command group.
func NewReleaseCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "release",
		Short: "Release pipeline helpers",
	}
	cmd.AddCommand(newReleaseGateCommand())
	return cmd
}

func newReleaseGateCommand() *cobra.Command {
	var (
		envFile string
		export  string
		tag     string
	)

	cmd := &cobra.Command{
		Use:   "gate <version>",
		Short: "Decide whether a version should be published",
		Long: `Check that a version is a plain MAJOR.MINOR.PATCH release and, when
it is, append <name>=<version> to the pipeline environment file.

Pre-releases and otherwise malformed versions are skipped with a
reason, not failed: the command exits zero either way so a release
workflow can end successfully without publishing. Later steps decide
what to do by checking whether the variable was exported.`,
		Example: `  # Gate on the version from a release event
  wcpctl release gate 1.4.0

  # Require the version to match the pushed tag
  wcpctl release gate 1.4.0 --tag 1.4.0

  # Export under a different name
  wcpctl release gate 1.4.0 --export PKG_VERSION`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cmdCtx := NewCommandContextWithoutState(cmd)
			r := cmdCtx.Renderer

			decision := release.Gate(args[0], tag)
			if !decision.Proceed {
				r.Println(decision.Reason)
				return nil
			}

			if err := release.ExportEnv(envFile, export, decision.Version, cmd.OutOrStdout()); err != nil {
				return fmt.Errorf("failed to export %s: %w", export, err)
			}
			r.Success(fmt.Sprintf("version %s cleared for publish", decision.Version))
			return nil
		},
	}

	cmd.Flags().StringVar(&envFile, "env-file", os.Getenv("GITHUB_ENV"), "File to append the export to (default: $GITHUB_ENV)")
	cmd.Flags().StringVar(&export, "export", "RELEASE_VERSION", "Name of the exported variable")
	cmd.Flags().StringVar(&tag, "tag", "", "Release tag that must match the version when set")

	return cmd
}
