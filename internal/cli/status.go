package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/soyeahso/witness/internal/config"
	"github.com/soyeahso/witness/internal/version"
)

func newStatusCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show witness status and configuration summary",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "Witness %s (commit %s)\n\n", version.Version, version.Commit)

			// Show paths
			fmt.Fprintf(w, "Config:  %s", paths.Config)
			if _, err := os.Stat(paths.Config); os.IsNotExist(err) {
				fmt.Fprint(w, " (not found, using defaults)")
			}
			fmt.Fprintln(w)
			fmt.Fprintf(w, "Data:    %s\n", paths.Data)
			fmt.Fprintf(w, "Logs:    %s\n", paths.Logs)
			fmt.Fprintln(w)

			// Storage
			fmt.Fprintf(w, "Storage: type=%s path=%s\n", cfg.Storage.Type, cfg.Storage.Path)

			// Outgoing HTTP
			fmt.Fprintf(w, "HTTP:    timeout=%dms followRedirects=%v maxRedirects=%d retries=%d\n",
				cfg.HTTP.TimeoutMs, cfg.HTTP.FollowsRedirects(), cfg.HTTP.MaxRedirects, cfg.HTTP.Retries())

			// Gateway
			auth := "none"
			if cfg.Server.Token != "" {
				auth = "token"
			}
			fmt.Fprintf(w, "Server:  port=%d bind=%s auth=%s tls=%v\n",
				cfg.Server.Port, cfg.Server.Bind, auth, cfg.Server.TLS.Enabled)

			// Hooks
			hookCount := len(cfg.Hooks.InteractionRecorded) + len(cfg.Hooks.InteractionReplayed) +
				len(cfg.Hooks.ServerStart) + len(cfg.Hooks.ServerStop)
			if hookCount > 0 {
				fmt.Fprintf(w, "Hooks:   %d command(s)\n", hookCount)
			} else {
				fmt.Fprintln(w, "Hooks:   (none)")
			}

			// Validation
			issues := config.Validate(&cfg)
			if len(issues) > 0 {
				fmt.Fprintf(w, "\nValidation issues (%d):\n", len(issues))
				for _, issue := range issues {
					fmt.Fprintf(w, "  - %s\n", issue)
				}
			}

			return nil
		},
	}

	return cmd
}
