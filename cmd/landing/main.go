package main

import (
	"encoding/json"
	"fmt"
	"log"
	"os"

	"github.com/spf13/cobra"

	"github.com/lingoreader/landing-go/internal/application/startup"
	"github.com/lingoreader/landing-go/internal/infrastructure/security"
	"github.com/lingoreader/landing-go/pkg/config"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "landing",
		Short:         "Lingo Reader landing backend",
		SilenceUsage:  true,
		SilenceErrors: false,
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve()
		},
	}
	root.AddCommand(newServeCmd(), newEnvCmd())
	return root
}

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP server until SIGINT or SIGTERM",
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve()
		},
	}
}

func serve() error {
	if err := startup.Initialize(); err != nil {
		return fmt.Errorf("application startup failed: %w", err)
	}
	log.Println("Application has shut down gracefully.")
	return nil
}

func newEnvCmd() *cobra.Command {
	var generateSecret bool
	cmd := &cobra.Command{
		Use:   "env",
		Short: "Print the resolved public endpoints",
		RunE: func(cmd *cobra.Command, args []string) error {
			if generateSecret {
				secret, err := security.GenerateSecureKey(64)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "SESSION_SECRET=%s\n", secret)
				return nil
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(config.Site)
		},
	}
	cmd.Flags().BoolVar(&generateSecret, "generate-secret", false, "print a fresh SESSION_SECRET instead")
	return cmd
}
