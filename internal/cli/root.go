// Package cli implements the orderscan command line client.
package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

const defaultServer = "http://localhost:8080"

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose bool
	Format  string // "text" | "json" | "yaml"
	Server  string
	Token   string
	Shop    string
	EnvFile string
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json", "yaml"}

// NewRootCommand creates the root command for the orderscan CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "orderscan",
		Short: "Scan and act on Shopify orders",
		Long: `orderscan talks to an orderscan server the way the POS extension does.

Requests are authenticated with a session token: pass --token, set
ORDERSCAN_TOKEN, or let the CLI mint one from SHOPIFY_API_KEY and
SHOPIFY_API_SECRET for --shop.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !isValidFormat(opts.Format) {
				return NewExitError(ExitCommandError, fmt.Sprintf("invalid format %q: must be one of %v", opts.Format, ValidFormats))
			}
			if opts.Server == "" {
				opts.Server = os.Getenv("ORDERSCAN_SERVER")
			}
			if opts.Server == "" {
				opts.Server = defaultServer
			}
			opts.Server = strings.TrimRight(opts.Server, "/")
			if opts.Token == "" {
				opts.Token = os.Getenv("ORDERSCAN_TOKEN")
			}
			return nil
		},
	}

	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (text|json|yaml)")
	cmd.PersistentFlags().StringVar(&opts.Server, "server", "", "server base URL (default $ORDERSCAN_SERVER or "+defaultServer+")")
	cmd.PersistentFlags().StringVar(&opts.Token, "token", "", "session token (default $ORDERSCAN_TOKEN)")
	cmd.PersistentFlags().StringVar(&opts.Shop, "shop", "", "shop domain used when minting a session token")
	cmd.PersistentFlags().StringVar(&opts.EnvFile, "env-file", ".env", "env file with SHOPIFY_API_KEY/SHOPIFY_API_SECRET")

	cmd.AddCommand(NewParseCommand(opts))
	cmd.AddCommand(NewLookupCommand(opts))
	cmd.AddCommand(NewSearchCommand(opts))
	cmd.AddCommand(NewQRCommand(opts))
	cmd.AddCommand(NewProbeCommand(opts))
	cmd.AddCommand(NewKeygenCommand(opts))
	cmd.AddCommand(NewHashPasswordCommand(opts))

	return cmd
}

func isValidFormat(format string) bool {
	for _, f := range ValidFormats {
		if f == format {
			return true
		}
	}
	return false
}
