package main

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/vango-dev/lens/internal/discovery"
)

func discoverCmd(flags *globalFlags) *cobra.Command {
	var (
		timeout time.Duration
		asJSON  bool
	)

	cmd := &cobra.Command{
		Use:   "discover",
		Short: "List lens endpoints announced over mDNS",
		Long: `Browse the local network for lens endpoints.

Examples:
  lens discover
  lens discover --timeout 10s --json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(flags)
			if err != nil {
				return err
			}
			opts := discovery.Options{
				Service: cfg.Endpoint.Service,
				Domain:  cfg.Endpoint.Domain,
				Timeout: cfg.DiscoverTimeout(),
			}
			if timeout > 0 {
				opts.Timeout = timeout
			}

			endpoints, err := discovery.Browse(cmd.Context(), opts)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(endpoints)
			}

			if len(endpoints) == 0 {
				warn("No endpoints found within %s", opts.Timeout)
				return nil
			}
			tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "INSTANCE\tURL")
			for _, e := range endpoints {
				fmt.Fprintf(tw, "%s\t%s\n", e.Instance, e.URL())
			}
			return tw.Flush()
		},
	}

	cmd.Flags().DurationVarP(&timeout, "timeout", "t", 0, "How long to browse (default from lens.json)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print endpoints as JSON")

	return cmd
}
