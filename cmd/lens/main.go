package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/vango-dev/lens/internal/config"
	"github.com/vango-dev/lens/internal/discovery"
	"github.com/vango-dev/lens/internal/errors"
	"github.com/vango-dev/lens/pkg/conn"
	"github.com/vango-dev/lens/pkg/telemetry"
)

// Version information set at build time.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

const banner = `
  ┬  ┌─┐┌┐┌┌─┐
  │  ├┤ │││└─┐
  ┴─┘└─┘┘└┘└─┘
`

// globalFlags are shared by every command.
type globalFlags struct {
	configPath string
	endpoint   string
	logLevel   string
	logFormat  string
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		errors.PrintError(err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	flags := &globalFlags{}

	rootCmd := &cobra.Command{
		Use:   "lens",
		Short: "Send files over a WebSocket and show the images that come back",
		Long: `lens opens one WebSocket connection to an image service, sends the
file you pick as a single binary frame, and shows every binary message
the service sends back as an image.

  • lens init      write a lens.json with the defaults
  • lens serve     local web page with an upload form and live results
  • lens send      one-shot upload from the command line
  • lens echo      development peer that answers every frame
  • lens discover  find services announced over mDNS`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			logger, err := newLogger(flags.logLevel, flags.logFormat, os.Stderr)
			if err != nil {
				return err
			}
			slog.SetDefault(logger)
			return nil
		},
	}

	pf := rootCmd.PersistentFlags()
	pf.StringVarP(&flags.configPath, "config", "c", "", "Path to lens.json (default ./lens.json when present)")
	pf.StringVarP(&flags.endpoint, "endpoint", "e", "", "WebSocket endpoint, overrides config and LENS_ENDPOINT")
	pf.StringVar(&flags.logLevel, "log-level", "info", "Log level: debug, info, warn, error")
	pf.StringVar(&flags.logFormat, "log-format", "text", "Log format: text or json")

	rootCmd.AddCommand(
		initCmd(flags),
		serveCmd(flags),
		sendCmd(flags),
		echoCmd(flags),
		discoverCmd(flags),
		versionCmd(),
	)
	return rootCmd
}

// loadConfig reads lens.json, then LENS_* variables, then --endpoint.
func loadConfig(flags *globalFlags) (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if flags.configPath != "" {
		cfg, err = config.LoadFile(flags.configPath)
	} else {
		cfg, err = config.LoadOrDefault(".")
	}
	if err != nil {
		return nil, err
	}

	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	if flags.endpoint != "" {
		cfg.Endpoint.URL = flags.endpoint
		cfg.Endpoint.Discover = false
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// resolveEndpoint returns the configured URL, browsing mDNS first when
// endpoint.discover is set.
func resolveEndpoint(ctx context.Context, cfg *config.Config) (string, error) {
	if !cfg.Endpoint.Discover {
		return cfg.Endpoint.URL, nil
	}
	return discovery.Resolve(ctx, discovery.Options{
		Service: cfg.Endpoint.Service,
		Domain:  cfg.Endpoint.Domain,
		Timeout: cfg.DiscoverTimeout(),
	})
}

// connConfig maps the connection section of cfg onto a conn.Config.
func connConfig(cfg *config.Config, url string, metrics *telemetry.Metrics) *conn.Config {
	policy, _ := conn.ParsePolicy(cfg.Connection.SendPolicy)
	return &conn.Config{
		URL:            url,
		Policy:         policy,
		MaxQueue:       cfg.Connection.MaxQueue,
		DialTimeout:    cfg.DialTimeout(),
		WriteTimeout:   cfg.WriteTimeout(),
		PingInterval:   cfg.PingInterval(),
		MaxMessageSize: cfg.Connection.MaxMessageSize,
		Logger:         slog.Default(),
		Metrics:        metrics,
	}
}

// printBanner prints the lens banner.
func printBanner() {
	fmt.Print(banner)
}

// success prints a success message.
func success(format string, args ...any) {
	fmt.Printf("\033[32m✓\033[0m %s\n", fmt.Sprintf(format, args...))
}

// info prints an info message.
func info(format string, args ...any) {
	fmt.Printf("  %s\n", fmt.Sprintf(format, args...))
}

// warn prints a warning message.
func warn(format string, args ...any) {
	fmt.Printf("\033[33m⚠\033[0m %s\n", fmt.Sprintf(format, args...))
}
