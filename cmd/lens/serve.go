package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"github.com/vango-dev/lens/internal/config"
	"github.com/vango-dev/lens/pkg/archive"
	"github.com/vango-dev/lens/pkg/blob"
	"github.com/vango-dev/lens/pkg/gallery"
	"github.com/vango-dev/lens/pkg/page"
	"github.com/vango-dev/lens/pkg/telemetry"
	"github.com/vango-dev/lens/pkg/ui"
)

func serveCmd(flags *globalFlags) *cobra.Command {
	var (
		port int
		host string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Connect to the endpoint and serve the upload page",
		Long: `Open the WebSocket connection and serve a local page with an upload
form. Every binary message the endpoint sends is appended to the page
as an image.

Examples:
  lens serve
  lens serve --endpoint ws://10.104.18.28:80/ws
  lens serve --port 8080 --host 0.0.0.0`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runServe(ctx, flags, host, port)
		},
	}

	cmd.Flags().IntVarP(&port, "port", "p", 0, "Port to serve the page on (default from lens.json)")
	cmd.Flags().StringVarP(&host, "host", "H", "", "Host to bind to (default from lens.json)")

	return cmd
}

func runServe(ctx context.Context, flags *globalFlags, host string, port int) error {
	cfg, err := loadConfig(flags)
	if err != nil {
		return err
	}
	if port > 0 {
		cfg.UI.Port = port
	}
	if host != "" {
		cfg.UI.Host = host
	}

	url, err := resolveEndpoint(ctx, cfg)
	if err != nil {
		return err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics := telemetry.NewMetrics(metricsOptions(cfg, reg)...)

	store, err := archive.Open(ctx, cfg)
	if err != nil {
		return err
	}

	blobs := blob.NewRegistry(cfg.UIURL(), metrics)
	p := page.New(page.Options{
		Blobs:       blobs,
		Gallery:     gallery.New(cfg.GalleryCapacity(), blobs).WithMetrics(metrics),
		Archive:     store,
		MaxFileSize: cfg.Upload.MaxFileSize,
		Metrics:     metrics,
	})
	defer p.Close()

	p.Connect(ctx, connConfig(cfg, url, metrics))

	opts := ui.Options{
		Endpoint:    url,
		MaxFileSize: cfg.Upload.MaxFileSize,
	}
	if cfg.MetricsEnabled() {
		opts.Gatherer = reg
		opts.MetricsPath = cfg.Metrics.Path
	}
	server := ui.New(p, opts)

	printBanner()
	success("Connecting to %s", url)
	info("Page:     %s", cfg.UIURL())
	if cfg.MetricsEnabled() {
		info("Metrics:  %s%s", cfg.UIURL(), cfg.Metrics.Path)
	}
	if cfg.Archive.Kind != "" {
		info("Archive:  %s", cfg.Archive.Kind)
	}
	if n := cfg.GalleryCapacity(); n > 0 {
		info("Gallery:  last %d images", n)
	} else {
		warn("Gallery is unbounded; every received image stays in memory")
	}

	return server.Run(ctx, cfg.UIAddress())
}

// metricsOptions maps the metrics section of cfg onto telemetry options.
// Payload histograms span 1KB to the upload limit.
func metricsOptions(cfg *config.Config, reg prometheus.Registerer) []telemetry.MetricsOption {
	opts := []telemetry.MetricsOption{
		telemetry.WithRegistry(reg),
		telemetry.WithNamespace(cfg.Metrics.Namespace),
	}
	if len(cfg.Metrics.Labels) > 0 {
		opts = append(opts, telemetry.WithConstLabels(prometheus.Labels(cfg.Metrics.Labels)))
	}
	if limit := cfg.Upload.MaxFileSize; limit > 4<<10 {
		opts = append(opts, telemetry.WithBuckets(prometheus.ExponentialBucketsRange(1<<10, float64(limit), 8)))
	}
	return opts
}
