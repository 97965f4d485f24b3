package main

import (
	"net"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/vango-dev/lens/internal/discovery"
	"github.com/vango-dev/lens/internal/echo"
	"github.com/vango-dev/lens/internal/errors"
)

func echoCmd(flags *globalFlags) *cobra.Command {
	var (
		addr     string
		path     string
		mode     string
		replies  int
		delay    time.Duration
		size     int
		announce bool
		instance string
	)

	cmd := &cobra.Command{
		Use:   "echo",
		Short: "Run a development peer that answers every frame",
		Long: `Run a WebSocket peer for local development. In echo mode every
binary frame is sent back unchanged. In image mode every frame is
answered with a generated PNG.

Examples:
  lens echo
  lens echo --mode image --replies 3
  lens echo --addr :8080 --announce`,
		RunE: func(cmd *cobra.Command, args []string) error {
			m := echo.Mode(mode)
			if m != echo.ModeEcho && m != echo.ModeImage {
				return errors.Newf(errors.CategoryCLI, "unknown --mode %q, use echo or image", mode)
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			srv := echo.New(echo.Options{
				Path:      path,
				Mode:      m,
				Replies:   replies,
				Delay:     delay,
				ImageSize: size,
			})

			if announce {
				port, err := portOf(addr)
				if err != nil {
					return err
				}
				if instance == "" {
					instance, _ = os.Hostname()
				}
				shutdown, err := discovery.Announce(instance, port, srv.Path(), discovery.Options{})
				if err != nil {
					return err
				}
				defer shutdown()
				info("Announced %q as %s", instance, discovery.DefaultService)
			}

			success("Echo peer (%s) on ws://%s%s", m, displayAddr(addr), srv.Path())
			return srv.Run(ctx, addr)
		},
	}

	cmd.Flags().StringVarP(&addr, "addr", "a", "127.0.0.1:8080", "Address to listen on")
	cmd.Flags().StringVar(&path, "path", discovery.DefaultPath, "WebSocket path")
	cmd.Flags().StringVarP(&mode, "mode", "m", string(echo.ModeEcho), "Reply mode: echo or image")
	cmd.Flags().IntVarP(&replies, "replies", "r", 1, "Replies sent per received frame")
	cmd.Flags().DurationVar(&delay, "delay", 0, "Wait before replying")
	cmd.Flags().IntVar(&size, "size", 64, "Edge length of generated images")
	cmd.Flags().BoolVar(&announce, "announce", false, "Announce the peer over mDNS")
	cmd.Flags().StringVar(&instance, "instance", "", "mDNS instance name (default hostname)")

	return cmd
}

func portOf(addr string) (int, error) {
	_, p, err := net.SplitHostPort(addr)
	if err != nil {
		return 0, errors.New("L032").Wrap(err).WithDetail("Invalid --addr " + strconv.Quote(addr))
	}
	port, err := strconv.Atoi(p)
	if err != nil || port <= 0 {
		return 0, errors.New("L032").WithDetail("--announce needs an explicit port in --addr")
	}
	return port, nil
}

func displayAddr(addr string) string {
	if len(addr) > 0 && addr[0] == ':' {
		return "localhost" + addr
	}
	return addr
}
