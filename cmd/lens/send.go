package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/vango-dev/lens/internal/errors"
	"github.com/vango-dev/lens/pkg/archive"
	"github.com/vango-dev/lens/pkg/gallery"
	"github.com/vango-dev/lens/pkg/page"
)

type sendOptions struct {
	expect     int
	timeout    time.Duration
	out        string
	noProgress bool
}

func sendCmd(flags *globalFlags) *cobra.Command {
	opts := sendOptions{}

	cmd := &cobra.Command{
		Use:   "send <file>",
		Short: "Send one file and wait for the replies",
		Long: `Send a file as a single binary frame, then wait for the endpoint's
binary replies. Replies are written to --out when it is set.

Examples:
  lens send cat.png
  lens send cat.png --expect 3 --out received/
  lens send cat.png --endpoint ws://127.0.0.1:8080/ws --timeout 5s`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			_, err := runSend(ctx, flags, args[0], opts)
			return err
		},
	}

	cmd.Flags().IntVarP(&opts.expect, "expect", "n", 1, "Number of replies to wait for (0 sends and exits)")
	cmd.Flags().DurationVarP(&opts.timeout, "timeout", "t", 30*time.Second, "How long to wait for replies")
	cmd.Flags().StringVarP(&opts.out, "out", "o", "", "Directory to write replies to")
	cmd.Flags().BoolVar(&opts.noProgress, "no-progress", false, "Hide the progress bar")

	return cmd
}

// runSend uploads path and returns the replies received.
func runSend(ctx context.Context, flags *globalFlags, path string, opts sendOptions) ([]gallery.Image, error) {
	cfg, err := loadConfig(flags)
	if err != nil {
		return nil, err
	}
	url, err := resolveEndpoint(ctx, cfg)
	if err != nil {
		return nil, err
	}

	var store archive.Store
	if opts.out != "" {
		ds, err := archive.NewDiskStore(opts.out)
		if err != nil {
			return nil, err
		}
		store = ds
	}

	p := page.New(page.Options{
		Archive:     store,
		MaxFileSize: cfg.Upload.MaxFileSize,
	})
	defer p.Close()

	events, cancel := p.Gallery().Subscribe(opts.expect + 8)
	defer cancel()

	c := p.Connect(ctx, connConfig(cfg, url, nil))

	file := page.FileFromPath(path)
	var bar *progressbar.ProgressBar
	if opts.noProgress {
		bar = progressbar.DefaultBytesSilent(file.Size(), "sending")
	} else {
		bar = progressbar.DefaultBytes(file.Size(), "sending "+filepath.Base(path))
	}

	up, err := p.Submit(ctx, []page.File{progressFile{File: file, bar: bar}})
	if err != nil {
		return nil, err
	}
	bar.Finish()
	success("Sent %s (%d bytes) to %s", up.Name, up.Size, url)

	if opts.expect <= 0 {
		// Queued frames are only written once the connection opens.
		waitCtx, cancelWait := context.WithTimeout(ctx, opts.timeout)
		defer cancelWait()
		return nil, c.WaitOpen(waitCtx)
	}

	timer := time.NewTimer(opts.timeout)
	defer timer.Stop()

	var replies []gallery.Image
	for len(replies) < opts.expect {
		select {
		case ev, ok := <-events:
			if !ok {
				return replies, errors.New("L011")
			}
			if ev.Kind != gallery.EventAppend {
				continue
			}
			replies = append(replies, ev.Image)
			printReply(ev.Image)

		case <-c.Done():
			if err := c.Err(); err != nil {
				return replies, err
			}
			return replies, errors.New("L011")

		case <-timer.C:
			return replies, errors.New("L060").
				WithDetail(fmt.Sprintf("Received %d of %d replies within %s", len(replies), opts.expect, opts.timeout))

		case <-ctx.Done():
			return replies, ctx.Err()
		}
	}

	if opts.out != "" {
		success("Wrote %d replies to %s", len(replies), opts.out)
	}
	return replies, nil
}

func printReply(img gallery.Image) {
	if img.IsImage() {
		info("#%d  %s  %dx%d  %d bytes", img.Seq, img.ContentType, img.Width, img.Height, img.Size)
		return
	}
	warn("#%d  %s  %d bytes (not an image)", img.Seq, img.ContentType, img.Size)
}

// progressFile reports reads of the wrapped file to a progress bar.
type progressFile struct {
	page.File
	bar *progressbar.ProgressBar
}

func (f progressFile) Open() (io.ReadCloser, error) {
	rc, err := f.File.Open()
	if err != nil {
		return nil, err
	}
	return struct {
		io.Reader
		io.Closer
	}{io.TeeReader(rc, f.bar), rc}, nil
}
