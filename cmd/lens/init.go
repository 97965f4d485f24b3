package main

import (
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/vango-dev/lens/internal/config"
	"github.com/vango-dev/lens/internal/errors"
)

func initCmd(flags *globalFlags) *cobra.Command {
	var (
		dir   string
		force bool
	)

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a lens.json with the default settings",
		Long: `Write lens.json with every setting at its default value. The
--endpoint flag, when given, is written as endpoint.url.

Examples:
  lens init
  lens init --endpoint ws://10.104.18.28:80/ws
  lens init --dir ./lab --force`,
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := runInit(flags, dir, force)
			if err != nil {
				return err
			}
			success("Wrote %s", path)
			return nil
		},
	}

	cmd.Flags().StringVarP(&dir, "dir", "d", ".", "Directory to write lens.json to")
	cmd.Flags().BoolVarP(&force, "force", "f", false, "Overwrite an existing lens.json")

	return cmd
}

func runInit(flags *globalFlags, dir string, force bool) (string, error) {
	if config.Exists(dir) && !force {
		return "", errors.New("L032").
			WithDetail(filepath.Join(dir, config.ConfigFileName) + " already exists").
			WithSuggestion("Pass --force to overwrite it")
	}

	cfg := config.New()
	if flags.endpoint != "" {
		cfg.Endpoint.URL = flags.endpoint
	}
	if err := cfg.Validate(); err != nil {
		return "", err
	}

	path := filepath.Join(dir, config.ConfigFileName)
	if err := cfg.SaveTo(path); err != nil {
		return "", err
	}
	return path, nil
}
