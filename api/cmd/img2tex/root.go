package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"img2tex/api/internal/app"
	"img2tex/api/internal/config"
	"img2tex/api/internal/extract"
	"img2tex/api/internal/logger"
	"img2tex/api/internal/prompt"
	"img2tex/api/internal/util"
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "img2tex",
		Short:         "Turn images of formulas into LaTeX",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	root.AddCommand(newExtractCmd(), newProfilesCmd(), newPurgeCmd())
	return root
}

func newExtractCmd() *cobra.Command {
	var (
		key     string
		mime    string
		timeout time.Duration
	)
	cmd := &cobra.Command{
		Use:   "extract <image-file>",
		Short: "Send one image to the configured provider and print the LaTeX",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			if len(data) == 0 {
				return extract.ErrNoImage
			}

			a, log, err := loadApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()

			dataURL := util.MakeDataURL(util.PickMIME(mime, "", data), data)
			res, err := a.Service.Extract(ctx, key, dataURL)
			if err != nil {
				_, status := extract.Classify(err)
				log.Debug("extract failed", slog.Int("status", status))
				return err
			}
			if res.Empty {
				return errors.New("the model returned no content")
			}
			fmt.Fprintln(cmd.OutOrStdout(), res.Text)
			return nil
		},
	}
	cmd.Flags().StringVarP(&key, "key", "k", os.Getenv("IMG2TEX_API_KEY"), "credential used for model selection")
	cmd.Flags().StringVar(&mime, "mime", "", "override the detected image type")
	cmd.Flags().DurationVar(&timeout, "timeout", 90*time.Second, "overall deadline")
	return cmd
}

func newProfilesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "profiles",
		Short: "List the built-in prompt profiles",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			catalog, err := prompt.Builtin()
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "NAME\tTEMPERATURE\tGUEST MODEL\tSTANDARD MODEL")
			for _, name := range catalog.Names() {
				p := catalog[name]
				fmt.Fprintf(tw, "%s\t%g\t%s\t%s\n", name, p.Temperature, p.GuestModel, p.StandardModel)
			}
			return tw.Flush()
		},
	}
}

func newPurgeCmd() *cobra.Command {
	var olderThan time.Duration
	cmd := &cobra.Command{
		Use:   "purge",
		Short: "Delete audit rows older than the given age",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if olderThan <= 0 {
				return errors.New("--older-than must be positive")
			}
			a, log, err := loadApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()
			if a.Repo == nil {
				return errors.New("DATABASE_URL is not set")
			}
			n, err := a.Repo.PurgeOlderThan(cmd.Context(), olderThan)
			if err != nil {
				return err
			}
			log.Info("purged audit rows", slog.Int64("rows", n))
			fmt.Fprintf(cmd.OutOrStdout(), "deleted %d rows\n", n)
			return nil
		},
	}
	cmd.Flags().DurationVar(&olderThan, "older-than", 30*24*time.Hour, "maximum age to keep")
	return cmd
}

func loadApp(ctx context.Context) (*app.App, *slog.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	log := logger.NewWithWriter(os.Stderr, cfg.LogLevel, false, cfg.Environment)
	a, err := app.New(ctx, cfg, log, "cli")
	if err != nil {
		return nil, nil, err
	}
	return a, log, nil
}
