package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/charmbracelet/log"
	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/nhle/inboxzero/internal/credential"
	"github.com/nhle/inboxzero/internal/logging"
	"github.com/nhle/inboxzero/internal/mailbox"
	"github.com/nhle/inboxzero/internal/model"
	"github.com/nhle/inboxzero/internal/report"
	"github.com/nhle/inboxzero/internal/sender"
)

// headless bundles what the non-interactive commands share.
type headless struct {
	cfg     *model.AppConfig
	logger  *log.Logger
	closer  io.Closer
	sweeper *sender.Sweeper
	client  *mailbox.IMAPClient
}

func newHeadless(cmd *cobra.Command) (*headless, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	logger, closer, err := logging.New(cfg.Log, os.Stderr)
	if err != nil {
		return nil, err
	}

	password := storedPassword(credential.NewStore(), cfg.Account.Username, logger)
	if password == "" {
		password, err = promptPassword(cfg.Account.Username)
		if err != nil {
			closer.Close()
			return nil, err
		}
	}

	return &headless{
		cfg:     cfg,
		logger:  logger,
		closer:  closer,
		sweeper: sender.NewSweeper(logger),
		client:  mailbox.NewIMAPClient(cfg.Account, password, cfg.Label.Mode, logger),
	}, nil
}

// progressLine rewrites one stderr line with (done, total).
func progressLine(verb string) sender.Progress {
	return func(done, total int) {
		fmt.Fprintf(os.Stderr, "\r%s %s / %s", verb, humanize.Comma(int64(done)), humanize.Comma(int64(total)))
		if done == total {
			fmt.Fprintln(os.Stderr)
		}
	}
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func scanCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "scan",
		Short: "List the most frequent senders of the most recent messages",
		RunE: func(cmd *cobra.Command, _ []string) error {
			h, err := newHeadless(cmd)
			if err != nil {
				return err
			}
			defer h.closer.Close()

			ctx, cancel := signalContext()
			defer cancel()

			session, err := h.client.Connect(ctx)
			if err != nil {
				return err
			}
			defer session.Logout(context.Background())

			table, err := h.sweeper.TopSenders(ctx, session, sender.ScanOptions{
				Folder:         h.cfg.Scan.Folder,
				RequestedCount: h.cfg.Scan.Count,
				TopN:           h.cfg.Scan.TopN,
				Progress:       progressLine("scanned"),
			})
			if errors.Is(err, sender.ErrNoMessages) {
				fmt.Fprintf(cmd.OutOrStdout(), "No messages with a readable sender in %s.\n", h.cfg.Scan.Folder)
				return nil
			}
			if err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), report.Senders(table))
			fmt.Fprintln(cmd.OutOrStdout(), report.ScanSummary(table, h.cfg.Scan.Folder))
			return nil
		},
	}
}

func labelCmd() *cobra.Command {
	var senders []string

	cmd := &cobra.Command{
		Use:   "label --sender ADDRESS [--sender ADDRESS...]",
		Short: "Add the label to every message from the given senders",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if len(senders) == 0 {
				return errors.New("no senders selected: pass at least one --sender")
			}

			h, err := newHeadless(cmd)
			if err != nil {
				return err
			}
			defer h.closer.Close()

			ctx, cancel := signalContext()
			defer cancel()

			session, err := h.client.Connect(ctx)
			if err != nil {
				return err
			}
			defer session.Logout(context.Background())

			outcomes, err := h.sweeper.ApplyLabel(ctx, session, senders, sender.LabelOptions{
				Folder:   h.cfg.Scan.Folder,
				Label:    h.cfg.Label.Name,
				Progress: progressLine("senders done"),
			})
			if err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), report.Outcomes(outcomes))
			fmt.Fprintln(cmd.OutOrStdout(), report.LabelSummary(outcomes, h.cfg.Label.Name))

			if failed := report.Tally(outcomes).Failed; failed > 0 {
				return fmt.Errorf("%d of %d senders were not fully labeled", failed, len(outcomes))
			}
			return nil
		},
	}

	cmd.Flags().StringArrayVar(&senders, "sender", nil, "sender address to label (repeatable)")
	return cmd
}
