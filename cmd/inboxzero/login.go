package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"

	"github.com/nhle/inboxzero/internal/credential"
	"github.com/nhle/inboxzero/internal/logging"
	"github.com/nhle/inboxzero/internal/mailbox"
	"github.com/nhle/inboxzero/internal/model"
)

func loginCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "login",
		Short: "Check the account credentials and store the password in the keyring",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}

			logger, closer, err := logging.New(cfg.Log, os.Stderr)
			if err != nil {
				return err
			}
			defer closer.Close()

			var password string
			err = huh.NewForm(
				huh.NewGroup(
					huh.NewInput().
						Title("Email").
						Value(&cfg.Account.Username).
						Validate(func(s string) error {
							if s == "" {
								return errors.New("email is required")
							}
							return nil
						}),
					huh.NewInput().
						Title("App password").
						EchoMode(huh.EchoModePassword).
						Value(&password),
				),
			).Run()
			if err != nil {
				return fmt.Errorf("reading credentials: %w", err)
			}

			client := mailbox.NewIMAPClient(cfg.Account, password, cfg.Label.Mode, logger)
			session, err := client.Connect(cmd.Context())
			if err != nil {
				return err
			}
			_ = session.Logout(context.Background())

			if err := credential.NewStore().SavePassword(cfg.Account.Username, password); err != nil {
				return err
			}
			if err := model.SaveConfig(resolveConfigPath(), cfg); err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Logged in as %s; password stored in the system keyring.\n", cfg.Account.Username)
			return nil
		},
	}
}

func logoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Remove the stored password from the keyring",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			if cfg.Account.Username == "" {
				return errors.New("no account configured")
			}

			if err := credential.NewStore().DeletePassword(cfg.Account.Username); err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Removed stored password for %s.\n", cfg.Account.Username)
			return nil
		},
	}
}
