package main

import (
	"errors"
	"fmt"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/log"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/nhle/inboxzero/internal/app"
	"github.com/nhle/inboxzero/internal/credential"
	"github.com/nhle/inboxzero/internal/logging"
	"github.com/nhle/inboxzero/internal/model"
)

// passwordEnv overrides the keyring for non-interactive use.
const passwordEnv = model.EnvPrefix + "_PASSWORD"

var (
	cfgFile    string
	folderFlag string
	countFlag  int
	topFlag    int
	labelFlag  string
)

func resolveConfigPath() string {
	if cfgFile != "" {
		return cfgFile
	}
	return model.DefaultConfigPath()
}

func main() {
	// A .env file in the working directory is optional.
	_ = godotenv.Load()

	rootCmd := &cobra.Command{
		Use:   "inboxzero",
		Short: "Find who fills your inbox and label their mail for deletion",
		Long: `inboxzero scans the most recent messages of an IMAP folder, reading
headers only, and ranks senders by how many messages they sent. Tick the
senders you no longer want and every message from them gets a label
(a Gmail label, or an IMAP keyword elsewhere). Nothing is deleted: review
the label in your mail client and delete from there.

Run without a subcommand for the interactive interface.`,
		SilenceUsage: true,
		RunE:         runInteractive,
	}

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ~/.config/inboxzero/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&folderFlag, "folder", "", "folder to scan and label")
	rootCmd.PersistentFlags().IntVar(&countFlag, "count", 0, "number of most recent messages to scan")
	rootCmd.PersistentFlags().IntVar(&topFlag, "top", 0, "number of top senders to list")
	rootCmd.PersistentFlags().StringVar(&labelFlag, "label", "", "label to add to the chosen senders' messages")

	rootCmd.AddCommand(scanCmd())
	rootCmd.AddCommand(labelCmd())
	rootCmd.AddCommand(loginCmd())
	rootCmd.AddCommand(logoutCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// loadConfig reads the config file and applies command-line overrides.
func loadConfig(cmd *cobra.Command) (*model.AppConfig, error) {
	cfg, err := model.LoadConfig(resolveConfigPath())
	if err != nil {
		return nil, err
	}

	flags := cmd.Flags()
	if flags.Changed("folder") {
		cfg.Scan.Folder = folderFlag
	}
	if flags.Changed("count") {
		cfg.Scan.Count = countFlag
	}
	if flags.Changed("top") {
		cfg.Scan.TopN = topFlag
	}
	if flags.Changed("label") {
		cfg.Label.Name = labelFlag
	}

	return cfg, nil
}

// storedPassword returns the password from the environment or the
// keyring, or "" when neither has one.
func storedPassword(creds *credential.Store, username string, logger *log.Logger) string {
	if pw := os.Getenv(passwordEnv); pw != "" {
		return pw
	}
	if username == "" {
		return ""
	}

	pw, err := creds.Password(username)
	if err != nil {
		if !errors.Is(err, credential.ErrNotFound) {
			logger.Warn("keyring unavailable", "err", err)
		}
		return ""
	}
	return pw
}

// promptPassword asks for the app password on the terminal.
func promptPassword(username string) (string, error) {
	var password string
	err := huh.NewInput().
		Title("App password for " + username).
		EchoMode(huh.EchoModePassword).
		Value(&password).
		Validate(func(s string) error {
			if s == "" {
				return errors.New("password is required")
			}
			return nil
		}).
		Run()
	if err != nil {
		return "", fmt.Errorf("reading password: %w", err)
	}
	return password, nil
}

func runInteractive(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	// The TUI owns the terminal, so logs always go to a file.
	if cfg.Log.File == "" {
		cfg.Log.File = model.DefaultAppConfig().Log.File
	}
	logger, closer, err := logging.New(cfg.Log, os.Stderr)
	if err != nil {
		return err
	}
	defer closer.Close()

	creds := credential.NewStore()
	m := app.New(app.Options{
		Config:      *cfg,
		ConfigPath:  resolveConfigPath(),
		Password:    storedPassword(creds, cfg.Account.Username, logger),
		Credentials: creds,
		Logger:      logger,
	})

	p := tea.NewProgram(m, tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("running interface: %w", err)
	}
	return nil
}
