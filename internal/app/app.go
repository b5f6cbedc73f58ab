package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/log"

	"github.com/nhle/inboxzero/internal/credential"
	"github.com/nhle/inboxzero/internal/keys"
	"github.com/nhle/inboxzero/internal/mailbox"
	"github.com/nhle/inboxzero/internal/model"
	"github.com/nhle/inboxzero/internal/report"
	"github.com/nhle/inboxzero/internal/sender"
	appsync "github.com/nhle/inboxzero/internal/sync"
	"github.com/nhle/inboxzero/internal/ui"
	"github.com/nhle/inboxzero/internal/ui/activity"
	helpview "github.com/nhle/inboxzero/internal/ui/help"
	"github.com/nhle/inboxzero/internal/ui/login"
	"github.com/nhle/inboxzero/internal/ui/outcome"
	"github.com/nhle/inboxzero/internal/ui/senders"
)

// ViewState represents the current active view in the application.
type ViewState int

const (
	ViewLogin ViewState = iota
	ViewActivity
	ViewSenders
	ViewOutcome
	ViewHelp
)

// RunnerFactory builds the Runner for one account and password.
type RunnerFactory func(cfg model.AppConfig, password string) *appsync.Runner

// Options configures the root model.
type Options struct {
	Config      model.AppConfig
	ConfigPath  string
	Password    string
	Credentials *credential.Store
	Logger      *log.Logger

	// NewRunner defaults to an IMAP-backed runner.
	NewRunner RunnerFactory
}

// Model is the root Bubble Tea model that manages view routing, layout
// and the mailbox runner.
type Model struct {
	currentView  ViewState
	previousView ViewState
	layout       ui.Layout
	keys         *keys.KeyMap

	cfg        model.AppConfig
	configPath string
	password   string
	creds      *credential.Store
	logger     *log.Logger
	newRunner  RunnerFactory
	runner     *appsync.Runner
	runID      string
	hasTable   bool

	loginView    login.Model
	activityView activity.Model
	sendersView  senders.Model
	outcomeView  outcome.Model
	helpView     helpview.Model

	initCmd tea.Cmd
	ready   bool
	notice  string
}

// New creates the root application model. The login form is shown
// first, prefilled from the config and any stored password.
func New(opts Options) Model {
	k := keys.DefaultKeyMap()

	factory := opts.NewRunner
	if factory == nil {
		logger := opts.Logger
		factory = func(cfg model.AppConfig, password string) *appsync.Runner {
			client := mailbox.NewIMAPClient(cfg.Account, password, cfg.Label.Mode, logger)
			return appsync.New(client, sender.NewSweeper(logger), logger)
		}
	}

	m := Model{
		currentView:  ViewLogin,
		keys:         k,
		cfg:          opts.Config,
		configPath:   opts.ConfigPath,
		password:     opts.Password,
		creds:        opts.Credentials,
		logger:       opts.Logger,
		newRunner:    factory,
		loginView:    login.New(80, 24),
		activityView: activity.New(80, 24),
		sendersView:  senders.New(k, 80, 24),
		outcomeView:  outcome.New(k, 80, 24),
		helpView:     helpview.New(k, 80, 24),
	}
	m.initCmd = m.loginView.Start(m.cfg, m.password, "")
	return m
}

// Init returns the login form's initial command.
func (m Model) Init() tea.Cmd {
	return m.initCmd
}

// Update handles messages and dispatches to the active view.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.layout = ui.NewLayout(msg.Width, msg.Height)
		m.ready = true
		contentWidth := m.layout.ContentWidth()
		contentHeight := m.layout.ContentHeight()
		m.loginView.SetSize(contentWidth, contentHeight)
		m.activityView.SetSize(contentWidth, contentHeight)
		m.sendersView.SetSize(contentWidth, contentHeight)
		m.outcomeView.SetSize(contentWidth, contentHeight)
		m.helpView.SetSize(contentWidth, contentHeight)
		// Forward to active view so huh forms can calculate their layout.
		return m.updateActiveView(msg)

	case login.SubmitMsg:
		return m.connect(msg)

	case login.CancelMsg:
		if m.hasTable {
			m.currentView = ViewSenders
			return m, nil
		}
		return m.quit()

	case runnerMsg:
		// Messages from a runner that has since been replaced are dropped
		// and its subscription ends here.
		if msg.runner != m.runner {
			return m, nil
		}
		next, cmd := m.handleRunnerMsg(msg.msg)
		return next, tea.Batch(cmd, waitFor(m.runner))

	case senders.ApplyMsg:
		return m.apply(msg.Senders)

	case senders.RescanMsg, outcome.RescanMsg:
		return m.startScan()

	case tea.KeyMsg:
		if key.Matches(msg, m.keys.Cancel) {
			if m.runner != nil && m.runner.Busy() {
				m.runner.Cancel()
				m.activityView.SetStopping()
				return m, nil
			}
			return m.quit()
		}

		// The login form owns every other key while it is shown.
		if m.currentView == ViewLogin {
			break
		}

		switch {
		case key.Matches(msg, m.keys.Quit):
			if m.currentView != ViewActivity {
				return m.quit()
			}

		case key.Matches(msg, m.keys.Help):
			if m.currentView == ViewHelp {
				m.currentView = m.previousView
				return m, nil
			}
			if m.currentView != ViewActivity {
				m.previousView = m.currentView
				m.currentView = ViewHelp
				return m, nil
			}

		case key.Matches(msg, m.keys.Back):
			if m.currentView == ViewHelp {
				m.currentView = m.previousView
				return m, nil
			}

		case key.Matches(msg, m.keys.Login):
			if m.currentView == ViewSenders || m.currentView == ViewOutcome {
				return m.showLogin("")
			}
		}
	}

	// Delegate to active sub-view
	return m.updateActiveView(msg)
}

// connect applies the submitted settings, replaces the runner and
// starts the first scan.
func (m Model) connect(msg login.SubmitMsg) (tea.Model, tea.Cmd) {
	m.cfg = msg.Config
	m.password = msg.Password

	if m.configPath != "" {
		if err := model.SaveConfig(m.configPath, &m.cfg); err != nil {
			m.logger.Warn("config not saved", "path", m.configPath, "err", err)
		}
	}
	if msg.Remember && m.creds != nil {
		if err := m.creds.SavePassword(m.cfg.Account.Username, m.password); err != nil {
			m.logger.Warn("password not stored in keyring", "user", m.cfg.Account.Username, "err", err)
		}
	}

	if m.runner != nil {
		if err := m.runner.Close(); err != nil {
			m.logger.Warn("closing previous session", "err", err)
		}
	}
	m.runner = m.newRunner(m.cfg, m.password)
	m.hasTable = false

	next, cmd := m.startScan()
	return next, tea.Batch(cmd, waitFor(m.runner))
}

// runnerMsg tags a message with the runner that produced it.
type runnerMsg struct {
	runner *appsync.Runner
	msg    tea.Msg
}

// waitFor subscribes to the next message of r.
func waitFor(r *appsync.Runner) tea.Cmd {
	wait := r.WaitForNextResult()
	return func() tea.Msg {
		msg := wait()
		if msg == nil {
			return nil
		}
		return runnerMsg{runner: r, msg: msg}
	}
}

// handleRunnerMsg routes progress and results of the current runner.
// Results of superseded runs are ignored.
func (m Model) handleRunnerMsg(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case appsync.ProgressMsg:
		m.activityView, _ = m.activityView.Update(msg)
		return m, nil

	case appsync.ScanResultMsg:
		if msg.RunID != m.runID {
			return m, nil
		}
		return m.handleScanResult(msg)

	case appsync.LabelResultMsg:
		if msg.RunID != m.runID {
			return m, nil
		}
		m.outcomeView.SetOutcomes(msg.Outcomes, msg.Label, msg.Error)
		m.currentView = ViewOutcome
		m.notice = ""
		return m, nil
	}
	return m, nil
}

func (m Model) startScan() (tea.Model, tea.Cmd) {
	if m.runner == nil {
		return m.showLogin("")
	}

	runID, err := m.runner.Scan(sender.ScanOptions{
		Folder:         m.cfg.Scan.Folder,
		RequestedCount: m.cfg.Scan.Count,
		TopN:           m.cfg.Scan.TopN,
	})
	if err != nil {
		m.notice = err.Error()
		return m, nil
	}

	m.runID = runID
	m.notice = ""
	m.currentView = ViewActivity
	title := fmt.Sprintf("Fetching top senders from the last %d messages", m.cfg.Scan.Count)
	return m, m.activityView.Start(runID, title, appsync.StageConnecting)
}

func (m Model) handleScanResult(msg appsync.ScanResultMsg) (tea.Model, tea.Cmd) {
	switch {
	case msg.Error == nil:
		m.hasTable = true
		m.currentView = ViewSenders
		m.notice = report.ScanSummary(msg.Table, m.cfg.Scan.Folder)
		return m, m.sendersView.SetTable(msg.Table, m.cfg.Scan.Folder, m.cfg.Label.Name)

	case msg.AuthError:
		return m.showLogin("Authentication failed. Check the email address and app password.")

	case errors.Is(msg.Error, sender.ErrNoMessages):
		m.hasTable = true
		m.currentView = ViewSenders
		m.notice = fmt.Sprintf("No messages with a readable sender in %s.", m.cfg.Scan.Folder)
		return m, m.sendersView.SetTable(model.FrequencyTable{}, m.cfg.Scan.Folder, m.cfg.Label.Name)

	case errors.Is(msg.Error, context.Canceled):
		m.notice = "Scan stopped."
		if m.hasTable {
			m.currentView = ViewSenders
			return m, nil
		}
		return m.showLogin("")

	default:
		return m.showLogin(msg.Error.Error())
	}
}

func (m Model) apply(chosen []string) (tea.Model, tea.Cmd) {
	runID, err := m.runner.Apply(chosen, sender.LabelOptions{
		Folder: m.cfg.Scan.Folder,
		Label:  m.cfg.Label.Name,
	})
	if errors.Is(err, appsync.ErrNotConnected) {
		m.notice = "Session expired. Press r to fetch senders again."
		return m, nil
	}
	if err != nil {
		m.notice = err.Error()
		return m, nil
	}

	m.runID = runID
	m.notice = ""
	m.currentView = ViewActivity
	title := fmt.Sprintf("Adding label %q to mail from %d senders", m.cfg.Label.Name, len(chosen))
	return m, m.activityView.Start(runID, title, appsync.StageLabeling)
}

func (m Model) showLogin(errMsg string) (tea.Model, tea.Cmd) {
	m.previousView = m.currentView
	m.currentView = ViewLogin
	return m, m.loginView.Start(m.cfg, m.password, errMsg)
}

// quit logs out of any open session before exiting.
func (m Model) quit() (tea.Model, tea.Cmd) {
	if m.runner != nil {
		if err := m.runner.Close(); err != nil {
			m.logger.Warn("logout on quit failed", "err", err)
		}
	}
	return m, tea.Quit
}

// updateActiveView dispatches the message to the currently active view.
func (m Model) updateActiveView(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch m.currentView {
	case ViewLogin:
		m.loginView, cmd = m.loginView.Update(msg)
	case ViewActivity:
		m.activityView, cmd = m.activityView.Update(msg)
	case ViewSenders:
		m.sendersView, cmd = m.sendersView.Update(msg)
	case ViewOutcome:
		m.outcomeView, cmd = m.outcomeView.Update(msg)
	case ViewHelp:
		m.helpView, cmd = m.helpView.Update(msg)
	}

	return m, cmd
}

// View renders the full terminal UI using the layout manager.
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}

	header := m.layout.RenderHeader("inboxzero", m.sessionStatus())
	content := m.renderContent()
	statusBar := m.layout.RenderStatusBar(m.keyHints(), m.statusNotice())

	return m.layout.RenderWithFrame(header, content, statusBar)
}

// renderContent returns the rendered string for the current active view.
func (m Model) renderContent() string {
	switch m.currentView {
	case ViewLogin:
		return m.loginView.View()
	case ViewActivity:
		return m.activityView.View()
	case ViewSenders:
		return m.sendersView.View()
	case ViewOutcome:
		return m.outcomeView.View()
	case ViewHelp:
		return m.helpView.View()
	default:
		return ""
	}
}

// sessionStatus returns a short string describing the account and
// connection state.
func (m Model) sessionStatus() string {
	account := m.cfg.Account.Username
	if account == "" {
		account = m.cfg.Account.Host
	}

	switch {
	case m.runner == nil:
		return account
	case m.runner.Busy():
		return account + " | working"
	case m.runner.Connected():
		return account + " | connected"
	default:
		return account + " | logged out"
	}
}

// statusNotice returns the message that replaces the key hints, if any.
func (m Model) statusNotice() string {
	if m.currentView == ViewSenders {
		if w := m.sendersView.Warning(); w != "" {
			return w
		}
	}
	if m.currentView == ViewLogin || m.currentView == ViewActivity {
		return ""
	}
	return m.notice
}

// keyHints returns keyboard shortcut hints for the status bar.
func (m Model) keyHints() string {
	switch m.currentView {
	case ViewLogin:
		return "tab next | shift+tab back | enter submit | ctrl+c quit"
	case ViewActivity:
		return "ctrl+c stop"
	case ViewHelp:
		return "? close help | esc back"
	case ViewOutcome:
		return "r fetch again | l change account | j/k scroll | q quit"
	default:
		return "space tick | a all | n none | enter label | r fetch again | l account | ? help | q quit"
	}
}
