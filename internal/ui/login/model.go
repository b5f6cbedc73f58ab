package login

import (
	"fmt"
	"strconv"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/inboxzero/internal/model"
	"github.com/nhle/inboxzero/internal/theme"
)

// SubmitMsg is dispatched when the form is completed. Config is a copy
// of the starting config with the form's values applied.
type SubmitMsg struct {
	Config   model.AppConfig
	Password string
	Remember bool
}

// CancelMsg is dispatched when the user aborts the form.
type CancelMsg struct{}

// formBindings holds form field values on the heap so that huh's Value()
// pointers remain valid across Bubble Tea model copies.
type formBindings struct {
	host     string
	port     string
	security string
	username string
	password string
	remember bool
	folder   string
	count    string
	topN     string
	label    string
}

// Model is the Bubble Tea model for the account and scan form.
type Model struct {
	form   *huh.Form
	fb     *formBindings
	base   model.AppConfig
	err    string
	width  int
	height int
}

// New creates a login form model.
func New(width, height int) Model {
	return Model{
		fb:     &formBindings{},
		width:  width,
		height: height,
	}
}

// Start fills the form from cfg and password and focuses its first
// field. errMsg, when set, is shown above the form.
func (m *Model) Start(cfg model.AppConfig, password, errMsg string) tea.Cmd {
	m.base = cfg
	m.err = errMsg

	m.fb.host = cfg.Account.Host
	m.fb.port = strconv.Itoa(cfg.Account.Port)
	m.fb.security = cfg.Account.Security
	m.fb.username = cfg.Account.Username
	m.fb.password = password
	m.fb.remember = false
	m.fb.folder = cfg.Scan.Folder
	m.fb.count = strconv.Itoa(clampCount(cfg.Scan.Count))
	m.fb.topN = strconv.Itoa(cfg.Scan.TopN)
	m.fb.label = cfg.Label.Name

	m.form = m.buildForm()
	return m.form.Init()
}

// Update handles messages for the login form.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	if m.form == nil {
		return m, nil
	}

	mdl, cmd := m.form.Update(msg)
	if f, ok := mdl.(*huh.Form); ok {
		m.form = f
	}

	if m.form.State == huh.StateCompleted {
		submit := m.submit()
		return m, func() tea.Msg { return submit }
	}
	if m.form.State == huh.StateAborted {
		return m, func() tea.Msg { return CancelMsg{} }
	}

	return m, cmd
}

// View renders the form.
func (m Model) View() string {
	if m.form == nil {
		return ""
	}

	content := theme.TitleStyle.Render("Connect to your mailbox")
	if m.err != "" {
		content += "\n" + theme.ErrorStyle.Render(m.err) + "\n"
	}
	content += "\n" + m.form.View()

	return lipgloss.NewStyle().
		Padding(1, 2).
		Render(content)
}

// SetSize updates the form dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
	if m.form != nil {
		m.form = m.form.WithWidth(m.formWidth())
	}
}

func (m *Model) buildForm() *huh.Form {
	return huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("IMAP Host").
				Placeholder("imap.gmail.com").
				Value(&m.fb.host).
				Validate(validateRequired("IMAP Host")),
			huh.NewInput().
				Title("IMAP Port").
				Placeholder("993").
				Value(&m.fb.port).
				Validate(validatePort),
			huh.NewSelect[string]().
				Title("Security").
				Options(
					huh.NewOption("TLS (port 993)", model.SecurityTLS),
					huh.NewOption("STARTTLS (port 143)", model.SecurityStartTLS),
					huh.NewOption("None (local testing only)", model.SecurityNone),
				).
				Value(&m.fb.security),
			huh.NewInput().
				Title("Email").
				Placeholder("you@gmail.com").
				Value(&m.fb.username).
				Validate(validateRequired("Email")),
			huh.NewInput().
				Title("App Password").
				Description("Gmail needs an app password, not your account password").
				EchoMode(huh.EchoModePassword).
				Value(&m.fb.password).
				Validate(validateRequired("App Password")),
			huh.NewConfirm().
				Title("Remember password in the system keyring").
				Affirmative("Yes").
				Negative("No").
				Value(&m.fb.remember),
		).Title("Account"),
		huh.NewGroup(
			huh.NewInput().
				Title("Folder").
				Value(&m.fb.folder).
				Validate(validateRequired("Folder")),
			huh.NewInput().
				Title("Messages to scan").
				Description(fmt.Sprintf("Most recent messages, %d to %d", model.FormMinCount, model.FormMaxCount)).
				Value(&m.fb.count).
				Validate(validateCount),
			huh.NewInput().
				Title("Top senders").
				Value(&m.fb.topN).
				Validate(validatePositive("Top senders")),
			huh.NewInput().
				Title("Label").
				Description("Added to every message of the senders you tick").
				Value(&m.fb.label).
				Validate(m.validateLabel),
		).Title("Scan"),
	).WithWidth(m.formWidth()).WithShowHelp(true)
}

func (m Model) submit() SubmitMsg {
	cfg := m.base
	cfg.Account.Host = strings.TrimSpace(m.fb.host)
	cfg.Account.Port, _ = strconv.Atoi(strings.TrimSpace(m.fb.port))
	cfg.Account.Security = m.fb.security
	cfg.Account.Username = strings.TrimSpace(m.fb.username)
	cfg.Scan.Folder = strings.TrimSpace(m.fb.folder)
	cfg.Scan.Count, _ = strconv.Atoi(strings.TrimSpace(m.fb.count))
	cfg.Scan.TopN, _ = strconv.Atoi(strings.TrimSpace(m.fb.topN))
	cfg.Label.Name = strings.TrimSpace(m.fb.label)

	return SubmitMsg{
		Config:   cfg,
		Password: m.fb.password,
		Remember: m.fb.remember,
	}
}

func (m Model) formWidth() int {
	w := m.width - 4
	if w < 40 {
		w = 40
	}
	if w > 80 {
		w = 80
	}
	return w
}

// validateLabel checks the label against the mode the current host
// resolves to.
func (m *Model) validateLabel(s string) error {
	mode := m.base.Label.Mode.Resolve(strings.TrimSpace(m.fb.host))
	return model.ValidateLabel(strings.TrimSpace(s), mode)
}

func clampCount(n int) int {
	if n < model.FormMinCount {
		return model.FormMinCount
	}
	if n > model.FormMaxCount {
		return model.FormMaxCount
	}
	return n
}

func validateRequired(fieldName string) func(string) error {
	return func(s string) error {
		if strings.TrimSpace(s) == "" {
			return fmt.Errorf("%s is required", fieldName)
		}
		return nil
	}
}

func validatePort(s string) error {
	port, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || port < 1 || port > 65535 {
		return fmt.Errorf("port must be a number between 1 and 65535")
	}
	return nil
}

func validateCount(s string) error {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || n < model.FormMinCount || n > model.FormMaxCount {
		return fmt.Errorf("enter a number between %d and %d", model.FormMinCount, model.FormMaxCount)
	}
	return nil
}

func validatePositive(fieldName string) func(string) error {
	return func(s string) error {
		n, err := strconv.Atoi(strings.TrimSpace(s))
		if err != nil || n < 1 {
			return fmt.Errorf("%s must be a positive number", fieldName)
		}
		return nil
	}
}
