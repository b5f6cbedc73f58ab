package mailbox

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/charmbracelet/log"
	"github.com/emersion/go-imap/v2"
	"github.com/emersion/go-imap/v2/imapclient"

	"github.com/nhle/inboxzero/internal/model"
)

// dialTimeout bounds the TCP and TLS handshake.
const dialTimeout = 30 * time.Second

// IMAPClient holds what is needed to open IMAP sessions for one account.
type IMAPClient struct {
	account  model.AccountConfig
	password string
	mode     model.LabelMode
	logger   *log.Logger
}

// NewIMAPClient creates a new IMAP client configuration. The password is
// kept in memory only and never logged.
func NewIMAPClient(
	account model.AccountConfig,
	password string,
	mode model.LabelMode,
	logger *log.Logger,
) *IMAPClient {
	return &IMAPClient{
		account:  account,
		password: password,
		mode:     mode,
		logger:   logger,
	}
}

// Connect establishes a connection to the IMAP server, authenticates,
// and returns the live session. The caller is responsible for calling
// Logout on the returned session.
func (c *IMAPClient) Connect(ctx context.Context) (*IMAPSession, error) {
	addr := net.JoinHostPort(c.account.Host, strconv.Itoa(c.account.Port))

	conn, err := c.dial(ctx, addr)
	if err != nil {
		return nil, &OpError{Op: OpConnect, Target: addr, Err: err}
	}

	var client *imapclient.Client
	switch c.account.Security {
	case model.SecurityStartTLS:
		client, err = imapclient.NewStartTLS(conn, &imapclient.Options{
			TLSConfig: &tls.Config{ServerName: c.account.Host},
		})
		if err != nil {
			_ = conn.Close()
			return nil, &OpError{Op: OpConnect, Target: addr, Err: err}
		}
	default:
		client = imapclient.New(conn, nil)
	}

	if err := client.Login(c.account.Username, c.password).Wait(); err != nil {
		_ = client.Logout().Wait()
		_ = client.Close()
		return nil, &OpError{
			Op:     OpAuth,
			Target: c.account.Username,
			Err:    fmt.Errorf("authentication failed: %w", err),
		}
	}

	mode := c.mode.Resolve(c.account.Host)
	c.logger.Info("connected", "addr", addr, "user", c.account.Username, "label_mode", mode)

	return &IMAPSession{
		client:  client,
		logger:  c.logger,
		labeler: newLabeler(mode, c.logger),
	}, nil
}

// dial opens the transport connection; for implicit TLS the handshake
// happens here so certificate errors surface as connect failures.
func (c *IMAPClient) dial(ctx context.Context, addr string) (net.Conn, error) {
	netDialer := &net.Dialer{Timeout: dialTimeout}
	if c.account.Security == model.SecurityTLS || c.account.Security == "" {
		d := &tls.Dialer{
			NetDialer: netDialer,
			Config:    &tls.Config{ServerName: c.account.Host},
		}
		return d.DialContext(ctx, "tcp", addr)
	}
	return netDialer.DialContext(ctx, "tcp", addr)
}

// IMAPSession implements Session over a go-imap v2 client.
type IMAPSession struct {
	client   *imapclient.Client
	logger   *log.Logger
	labeler  labeler
	selected string
	closed   bool
}

// SelectFolder selects name read-write. Selecting the folder that is
// already selected is a no-op.
func (s *IMAPSession) SelectFolder(ctx context.Context, name string) error {
	if err := s.usable(ctx); err != nil {
		return &OpError{Op: OpSelect, Target: name, Err: err}
	}
	if s.selected == name {
		return nil
	}

	data, err := s.client.Select(name, nil).Wait()
	if err != nil {
		s.selected = ""
		return &OpError{Op: OpSelect, Target: name, Err: err}
	}

	s.selected = name
	s.logger.Debug("folder selected", "folder", name, "messages", data.NumMessages)
	return nil
}

// Search runs UID SEARCH with criteria against the selected folder.
func (s *IMAPSession) Search(ctx context.Context, criteria Criteria) ([]MessageID, error) {
	if err := s.usable(ctx); err != nil {
		return nil, &OpError{Op: OpSearch, Target: criteria.String(), Err: err}
	}

	searchData, err := s.client.UIDSearch(searchCriteria(criteria), nil).Wait()
	if err != nil {
		return nil, &OpError{Op: OpSearch, Target: criteria.String(), Err: err}
	}

	uids := searchData.AllUIDs()
	ids := make([]MessageID, len(uids))
	for i, uid := range uids {
		ids[i] = MessageID(uid)
	}
	return ids, nil
}

// searchCriteria maps Criteria onto go-imap's typed search keys. An empty
// criteria encodes as ALL.
func searchCriteria(c Criteria) *imap.SearchCriteria {
	criteria := &imap.SearchCriteria{}
	if c.From != "" {
		criteria.Header = []imap.SearchCriteriaHeaderField{
			{Key: "From", Value: c.From},
		}
	}
	return criteria
}

// FetchHeader fetches BODY.PEEK[HEADER] for one UID. Peeking leaves the
// \Seen flag untouched.
func (s *IMAPSession) FetchHeader(ctx context.Context, id MessageID) ([]byte, error) {
	if err := s.usable(ctx); err != nil {
		return nil, &OpError{Op: OpFetch, Target: id.String(), Err: err}
	}

	headerSection := &imap.FetchItemBodySection{
		Specifier: imap.PartSpecifierHeader,
		Peek:      true,
	}
	fetchOpts := &imap.FetchOptions{
		UID:         true,
		BodySection: []*imap.FetchItemBodySection{headerSection},
	}

	fetchCmd := s.client.Fetch(imap.UIDSetNum(imap.UID(id)), fetchOpts)

	var header []byte
	var fetchErr error
	if msg := fetchCmd.Next(); msg != nil {
		buf, err := msg.Collect()
		if err != nil {
			fetchErr = err
		} else {
			header = buf.FindBodySection(headerSection)
		}
	}

	if err := fetchCmd.Close(); err != nil && fetchErr == nil {
		fetchErr = err
	}
	if fetchErr != nil {
		return nil, &OpError{Op: OpFetch, Target: id.String(), Err: fetchErr}
	}
	if header == nil {
		return nil, &OpError{Op: OpFetch, Target: id.String(), Err: errors.New("message not found")}
	}

	return header, nil
}

// StoreLabel applies label to one UID using the session's label strategy.
func (s *IMAPSession) StoreLabel(ctx context.Context, id MessageID, label string) error {
	if err := s.usable(ctx); err != nil {
		return &OpError{Op: OpStore, Target: id.String(), Err: err}
	}
	if err := s.labeler.apply(s.client, id, label); err != nil {
		return &OpError{Op: OpStore, Target: id.String(), Err: err}
	}
	return nil
}

// Logout ends the IMAP session and closes the connection.
func (s *IMAPSession) Logout(_ context.Context) error {
	if s.closed {
		return nil
	}
	s.closed = true
	s.selected = ""

	logoutErr := s.client.Logout().Wait()
	closeErr := s.client.Close()
	if logoutErr != nil {
		return fmt.Errorf("logging out: %w", logoutErr)
	}
	if closeErr != nil {
		return fmt.Errorf("closing connection: %w", closeErr)
	}
	s.logger.Info("logged out")
	return nil
}

// usable rejects commands on a closed session or a cancelled context.
func (s *IMAPSession) usable(ctx context.Context) error {
	if s.closed {
		return errors.New("session is logged out")
	}
	return ctx.Err()
}

// Open is Connect returning the Session interface.
func (c *IMAPClient) Open(ctx context.Context) (Session, error) {
	session, err := c.Connect(ctx)
	if err != nil {
		return nil, err
	}
	return session, nil
}
