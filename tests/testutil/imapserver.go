package testutil

import (
	"net"
	"strconv"
	"testing"

	"github.com/emersion/go-imap/v2"
	"github.com/emersion/go-imap/v2/imapclient"
	"github.com/emersion/go-imap/v2/imapserver"
	"github.com/emersion/go-imap/v2/imapserver/imapmemserver"
	"github.com/stretchr/testify/require"

	"github.com/nhle/inboxzero/internal/model"
)

const (
	TestUsername = "user@example.com"
	TestPassword = "secret"
)

// IMAPServer is an in-memory IMAP server listening on loopback.
type IMAPServer struct {
	Addr string
	Host string
	Port int
}

// NewIMAPServer starts an in-memory IMAP server with a single user and an
// empty INBOX. The server is closed when the test ends.
func NewIMAPServer(t *testing.T) *IMAPServer {
	t.Helper()

	memServer := imapmemserver.New()
	user := imapmemserver.NewUser(TestUsername, TestPassword)
	require.NoError(t, user.Create("INBOX", nil))
	memServer.AddUser(user)

	server := imapserver.New(&imapserver.Options{
		NewSession: func(_ *imapserver.Conn) (imapserver.Session, *imapserver.GreetingData, error) {
			return memServer.NewSession(), nil, nil
		},
		Caps: imap.CapSet{
			imap.CapIMAP4rev1: {},
			imap.CapIMAP4rev2: {},
		},
		InsecureAuth: true,
	})

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	go func() { _ = server.Serve(ln) }()
	t.Cleanup(func() { _ = server.Close() })

	host, portStr, err := net.SplitHostPort(ln.Addr().String())
	require.NoError(t, err)
	port, err := strconv.Atoi(portStr)
	require.NoError(t, err)

	return &IMAPServer{Addr: ln.Addr().String(), Host: host, Port: port}
}

// Account returns a plaintext account config pointing at the server.
func (s *IMAPServer) Account() model.AccountConfig {
	return model.AccountConfig{
		Host:     s.Host,
		Port:     s.Port,
		Username: TestUsername,
		Security: model.SecurityNone,
	}
}

// Append stores one message per From value in INBOX, in order.
func (s *IMAPServer) Append(t *testing.T, froms ...string) {
	t.Helper()

	client := s.dial(t)
	defer client.Close()

	for _, from := range froms {
		raw := append(Header(from), []byte("body\r\n")...)
		cmd := client.Append("INBOX", int64(len(raw)), nil)
		_, err := cmd.Write(raw)
		require.NoError(t, err)
		require.NoError(t, cmd.Close())
		_, err = cmd.Wait()
		require.NoError(t, err)
	}
}

// Flags returns the flags of every INBOX message keyed by UID.
func (s *IMAPServer) Flags(t *testing.T) map[imap.UID][]imap.Flag {
	t.Helper()

	client := s.dial(t)
	defer client.Close()

	_, err := client.Select("INBOX", nil).Wait()
	require.NoError(t, err)

	msgs, err := client.Fetch(imap.SeqSet{imap.SeqRange{Start: 1, Stop: 0}}, &imap.FetchOptions{
		UID:   true,
		Flags: true,
	}).Collect()
	require.NoError(t, err)

	flags := make(map[imap.UID][]imap.Flag, len(msgs))
	for _, msg := range msgs {
		flags[msg.UID] = msg.Flags
	}
	return flags
}

func (s *IMAPServer) dial(t *testing.T) *imapclient.Client {
	t.Helper()

	client, err := imapclient.DialInsecure(s.Addr, nil)
	require.NoError(t, err)
	require.NoError(t, client.Login(TestUsername, TestPassword).Wait())
	return client
}

// NumMessages returns how many messages the named mailbox holds.
func (s *IMAPServer) NumMessages(t *testing.T, mailbox string) uint32 {
	t.Helper()

	client := s.dial(t)
	defer client.Close()

	data, err := client.Status(mailbox, &imap.StatusOptions{NumMessages: true}).Wait()
	require.NoError(t, err)
	require.NotNil(t, data.NumMessages)
	return *data.NumMessages
}
