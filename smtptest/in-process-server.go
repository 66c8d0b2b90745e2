package smtptest

import (
	"crypto/tls"
	"errors"
	"io"
	"net"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/docker/go-units"
	"github.com/emersion/go-smtp"
)

// ErrInvalidCredentials is what the Backend returns for a rejected login.
var ErrInvalidCredentials = &smtp.SMTPError{
	Code:         535,
	EnhancedCode: smtp.EnhancedCode{5, 7, 8},
	Message:      "Authentication credentials invalid",
}

// Options controls how an InProcessServer behaves, so tests can stand up
// healthy servers as well as ones that misbehave in a specific way.
type Options struct {
	// Username and Password are the only credentials the server accepts. If
	// both are empty, any non-empty username/password pair is fine.
	Username string
	Password string
	// KeyPath and CertPath point to the PEM files used for TLS. Without
	// them the server can't speak TLS at all.
	KeyPath  string
	CertPath string
	// ImplicitTLS makes the listener negotiate TLS before the greeting.
	ImplicitTLS bool
	// DisableSTARTTLS stops the server from advertising STARTTLS even if it
	// has a certificate.
	DisableSTARTTLS bool
	// AllowInsecureAuth offers AUTH on unencrypted connections.
	AllowInsecureAuth bool
}

// messageData includes the body content and created timestamp for an email
// message, allowing us to inspect message bodies before/after a timestamp
// for correctness.
type messageData struct {
	created time.Time
	body    string
}

// Backend implements smtp.Backend. It's a thin authentication wrapper
// for an InMemoryEmailStore that also counts login attempts.
type Backend struct {
	*InMemoryEmailStore
	username      string
	password      string
	loginAttempts atomic.Int32
}

// Login implements smtp.Backend.
func (be *Backend) Login(_ *smtp.ConnectionState, username string, password string) (smtp.Session, error) {
	be.loginAttempts.Add(1)
	if be.username == "" && be.password == "" {
		if username != "" && password != "" {
			return be.InMemoryEmailStore, nil
		}
		return nil, ErrInvalidCredentials
	}
	if username != be.username || password != be.password {
		return nil, ErrInvalidCredentials
	}
	return be.InMemoryEmailStore, nil
}

// AnonymousLogin implements smtp.Backend. Not supported since we want to
// enforce AUTH.
func (be *Backend) AnonymousLogin(_ *smtp.ConnectionState) (smtp.Session, error) {
	return nil, smtp.ErrAuthUnsupported
}

// InMemoryEmailStore retains email bodies in memory for comparison against
// a test's expected output. Implements smtp.Session.
// Designed to be goroutine safe since we don't know how many goroutines will
// be hitting the server at once.
type InMemoryEmailStore struct {
	mu       *sync.Mutex
	messages []messageData
}

// Reset implements smtp.Session. No-op here.
func (es *InMemoryEmailStore) Reset() {}

// Logout implements smtp.Session. No-op here.
func (es *InMemoryEmailStore) Logout() error { return nil }

// Mail implements smtp.Session. No-op here.
func (es *InMemoryEmailStore) Mail(_ string, _ smtp.MailOptions) error { return nil }

// Rcpt implements smtp.Session. No-op here.
func (es *InMemoryEmailStore) Rcpt(_ string) error { return nil }

// Data implements smtp.Session. Stores the email data in memory for retrieval
// at the end of the test.
func (es *InMemoryEmailStore) Data(r io.Reader) error {
	// doubtful we'll get an email this big, but we need a limit
	var maxEmailSize int64 = 10 * units.MiB
	buf, err := io.ReadAll(io.LimitReader(r, maxEmailSize))
	if err != nil {
		return err
	}

	str := &strings.Builder{}
	if _, err := str.Write(buf); err != nil {
		return err
	}
	es.saveEmail(str.String())
	return nil
}

// saveEmail stores the email body in memory along with a timestamp created
// just prior to saving
func (es *InMemoryEmailStore) saveEmail(bod string) {
	es.mu.Lock()
	defer es.mu.Unlock()

	es.messages = append(es.messages, messageData{
		created: time.Now(),
		body:    bod,
	})
}

// RetrieveEmails returns a slice of all message bodies (as strings)
// sent after epoch nanoseconds t
// Satisfies smtptest.Server but isn't expected to return an error.
func (es *InMemoryEmailStore) RetrieveEmails(t int64) ([]string, error) {
	es.mu.Lock()
	defer es.mu.Unlock()

	r := make([]string, 0, len(es.messages))
	for _, m := range es.messages {
		if m.created.UnixNano() >= t {
			r = append(r, m.body)
		}
	}
	return r, nil
}

// InProcessServer is an SMTP server that runs in the same process as the
// test suite, letting us inspect sent emails and login attempts. You must
// initialize this via NewInProcessServer.
type InProcessServer struct {
	*smtp.Server
	*InMemoryEmailStore
	backend  *Backend
	listener net.Listener
}

// NewInProcessServer creates an InProcessServer listening on a random
// loopback port. Connections queue up until Start is called.
func NewInProcessServer(opts Options) *InProcessServer {
	is := &InMemoryEmailStore{
		mu:       &sync.Mutex{},
		messages: []messageData{},
	}
	be := &Backend{
		InMemoryEmailStore: is,
		username:           opts.Username,
		password:           opts.Password,
	}

	srv := smtp.NewServer(be)
	srv.Domain = "localhost"
	srv.AllowInsecureAuth = opts.AllowInsecureAuth
	srv.AuthDisabled = false // need AUTH here
	// Strict is undocumented, but it looks like it enforces <address> syntax
	// in messages:
	// https://github.com/emersion/go-smtp/blob/f92bf7f1a25777bcdaa28a142b1cd1a54b74c8f4/conn.go#L321-L325
	srv.Strict = true
	srv.ReadTimeout = 10 * time.Second
	srv.WriteTimeout = 10 * time.Second

	var tlsConfig *tls.Config
	if opts.KeyPath != "" && opts.CertPath != "" {
		cert, err := tls.LoadX509KeyPair(opts.CertPath, opts.KeyPath)
		// No way to carry on without a cert, so we panic. We're in a test
		// suite, so this should be fine.
		if err != nil {
			panic(err)
		}
		tlsConfig = &tls.Config{
			Certificates: []tls.Certificate{cert},
		}
	}

	// go-smtp advertises STARTTLS whenever it has a TLS config and the
	// connection isn't encrypted yet.
	if tlsConfig != nil && (opts.ImplicitTLS || !opts.DisableSTARTTLS) {
		srv.TLSConfig = tlsConfig
	}

	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		panic(err)
	}
	if opts.ImplicitTLS {
		if tlsConfig == nil {
			panic("implicit TLS needs a key and certificate")
		}
		l = tls.NewListener(l, tlsConfig)
	}
	srv.Addr = l.Addr().String()

	return &InProcessServer{
		Server:             srv,
		InMemoryEmailStore: is,
		backend:            be,
		listener:           l,
	}
}

// Start serves connections until Close. Blocking.
func (is *InProcessServer) Start() error {
	err := is.Server.Serve(is.listener)
	if errors.Is(err, net.ErrClosed) {
		return nil
	}
	return err
}

// Close shuts down the test server daemon. You must initialize a new
// InProcessServer instead of restarting this one.
func (is *InProcessServer) Close() {
	is.Server.Close()
	// Close may run before Serve has registered the listener
	is.listener.Close()
}

// LoginAttempts returns how many AUTH exchanges reached the Backend.
func (is *InProcessServer) LoginAttempts() int {
	return int(is.backend.loginAttempts.Load())
}

// Address returns the host:port of the test SMTP server.
func (is *InProcessServer) Address() string {
	return is.listener.Addr().String()
}

// Port returns the port the test SMTP server listens on.
func (is *InProcessServer) Port() int {
	return portOf(is.listener.Addr())
}

func portOf(a net.Addr) int {
	_, p, err := net.SplitHostPort(a.String())
	if err != nil {
		return 0
	}
	n, _ := strconv.Atoi(p)
	return n
}
