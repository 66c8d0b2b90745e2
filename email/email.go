package email

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/emersion/go-sasl"
	"github.com/emersion/go-smtp"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const defaultLocalName = "localhost"

// Prober runs probes. It only holds configuration that doesn't change after
// NewProber, so one Prober can serve concurrent probes. Each probe opens and
// closes its own connection.
type Prober struct {
	rootCAs   *x509.CertPool
	localName string
	dialer    net.Dialer
}

// Option configures a Prober.
type Option func(*Prober)

// WithRootCAs makes the Prober trust pool instead of the system roots.
// Certificate and hostname verification always stay on.
func WithRootCAs(pool *x509.CertPool) Option {
	return func(p *Prober) {
		p.rootCAs = pool
	}
}

// WithLocalName sets the name the Prober announces in EHLO.
func WithLocalName(name string) Option {
	return func(p *Prober) {
		if name != "" {
			p.localName = name
		}
	}
}

// NewProber returns a Prober that verifies certificates against the system
// trust store unless told otherwise.
func NewProber(opts ...Option) *Prober {
	p := &Prober{
		localName: defaultLocalName,
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

var defaultProber = NewProber()

// Probe runs req with a Prober using the system trust store.
func Probe(req TestRequest) TestOutcome {
	return defaultProber.Probe(req)
}

// Probe connects to the server in req, secures the session according to
// req.Encryption, authenticates and sends one message. Every failure,
// including a panic further down, comes back as a TestOutcome with OK set to
// false. A single deadline of req.Timeout from the start of the call governs
// every network operation.
func (p *Prober) Probe(req TestRequest) (out TestOutcome) {
	start := time.Now()
	deadline := start.Add(req.Timeout)
	id := uuid.NewString()

	logger := log.With().
		Str("probeID", id).
		Str("host", req.Host).
		Int("port", req.Port).
		Str("mode", req.Encryption.String()).
		Logger()

	defer func() {
		if r := recover(); r != nil {
			out = TestOutcome{
				Kind:       UnknownFailure,
				Diagnostic: redact(fmt.Sprintf("An unexpected error occurred: %v", r), req),
			}
		}
		out.Mode = req.Encryption
		out.ProbeID = id
		out.Elapsed = time.Since(start)

		if out.OK {
			logger.Info().Dur("elapsed", out.Elapsed).Msg(out.Message)
		} else {
			logger.Warn().
				Dur("elapsed", out.Elapsed).
				Str("kind", out.Kind.String()).
				Str("diagnostic", out.Diagnostic).
				Msg("probe failed")
		}
	}()

	st, ok := strategyFor(req.Encryption)
	if !ok {
		return TestOutcome{
			Kind:       UnknownFailure,
			Diagnostic: fmt.Sprintf("Unsupported encryption mode %v.", req.Encryption),
		}
	}

	logger.Debug().Str("request", req.String()).Msg("starting probe")

	if err := p.run(req, st, deadline, logger); err != nil {
		kind, diag := classify(err, req, deadline, time.Now())
		logger.Debug().Str("error", redact(err.Error(), req)).Msg("pipeline stopped")
		return TestOutcome{
			Kind:       kind,
			Diagnostic: redact(diag, req),
		}
	}

	return TestOutcome{
		OK:      true,
		Message: st.sentOver(),
	}
}

// run executes connect -> [secure] -> greet -> [upgrade -> greet] ->
// authenticate -> send -> close. The connection acquired here is released
// by the deferred Close no matter which step returns.
func (p *Prober) run(req TestRequest, st strategy, deadline time.Time, logger zerolog.Logger) error {
	ctx, cancel := context.WithDeadline(context.Background(), deadline)
	defer cancel()

	logger.Debug().Msg("connecting")
	raw, err := p.dialer.DialContext(ctx, "tcp", req.address())
	if err != nil {
		return failAt(stepConnect, err)
	}
	conn, err := newDeadlineConn(raw, deadline)
	if err != nil {
		raw.Close()
		return failAt(stepConnect, err)
	}
	defer conn.Close()

	tlsConfig := p.tlsConfig(req.Host)

	sc, err := st.secure(ctx, conn, tlsConfig)
	if err != nil {
		return failAt(stepEncrypt, err)
	}

	logger.Debug().Msg("greeting")
	// NewClient reads the 220 banner.
	c, err := smtp.NewClient(sc, req.Host)
	if err != nil {
		return failAt(stepGreet, err)
	}
	if err := c.Hello(p.localName); err != nil {
		return failAt(stepGreet, err)
	}

	if err := st.upgrade(c, tlsConfig); err != nil {
		return err
	}

	logger.Debug().Str("username", req.Username).Msg("authenticating")
	if err := authenticate(c, req); err != nil {
		return failAt(stepAuthenticate, err)
	}

	logger.Debug().Msg("sending the test message")
	if err := send(c, req, time.Now()); err != nil {
		return failAt(stepSend, err)
	}

	// The server has accepted the message by now, so a failed QUIT doesn't
	// change the outcome.
	if err := c.Quit(); err != nil {
		logger.Debug().Err(failAt(stepClose, err)).Msg("QUIT failed after the message was accepted")
	}
	return nil
}

// tlsConfig returns a fresh config per probe. ServerName is always set so
// that hostname verification happens for both TLS paths.
func (p *Prober) tlsConfig(host string) *tls.Config {
	return &tls.Config{
		ServerName: host,
		RootCAs:    p.rootCAs,
		MinVersion: tls.VersionTLS12,
	}
}

// authenticate logs in with PLAIN, or LOGIN for servers that only offer
// that. Nothing is sent after a failed AUTH.
func authenticate(c *smtp.Client, req TestRequest) error {
	ok, mechs := c.Extension("AUTH")
	if !ok {
		return errAuthUnsupported
	}
	return c.Auth(saslClient(mechs, req))
}

func saslClient(advertised string, req TestRequest) sasl.Client {
	var login bool
	for _, m := range strings.Fields(strings.ToUpper(advertised)) {
		switch m {
		case sasl.Plain:
			return sasl.NewPlainClient("", req.Username, req.Password)
		case sasl.Login:
			login = true
		}
	}
	if login {
		return sasl.NewLoginClient(req.Username, req.Password)
	}
	return sasl.NewPlainClient("", req.Username, req.Password)
}

// send hands one message to the server: MAIL, RCPT, DATA.
func send(c *smtp.Client, req TestRequest, now time.Time) error {
	if err := c.Mail(req.FromAddress, nil); err != nil {
		return err
	}
	if err := c.Rcpt(req.ToAddress); err != nil {
		return err
	}
	w, err := c.Data()
	if err != nil {
		return err
	}
	if err := writeMessage(w, req, now); err != nil {
		w.Close()
		return err
	}
	// Close returns the server's verdict on the message.
	return w.Close()
}
