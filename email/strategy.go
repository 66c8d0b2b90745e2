package email

import (
	"context"
	"crypto/tls"
	"net"

	"github.com/emersion/go-smtp"
)

// strategy is the part of the pipeline that differs between encryption
// modes. Everything else (greeting, AUTH, sending, QUIT) is shared.
type strategy interface {
	// secure runs on the fresh TCP connection, before the server greeting.
	secure(ctx context.Context, conn net.Conn, cfg *tls.Config) (net.Conn, error)
	// upgrade runs after the first EHLO. Errors it returns are already
	// tagged with the failing step.
	upgrade(c *smtp.Client, cfg *tls.Config) error
	// sentOver completes "test email ..." in a success message.
	sentOver() string
}

func strategyFor(m EncryptionMode) (strategy, bool) {
	switch m {
	case ImplicitTLS:
		return implicitTLS{}, true
	case StartTLS:
		return startTLS{}, true
	case PlainText:
		return plainText{}, true
	}
	return nil, false
}

type implicitTLS struct{}

func (implicitTLS) secure(ctx context.Context, conn net.Conn, cfg *tls.Config) (net.Conn, error) {
	tc := tls.Client(conn, cfg)
	if err := tc.HandshakeContext(ctx); err != nil {
		return nil, err
	}
	return tc, nil
}

func (implicitTLS) upgrade(*smtp.Client, *tls.Config) error { return nil }

func (implicitTLS) sentOver() string { return "sent over direct TLS" }

type startTLS struct{}

func (startTLS) secure(_ context.Context, conn net.Conn, _ *tls.Config) (net.Conn, error) {
	return conn, nil
}

// upgrade issues STARTTLS. go-smtp performs the handshake lazily and sends
// EHLO again over the encrypted channel, since the server may advertise
// different capabilities (usually AUTH) once the session is encrypted. If
// the handshake completed, a failure can only come from that second EHLO.
func (startTLS) upgrade(c *smtp.Client, cfg *tls.Config) error {
	if ok, _ := c.Extension("STARTTLS"); !ok {
		return failAt(stepEncrypt, errSTARTTLSUnsupported)
	}
	if err := c.StartTLS(cfg); err != nil {
		if state, ok := c.TLSConnectionState(); ok && state.HandshakeComplete {
			return failAt(stepGreet, err)
		}
		return failAt(stepEncrypt, err)
	}
	return nil
}

func (startTLS) sentOver() string { return "sent after STARTTLS upgrade" }

type plainText struct{}

func (plainText) secure(_ context.Context, conn net.Conn, _ *tls.Config) (net.Conn, error) {
	return conn, nil
}

func (plainText) upgrade(*smtp.Client, *tls.Config) error { return nil }

func (plainText) sentOver() string { return "sent over an unencrypted connection" }
