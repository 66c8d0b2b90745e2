package email

import (
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"
)

// EncryptionMode selects how the probe secures the SMTP session.
type EncryptionMode int

const (
	// ImplicitTLS negotiates TLS immediately after connecting, before the
	// server greeting. Conventionally port 465.
	ImplicitTLS EncryptionMode = iota + 1
	// StartTLS connects in plain text and upgrades the session with the
	// STARTTLS command. Conventionally port 587.
	StartTLS
	// PlainText never encrypts the session. Only useful for diagnostics.
	PlainText
)

// String returns the canonical config name of the mode.
func (m EncryptionMode) String() string {
	switch m {
	case ImplicitTLS:
		return "implicit-tls"
	case StartTLS:
		return "starttls"
	case PlainText:
		return "plaintext"
	default:
		return fmt.Sprintf("EncryptionMode(%d)", int(m))
	}
}

// DefaultPort returns the port conventionally used with the mode, or 0 for
// an unknown mode.
func (m EncryptionMode) DefaultPort() int {
	switch m {
	case ImplicitTLS:
		return 465
	case StartTLS:
		return 587
	case PlainText:
		return 25
	default:
		return 0
	}
}

// ParseEncryptionMode reads a mode name from user input. Besides the
// canonical names returned by String it accepts the labels people usually
// copy from mail provider docs, e.g., "SSL/TLS" or "Plain Text".
func ParseEncryptionMode(s string) (EncryptionMode, error) {
	n := strings.ToLower(strings.TrimSpace(s))
	// Labels like "STARTTLS (Port 587)" carry the port as a hint only
	if i := strings.Index(n, "("); i > 0 {
		n = strings.TrimSpace(n[:i])
	}

	switch n {
	case "implicit-tls", "implicittls", "implicit", "ssl/tls", "ssl", "tls", "smtps":
		return ImplicitTLS, nil
	case "starttls", "start-tls":
		return StartTLS, nil
	case "plaintext", "plain-text", "plain text", "plain", "none":
		return PlainText, nil
	}
	return 0, fmt.Errorf("unknown encryption mode %q", s)
}

// TestRequest is everything the engine needs for one probe. Callers build it
// once and don't modify it afterwards. The engine doesn't check what the
// fields mean, e.g., it doesn't validate address syntax; the server decides.
type TestRequest struct {
	Host       string
	Port       int
	Encryption EncryptionMode
	Username   string
	// Password is never logged or included in a TestOutcome.
	Password    string
	FromAddress string
	ToAddress   string
	Subject     string
	Body        string
	// Timeout bounds the whole probe, from dialing to QUIT.
	Timeout time.Duration
}

// address returns host:port for dialing.
func (r TestRequest) address() string {
	return net.JoinHostPort(r.Host, strconv.Itoa(r.Port))
}

// String describes the request for logs. The password is left out.
func (r TestRequest) String() string {
	return fmt.Sprintf(
		"%v (%v) as %q from %q to %q, timeout %v",
		r.address(),
		r.Encryption,
		r.Username,
		r.FromAddress,
		r.ToAddress,
		r.Timeout,
	)
}
