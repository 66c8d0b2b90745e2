package email

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net"
	"net/textproto"
	"os"
	"strings"
	"time"

	units "github.com/docker/go-units"
	"github.com/emersion/go-smtp"
)

// step names a sub-step of the probe pipeline. The step that fails decides
// the ErrorKind of the outcome.
type step int

const (
	stepConnect step = iota + 1
	stepEncrypt
	stepGreet
	stepAuthenticate
	stepSend
	stepClose
)

func (s step) String() string {
	switch s {
	case stepConnect:
		return "connect"
	case stepEncrypt:
		return "encrypt"
	case stepGreet:
		return "greet"
	case stepAuthenticate:
		return "authenticate"
	case stepSend:
		return "send"
	case stepClose:
		return "close"
	default:
		return "unknown"
	}
}

// stepError records which sub-step produced err.
type stepError struct {
	step step
	err  error
}

func (e *stepError) Error() string {
	return fmt.Sprintf("%v: %v", e.step, e.err)
}

func (e *stepError) Unwrap() error {
	return e.err
}

func failAt(s step, err error) error {
	return &stepError{step: s, err: err}
}

var (
	errSTARTTLSUnsupported = errors.New("the server does not advertise STARTTLS")
	errAuthUnsupported     = errors.New("the server does not offer AUTH on this connection")
)

// isTimeout reports whether err came from hitting a deadline, whichever
// layer (dialer, TLS, textproto) it surfaced from.
func isTimeout(err error) bool {
	if errors.Is(err, os.ErrDeadlineExceeded) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}

// serverReply extracts the server's reply text from err, if err carries one.
func serverReply(err error) (string, bool) {
	var se *smtp.SMTPError
	if errors.As(err, &se) {
		return fmt.Sprintf("%d %v", se.Code, se.Message), true
	}
	var te *textproto.Error
	if errors.As(err, &te) {
		return fmt.Sprintf("%d %v", te.Code, te.Msg), true
	}
	return "", false
}

// classify maps a pipeline error to the outcome kind and diagnostic. A
// passed deadline wins over the failing step: depending on the platform, a
// dial that runs out of time can look like an ordinary connect error.
func classify(err error, req TestRequest, deadline time.Time, now time.Time) (ErrorKind, string) {
	var se *stepError
	if !errors.As(err, &se) {
		se = &stepError{err: err}
	}

	if isTimeout(err) || !now.Before(deadline) {
		return TimeoutFailure, fmt.Sprintf(
			"Timed out after %v (configured timeout %v) during the %v step.",
			units.HumanDuration(req.Timeout),
			req.Timeout,
			se.step,
		)
	}

	switch se.step {
	case stepConnect:
		return ConnectFailure, fmt.Sprintf(
			"Connection to %v failed: %v.", req.address(), se.err,
		)
	case stepEncrypt:
		return EncryptionFailure, fmt.Sprintf(
			"Could not establish %v with %v: %v.", req.Encryption, req.Host, se.err,
		)
	case stepGreet:
		if r, ok := serverReply(se.err); ok {
			return ProtocolFailure, fmt.Sprintf("The server rejected the greeting: %v", r)
		}
		return ProtocolFailure, fmt.Sprintf("The greeting failed: %v", se.err)
	case stepAuthenticate:
		if r, ok := serverReply(se.err); ok {
			return AuthenticationFailure, fmt.Sprintf(
				"Authentication failed for %q: %v", req.Username, r,
			)
		}
		if errors.Is(se.err, errAuthUnsupported) {
			return AuthenticationFailure, fmt.Sprintf(
				"Authentication failed for %q: %v.", req.Username, se.err,
			)
		}
		return UnknownFailure, fmt.Sprintf(
			"Authentication did not complete: %v", se.err,
		)
	case stepSend:
		if r, ok := serverReply(se.err); ok {
			return ProtocolFailure, fmt.Sprintf("The server rejected the message: %v", r)
		}
		return ProtocolFailure, fmt.Sprintf("Sending the message failed: %v", se.err)
	}
	return UnknownFailure, fmt.Sprintf("An unexpected error occurred: %v", se.err)
}

// redact removes the password from s, both verbatim and in the base64 forms
// that a server may echo back from an AUTH exchange.
func redact(s string, req TestRequest) string {
	if req.Password == "" {
		return s
	}
	secrets := []string{
		base64.StdEncoding.EncodeToString([]byte("\x00" + req.Username + "\x00" + req.Password)),
		base64.StdEncoding.EncodeToString([]byte(req.Password)),
		req.Password,
	}
	for _, p := range secrets {
		s = strings.ReplaceAll(s, p, "[redacted]")
	}
	return s
}
