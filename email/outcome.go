package email

import (
	"fmt"
	"time"
)

// ErrorKind categorizes a failed probe by the sub-step that failed.
type ErrorKind int

const (
	// ConnectFailure means the TCP connection couldn't be established, e.g.,
	// DNS failure, connection refused or an unreachable network.
	ConnectFailure ErrorKind = iota + 1
	// EncryptionFailure means the TLS handshake failed or the server didn't
	// support or accept STARTTLS.
	EncryptionFailure
	// AuthenticationFailure means the server rejected the credentials.
	AuthenticationFailure
	// TimeoutFailure means the probe ran past its deadline.
	TimeoutFailure
	// ProtocolFailure means the server sent an error reply to the greeting
	// or while the message was being sent.
	ProtocolFailure
	// UnknownFailure is everything else.
	UnknownFailure
)

func (k ErrorKind) String() string {
	switch k {
	case ConnectFailure:
		return "connect"
	case EncryptionFailure:
		return "encryption"
	case AuthenticationFailure:
		return "authentication"
	case TimeoutFailure:
		return "timeout"
	case ProtocolFailure:
		return "protocol"
	case UnknownFailure:
		return "unknown"
	default:
		return fmt.Sprintf("ErrorKind(%d)", int(k))
	}
}

// Hint tells the operator where to look first.
func (k ErrorKind) Hint() string {
	switch k {
	case ConnectFailure:
		return "Check the host, port, or firewall."
	case EncryptionFailure:
		return "Check the server certificate and whether the server supports the selected encryption method."
	case AuthenticationFailure:
		return "Check your username/password or app password settings."
	case TimeoutFailure:
		return "The server did not answer in time. Check the port and encryption method, or raise the timeout."
	case ProtocolFailure:
		return "The server rejected part of the SMTP conversation. See its reply above."
	default:
		return ""
	}
}

// TestOutcome is the result of exactly one probe. When OK is true, Message
// names the encryption path the message went over. Otherwise Kind and
// Diagnostic describe the first failure. Diagnostic is safe to display: it
// never contains the password.
type TestOutcome struct {
	OK         bool
	Message    string
	Kind       ErrorKind
	Diagnostic string

	// Mode is the encryption mode the probe ran with.
	Mode EncryptionMode
	// Elapsed is the wall time spent in the probe.
	Elapsed time.Duration
	// ProbeID correlates the outcome with the probe's log lines.
	ProbeID string
}

// String renders the outcome as a one-line banner.
func (o TestOutcome) String() string {
	if o.OK {
		return fmt.Sprintf("Success: test email %v.", o.Message)
	}
	s := fmt.Sprintf("Failure (%v): %v", o.Kind, o.Diagnostic)
	if h := o.Kind.Hint(); h != "" {
		s = s + " " + h
	}
	return s
}
