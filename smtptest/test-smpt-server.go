package smtptest

// Server is an SMTP server that a test stands up and tears down. The SMTP
// server should be able to return the payloads of messages sent to it during
// the test suite.
type Server interface {
	// Start serves connections and blocks until Close. Retry behavior is
	// left to the caller.
	Start() error

	// Close terminates the server and any required resources. While
	// this is designed not to return an error so it's easier to use with defer,
	// implementations should log failures to close so the test operator can
	// chase down rogue server processes.
	Close()

	// RetrieveEmails returns the payloads of all email messages sent to the
	// server during the test/suite after time t in Unix epoch nanoseconds.
	RetrieveEmails(t int64) ([]string, error)

	// LoginAttempts returns the number of AUTH exchanges the server saw.
	LoginAttempts() int

	// Address returns the address of the server.
	Address() string

	// Port returns the TCP port of the server.
	Port() int
}
