package e2e

import (
	"crypto/x509"
	"path/filepath"
	"testing"

	"github.com/ptgott/smtpcheck/smtptest"
)

const (
	testUsername = "e2e-user"
	testPassword = "e2e-app-password"
)

// testEnvironmentConfig exposes options that should be available and
// perhaps changeable when spinning up a test environment.
type testEnvironmentConfig struct {
	serverOptions smtptest.Options
}

// testEnvironment manages all dependencies required to simulate a "real"
// environment and run the e2e tests. Callers should create this via
// startTestEnvironment.
type testEnvironment struct {
	SMTPServer smtptest.Server
	// Trusts only the test server's certificate
	roots       *x509.CertPool
	tempDirPath string
}

// startTestEnvironment spins up dependencies. Callers should defer a call to
// tearDown.
//
// Note that if startTestEnvironment fails, it will return an error along with
// whatever shreds of a test environment we've set up so far so you can tear
// it down (i.e., it won't just be the zero value)
func startTestEnvironment(t *testing.T, c testEnvironmentConfig) (*testEnvironment, error) {
	te := &testEnvironment{
		tempDirPath: t.TempDir(),
	}

	key, cert, err := smtptest.GenerateTLSFiles(t)
	if err != nil {
		return te, err
	}

	te.roots, err = smtptest.CertPool(cert)
	if err != nil {
		return te, err
	}

	opts := c.serverOptions
	opts.KeyPath = key
	opts.CertPath = cert
	opts.Username = testUsername
	opts.Password = testPassword
	ts := smtptest.NewInProcessServer(opts)

	te.SMTPServer = ts

	go ts.Start()

	return te, nil
}

// configPath returns where tests should write the application config.
func (te *testEnvironment) configPath() string {
	return filepath.Join(te.tempDirPath, "config.yaml")
}

// tearDown returns the testEnvironment to its state prior to start. Designed
// to call with defer
func (te *testEnvironment) tearDown() {
	if te.SMTPServer != nil {
		te.SMTPServer.Close()
	}
}
