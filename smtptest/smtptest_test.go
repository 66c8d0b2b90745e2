package smtptest

import "testing"

var _ Server = (*InProcessServer)(nil)

func TestExtractHeader(t *testing.T) {
	msg := "From: me@example.com\r\n" +
		"subject: Hello there\r\n" +
		"To: you@example.com\r\n" +
		"\r\n" +
		"Subject: not a header, this is the body\r\n"

	testCases := []struct {
		description string
		body        string
		name        string
		expected    string
	}{
		{description: "case-insensitive name", body: msg, name: "Subject", expected: "Hello there"},
		{description: "first header", body: msg, name: "From", expected: "me@example.com"},
		{description: "missing header", body: msg, name: "Cc", expected: ""},
		{description: "empty message", body: "", name: "Subject", expected: ""},
	}

	for _, tc := range testCases {
		t.Run(tc.description, func(t *testing.T) {
			if got := ExtractHeader(tc.body, tc.name); got != tc.expected {
				t.Errorf("expected %q but got %q", tc.expected, got)
			}
		})
	}
}

func TestBackendLogin(t *testing.T) {
	be := &Backend{username: "u", password: "p"}

	if _, err := be.Login(nil, "u", "p"); err != nil {
		t.Errorf("expected the configured credentials to work: %v", err)
	}
	if _, err := be.Login(nil, "u", "nope"); err != ErrInvalidCredentials {
		t.Errorf("expected ErrInvalidCredentials, got %v", err)
	}
	if n := be.loginAttempts.Load(); n != 2 {
		t.Errorf("expected 2 login attempts but got %v", n)
	}

	open := &Backend{}
	if _, err := open.Login(nil, "anyone", "anything"); err != nil {
		t.Errorf("expected any credentials to work without configured ones: %v", err)
	}
	if _, err := open.Login(nil, "", ""); err == nil {
		t.Error("expected empty credentials to fail")
	}
}
