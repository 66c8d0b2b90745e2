package email

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteMessage(t *testing.T) {
	req := TestRequest{
		Host:        "smtp.example.com",
		FromAddress: "me@example.org",
		ToAddress:   "you@example.com",
		Subject:     "SMTP configuration test",
		Body:        "This is a test email.",
	}

	var buf bytes.Buffer
	require.NoError(t, writeMessage(&buf, req, time.Now()))
	msg := buf.String()

	assert.Contains(t, msg, "From: me@example.org\r\n")
	assert.Contains(t, msg, "To: you@example.com\r\n")
	assert.Contains(t, msg, "Subject: SMTP configuration test\r\n")
	assert.Contains(t, msg, "Message-ID: <")
	assert.Contains(t, msg, "@example.org>")
	assert.Contains(t, msg, "Date: ")
	assert.Contains(t, msg, "text/plain")

	parts := strings.SplitN(msg, "\r\n\r\n", 2)
	require.Len(t, parts, 2, "expecting a blank line after the headers")
	assert.Contains(t, parts[1], req.Body)
}

func TestMessageIDDomain(t *testing.T) {
	testCases := []struct {
		description string
		from        string
		expected    string
	}{
		{description: "plain address", from: "me@example.org", expected: "example.org"},
		{description: "angle brackets", from: "Me <me@example.org>", expected: "example.org"},
		{description: "no domain", from: "me", expected: "smtp.example.com"},
		{description: "trailing at", from: "me@", expected: "smtp.example.com"},
	}

	for _, tc := range testCases {
		t.Run(tc.description, func(t *testing.T) {
			got := messageIDDomain(TestRequest{Host: "smtp.example.com", FromAddress: tc.from})
			if got != tc.expected {
				t.Errorf("expected %v but got %v", tc.expected, got)
			}
		})
	}
}
