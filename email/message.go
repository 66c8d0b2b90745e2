package email

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
	gomail "gopkg.in/gomail.v2"
)

// newMessage builds the test message from the request. Only the fields an
// operator needs to recognize the message in an inbox are set.
func newMessage(req TestRequest, now time.Time) *gomail.Message {
	m := gomail.NewMessage()
	m.SetHeader("From", req.FromAddress)
	m.SetHeader("To", req.ToAddress)
	m.SetHeader("Subject", req.Subject)
	m.SetHeader("Message-ID", fmt.Sprintf("<%v@%v>", uuid.NewString(), messageIDDomain(req)))
	m.SetDateHeader("Date", now)
	m.SetBody("text/plain", req.Body)
	return m
}

// messageIDDomain uses the sender's domain, falling back to the relay host
// when the from address has none.
func messageIDDomain(req TestRequest) string {
	if i := strings.LastIndex(req.FromAddress, "@"); i >= 0 && i < len(req.FromAddress)-1 {
		return strings.Trim(req.FromAddress[i+1:], "<> ")
	}
	return req.Host
}

// writeMessage streams the message to w, which is the DATA writer of the
// SMTP client. The client handles dot-stuffing.
func writeMessage(w io.Writer, req TestRequest, now time.Time) error {
	_, err := newMessage(req, now).WriteTo(w)
	return err
}
