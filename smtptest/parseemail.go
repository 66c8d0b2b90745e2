package smtptest

import (
	"regexp"
	"strings"
)

// ExtractHeader returns the value of the first header called name in a raw
// message, or "" if there is none. Folded headers aren't supported; the
// messages we look at keep their headers on one line.
func ExtractHeader(body string, name string) string {
	if body == "" {
		return ""
	}
	// Headers end at the first blank line
	head := strings.SplitN(body, "\r\n\r\n", 2)[0]
	headerPattern := regexp.MustCompile("(?mi)^" + regexp.QuoteMeta(name) + ":[ \t]*(.*?)\r?$")
	m := headerPattern.FindStringSubmatch(head)
	if len(m) < 2 {
		return ""
	}
	return m[1]
}
