package userconfig

import (
	"bytes"
	"encoding/json"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/ptgott/smtpcheck/email"

	"gopkg.in/yaml.v2"
)

func TestParse(t *testing.T) {
	testCases := []struct {
		description   string
		conf          string
		shouldBeError bool
		shouldBeEmpty bool
	}{
		{
			description:   "valid case",
			shouldBeError: false,
			shouldBeEmpty: false,
			conf: `---
host: smtp.example.com
port: 587
encryption: starttls
username: MyUser123
password: 123456-A_BCDE
fromAddress: me@example.com
toAddress: recipient@example.com
timeout: 10s
`,
		},
		{
			description:   "not yaml",
			shouldBeError: true,
			shouldBeEmpty: true,
			conf:          `this is not yaml`,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.description, func(t *testing.T) {
			b := bytes.NewBuffer([]byte(tc.conf))
			c, err := Parse(b)

			if (err != nil) != tc.shouldBeError {
				t.Errorf(
					"%v: unexpected error status: wanted %v but got %v with error %v",
					tc.description,
					tc.shouldBeError,
					err != nil,
					err,
				)
			}

			if reflect.DeepEqual(*c, Config{}) != tc.shouldBeEmpty {
				l := map[bool]string{
					true:  "to be",
					false: "not to be",
				}
				t.Errorf(
					"%v: expected the Config %v empty, but got the opposite",
					tc.description,
					l[tc.shouldBeEmpty],
				)
			}
		})
	}
}

func TestUnmarshalYAML(t *testing.T) {
	testCases := []struct {
		description   string
		input         string
		shouldBeError bool
	}{
		{
			description: "valid case",
			input: `host: smtp.example.com
encryption: implicit-tls
username: MyUser123
password: 123456-A_BCDE
fromAddress: me@example.com
toAddress: recipient@example.com
`,
			shouldBeError: false,
		},
		{
			description: "label copied from a provider's docs",
			input: `host: smtp.example.com
encryption: SSL/TLS (Port 465)
`,
			shouldBeError: false,
		},
		{
			description:   "unknown encryption mode",
			input:         `encryption: ssl3`,
			shouldBeError: true,
		},
		{
			description:   "port not a number",
			input:         `port: smtp`,
			shouldBeError: true,
		},
		{
			description:   "timeout not a duration",
			input:         `timeout: "10"`,
			shouldBeError: true,
		},
		{
			description:   "not a map[string]string",
			input:         `[]`,
			shouldBeError: true,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.description, func(t *testing.T) {
			var c Config
			buf := bytes.NewBuffer([]byte(tc.input))
			dec := yaml.NewDecoder(buf)
			err := dec.Decode(&c)
			if (err != nil) != tc.shouldBeError {
				t.Errorf(
					"%v: unexpected error status--wanted %v but got %v with error %v",
					tc.description,
					tc.shouldBeError,
					err != nil,
					err,
				)
			}
		})
	}
}

func validConfig() Config {
	return Config{
		Host:        "smtp.example.com",
		Encryption:  email.ImplicitTLS,
		Username:    "MyUser123",
		Password:    "123456-A_BCDE",
		FromAddress: "me@example.com",
		ToAddress:   "recipient@example.com",
	}
}

func TestCheckAndSetDefaults(t *testing.T) {
	testCases := []struct {
		description   string
		modify        func(c *Config)
		shouldBeError bool
		errContains   string
	}{
		{
			description: "valid case",
			modify:      func(c *Config) {},
		},
		{
			description:   "no host",
			modify:        func(c *Config) { c.Host = "" },
			shouldBeError: true,
			errContains:   `"host"`,
		},
		{
			description:   "no username",
			modify:        func(c *Config) { c.Username = "" },
			shouldBeError: true,
			errContains:   `"username"`,
		},
		{
			description:   "no from address",
			modify:        func(c *Config) { c.FromAddress = "" },
			shouldBeError: true,
			errContains:   `"fromAddress"`,
		},
		{
			description:   "no to address",
			modify:        func(c *Config) { c.ToAddress = "" },
			shouldBeError: true,
			errContains:   `"toAddress"`,
		},
		{
			description:   "port too high",
			modify:        func(c *Config) { c.Port = 65536 },
			shouldBeError: true,
			errContains:   `"port"`,
		},
		{
			description:   "negative port",
			modify:        func(c *Config) { c.Port = -1 },
			shouldBeError: true,
			errContains:   `"port"`,
		},
		{
			description:   "timeout too short",
			modify:        func(c *Config) { c.Timeout = 500 * time.Millisecond },
			shouldBeError: true,
			errContains:   `"timeout"`,
		},
		{
			description:   "timeout too long",
			modify:        func(c *Config) { c.Timeout = 61 * time.Second },
			shouldBeError: true,
			errContains:   `"timeout"`,
		},
		{
			description: "longest timeout",
			modify:      func(c *Config) { c.Timeout = 60 * time.Second },
		},
		{
			description:   "hostname with a space",
			modify:        func(c *Config) { c.Host = "smtp example.com" },
			shouldBeError: true,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.description, func(t *testing.T) {
			t.Setenv(PasswordEnv, "")
			c := validConfig()
			tc.modify(&c)
			_, err := c.CheckAndSetDefaults()
			if (err != nil) != tc.shouldBeError {
				t.Fatalf(
					"%v: unexpected error status--wanted %v but got %v with error %v",
					tc.description,
					tc.shouldBeError,
					err != nil,
					err,
				)
			}
			if err != nil && !strings.Contains(err.Error(), tc.errContains) {
				t.Errorf("expected %q in the error, got %v", tc.errContains, err)
			}
		})
	}
}

func TestCheckAndSetDefaultsAppliesDefaults(t *testing.T) {
	t.Setenv(PasswordEnv, "")
	c := validConfig()
	c.Encryption = 0

	n, err := c.CheckAndSetDefaults()
	if err != nil {
		t.Fatal(err)
	}
	if n.Encryption != email.StartTLS {
		t.Errorf("expected the default encryption to be STARTTLS, got %v", n.Encryption)
	}
	if n.Port != 587 {
		t.Errorf("expected the default STARTTLS port 587, got %v", n.Port)
	}
	if n.Timeout != defaultTimeout {
		t.Errorf("expected the default timeout %v, got %v", defaultTimeout, n.Timeout)
	}
	if n.Subject == "" || n.Body == "" {
		t.Error("expected a default subject and body")
	}
	// The receiver is left alone
	if c.Port != 0 {
		t.Error("CheckAndSetDefaults modified its receiver")
	}
}

func TestCheckAndSetDefaultsPassword(t *testing.T) {
	c := validConfig()
	c.Password = ""

	t.Setenv(PasswordEnv, "")
	_, err := c.CheckAndSetDefaults()
	if err == nil || !strings.Contains(err.Error(), PasswordEnv) {
		t.Errorf("expected an error mentioning %v, got %v", PasswordEnv, err)
	}

	t.Setenv(PasswordEnv, "from-the-env")
	n, err := c.CheckAndSetDefaults()
	if err != nil {
		t.Fatal(err)
	}
	if n.Password != "from-the-env" {
		t.Errorf("expected the password from %v, got %q", PasswordEnv, n.Password)
	}
}

func TestNormalizeHost(t *testing.T) {
	testCases := []struct {
		description string
		input       string
		expected    string
	}{
		{description: "ascii", input: "smtp.example.com", expected: "smtp.example.com"},
		{description: "uppercase", input: "SMTP.Example.com", expected: "smtp.example.com"},
		{description: "internationalized", input: "smtp.bücher.example", expected: "smtp.xn--bcher-kva.example"},
		{description: "ipv4", input: "127.0.0.1", expected: "127.0.0.1"},
		{description: "bracketed ipv6", input: "[::1]", expected: "::1"},
	}

	for _, tc := range testCases {
		t.Run(tc.description, func(t *testing.T) {
			got, err := normalizeHost(tc.input)
			if err != nil {
				t.Fatal(err)
			}
			if got != tc.expected {
				t.Errorf("expected %v but got %v", tc.expected, got)
			}
		})
	}
}

func TestTestRequest(t *testing.T) {
	t.Setenv(PasswordEnv, "")
	c := validConfig()
	n, err := c.CheckAndSetDefaults()
	if err != nil {
		t.Fatal(err)
	}
	r := n.TestRequest()
	if r.Host != n.Host || r.Port != 465 || r.Encryption != email.ImplicitTLS || r.Password != n.Password {
		t.Errorf("the request doesn't match the config: %v", r)
	}
}

func TestSchema(t *testing.T) {
	b, err := Schema()
	if err != nil {
		t.Fatal(err)
	}
	var s map[string]interface{}
	if err := json.Unmarshal(b, &s); err != nil {
		t.Fatalf("the schema isn't valid JSON: %v", err)
	}
	props, ok := s["properties"].(map[string]interface{})
	if !ok {
		t.Fatal("the schema has no properties")
	}
	for _, k := range []string{"host", "port", "encryption", "username", "password", "fromAddress", "toAddress", "timeout"} {
		if _, ok := props[k]; !ok {
			t.Errorf("the schema is missing %q", k)
		}
	}
}
