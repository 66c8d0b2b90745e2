package userconfig

import (
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/ptgott/smtpcheck/email"
	"github.com/rs/zerolog/log"
	"golang.org/x/net/idna"
	yaml "gopkg.in/yaml.v2"
)

// PasswordEnv is read when the config file leaves out the password, so the
// password doesn't have to live on disk.
const PasswordEnv = "SMTPCHECK_PASSWORD"

const (
	defaultTimeout = time.Duration(10) * time.Second
	defaultSubject = "SMTP configuration test"
	defaultBody    = "This is a test email to verify your SMTP configuration."
)

var defaultEncryption = email.StartTLS

// validate is shared since building a validator is expensive. Error
// messages use the YAML key names.
var validate = func() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		return strings.SplitN(f.Tag.Get("yaml"), ",", 2)[0]
	})
	return v
}()

// Config represents the options an operator provides for one probe. Not
// meant to be used for probing without CheckAndSetDefaults.
type Config struct {
	Host        string               `yaml:"host" validate:"required"`
	Port        int                  `yaml:"port" validate:"min=1,max=65535"`
	Encryption  email.EncryptionMode `yaml:"encryption" validate:"required"`
	Username    string               `yaml:"username" validate:"required"`
	Password    string               `yaml:"password" validate:"required"`
	FromAddress string               `yaml:"fromAddress" validate:"required"`
	ToAddress   string               `yaml:"toAddress" validate:"required"`
	Subject     string               `yaml:"subject"`
	Body        string               `yaml:"body"`
	Timeout     time.Duration        `yaml:"timeout" validate:"min=1s,max=60s"`
}

// UnmarshalYAML parses a user-provided YAML configuration, returning any
// parsing errors. Missing keys are left at their zero values for
// CheckAndSetDefaults to handle.
func (c *Config) UnmarshalYAML(unmarshal func(interface{}) error) error {
	v := make(map[string]string)
	err := unmarshal(&v)

	if err != nil {
		return fmt.Errorf("can't parse the user config: %v", err)
	}

	c.Host = strings.TrimSpace(v["host"])
	c.Username = v["username"]
	c.Password = v["password"]
	c.FromAddress = strings.TrimSpace(v["fromAddress"])
	c.ToAddress = strings.TrimSpace(v["toAddress"])
	c.Subject = v["subject"]
	c.Body = v["body"]

	if p, ok := v["port"]; ok {
		pn, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return fmt.Errorf("can't parse the port as an integer: %v", err)
		}
		c.Port = pn
	}

	if e, ok := v["encryption"]; ok {
		m, err := email.ParseEncryptionMode(e)
		if err != nil {
			return err
		}
		c.Encryption = m
	}

	if d, ok := v["timeout"]; ok {
		pd, err := time.ParseDuration(strings.TrimSpace(d))
		if err != nil {
			return fmt.Errorf(
				"can't parse the user-provided timeout as a duration: %v",
				err,
			)
		}
		c.Timeout = pd
	}

	return nil
}

// CheckAndSetDefaults validates c and either returns a copy of c with default
// settings applied or returns an error due to an invalid configuration. Only
// presence and ranges are checked; whether the addresses or credentials are
// any good is for the server to decide.
func (c *Config) CheckAndSetDefaults() (Config, error) {
	n := *c

	if n.Encryption == 0 {
		n.Encryption = defaultEncryption
	}
	if n.Port == 0 {
		n.Port = n.Encryption.DefaultPort()
	}
	if n.Timeout == 0 {
		n.Timeout = defaultTimeout
	}
	if n.Subject == "" {
		n.Subject = defaultSubject
	}
	if n.Body == "" {
		n.Body = defaultBody
	}
	if n.Password == "" {
		n.Password = os.Getenv(PasswordEnv)
	}

	if n.Host != "" {
		h, err := normalizeHost(n.Host)
		if err != nil {
			return Config{}, err
		}
		n.Host = h
	}

	if err := validate.Struct(&n); err != nil {
		return Config{}, describeValidationError(err)
	}

	return n, nil
}

// TestRequest converts a checked Config into the engine's input.
func (c Config) TestRequest() email.TestRequest {
	return email.TestRequest{
		Host:        c.Host,
		Port:        c.Port,
		Encryption:  c.Encryption,
		Username:    c.Username,
		Password:    c.Password,
		FromAddress: c.FromAddress,
		ToAddress:   c.ToAddress,
		Subject:     c.Subject,
		Body:        c.Body,
		Timeout:     c.Timeout,
	}
}

// normalizeHost turns internationalized hostnames into their ASCII form,
// which is what both DNS and certificate verification expect. IP addresses
// pass through.
func normalizeHost(h string) (string, error) {
	h = strings.TrimSuffix(strings.TrimPrefix(h, "["), "]")
	if net.ParseIP(h) != nil {
		return h, nil
	}
	a, err := idna.Lookup.ToASCII(h)
	if err != nil {
		return "", fmt.Errorf("the host %q is not a valid hostname: %v", h, err)
	}
	return a, nil
}

func describeValidationError(err error) error {
	var ve validator.ValidationErrors
	if !errors.As(err, &ve) {
		return fmt.Errorf("can't validate the user config: %v", err)
	}

	msgs := make([]string, 0, len(ve))
	for _, fe := range ve {
		switch fe.Tag() {
		case "required":
			if fe.Field() == "password" {
				msgs = append(msgs, fmt.Sprintf("the config must include a password (or set %v)", PasswordEnv))
			} else {
				msgs = append(msgs, fmt.Sprintf("the config must include %q", fe.Field()))
			}
		case "min":
			msgs = append(msgs, fmt.Sprintf("%q must be at least %v", fe.Field(), fe.Param()))
		case "max":
			msgs = append(msgs, fmt.Sprintf("%q must be at most %v", fe.Field(), fe.Param()))
		default:
			msgs = append(msgs, fmt.Sprintf("%q is invalid", fe.Field()))
		}
	}
	return errors.New(strings.Join(msgs, "; "))
}

// Parse generates a Config from possibly arbitrary user input. An error
// indicates a problem with parsing. The Reader r can be either JSON or YAML.
// Callers still need to call CheckAndSetDefaults.
func Parse(r io.Reader) (*Config, error) {
	var c Config
	err := yaml.NewDecoder(r).Decode(&c)
	if err != nil {
		return &Config{}, fmt.Errorf("can't read the config file as YAML: %v", err)
	}

	if c.Password == "" {
		log.Debug().
			Str("env", PasswordEnv).
			Msg("no password in the config file, falling back to the environment")
	}

	return &c, nil
}
