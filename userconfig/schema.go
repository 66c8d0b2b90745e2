package userconfig

import (
	"encoding/json"
	"fmt"

	"github.com/invopop/jsonschema"
)

// document mirrors the config file as operators write it. Parsing goes
// through Config.UnmarshalYAML; document only describes the file for Schema.
type document struct {
	Host        string `json:"host" jsonschema:"description=SMTP server hostname or IP address"`
	Port        int    `json:"port,omitempty" jsonschema:"minimum=1,maximum=65535,description=Defaults to 465/587/25 depending on the encryption method"`
	Encryption  string `json:"encryption,omitempty" jsonschema:"enum=implicit-tls,enum=starttls,enum=plaintext,default=starttls"`
	Username    string `json:"username"`
	Password    string `json:"password,omitempty" jsonschema:"description=Password or app password. Read from SMTPCHECK_PASSWORD when left out"`
	FromAddress string `json:"fromAddress"`
	ToAddress   string `json:"toAddress"`
	Subject     string `json:"subject,omitempty" jsonschema:"default=SMTP configuration test"`
	Body        string `json:"body,omitempty"`
	Timeout     string `json:"timeout,omitempty" jsonschema:"default=10s,description=Go duration between 1s and 60s bounding the whole test"`
}

// Schema returns the JSON schema of the config file, for editors that
// validate YAML against a schema.
func Schema() ([]byte, error) {
	reflector := jsonschema.Reflector{
		ExpandedStruct: true,
	}
	s := reflector.Reflect(&document{})
	s.Title = "smtpcheck configuration"

	b, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("can't marshal the config schema: %v", err)
	}
	return b, nil
}
