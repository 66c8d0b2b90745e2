package main

import (
	"flag"
	"fmt"
	"os"
	"os/signal"

	"github.com/ptgott/smtpcheck/email"
	"github.com/ptgott/smtpcheck/userconfig"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const (
	exitFailure   = 1
	exitBadConfig = 2
)

func main() {
	// Log with filename and line number. This writes to stderr, so it should
	// be thread safe.
	// https://github.com/rs/zerolog/blob/7ccd4c940bf8a02fcc5f10e5475f9d3daff04d57/log/log.go#L13
	log.Logger = log.With().Caller().Logger()

	// The probe is bounded by its own timeout, but an operator may still
	// want out sooner. The engine has no cancellation, so we just exit.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt)
	go func(c chan os.Signal) {
		<-c
		log.Info().Msg("interrupt: exiting")
		os.Exit(exitFailure)
	}(sigCh)

	configPath := flag.String(
		"config",
		"./config.yaml",
		"path to a JSON or YAML file containing the SMTP settings to test",
	)
	schema := flag.Bool(
		"schema",
		false,
		"print the JSON schema of the config file and exit",
	)
	level := flag.String(
		"level",
		"info",
		`log level: "info", "debug", or "warn"`,
	)
	flag.Parse()

	switch *level {
	case "debug":
		log.Logger = log.Logger.Level(zerolog.DebugLevel)
	case "warn":
		log.Logger = log.Logger.Level(zerolog.WarnLevel)
	default:
		log.Logger = log.Logger.Level(zerolog.InfoLevel)
	}

	if *schema {
		b, err := userconfig.Schema()
		if err != nil {
			log.Error().Err(err).Msg("can't generate the config schema")
			os.Exit(exitFailure)
		}
		fmt.Println(string(b))
		return
	}

	log.Info().
		Str("configPath", *configPath).
		Msg("reading the SMTP settings")

	f, err := os.Open(*configPath)

	if err != nil {
		log.Error().
			Str("config-path", *configPath).
			Err(err).
			Msg("We can't open the config file")
		os.Exit(exitBadConfig)
	}

	config, err := userconfig.Parse(f)
	f.Close()

	if err != nil {
		log.Error().
			Err(err).
			Msg("Problem parsing your config")
		os.Exit(exitBadConfig)
	}

	checkedConfig, err := config.CheckAndSetDefaults()
	if err != nil {
		log.Error().
			Err(err).
			Msg("Problem validating your config")
		os.Exit(exitBadConfig)
	}

	req := checkedConfig.TestRequest()
	log.Info().
		Str("request", req.String()).
		Msg("testing the SMTP settings")

	if req.Encryption == email.PlainText {
		log.Warn().Msg("the password will be sent over an unencrypted connection")
	}

	out := email.Probe(req)
	fmt.Println(out.String())

	if !out.OK {
		os.Exit(exitFailure)
	}
}
