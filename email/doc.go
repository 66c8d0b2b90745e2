package email

// email is responsible for probing an SMTP relay: connecting to the server,
// negotiating TLS (directly or via STARTTLS), authenticating and sending a
// single test message. Every probe reports exactly one TestOutcome, and a
// failed probe names the sub-step category that failed so the operator knows
// whether to look at the network, the certificate or the credentials.
//
// It is not a general mail library. There are no retries and no connection
// reuse between probes.
