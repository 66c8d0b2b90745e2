package e2e

// e2e contains integration tests and utility code required to set up
// dependencies. The tests start from a YAML config file, the way an operator
// would, and run it through userconfig and the probe engine against an
// in-process SMTP server. Test dependencies that unit tests also use live in
// smtptest instead.
