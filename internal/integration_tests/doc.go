// Package integration_tests holds end-to-end tests that drive the
// application from pipeline files through to the JSON report. Each
// subdirectory groups one area of behaviour.
package integration_tests
