// Package app wires the engine together: it reads the engine settings,
// builds the worker pool, the result cache and the operation registry, binds
// the steps of a pipeline file to registered operations and runs them,
// writing a JSON report. It is independent of the command line.
package app
