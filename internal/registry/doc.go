// Package registry provides the central "glue" between pipeline files and
// compiled operations.
//
// The Registry maps the operation names used in `step` blocks (e.g.
// "query") to the Go functions implementing them, together with the struct
// their `args` object decodes into. Modules register their operations at
// startup; the registry is then validated so that every argument struct can
// be decoded from configuration, preventing a class of runtime errors.
package registry
