// Package hcl provides the concrete HCL implementation of the config.Loader
// interface. It parses pipeline files, evaluates their expressions and
// translates the blocks into the format-agnostic pipeline model, including
// the field type expressions of schemas.
package hcl
