// Package config defines the format-agnostic pipeline model, the Loader
// interface implemented by file formats such as HCL, and the engine settings
// read from a YAML file and the BLUEETL_* environment variables.
//
// The Pipeline model is what the application turns into pipeline steps;
// concrete loaders live in separate packages.
package config
