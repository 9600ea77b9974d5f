// Package config loads knotter settings.
//
// Settings come from four layers, later ones winning: built-in defaults,
// an optional YAML file, KNOTTER_* environment variables, and finally a
// CUE schema that rejects inconsistent values.
package config
