// Package cmd implements the command-line interface for elva.
//
// This package provides the following commands:
//   - serve: Start the HTTP API (and optionally the metrics server)
//   - auth: Authorize Gmail access and store the OAuth token
//   - check: Validate configuration, credential paths and scopes
//   - version: Display version information
package cmd
