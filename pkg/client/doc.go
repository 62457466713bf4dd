// Package client is the Go client for the engine's HTTP API, used by
// the CLI's rollout commands.
package client
