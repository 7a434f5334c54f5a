// Package version identifies the service in logs and traces.
package version

const (
	// Name is the service identifier.
	Name = "pilotd"
	// Version is overridden at build time via -ldflags.
	Version = "dev"
)
