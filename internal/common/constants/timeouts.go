// Package constants holds fallback timeouts used when no configuration is supplied.
package constants

import "time"

// Timeouts for external work.
const (
	// InstallTimeout bounds a full dependency install across every package directory.
	InstallTimeout = 5 * time.Minute

	// SecretAccessTimeout bounds a single Secret Manager AccessSecretVersion call.
	SecretAccessTimeout = 5 * time.Second

	// SecretCreateTimeout bounds secret creation plus its first version.
	SecretCreateTimeout = 10 * time.Second

	// CLIQueryTimeout bounds short synchronous CLI queries such as "firebase use --json".
	CLIQueryTimeout = 30 * time.Second

	// LoginTimeout bounds interactive browser logins (firebase login, gcloud auth login).
	LoginTimeout = 5 * time.Minute

	// StopGracePeriod is the delay between SIGTERM and SIGKILL when stopping a process group.
	StopGracePeriod = 2 * time.Second

	// PingInterval is the live-log heartbeat period.
	PingInterval = 60 * time.Second

	// ShutdownTimeout bounds graceful HTTP server shutdown.
	ShutdownTimeout = 10 * time.Second
)
