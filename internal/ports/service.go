package ports

import "context"

// Service is a long-running component started and stopped by the binary
type Service interface {
	// Start starts the service in the background
	Start() error

	// Stop shuts the service down, waiting for in-flight work until ctx expires
	Stop(ctx context.Context) error
}
