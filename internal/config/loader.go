package config

import "context"

// Loader provides configuration loading capabilities. It abstracts the
// source of configuration so the tracker can be fed from files today and
// environment or remote sources later without touching the wiring.
type Loader interface {
	// Load retrieves and parses the configuration from the underlying
	// source.
	Load(ctx context.Context) (*Config, error)
}
