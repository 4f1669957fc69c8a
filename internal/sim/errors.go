package sim

import "errors"

var (
	// ErrConfig wraps all configuration validation failures. They are
	// detected before the simulation starts and are fatal to that run.
	ErrConfig = errors.New("invalid configuration")

	// ErrStateCorrupt wraps internal-consistency defects such as negative
	// lineage counts. A run that hits one aborts rather than repairing
	// state silently.
	ErrStateCorrupt = errors.New("population state corrupt")
)
