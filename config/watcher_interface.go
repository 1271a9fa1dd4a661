package config

// Watcher provides access to a live configuration source. Implementations
// must be safe for concurrent use.
type Watcher interface {
	// Current returns the most recently loaded valid configuration.
	Current() *Config

	// Subscribe returns a channel that receives each successfully reloaded
	// configuration. Slow subscribers may miss intermediate updates.
	Subscribe() <-chan *Config

	Close() error
}
