package metrics

import "github.com/benbjohnson/clock"

type registryConfig struct {
	// when false, remove per-key mutex entries from `inits` after initialization to
	// allow GC of mutexes for many ephemeral instrument names. Default: false.
	doNotCleanupInits bool
	logger            logger
	clock             clock.Clock
}

// RegistryOption configures a Registry constructed by NewRegistry.
type RegistryOption func(*registryConfig)

// WithInitCleanupDisabled controls whether per-key init mutex entries are removed from
// the registry's internal `inits` map after initialization. When enabled the
// entries are deleted to allow GC of mutexes for ephemeral instrument names.
// Init cleanup is enabled by default; this option disables it.
func WithInitCleanupDisabled() RegistryOption {
	return func(cfg *registryConfig) { cfg.doNotCleanupInits = true }
}

// WithRegistryLogger sets the logger used for configuration warnings and
// invariant violations. A *zap.SugaredLogger can be passed directly.
func WithRegistryLogger(l logger) RegistryOption {
	return func(cfg *registryConfig) { cfg.logger = l }
}

// WithRegistryClock sets the time source handed to every instrument the
// registry creates.
func WithRegistryClock(c clock.Clock) RegistryOption {
	return func(cfg *registryConfig) { cfg.clock = c }
}
