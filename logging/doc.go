// Package logging provides a minimal logging interface and adapters for agentkit.
//
// The Logger interface defines the leveled methods (Debug, Info, Warn, Error)
// used by the resolver, engine, tool binder and trace collector. This package includes:
//
//   - Logger interface for dependency injection
//   - SlogAdapter wrapping Go's structured logging
//   - NoOpLogger for silent operation (testing, minimal setups)
//
// Usage:
//
//	logger := logging.New(logging.Config{Level: logging.LogLevelDebug, Format: "json"})
//	kit := agentkit.New(func(o *agentkit.Options) { o.Logger = logger })
//
// Messages are dotted event keys ("agent.invoke.start") followed by
// key/value pairs.
package logging
