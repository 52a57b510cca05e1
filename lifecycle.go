package agentkit

import (
	"context"
	"errors"
	"fmt"

	"github.com/hupe1980/agentkit/config"
	"github.com/hupe1980/agentkit/engine"
)

// Phase is the lifecycle state of a Kit.
type Phase int32

const (
	PhaseInitializing Phase = iota
	PhaseReady
	PhaseRunning
	PhaseShuttingDown
	PhaseStopped
)

func (p Phase) String() string {
	switch p {
	case PhaseInitializing:
		return "initializing"
	case PhaseReady:
		return "ready"
	case PhaseRunning:
		return "running"
	case PhaseShuttingDown:
		return "shutting_down"
	case PhaseStopped:
		return "stopped"
	default:
		return fmt.Sprintf("phase(%d)", int32(p))
	}
}

// ErrShutdown is returned for invocations started after Shutdown.
var ErrShutdown = errors.New("agentkit is shut down")

// Phase returns the current lifecycle phase.
func (k *Kit) Phase() Phase { return Phase(k.phase.Load()) }

// enter registers an in-flight invocation. Once shutdown has begun only
// calls made from inside a running execution (workflow members, child
// agents) are admitted so the drain can finish them.
func (k *Kit) enter(ctx context.Context) error {
	k.mu.Lock()
	defer k.mu.Unlock()
	switch phase := k.Phase(); {
	case phase == PhaseStopped:
		return ErrShutdown
	case phase == PhaseShuttingDown && !engine.InScope(ctx):
		return ErrShutdown
	}
	k.inflight.Add(1)
	k.phase.CompareAndSwap(int32(PhaseReady), int32(PhaseRunning))
	return nil
}

// Start loads Options.ConfigFiles and, with WatchConfig, keeps them in sync.
// Agents of the files are registered as local configurations, their model
// routes and experiments are applied. Start is optional for purely
// programmatic use.
func (k *Kit) Start(ctx context.Context) error {
	if !k.phase.CompareAndSwap(int32(PhaseInitializing), int32(PhaseReady)) {
		return fmt.Errorf("start: kit is %s", k.Phase())
	}

	watchCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	k.mu.Lock()
	k.stop = cancel
	k.mu.Unlock()

	for _, path := range k.opts.ConfigFiles {
		src, err := config.NewFileSource(path, func(o *config.FileSourceOptions) {
			o.Logger = k.logger
			o.OnReload = k.applyDocument
		})
		if err != nil {
			cancel()
			return fmt.Errorf("start: %w", err)
		}
		if !k.opts.WatchConfig {
			continue
		}
		k.watchers.Add(1)
		go func() {
			defer k.watchers.Done()
			if err := src.Watch(watchCtx); err != nil {
				k.logger.Error("agentkit.config.watch_failed", "path", path, "error", err.Error())
			}
		}()
	}

	k.logger.Info("agentkit.started", "config_files", len(k.opts.ConfigFiles), "watch", k.opts.WatchConfig)
	return nil
}

// LoadDocument applies a parsed configuration document.
func (k *Kit) LoadDocument(doc *config.Document) error {
	var errs []error
	for _, cfg := range doc.Agents {
		if err := k.RegisterAgentConfig(cfg); err != nil {
			errs = append(errs, err)
		}
	}
	for capability, id := range doc.Models {
		k.UpdateModelMapping(capability, id)
	}
	for name, variants := range doc.Experiments {
		if err := k.RegisterExperiment(name, variants); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (k *Kit) applyDocument(doc *config.Document) {
	if err := k.LoadDocument(doc); err != nil {
		k.logger.Error("agentkit.config.apply_failed", "error", err.Error())
	}
}

// Shutdown rejects new invocations, stops watchers, waits for in-flight
// invocations and runs the Options.OnShutdown hooks. It returns ctx.Err()
// when ctx ends before the invocations finish.
func (k *Kit) Shutdown(ctx context.Context) error {
	k.mu.Lock()
	if k.Phase() >= PhaseShuttingDown {
		k.mu.Unlock()
		return nil
	}
	k.phase.Store(int32(PhaseShuttingDown))
	stop := k.stop
	k.mu.Unlock()

	if stop != nil {
		stop()
	}

	done := make(chan struct{})
	go func() {
		k.inflight.Wait()
		k.watchers.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}

	var errs []error
	for _, fn := range k.opts.OnShutdown {
		if err := fn(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	k.phase.Store(int32(PhaseStopped))
	k.logger.Info("agentkit.stopped")
	return errors.Join(errs...)
}
