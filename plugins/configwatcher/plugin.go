// Package configwatcher reloads the fault policy when the config file changes.
// It watches the file's directory and, after a short debounce, re-resolves
// the configuration and applies its debug and crash settings.
package configwatcher

import (
	"context"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/bft-labs/preflight/pkg/log"
	"github.com/bft-labs/preflight/pkg/preflight"
)

// ReloadFunc re-reads the configuration and returns the fault policy it
// resolves to.
type ReloadFunc func() (preflight.FaultPolicy, error)

// Config holds configuration options for the config watcher plugin.
type Config struct {
	// Path is the config file to watch. The plugin is disabled when empty.
	Path string

	// DebounceDelay is the delay to wait after a file change before reloading.
	// Default: 100 milliseconds
	DebounceDelay time.Duration

	// Reload resolves the new policy. Required.
	Reload ReloadFunc
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		DebounceDelay: 100 * time.Millisecond,
	}
}

// Plugin implements config watching functionality.
type Plugin struct {
	mu sync.Mutex

	path          string
	debounceDelay time.Duration
	reload        ReloadFunc

	host     preflight.Host
	logger   log.Logger
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	debounce *time.Timer
	reloads  int
}

// New creates a new config watcher plugin with the given configuration.
func New(cfg Config) *Plugin {
	if cfg.DebounceDelay <= 0 {
		cfg.DebounceDelay = 100 * time.Millisecond
	}
	return &Plugin{
		path:          cfg.Path,
		debounceDelay: cfg.DebounceDelay,
		reload:        cfg.Reload,
		logger:        log.NewNoopLogger(),
	}
}

// Name returns the plugin identifier.
func (p *Plugin) Name() string {
	return "configwatcher"
}

// Initialize starts watching the config file's directory.
func (p *Plugin) Initialize(ctx context.Context, host preflight.Host) error {
	p.mu.Lock()
	p.host = host
	p.logger = host.Logger()
	p.mu.Unlock()

	if p.path == "" || p.reload == nil {
		p.logger.Warn("config watcher disabled: no config file")
		return nil
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	// The directory survives editors that replace the file.
	if err := watcher.Add(filepath.Dir(p.path)); err != nil {
		watcher.Close()
		return err
	}

	watchCtx, cancel := context.WithCancel(ctx)
	p.mu.Lock()
	p.cancel = cancel
	p.mu.Unlock()

	p.logger.Info("config watcher started", log.String("path", p.path))

	p.wg.Add(1)
	host.Go("config watcher", func() error {
		p.watchLoop(watchCtx, watcher)
		return preflight.ErrWorkerDone
	})
	return nil
}

// Shutdown stops the watcher and any pending reload.
func (p *Plugin) Shutdown(ctx context.Context) error {
	p.mu.Lock()
	if p.cancel != nil {
		p.cancel()
	}
	if p.debounce != nil {
		p.debounce.Stop()
	}
	p.mu.Unlock()

	p.wg.Wait()
	return nil
}

// Reloads returns how many reloads were applied.
func (p *Plugin) Reloads() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.reloads
}

func (p *Plugin) watchLoop(ctx context.Context, watcher *fsnotify.Watcher) {
	defer p.wg.Done()
	defer watcher.Close()

	target := filepath.Clean(p.path)
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			p.debounceReload(ctx)
		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			p.logger.Error("config watcher error", log.Err(err))
		}
	}
}

func (p *Plugin) debounceReload(ctx context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.debounce != nil {
		p.debounce.Stop()
	}
	host := p.host
	p.debounce = time.AfterFunc(p.debounceDelay, func() {
		if ctx.Err() != nil {
			return
		}
		host.Go("config reload", func() error {
			p.apply()
			return preflight.ErrWorkerDone
		})
	})
}

// apply keeps the current policy when the new configuration is invalid.
func (p *Plugin) apply() {
	policy, err := p.reload()
	if err != nil {
		p.logger.Error("config reload failed, keeping current policy",
			log.String("path", p.path),
			log.Err(err))
		return
	}

	p.mu.Lock()
	host := p.host
	p.reloads++
	p.mu.Unlock()

	if host == nil {
		return
	}
	host.SetFaultPolicy(policy)
	p.logger.Info("config reloaded", log.String("path", p.path))
}

// Ensure Plugin implements preflight.Plugin.
var _ preflight.Plugin = (*Plugin)(nil)
