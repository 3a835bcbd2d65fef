package preflight

import "context"

// Plugin is an auxiliary component that lives alongside the server.
//
// Plugins are initialized in registration order once the server is running
// and shut down in reverse order before the server is stopped. A failing
// Initialize is reported as an unhandled asynchronous error; it does not
// undo the bootstrap.
type Plugin interface {
	Name() string
	Initialize(ctx context.Context, host Host) error
	Shutdown(ctx context.Context) error
}

// BasePlugin provides a name and no-op hooks for embedding.
type BasePlugin struct {
	name string
}

// NewBasePlugin creates a BasePlugin with the given name.
func NewBasePlugin(name string) BasePlugin {
	return BasePlugin{name: name}
}

// Name returns the plugin identifier.
func (b BasePlugin) Name() string { return b.name }

// Initialize does nothing.
func (BasePlugin) Initialize(context.Context, Host) error { return nil }

// Shutdown does nothing.
func (BasePlugin) Shutdown(context.Context) error { return nil }
