// Package provider defines the uniform contract over the four LLM back-ends
// and the shared plumbing (config, catalog, retry) every adapter uses.
//
// Each back-end lives in its own subpackage (anthropic, openai, gemini,
// local) and exposes a factory of the shape
//
//	func New(cfg provider.Config, model string) core.Result[provider.Provider]
//
// so that callers can construct any of the four uniformly.
package provider

import (
	"context"

	"github.com/wn-agent/wn/chatmodel"
	"github.com/wn-agent/wn/core"
)

// Config carries the credentials and endpoint override common to every
// back-end. Fields are optional; each factory documents its own
// environment-variable fallback.
type Config struct {
	APIKey    string
	AuthToken string
	BaseURL   string
}

// CompleteResult is the normalized outcome of one LLM round-trip.
type CompleteResult struct {
	Content   string
	ToolCalls []chatmodel.ToolCall
	Usage     *chatmodel.TokenUsage
}

// Provider is the uniform contract over an LLM back-end.
type Provider interface {
	// Name returns the provider identifier (e.g. "anthropic", "openai").
	Name() string

	// Complete performs one blocking LLM round-trip.
	Complete(ctx context.Context, messages []chatmodel.Message, tools []chatmodel.ToolDefinition) core.Result[CompleteResult]

	// Stream performs the same round-trip incrementally. Errors during
	// streaming are raised at the consumer's iteration point (on the
	// returned channel's error slot), not returned here.
	Stream(ctx context.Context, messages []chatmodel.Message, tools []chatmodel.ToolDefinition) (<-chan chatmodel.StreamChunk, error)
}

// Closer is implemented by providers that hold resources (connections,
// subprocess handles) that must be released on shutdown.
type Closer interface {
	Close() error
}

// Factory constructs a Provider from config and a model name.
type Factory func(cfg Config, model string) core.Result[Provider]

// registry of back-end factories, populated by each subpackage's init-time
// registration call (see Register) so that the RPC server's configUpdate
// handler and the CLI's --provider flag can construct any back-end by name
// without importing every adapter package directly.
var registry = map[string]Factory{}

// Register makes a back-end factory available by name. Each adapter
// subpackage calls this from its own New function's package, or the caller
// wires factories explicitly; both styles are supported.
func Register(name string, factory Factory) {
	registry[name] = factory
}

// aliases maps alternate provider names onto the name a back-end actually
// registers under, so configuration written against a vendor's product
// name (e.g. "claude") resolves to the adapter that serves it ("anthropic").
var aliases = map[string]string{
	"claude": "anthropic",
}

// New constructs a Provider by name using a previously registered factory.
func New(name string, cfg Config, model string) core.Result[Provider] {
	if canonical, ok := aliases[name]; ok {
		name = canonical
	}
	factory, ok := registry[name]
	if !ok {
		return core.Err[Provider](core.New(core.KindProviderConstruct, "unknown provider %q", name))
	}
	return factory(cfg, model)
}
