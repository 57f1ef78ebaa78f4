package modelguard

import (
	"context"
	"time"
)

// Message is a single conversation turn passed through to provider handlers.
type Message struct {
	Role    string `json:"role" yaml:"role"`
	Content string `json:"content" yaml:"content"`
}

// Request describes one model call to be executed through the reliability
// pipeline. Route and ClientKey drive admission control; CacheKey (or the
// derived default) drives caching and coalescing.
type Request struct {
	Route       string
	ClientKey   string
	CacheKey    string
	Cacheable   bool
	CacheTTL    time.Duration
	Capability  string
	Messages    []Message
	MaxTokens   int
	Temperature float64
	Metadata    map[string]string
}

// Response is the result of a successful provider call.
type Response struct {
	Content      string        `json:"content"`
	Model        string        `json:"model"`
	Provider     string        `json:"provider"`
	TokensIn     int           `json:"tokens_in,omitempty"`
	TokensOut    int           `json:"tokens_out,omitempty"`
	Duration     time.Duration `json:"duration"`
	FinishReason string        `json:"finish_reason,omitempty"`
}

// Handler executes a single provider call for one model. Implementations may
// block or suspend; the router enforces the per-model timeout via ctx.
type Handler interface {
	Invoke(ctx context.Context, modelID string, req *Request) (*Response, error)
}

// HandlerFunc adapts a plain function to the Handler interface.
type HandlerFunc func(ctx context.Context, modelID string, req *Request) (*Response, error)

func (f HandlerFunc) Invoke(ctx context.Context, modelID string, req *Request) (*Response, error) {
	return f(ctx, modelID, req)
}

// ModelConfig is the immutable description of one routable model. Lower Tier
// means preferred; fallback degrades toward higher tiers, never the reverse.
type ModelConfig struct {
	Name         string
	Tier         int
	Provider     string
	ModelID      string
	MaxTokens    int
	Timeout      time.Duration
	CostPerUnit  float64
	Capabilities []string
}

// HasCapability reports whether the model advertises the given capability.
// An empty capability matches every model.
func (m *ModelConfig) HasCapability(capability string) bool {
	if capability == "" {
		return true
	}
	for _, c := range m.Capabilities {
		if c == capability {
			return true
		}
	}
	return false
}

// ModelUsage accumulates per-model accounting after successful calls.
type ModelUsage struct {
	Calls         int64   `json:"calls"`
	TokensIn      int64   `json:"tokens_in"`
	TokensOut     int64   `json:"tokens_out"`
	EstimatedCost float64 `json:"estimated_cost"`
}

// RouterUsage is the router's aggregate accounting snapshot.
type RouterUsage struct {
	Models       map[string]ModelUsage `json:"models"`
	CurrentModel string                `json:"current_model"`
	TotalCost    float64               `json:"total_cost"`
}

// ModelHealth describes one candidate's routing availability.
type ModelHealth struct {
	Tier         int          `json:"tier"`
	Provider     string       `json:"provider"`
	CircuitState CircuitState `json:"circuit_state"`
	Available    bool         `json:"available"`
}

// Option configures a Client.
type Option func(*Client)
