package modelguard

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

func staticHandler(content string) Handler {
	return HandlerFunc(func(ctx context.Context, modelID string, req *Request) (*Response, error) {
		return &Response{Content: content, TokensIn: 10, TokensOut: 20}, nil
	})
}

func failingHandler(err error) Handler {
	return HandlerFunc(func(ctx context.Context, modelID string, req *Request) (*Response, error) {
		return nil, err
	})
}

func newTestRouter() (*Router, *CircuitRegistry) {
	reg := NewCircuitRegistry(BreakerConfig{FailureThreshold: 1, RecoveryTimeout: time.Hour})
	return NewRouter(reg), reg
}

func TestRouterPrefersLowestTier(t *testing.T) {
	r, _ := newTestRouter()
	r.AddModel(ModelConfig{Name: "backup", Tier: 2, Provider: "b"})
	r.AddModel(ModelConfig{Name: "primary", Tier: 1, Provider: "a"})
	r.RegisterHandler("a", staticHandler("from-a"))
	r.RegisterHandler("b", staticHandler("from-b"))

	resp, used, err := r.CallWithFallback(context.Background(), &Request{}, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if used != "primary" {
		t.Errorf("expected primary (tier 1) used, got %q", used)
	}
	if resp.Content != "from-a" {
		t.Errorf("expected tier-1 response, got %q", resp.Content)
	}
}

func TestRouterSkipsOpenCircuitWithoutInvoking(t *testing.T) {
	r, reg := newTestRouter()
	r.AddModel(ModelConfig{Name: "A", Tier: 1, Provider: "a"})
	r.AddModel(ModelConfig{Name: "B", Tier: 2, Provider: "b"})

	var aInvoked int64
	r.RegisterHandler("a", HandlerFunc(func(ctx context.Context, modelID string, req *Request) (*Response, error) {
		atomic.AddInt64(&aInvoked, 1)
		return &Response{Content: "from-a"}, nil
	}))
	r.RegisterHandler("b", staticHandler("from-b"))

	// Trip A's breaker open.
	reg.Get("A").RecordFailure()

	resp, used, err := r.CallWithFallback(context.Background(), &Request{}, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if used != "B" {
		t.Errorf("expected fallback to B, got %q", used)
	}
	if resp.Content != "from-b" {
		t.Errorf("expected B's response, got %q", resp.Content)
	}
	if atomic.LoadInt64(&aInvoked) != 0 {
		t.Error("open candidate's handler must not be invoked")
	}
}

func TestRouterCapabilityFilter(t *testing.T) {
	r, _ := newTestRouter()
	r.AddModel(ModelConfig{Name: "text", Tier: 1, Provider: "a", Capabilities: []string{"chat"}})
	r.AddModel(ModelConfig{Name: "eyes", Tier: 2, Provider: "b", Capabilities: []string{"chat", "vision"}})
	r.RegisterHandler("a", staticHandler("text-only"))
	r.RegisterHandler("b", staticHandler("vision-capable"))

	_, used, err := r.CallWithFallback(context.Background(), &Request{}, "vision")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if used != "eyes" {
		t.Errorf("expected the vision-capable model, got %q", used)
	}

	_, _, err = r.CallWithFallback(context.Background(), &Request{}, "audio")
	if !errors.Is(err, ErrNoCandidates) {
		t.Errorf("expected ErrNoCandidates for unserved capability, got %v", err)
	}
}

func TestRouterExhaustionNamesAllCandidates(t *testing.T) {
	r, _ := newTestRouter()
	r.AddModel(ModelConfig{Name: "one", Tier: 1, Provider: "a"})
	r.AddModel(ModelConfig{Name: "two", Tier: 2, Provider: "b"})

	lastCause := errors.New("two is down")
	r.RegisterHandler("a", failingHandler(errors.New("one is down")))
	r.RegisterHandler("b", failingHandler(lastCause))

	_, _, err := r.CallWithFallback(context.Background(), &Request{}, "")
	if !errors.Is(err, ErrExhausted) {
		t.Fatalf("expected exhaustion, got %v", err)
	}

	var exhausted *ExhaustedError
	if !errors.As(err, &exhausted) {
		t.Fatalf("expected *ExhaustedError, got %T", err)
	}
	if len(exhausted.Attempted) != 2 || exhausted.Attempted[0] != "one" || exhausted.Attempted[1] != "two" {
		t.Errorf("expected attempted [one two], got %v", exhausted.Attempted)
	}
	if !errors.Is(exhausted.LastErr, lastCause) {
		t.Errorf("expected last candidate's error preserved, got %v", exhausted.LastErr)
	}
}

func TestRouterFailureFeedsOwnBreakerOnly(t *testing.T) {
	r, reg := newTestRouter()
	r.AddModel(ModelConfig{Name: "bad", Tier: 1, Provider: "a"})
	r.AddModel(ModelConfig{Name: "good", Tier: 2, Provider: "b"})
	r.RegisterHandler("a", failingHandler(errors.New("down")))
	r.RegisterHandler("b", staticHandler("ok"))

	_, used, err := r.CallWithFallback(context.Background(), &Request{}, "")
	if err != nil || used != "good" {
		t.Fatalf("expected fallback success, got %q / %v", used, err)
	}

	if reg.Get("bad").State() != StateOpen {
		t.Error("expected failing model's breaker open")
	}
	if reg.Get("good").State() != StateClosed {
		t.Error("healthy model's breaker must be untouched by the other's failure")
	}
}

func TestRouterTimeoutCountsAsFailure(t *testing.T) {
	r, reg := newTestRouter()
	r.AddModel(ModelConfig{Name: "slow", Tier: 1, Provider: "a", Timeout: 50 * time.Millisecond})
	r.AddModel(ModelConfig{Name: "fast", Tier: 2, Provider: "b"})

	r.RegisterHandler("a", HandlerFunc(func(ctx context.Context, modelID string, req *Request) (*Response, error) {
		select {
		case <-time.After(time.Second):
			return &Response{Content: "too late"}, nil
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}))
	r.RegisterHandler("b", staticHandler("quick"))

	start := time.Now()
	resp, used, err := r.CallWithFallback(context.Background(), &Request{}, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if used != "fast" {
		t.Errorf("expected timeout fallback to fast, got %q", used)
	}
	if resp.Content != "quick" {
		t.Errorf("unexpected response %q", resp.Content)
	}
	if elapsed := time.Since(start); elapsed > 500*time.Millisecond {
		t.Errorf("timeout not enforced, call took %v", elapsed)
	}
	if reg.Get("slow").State() != StateOpen {
		t.Error("timeout must count as a failure for the model's breaker")
	}
}

func TestRouterCancellationStopsWalk(t *testing.T) {
	r, _ := newTestRouter()
	r.AddModel(ModelConfig{Name: "one", Tier: 1, Provider: "a"})
	r.AddModel(ModelConfig{Name: "two", Tier: 2, Provider: "b"})

	ctx, cancel := context.WithCancel(context.Background())

	var secondInvoked int64
	r.RegisterHandler("a", HandlerFunc(func(ctx context.Context, modelID string, req *Request) (*Response, error) {
		cancel()
		return nil, errors.New("failed after cancel")
	}))
	r.RegisterHandler("b", HandlerFunc(func(ctx context.Context, modelID string, req *Request) (*Response, error) {
		atomic.AddInt64(&secondInvoked, 1)
		return &Response{Content: "late"}, nil
	}))

	_, _, err := r.CallWithFallback(ctx, &Request{}, "")
	if err == nil {
		t.Fatal("expected error after cancellation")
	}
	if atomic.LoadInt64(&secondInvoked) != 0 {
		t.Error("candidates after cancellation must not be attempted")
	}
}

func TestRouterRecoversThroughHalfOpenProbes(t *testing.T) {
	reg := NewCircuitRegistry(BreakerConfig{FailureThreshold: 1, RecoveryTimeout: 50 * time.Millisecond})
	r := NewRouter(reg)
	r.AddModel(ModelConfig{Name: "m", Tier: 1, Provider: "a"})

	var failing int64 = 1
	r.RegisterHandler("a", HandlerFunc(func(ctx context.Context, modelID string, req *Request) (*Response, error) {
		if atomic.LoadInt64(&failing) == 1 {
			return nil, errors.New("down")
		}
		return &Response{Content: "ok"}, nil
	}))

	if _, _, err := r.CallWithFallback(context.Background(), &Request{}, ""); err == nil {
		t.Fatal("expected failure while the provider is down")
	}
	if reg.Get("m").State() != StateOpen {
		t.Fatalf("expected open breaker, got %v", reg.Get("m").State())
	}

	atomic.StoreInt64(&failing, 0)
	time.Sleep(80 * time.Millisecond)

	// Default success threshold is 2 with a probe budget of 1, so recovery
	// takes two sequential probe calls through the normal routing path.
	for i := 0; i < 2; i++ {
		resp, used, err := r.CallWithFallback(context.Background(), &Request{}, "")
		if err != nil {
			t.Fatalf("probe call %d rejected after recovery: %v", i+1, err)
		}
		if used != "m" || resp.Content != "ok" {
			t.Fatalf("probe call %d: unexpected result %q from %q", i+1, resp.Content, used)
		}
	}

	if reg.Get("m").State() != StateClosed {
		t.Errorf("expected closed breaker after probe successes, got %v", reg.Get("m").State())
	}
}

func TestRouterUsageAccounting(t *testing.T) {
	r, _ := newTestRouter()
	r.AddModel(ModelConfig{Name: "m", Tier: 1, Provider: "a", CostPerUnit: 0.01})
	r.RegisterHandler("a", staticHandler("hello"))

	for i := 0; i < 3; i++ {
		if _, _, err := r.CallWithFallback(context.Background(), &Request{}, ""); err != nil {
			t.Fatalf("call %d failed: %v", i, err)
		}
	}

	usage := r.Usage()
	if usage.CurrentModel != "m" {
		t.Errorf("expected current model m, got %q", usage.CurrentModel)
	}
	mu := usage.Models["m"]
	if mu.Calls != 3 {
		t.Errorf("expected 3 calls, got %d", mu.Calls)
	}
	if mu.TokensIn != 30 || mu.TokensOut != 60 {
		t.Errorf("expected tokens 30/60, got %d/%d", mu.TokensIn, mu.TokensOut)
	}
	wantCost := float64(30+60) / 1000 * 0.01
	if diff := usage.TotalCost - wantCost; diff > 1e-9 || diff < -1e-9 {
		t.Errorf("expected total cost %.6f, got %.6f", wantCost, usage.TotalCost)
	}
}

func TestRouterTokenEstimation(t *testing.T) {
	r, _ := newTestRouter()
	r.AddModel(ModelConfig{Name: "m", Tier: 1, Provider: "a"})
	// Handler reports no token usage; the router estimates from content.
	r.RegisterHandler("a", HandlerFunc(func(ctx context.Context, modelID string, req *Request) (*Response, error) {
		return &Response{Content: "12345678"}, nil
	}))

	req := &Request{Messages: []Message{{Role: "user", Content: "sixteen chars ab"}}}
	if _, _, err := r.CallWithFallback(context.Background(), req, ""); err != nil {
		t.Fatal(err)
	}

	mu := r.Usage().Models["m"]
	if mu.TokensIn != 4 {
		t.Errorf("expected 4 estimated input tokens, got %d", mu.TokensIn)
	}
	if mu.TokensOut != 2 {
		t.Errorf("expected 2 estimated output tokens, got %d", mu.TokensOut)
	}
}

func TestRouterHealth(t *testing.T) {
	r, reg := newTestRouter()
	r.AddModel(ModelConfig{Name: "up", Tier: 1, Provider: "a"})
	r.AddModel(ModelConfig{Name: "down", Tier: 2, Provider: "b"})
	reg.Get("down").RecordFailure()

	health := r.Health()
	if !health["up"].Available {
		t.Error("expected up available")
	}
	if health["down"].Available {
		t.Error("expected down unavailable while its breaker is open")
	}
	if health["down"].CircuitState != StateOpen {
		t.Errorf("expected open state reported, got %v", health["down"].CircuitState)
	}
	if health["up"].Tier != 1 || health["up"].Provider != "a" {
		t.Errorf("unexpected health metadata: %+v", health["up"])
	}
}

func TestRouterUnregisteredProvider(t *testing.T) {
	r, _ := newTestRouter()
	r.AddModel(ModelConfig{Name: "orphan", Tier: 1, Provider: "ghost"})

	_, _, err := r.CallWithFallback(context.Background(), &Request{}, "")
	var exhausted *ExhaustedError
	if !errors.As(err, &exhausted) {
		t.Fatalf("expected exhaustion, got %v", err)
	}
	var handlerErr *HandlerError
	if !errors.As(exhausted.LastErr, &handlerErr) {
		t.Fatalf("expected *HandlerError cause, got %T", exhausted.LastErr)
	}
}

func TestRouterDeterministicOrderWithinTier(t *testing.T) {
	r, _ := newTestRouter()
	r.AddModel(ModelConfig{Name: "zeta", Tier: 1, Provider: "z"})
	r.AddModel(ModelConfig{Name: "alpha", Tier: 1, Provider: "a"})
	r.RegisterHandler("z", staticHandler("z"))
	r.RegisterHandler("a", staticHandler("a"))

	_, used, err := r.CallWithFallback(context.Background(), &Request{}, "")
	if err != nil {
		t.Fatal(err)
	}
	if used != "alpha" {
		t.Errorf("expected name order to break tier ties, got %q", used)
	}
}
