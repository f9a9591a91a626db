package circuit

import (
	"context"
	"errors"
	"testing"
	"time"

	gomcErrors "github.com/bardlex/gomc/pkg/errors"
)

func TestDefaultConfig(t *testing.T) {
	config := DefaultConfig()

	if config.MaxFailures != 5 {
		t.Errorf("Expected MaxFailures = 5, got %d", config.MaxFailures)
	}

	if config.SuccessRequired != 3 {
		t.Errorf("Expected SuccessRequired = 3, got %d", config.SuccessRequired)
	}

	if config.Timeout != 30*time.Second {
		t.Errorf("Expected Timeout = 30s, got %v", config.Timeout)
	}

	if config.ResetTimeout != 60*time.Second {
		t.Errorf("Expected ResetTimeout = 60s, got %v", config.ResetTimeout)
	}
}

func TestNew_NilConfig(t *testing.T) {
	breaker := New(nil)

	if breaker.config == nil {
		t.Error("Expected default config when nil is passed")
	}

	if breaker.GetState() != StateClosed {
		t.Error("Expected initial state to be Closed")
	}
}

func TestState_String(t *testing.T) {
	tests := []struct {
		state    State
		expected string
	}{
		{StateClosed, "closed"},
		{StateOpen, "open"},
		{StateHalfOpen, "half-open"},
		{State(999), "unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			if got := tt.state.String(); got != tt.expected {
				t.Errorf("State.String() = %q, want %q", got, tt.expected)
			}
		})
	}
}

func TestBreaker_Execute_Success(t *testing.T) {
	breaker := New(&Config{
		MaxFailures:     3,
		SuccessRequired: 2,
		Timeout:         10 * time.Second,
		ResetTimeout:    30 * time.Second,
	})

	ctx := context.Background()
	callCount := 0

	err := breaker.Execute(ctx, func() error {
		callCount++
		return nil
	})
	if err != nil {
		t.Errorf("Expected success, got error: %v", err)
	}

	if callCount != 1 {
		t.Errorf("Expected 1 call, got %d", callCount)
	}

	if breaker.GetState() != StateClosed {
		t.Errorf("Expected state to remain Closed, got %s", breaker.GetState())
	}
}

func TestBreaker_Execute_OpenCircuit(t *testing.T) {
	breaker := New(&Config{
		MaxFailures:     2,
		SuccessRequired: 1,
		Timeout:         10 * time.Second,
		ResetTimeout:    30 * time.Second,
	})

	ctx := context.Background()
	callCount := 0

	failingFn := func() error {
		callCount++
		return errors.New("test error")
	}

	for i := 0; i < 2; i++ {
		if err := breaker.Execute(ctx, failingFn); err == nil {
			t.Error("Expected error")
		}
	}

	if breaker.GetState() != StateOpen {
		t.Errorf("Expected state to be Open, got %s", breaker.GetState())
	}

	// Further calls are rejected without invoking the function
	err := breaker.Execute(ctx, failingFn)
	if err == nil {
		t.Error("Expected circuit breaker to reject call")
	}

	if !gomcErrors.IsType(err, gomcErrors.ErrorTypeInternal) {
		t.Error("Expected circuit breaker error to be internal type")
	}

	if callCount != 2 {
		t.Error("Expected function not to be called when circuit is open")
	}
}

func TestBreaker_Execute_HalfOpen(t *testing.T) {
	breaker := New(&Config{
		MaxFailures:     2,
		SuccessRequired: 1,
		Timeout:         1 * time.Millisecond,
		ResetTimeout:    30 * time.Second,
	})

	ctx := context.Background()

	for i := 0; i < 2; i++ {
		_ = breaker.Execute(ctx, func() error {
			return errors.New("test error")
		})
	}

	if breaker.GetState() != StateOpen {
		t.Error("Expected circuit to be open")
	}

	time.Sleep(2 * time.Millisecond)

	callCount := 0
	err := breaker.Execute(ctx, func() error {
		callCount++
		return nil
	})

	if err != nil {
		t.Errorf("Expected success in half-open state, got: %v", err)
	}

	if callCount != 1 {
		t.Errorf("Expected 1 call, got %d", callCount)
	}

	if breaker.GetState() != StateClosed {
		t.Errorf("Expected circuit to close after success, got %s", breaker.GetState())
	}
}

func TestBreaker_Execute_HalfOpenFailure(t *testing.T) {
	breaker := New(&Config{
		MaxFailures:     2,
		SuccessRequired: 1,
		Timeout:         1 * time.Millisecond,
		ResetTimeout:    30 * time.Second,
	})

	ctx := context.Background()

	for i := 0; i < 2; i++ {
		_ = breaker.Execute(ctx, func() error {
			return errors.New("test error")
		})
	}

	time.Sleep(2 * time.Millisecond)

	err := breaker.Execute(ctx, func() error {
		return errors.New("half-open failure")
	})
	if err == nil {
		t.Error("Expected error")
	}

	if breaker.GetState() != StateOpen {
		t.Errorf("Expected circuit to reopen after half-open failure, got %s", breaker.GetState())
	}
}

func TestExecuteWithResult(t *testing.T) {
	breaker := New(nil)
	ctx := context.Background()

	result, err := ExecuteWithResult(ctx, breaker, func() (int, error) {
		return 42, nil
	})

	if err != nil {
		t.Errorf("Expected success, got: %v", err)
	}

	if result != 42 {
		t.Errorf("Expected 42, got %d", result)
	}
}

func TestBreaker_Reset(t *testing.T) {
	breaker := New(&Config{
		MaxFailures:     1,
		SuccessRequired: 1,
		Timeout:         10 * time.Second,
		ResetTimeout:    30 * time.Second,
	})

	ctx := context.Background()
	_ = breaker.Execute(ctx, func() error { return errors.New("fail") })

	if breaker.GetState() != StateOpen {
		t.Error("Expected circuit to be open")
	}

	breaker.Reset()

	if breaker.GetState() != StateClosed {
		t.Error("Expected circuit to be closed after reset")
	}

	stats := breaker.GetStats()
	if stats.Failures != 0 || stats.Successes != 0 {
		t.Errorf("Expected counters reset, got %+v", stats)
	}
}
