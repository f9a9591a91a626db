package retry

import (
	"context"
	"testing"
	"time"

	gomcErrors "github.com/bardlex/gomc/pkg/errors"
)

func TestDefaultConfig(t *testing.T) {
	config := DefaultConfig()

	if config.MaxAttempts != 3 {
		t.Errorf("Expected MaxAttempts = 3, got %d", config.MaxAttempts)
	}

	if config.BaseDelay != 100*time.Millisecond {
		t.Errorf("Expected BaseDelay = 100ms, got %v", config.BaseDelay)
	}

	if config.MaxDelay != 5*time.Second {
		t.Errorf("Expected MaxDelay = 5s, got %v", config.MaxDelay)
	}

	if config.Multiplier != 2.0 {
		t.Errorf("Expected Multiplier = 2.0, got %f", config.Multiplier)
	}

	if !config.Jitter {
		t.Error("Expected Jitter = true")
	}
}

func TestRPCConfig(t *testing.T) {
	config := RPCConfig()

	if config.MaxAttempts != 3 {
		t.Errorf("Expected MaxAttempts = 3, got %d", config.MaxAttempts)
	}

	if config.MaxDelay != 1*time.Second {
		t.Errorf("Expected MaxDelay = 1s, got %v", config.MaxDelay)
	}
}

func TestDo_Success(t *testing.T) {
	ctx := context.Background()
	config := &Config{
		MaxAttempts: 3,
		BaseDelay:   10 * time.Millisecond,
		MaxDelay:    100 * time.Millisecond,
		Multiplier:  2.0,
		Jitter:      false,
	}

	callCount := 0
	fn := func() error {
		callCount++
		if callCount == 1 {
			return gomcErrors.New(gomcErrors.ErrorTypeConnection, "test", "retryable error")
		}
		return nil
	}

	err := Do(ctx, config, fn)
	if err != nil {
		t.Errorf("Expected success, got error: %v", err)
	}

	if callCount != 2 {
		t.Errorf("Expected 2 calls, got %d", callCount)
	}
}

func TestDo_MaxAttemptsReached(t *testing.T) {
	ctx := context.Background()
	config := &Config{
		MaxAttempts: 2,
		BaseDelay:   1 * time.Millisecond,
		MaxDelay:    10 * time.Millisecond,
		Multiplier:  2.0,
		Jitter:      false,
	}

	callCount := 0
	fn := func() error {
		callCount++
		return gomcErrors.New(gomcErrors.ErrorTypeConnection, "test", "persistent error")
	}

	err := Do(ctx, config, fn)
	if err == nil {
		t.Error("Expected error after max attempts")
	}

	if callCount != 2 {
		t.Errorf("Expected 2 calls, got %d", callCount)
	}

	if !gomcErrors.IsType(err, gomcErrors.ErrorTypeInternal) {
		t.Error("Expected wrapped error to be internal type")
	}
}

func TestDo_NonRetryableError(t *testing.T) {
	ctx := context.Background()
	config := DefaultConfig()

	callCount := 0
	fn := func() error {
		callCount++
		return gomcErrors.New(gomcErrors.ErrorTypeProtocol, "test", "protocol error")
	}

	err := Do(ctx, config, fn)
	if err == nil {
		t.Error("Expected error")
	}

	if callCount != 1 {
		t.Errorf("Expected 1 call (no retry), got %d", callCount)
	}

	if !gomcErrors.IsType(err, gomcErrors.ErrorTypeProtocol) {
		t.Error("Expected original protocol error type")
	}
}

func TestDo_ContextCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	config := &Config{
		MaxAttempts: 5,
		BaseDelay:   100 * time.Millisecond,
		MaxDelay:    1 * time.Second,
		Multiplier:  2.0,
		Jitter:      false,
	}

	callCount := 0
	fn := func() error {
		callCount++
		if callCount == 2 {
			cancel()
		}
		return gomcErrors.New(gomcErrors.ErrorTypeConnection, "test", "network error")
	}

	err := Do(ctx, config, fn)
	if err != context.Canceled {
		t.Errorf("Expected context.Canceled, got %v", err)
	}

	if callCount < 1 || callCount > 2 {
		t.Errorf("Expected 1-2 calls, got %d", callCount)
	}
}

func TestDoWithResult_Success(t *testing.T) {
	ctx := context.Background()
	config := &Config{
		MaxAttempts: 3,
		BaseDelay:   1 * time.Millisecond,
		MaxDelay:    10 * time.Millisecond,
		Multiplier:  2.0,
		Jitter:      false,
	}

	callCount := 0
	result, err := DoWithResult(ctx, config, func() (string, error) {
		callCount++
		if callCount == 1 {
			return "", gomcErrors.New(gomcErrors.ErrorTypeConnection, "test", "retryable")
		}
		return "template", nil
	})

	if err != nil {
		t.Errorf("Expected success, got error: %v", err)
	}

	if result != "template" {
		t.Errorf("Expected 'template', got %q", result)
	}

	if callCount != 2 {
		t.Errorf("Expected 2 calls, got %d", callCount)
	}
}

func TestDoWithResult_NonRetryable(t *testing.T) {
	ctx := context.Background()

	callCount := 0
	result, err := DoWithResult(ctx, DefaultConfig(), func() (int, error) {
		callCount++
		return 0, gomcErrors.New(gomcErrors.ErrorTypeInput, "test", "bad hex")
	})

	if err == nil {
		t.Error("Expected error")
	}

	if result != 0 {
		t.Errorf("Expected zero result, got %d", result)
	}

	if callCount != 1 {
		t.Errorf("Expected 1 call, got %d", callCount)
	}
}

func TestCalculateDelay(t *testing.T) {
	config := &Config{
		MaxAttempts: 5,
		BaseDelay:   100 * time.Millisecond,
		MaxDelay:    1 * time.Second,
		Multiplier:  2.0,
		Jitter:      false,
	}

	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{0, 100 * time.Millisecond},
		{1, 200 * time.Millisecond},
		{2, 400 * time.Millisecond},
		{3, 800 * time.Millisecond},
		{4, 1 * time.Second}, // capped at MaxDelay
	}

	for _, tt := range tests {
		if got := config.calculateDelay(tt.attempt); got != tt.want {
			t.Errorf("calculateDelay(%d) = %v, want %v", tt.attempt, got, tt.want)
		}
	}
}
