package fault

import (
	"errors"
	"fmt"
	"testing"
)

func TestKindOf(t *testing.T) {
	cause := errors.New("checksum mismatch")

	tests := []struct {
		name string
		err  error
		want Kind
	}{
		{"sensor", Sensor("read dht22", cause), RetryableSensor},
		{"weather", Weather("fetch", cause), RetryableWeather},
		{"config", Config("load", cause), ConfigError},
		{"fatal", Fatal("relay", cause), FatalRuntime},
		{"wrapped", fmt.Errorf("cycle: %w", Sensor("read", cause)), RetryableSensor},
		{"plain error", cause, FatalRuntime},
	}
	for _, tt := range tests {
		if got := KindOf(tt.err); got != tt.want {
			t.Errorf("%s: got %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestNewNil(t *testing.T) {
	if err := New(RetryableSensor, "read", nil); err != nil {
		t.Errorf("expected nil, got %v", err)
	}
}

func TestFaultUnwrap(t *testing.T) {
	cause := errors.New("boom")
	err := Weather("fetch", cause)
	if !errors.Is(err, cause) {
		t.Error("expected errors.Is to find the cause")
	}
	if err.Error() != "fetch: boom" {
		t.Errorf("Error(): got %q, want %q", err.Error(), "fetch: boom")
	}
}

func TestRetryable(t *testing.T) {
	want := map[Kind]bool{
		FatalRuntime:     false,
		ConfigError:      false,
		RetryableSensor:  true,
		RetryableWeather: true,
		Interrupted:      false,
	}
	for k, w := range want {
		if k.Retryable() != w {
			t.Errorf("%v.Retryable(): got %v, want %v", k, k.Retryable(), w)
		}
	}
}

func TestIs(t *testing.T) {
	if Is(nil, FatalRuntime) {
		t.Error("nil error should not match any kind")
	}
	if !Is(Sensor("read", errors.New("x")), RetryableSensor) {
		t.Error("expected RetryableSensor")
	}
}
