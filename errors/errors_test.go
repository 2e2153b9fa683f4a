package errors

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestErrorClass_String(t *testing.T) {
	tests := []struct {
		class    ErrorClass
		expected string
	}{
		{ErrorTransient, "transient"},
		{ErrorInvalid, "invalid"},
		{ErrorFatal, "fatal"},
		{ErrorClass(999), "unknown"},
	}

	for _, test := range tests {
		t.Run(test.expected, func(t *testing.T) {
			if got := test.class.String(); got != test.expected {
				t.Errorf("expected %s, got %s", test.expected, got)
			}
		})
	}
}

func TestKind(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected string
	}{
		{"nil", nil, ""},
		{"config", fmt.Errorf("x: %w", ErrInvalidConfig), "ConfigError"},
		{"decode", fmt.Errorf("x: %w", ErrDecodeFailed), "DecodeError"},
		{"transform", fmt.Errorf("x: %w", ErrTransformFailed), "TransformError"},
		{"invoke", fmt.Errorf("x: %w", ErrInvokeFailed), "InvokeError"},
		{"timeout", fmt.Errorf("x: %w", ErrRequestTimeout), "RequestTimeout"},
		{"poison", fmt.Errorf("x: %w", ErrPoisonMessage), "PoisonMessage"},
		{"connection", fmt.Errorf("x: %w", ErrConnectionLost), "ConnectionError"},
		{"unknown user error", fmt.Errorf("weird"), "InvokeError"},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			if got := Kind(test.err); got != test.expected {
				t.Errorf("expected %s, got %s", test.expected, got)
			}
		})
	}
}

func TestWrapPattern(t *testing.T) {
	err := Wrap(fmt.Errorf("boom"), "BrokerInput", "StartComponent", "queue bind")
	expected := "BrokerInput.StartComponent: queue bind failed: boom"
	if err.Error() != expected {
		t.Errorf("expected %q, got %q", expected, err.Error())
	}
	if Wrap(nil, "a", "b", "c") != nil {
		t.Error("wrapping nil must return nil")
	}
}

func TestClassifiedWrappers(t *testing.T) {
	base := fmt.Errorf("boom")

	if !IsTransient(WrapTransient(base, "c", "m", "a")) {
		t.Error("WrapTransient must classify as transient")
	}
	if !IsFatal(WrapFatal(base, "c", "m", "a")) {
		t.Error("WrapFatal must classify as fatal")
	}
	if !IsInvalid(WrapInvalid(base, "c", "m", "a")) {
		t.Error("WrapInvalid must classify as invalid")
	}

	var ce *ClassifiedError
	if !errors.As(WrapFatal(base, "c", "m", "a"), &ce) {
		t.Fatal("expected a ClassifiedError")
	}
	if ce.Component != "c" {
		t.Errorf("expected component c, got %s", ce.Component)
	}
	if !strings.Contains(ce.Error(), "boom") {
		t.Errorf("wrapped message must contain the cause: %s", ce.Error())
	}
	if !errors.Is(ce, base) {
		t.Error("classified error must unwrap to the cause")
	}
}

func TestClassifyDefaultsToTransient(t *testing.T) {
	if Classify(fmt.Errorf("opaque")) != ErrorTransient {
		t.Error("unknown errors default to transient")
	}
}
