package domain

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDomainErrorFormat(t *testing.T) {
	err := NewDomainError("Orchestrator.ExecuteAgent", ErrNoServiceRegistered, "TREND_MONITOR")
	want := "Orchestrator.ExecuteAgent: TREND_MONITOR: no service registered"
	if err.Error() != want {
		t.Errorf("got %q, want %q", err.Error(), want)
	}
}

func TestDomainErrorFormatNoDetail(t *testing.T) {
	err := NewDomainError("Store.ClaimAgent", ErrAgentBusy, "")
	want := "Store.ClaimAgent: Agent is already running"
	if err.Error() != want {
		t.Errorf("got %q, want %q", err.Error(), want)
	}
}

func TestDomainErrorUnwrap(t *testing.T) {
	err := NewDomainError("YouTube.Search", ErrUpstreamTimeout, "30s")
	if !errors.Is(err, ErrUpstreamTimeout) {
		t.Error("errors.Is should match ErrUpstreamTimeout")
	}
	var de *DomainError
	require.True(t, errors.As(err, &de))
	assert.Equal(t, "YouTube.Search", de.Op)
}

func TestWrapOp(t *testing.T) {
	assert.NoError(t, WrapOp("op", nil))

	err := WrapOp("store.get", ErrNotFound)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, "store.get: not found", err.Error())
}

func TestErrorCodeOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want ErrorCode
	}{
		{"nil", nil, CodeUnknown},
		{"direct busy", ErrAgentBusy, CodeAgentBusy},
		{"wrapped disabled", fmt.Errorf("claim: %w", ErrAgentDisabled), CodeAgentDisabled},
		{"domain error", NewDomainError("x", ErrUpstreamMalformed, "bad json"), CodeUpstreamMalformed},
		{"subsystem", NewSubSystemError("agent", "GetAgent", ErrNotFound, "a1"), CodeAgentNotFound},
		{"subsystem fallback", NewSubSystemError("cache", "Get", ErrNotFound, ""), CodeNotFound},
		{"cancelled wins over body failure", fmt.Errorf("%w: %w", ErrAgentBodyFailure, ErrCancelled), CodeCancelled},
		{"unknown", errors.New("boom"), CodeUnknown},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ErrorCodeOf(tt.err))
		})
	}
}

func TestIsUpstreamError(t *testing.T) {
	assert.True(t, IsUpstreamError(fmt.Errorf("call: %w", ErrUpstreamUnavailable)))
	assert.True(t, IsUpstreamError(ErrRateLimit))
	assert.False(t, IsUpstreamError(ErrAgentBusy))
	assert.False(t, IsUpstreamError(nil))
}

func TestEveryExecutionSentinelHasCode(t *testing.T) {
	for _, err := range []error{
		ErrNoServiceRegistered, ErrAgentBusy, ErrAgentDisabled,
		ErrUpstreamUnavailable, ErrUpstreamTimeout, ErrUpstreamMalformed,
		ErrCancelled, ErrAgentBodyFailure, ErrNotificationSendFailed,
	} {
		assert.NotEqual(t, CodeUnknown, ErrorCodeOf(err), err.Error())
	}
}
