package browser

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStrategyValid(t *testing.T) {
	valid := []Strategy{WaitLoad, WaitDOMContentLoaded, WaitNetworkIdle, WaitSelector, WaitTimeout}
	for _, s := range valid {
		assert.True(t, s.Valid(), "strategy %q should be valid", s)
	}

	assert.False(t, Strategy("").Valid())
	assert.False(t, Strategy("eventually").Valid())
}

func TestWaitForNetworkIdleLifecycleEvent(t *testing.T) {
	state := newPageState()
	state.addRequest()

	go func() {
		time.Sleep(20 * time.Millisecond)
		state.setLifecycle("networkIdle")
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	require.NoError(t, waitForNetworkIdle(ctx, state))
}

func TestWaitForNetworkIdleQuiescence(t *testing.T) {
	state := newPageState()
	state.addRequest()
	state.removeRequest()

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	start := time.Now()
	require.NoError(t, waitForNetworkIdle(ctx, state))
	assert.GreaterOrEqual(t, time.Since(start), networkIdleQuiescence-networkIdlePoll)
}

func TestWaitForNetworkIdleContextCancelled(t *testing.T) {
	state := newPageState()
	state.addRequest()

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	err := waitForNetworkIdle(ctx, state)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestPageStateInflightNeverNegative(t *testing.T) {
	state := newPageState()
	state.removeRequest()
	state.removeRequest()

	inflight, _, _ := state.snapshot()
	assert.Equal(t, 0, inflight)
}

func TestResponseContentType(t *testing.T) {
	resp := &Response{Headers: map[string][]string{
		"Content-Type": {"Text/HTML; charset=UTF-8"},
	}}
	assert.Equal(t, "text/html", resp.ContentType())

	resp = &Response{Headers: map[string][]string{}}
	assert.Equal(t, "", resp.ContentType())
}
