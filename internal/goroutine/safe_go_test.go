package goroutine

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGo_SurvivesPanic(t *testing.T) {
	done := make(chan struct{})
	Go(context.Background(), "test", func(context.Context) {
		defer close(done)
		panic("boom")
	})

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("goroutine did not run")
	}
}

func TestGo_PassesContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	stopped := make(chan struct{})
	Go(ctx, "loop", func(ctx context.Context) {
		<-ctx.Done()
		close(stopped)
	})
	cancel()

	select {
	case <-stopped:
	case <-time.After(time.Second):
		t.Fatal("context was not propagated")
	}
}

func TestRecover_ReportsPanic(t *testing.T) {
	var got error
	func() {
		defer Recover("attach", func(err error) { got = err })
		panic("nil upload")
	}()
	require.Error(t, got)
	assert.Contains(t, got.Error(), "attach: panic: nil upload")

	called := false
	func() {
		defer Recover("quiet", func(error) { called = true })
	}()
	assert.False(t, called)
	assert.False(t, errors.Is(got, context.Canceled))
}
