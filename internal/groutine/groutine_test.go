package groutine_test

import (
	"context"
	"runtime/pprof"
	"testing"
	"time"

	"github.com/srg/btctl/internal/groutine"
	"github.com/stretchr/testify/assert"
)

func TestGo(t *testing.T) {
	var (
		name  string
		label string
	)

	done := groutine.Go(context.Background(), "store-revalidate", func(ctx context.Context) {
		name = groutine.GetName(ctx)
		label, _ = pprof.Label(ctx, "goroutine_name")
	})

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("goroutine did not finish")
	}

	assert.Equal(t, "store-revalidate", name)
	assert.Equal(t, "store-revalidate", label)
}

func TestGo_InheritsCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	done := groutine.Go(ctx, "waiter", func(ctx context.Context) {
		<-ctx.Done()
	})
	cancel()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("goroutine did not observe cancellation")
	}
}

func TestGetName(t *testing.T) {
	assert.Equal(t, "", groutine.GetName(context.Background()))
	assert.Equal(t, "worker", groutine.GetName(groutine.WithName(context.Background(), "worker")))
}
