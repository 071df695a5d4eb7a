// Package groutine starts named background goroutines. The name is attached
// as a pprof label and is available to log fields through GetName.
package groutine

import (
	"context"
	"runtime/pprof"
)

type ctxKey string

const goroutineNameKey ctxKey = "goroutine_name"

// Go runs fn in a new goroutine labelled name and returns a channel that is
// closed when fn returns.
//
//	done := groutine.Go(ctx, "refresh", func(ctx context.Context) {
//	    _ = store.Revalidate(ctx)
//	})
//	<-done
//
// If parentCtx is nil, context.Background() is used.
func Go(parentCtx context.Context, name string, fn func(ctx context.Context)) <-chan struct{} {
	if parentCtx == nil {
		parentCtx = context.Background()
	}

	done := make(chan struct{})
	labels := pprof.Labels("goroutine_name", name)

	go pprof.Do(parentCtx, labels, func(ctx context.Context) {
		defer close(done)
		fn(WithName(ctx, name))
	})

	return done
}

// WithName returns a copy of ctx carrying the goroutine name.
func WithName(ctx context.Context, name string) context.Context {
	return context.WithValue(ctx, goroutineNameKey, name)
}

// GetName retrieves the goroutine name from the context, or "" when unnamed.
func GetName(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(goroutineNameKey).(string); ok {
		return v
	}
	return ""
}
