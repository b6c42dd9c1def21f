package overfast

import "context"

type observerKey struct{}

// ObserveRetries returns a context whose Get calls report every 429 wait to fn.
// The dashboard uses it to push backoff progress to the session that asked.
func ObserveRetries(ctx context.Context, fn func(RetryEvent)) context.Context {
	return context.WithValue(ctx, observerKey{}, fn)
}

func notifyRetry(ctx context.Context, ev RetryEvent) {
	if fn, ok := ctx.Value(observerKey{}).(func(RetryEvent)); ok && fn != nil {
		fn(ev)
	}
}
