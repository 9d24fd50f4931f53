package testutil

import (
	"context"
	"errors"
	"testing"
	"time"
)

// WaitFor ждёт пока check вернёт true, иначе валит тест по timeout.
// Нужен для синхронизации с фоновыми горутинами: tick loop, writer
// горутины клиентов, асинхронные sinks.
//
//	testutil.WaitFor(t, func() bool {
//	    return engine.TickCount() >= 3
//	}, 2*time.Second)
func WaitFor(t testing.TB, check func() bool, timeout time.Duration) {
	t.Helper()

	deadline := time.NewTimer(timeout)
	defer deadline.Stop()

	ticker := time.NewTicker(5 * time.Millisecond)
	defer ticker.Stop()

	for {
		if check() {
			return
		}
		select {
		case <-deadline.C:
			t.Fatalf("condition not met within %v", timeout)
		case <-ticker.C:
		}
	}
}

// ContextWithTimeout returns a context cancelled by timeout or test cleanup.
func ContextWithTimeout(t testing.TB, d time.Duration) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), d)
	t.Cleanup(cancel)
	return ctx
}

// ContextWithCancel returns a context cancelled by the caller or test cleanup.
func ContextWithCancel(t testing.TB) (context.Context, context.CancelFunc) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	return ctx, cancel
}

// RunLoop starts a blocking Run(ctx) loop (engine, saver, journal) in the
// background. Test cleanup cancels it and waits for it to return.
func RunLoop(t testing.TB, run func(ctx context.Context) error) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- run(ctx) }()
	t.Cleanup(func() {
		cancel()
		if err := <-done; err != nil && !errors.Is(err, context.Canceled) {
			t.Errorf("background loop: %v", err)
		}
	})
}
