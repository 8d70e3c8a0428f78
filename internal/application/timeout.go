package app

import (
	"context"
	"fmt"
	"time"
)

type callResult[T any] struct {
	value T
	err   error
}

// callWithTimeout выполняет блокирующий вызов адаптера с ограничением по времени.
// Паника внутри адаптера превращается в ошибку. По таймауту горутина дорабатывает сама,
// результат отбрасывается.
func callWithTimeout[T any](ctx context.Context, timeout time.Duration, fn func(context.Context) (T, error)) (T, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	done := make(chan callResult[T], 1)
	go func() {
		var res callResult[T]
		defer func() {
			if r := recover(); r != nil {
				res.err = fmt.Errorf("adapter panic: %v", r)
			}
			done <- res
		}()
		res.value, res.err = fn(ctx)
	}()

	select {
	case res := <-done:
		return res.value, res.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}
