// Package dedupe keeps at most one in-flight request per (operation, key).
package dedupe

import (
	"context"

	"golang.org/x/sync/singleflight"
)

// Key identifies a request by operation name and discriminator value
type Key struct {
	Operation string
	Value     string
}

func (k Key) String() string {
	return k.Operation + "\x00" + k.Value
}

// Group collapses concurrent calls for the same key into one. Callers that
// join an in-flight call receive its result in the order they joined; the
// entry is forgotten once the call settles.
type Group[T any] struct {
	sf singleflight.Group
}

// Do runs fn for key unless a call for key is already in flight, in which case
// it waits for that call. fn runs detached from the caller's cancellation so
// that one caller giving up does not fail the others; the caller still stops
// waiting when ctx is done. shared reports whether the result was delivered
// to more than one caller.
func (g *Group[T]) Do(ctx context.Context, key Key, fn func(context.Context) (T, error)) (v T, shared bool, err error) {
	detached := context.WithoutCancel(ctx)
	ch := g.sf.DoChan(key.String(), func() (interface{}, error) {
		return fn(detached)
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return v, res.Shared, res.Err
		}
		return res.Val.(T), res.Shared, nil
	case <-ctx.Done():
		return v, false, ctx.Err()
	}
}
