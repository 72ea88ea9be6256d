package concurrent

import (
	"context"
	"errors"

	"golang.org/x/sync/errgroup"
)

// ForEach runs action for each element of items in its own goroutine, with at
// most limit running at once (limit <= 0 means no limit). Unlike a plain
// errgroup it does not stop at the first failure: every element is processed
// and all errors are returned joined, in element order.
func ForEach[T any](ctx context.Context, items []T, limit int, action func(context.Context, T) error) error {
	if len(items) == 0 {
		return nil
	}

	var errGroup errgroup.Group
	if limit > 0 {
		errGroup.SetLimit(limit)
	}

	errs := make([]error, len(items))
	for idx, item := range items {
		idx, item := idx, item
		errGroup.Go(func() error {
			if err := ctx.Err(); err != nil {
				errs[idx] = err
				return nil
			}
			errs[idx] = action(ctx, item)
			return nil
		})
	}
	_ = errGroup.Wait()

	return errors.Join(errs...)
}
