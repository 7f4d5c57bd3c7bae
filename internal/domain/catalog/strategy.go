package catalog

import (
	"context"
	"errors"
)

// Strategy is one fallible way of obtaining a product reference.
type Strategy func(ctx context.Context) (ProductReference, error)

// FirstSuccess evaluates strategies in order and returns the first success
// together with its index. Failures are joined into the returned error.
// A cancelled context stops evaluation immediately.
func FirstSuccess(ctx context.Context, strategies ...Strategy) (ProductReference, int, error) {
	var errs []error
	for i, s := range strategies {
		if err := ctx.Err(); err != nil {
			return ProductReference{}, -1, err
		}
		ref, err := s(ctx)
		if err == nil {
			return ref, i, nil
		}
		errs = append(errs, err)
	}
	if len(errs) == 0 {
		return ProductReference{}, -1, errors.New("no strategies")
	}
	return ProductReference{}, -1, errors.Join(errs...)
}
