// Package dao defines the generic keyed persistence contract shared by the
// execution-state backends.
package dao

import (
	"context"
)

// Service is a keyed store of T. Implementations must be safe for concurrent
// use and must not hand out aliases of their internal state.
type Service[K comparable, T any] interface {
	Save(ctx context.Context, t *T) error

	Load(ctx context.Context, id K) (*T, error)

	Delete(ctx context.Context, id K) error

	List(ctx context.Context) ([]*T, error)
}
