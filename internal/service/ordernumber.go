package service

import (
	"context"
	"fmt"
	"time"

	"rental-platform/internal/store"
)

// OrderNumberGenerator produces human-readable order numbers of the form
// {PREFIX}{YYYYMM}{NNNN} with a per-month sequence starting at 0001. The
// sequence is drawn from a counter row inside the caller's transaction, so
// two concurrent bookings can never receive the same number and an aborted
// booking never consumes one. Past sequence 9999 the number widens to five
// digits rather than wrapping, so numbers stay unique within a month.
type OrderNumberGenerator struct {
	prefix string
}

func NewOrderNumberGenerator(prefix string) *OrderNumberGenerator {
	return &OrderNumberGenerator{prefix: prefix}
}

func (g *OrderNumberGenerator) Next(ctx context.Context, tx store.Tx, at time.Time) (string, error) {
	scope := at.UTC().Format("200601")

	seq, err := tx.NextOrderSequence(ctx, scope)
	if err != nil {
		return "", err
	}

	return fmt.Sprintf("%s%s%04d", g.prefix, scope, seq), nil
}
