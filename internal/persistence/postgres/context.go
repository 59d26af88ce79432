package postgres

import (
	"context"

	"github.com/jackc/pgx/v5"
)

type txContextKey struct{}

type txState struct {
	tx       pgx.Tx
	writable bool
}

func withTx(ctx context.Context, state *txState) context.Context {
	return context.WithValue(ctx, txContextKey{}, state)
}

func txFromContext(ctx context.Context) (*txState, bool) {
	state, ok := ctx.Value(txContextKey{}).(*txState)
	return state, ok && state != nil
}
