package db

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5"
)

type fakeTx struct{ pgx.Tx }

func TestTxFromContext_Nil(t *testing.T) {
	if tx := TxFromContext(context.Background()); tx != nil {
		t.Error("expected nil tx from empty context")
	}
}

func TestFrom_PrefersContextTx(t *testing.T) {
	tx := &fakeTx{}
	ctx := context.WithValue(context.Background(), txKey{}, pgx.Tx(tx))

	q := From(ctx, nil)
	if got, ok := q.(*fakeTx); !ok || got != tx {
		t.Errorf("expected context transaction, got %T", q)
	}
}

func TestRunInTx_NestedReusesOuterTx(t *testing.T) {
	tx := &fakeTx{}
	ctx := context.WithValue(context.Background(), txKey{}, pgx.Tx(tx))
	runner := NewTxRunner(nil)

	called := false
	err := runner.RunInTx(ctx, func(inner context.Context) error {
		called = true
		if TxFromContext(inner) != pgx.Tx(tx) {
			t.Error("expected inner context to carry the outer transaction")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !called {
		t.Error("expected fn to be called")
	}
}

func TestRunInTx_NestedPropagatesError(t *testing.T) {
	ctx := context.WithValue(context.Background(), txKey{}, pgx.Tx(&fakeTx{}))
	want := errors.New("insert failed")

	err := NewTxRunner(nil).RunInTx(ctx, func(context.Context) error { return want })
	if !errors.Is(err, want) {
		t.Errorf("expected %v, got %v", want, err)
	}
}
