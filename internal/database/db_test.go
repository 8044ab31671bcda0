package database

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubTx covers the methods the transaction helper touches; the embedded
// interface leaves the rest unimplemented.
type stubTx struct {
	pgx.Tx
	commitErr  error
	committed  bool
	rolledBack bool
}

func (t *stubTx) Commit(ctx context.Context) error {
	t.committed = true
	return t.commitErr
}

func (t *stubTx) Rollback(ctx context.Context) error {
	t.rolledBack = true
	return nil
}

type stubBeginner struct {
	tx       *stubTx
	beginErr error
}

func (b *stubBeginner) Begin(ctx context.Context) (pgx.Tx, error) {
	if b.beginErr != nil {
		return nil, b.beginErr
	}
	return b.tx, nil
}

func TestRunInTransaction_CommitsOnSuccess(t *testing.T) {
	tx := &stubTx{}

	err := runInTransaction(context.Background(), &stubBeginner{tx: tx}, func(pgx.Tx) error {
		return nil
	})

	require.NoError(t, err)
	assert.True(t, tx.committed)
	assert.False(t, tx.rolledBack)
}

func TestRunInTransaction_RollsBackOnError(t *testing.T) {
	tx := &stubTx{}
	fnErr := errors.New("insert failed")

	err := runInTransaction(context.Background(), &stubBeginner{tx: tx}, func(pgx.Tx) error {
		return fnErr
	})

	require.ErrorIs(t, err, fnErr)
	assert.True(t, tx.rolledBack)
	assert.False(t, tx.committed)
}

func TestRunInTransaction_ReportsCommitFailure(t *testing.T) {
	commitErr := errors.New("connection lost")
	tx := &stubTx{commitErr: commitErr}

	err := runInTransaction(context.Background(), &stubBeginner{tx: tx}, func(pgx.Tx) error {
		return nil
	})

	// a failed commit must not look like success to the caller
	require.ErrorIs(t, err, commitErr)
}

func TestRunInTransaction_BeginFailure(t *testing.T) {
	beginErr := errors.New("pool exhausted")

	err := runInTransaction(context.Background(), &stubBeginner{beginErr: beginErr}, func(pgx.Tx) error {
		t.Fatal("fn must not run when begin fails")
		return nil
	})

	require.ErrorIs(t, err, beginErr)
}
