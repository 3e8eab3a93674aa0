// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Accountd Contributors

// Package store provides the PostgreSQL connection pool, transaction
// scoping, and schema migrations.
package store

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/samber/oops"
)

// Querier is the query surface shared by pgxpool.Pool and pgx.Tx.
// Repositories run all statements through it so the same code works
// inside and outside a transaction.
type Querier interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Pool is the pool surface the DB needs: querying plus transaction
// begin. Satisfied by *pgxpool.Pool and by pgxmock pools in tests.
type Pool interface {
	Querier
	Begin(ctx context.Context) (pgx.Tx, error)
}

type txKey struct{}

// DB wraps the connection pool and scopes transactions through the
// context. A context produced by InTx carries the open transaction;
// Querier returns it so nested repository calls join the same
// transaction instead of opening their own.
type DB struct {
	pool Pool
}

// Open connects a pool to the database and verifies the connection.
func Open(ctx context.Context, databaseURL string) (*DB, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, oops.Code("DB_CONNECT_FAILED").
			With("operation", "create connection pool").
			Wrap(err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, oops.Code("DB_CONNECT_FAILED").
			With("operation", "ping database").
			Wrap(err)
	}
	return &DB{pool: pool}, nil
}

// NewDB wraps an existing pool. Used by tests with a pgxmock pool.
func NewDB(pool Pool) *DB {
	return &DB{pool: pool}
}

// Close releases the pool when it owns one.
func (db *DB) Close() {
	if p, ok := db.pool.(*pgxpool.Pool); ok {
		p.Close()
	}
}

// Querier returns the ambient transaction from the context when one is
// open, otherwise the pool.
func (db *DB) Querier(ctx context.Context) Querier {
	if tx, ok := ctx.Value(txKey{}).(pgx.Tx); ok {
		return tx
	}
	return db.pool
}

// InTx runs fn inside a transaction. When the context already carries
// one, fn joins it and commit stays with the outer caller; otherwise a
// transaction is begun, committed on success, and rolled back on error.
func (db *DB) InTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, ok := ctx.Value(txKey{}).(pgx.Tx); ok {
		return fn(ctx)
	}

	tx, err := db.pool.Begin(ctx)
	if err != nil {
		return oops.Code("TX_BEGIN_FAILED").Wrap(err)
	}

	if err := fn(context.WithValue(ctx, txKey{}, tx)); err != nil {
		if rbErr := tx.Rollback(ctx); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
			return oops.Code("TX_ROLLBACK_FAILED").
				With("cause", err.Error()).
				Wrap(rbErr)
		}
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return oops.Code("TX_COMMIT_FAILED").Wrap(err)
	}
	return nil
}
