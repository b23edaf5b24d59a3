package testutil

import (
	"context"
	"database/sql"
	"strings"
	"sync/atomic"

	"github.com/fleetdesk/leaveguard/internal/db"
)

// FaultyUoW runs transactions on a real store but fails one write per
// transaction: the FailOn-th ExecContext (counting from 1) whose SQL
// contains Match. An empty Match counts every write. Reads pass through.
type FaultyUoW struct {
	inner  db.UnitOfWork
	FailOn int32
	Match  string
	Err    error

	injected atomic.Int32
}

func NewFaultyUoW(database *sql.DB, failOn int32, err error) *FaultyUoW {
	return &FaultyUoW{inner: db.NewSQLiteUnitOfWork(database), FailOn: failOn, Err: err}
}

// Matching restricts the counted writes to statements containing substr.
func (u *FaultyUoW) Matching(substr string) *FaultyUoW {
	u.Match = substr
	return u
}

// Injected returns how many failures were returned so far.
func (u *FaultyUoW) Injected() int { return int(u.injected.Load()) }

func (u *FaultyUoW) WithinTx(ctx context.Context, fn func(ctx context.Context, tx db.DBTX) error) error {
	return u.inner.WithinTx(ctx, func(ctx context.Context, tx db.DBTX) error {
		return fn(ctx, &faultyTx{DBTX: tx, uow: u})
	})
}

type faultyTx struct {
	db.DBTX
	uow   *FaultyUoW
	count atomic.Int32
}

func (f *faultyTx) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	if f.uow.Match == "" || strings.Contains(query, f.uow.Match) {
		if f.count.Add(1) == f.uow.FailOn {
			f.uow.injected.Add(1)
			return nil, f.uow.Err
		}
	}
	return f.DBTX.ExecContext(ctx, query, args...)
}
