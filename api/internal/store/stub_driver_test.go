package store_test

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"sync"
)

// stubDriver records every ExecContext call instead of talking to a database.
type stubDriver struct {
	mu       sync.Mutex
	execs    []stubExec
	affected int64
	fail     error
}

type stubExec struct {
	Query string
	Args  []any
}

func (d *stubDriver) Open(string) (driver.Conn, error) { return &stubConn{d: d}, nil }

func (d *stubDriver) reset() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.execs = nil
	d.affected = 0
	d.fail = nil
}

func (d *stubDriver) calls() []stubExec {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]stubExec(nil), d.execs...)
}

type stubConn struct{ d *stubDriver }

func (c *stubConn) Prepare(string) (driver.Stmt, error) {
	return nil, errors.New("prepare not supported")
}
func (c *stubConn) Close() error              { return nil }
func (c *stubConn) Begin() (driver.Tx, error) { return nil, errors.New("tx not supported") }

func (c *stubConn) ExecContext(_ context.Context, query string, args []driver.NamedValue) (driver.Result, error) {
	c.d.mu.Lock()
	defer c.d.mu.Unlock()
	if c.d.fail != nil {
		return nil, c.d.fail
	}
	vals := make([]any, len(args))
	for i, a := range args {
		vals[i] = a.Value
	}
	c.d.execs = append(c.d.execs, stubExec{Query: query, Args: vals})
	return driver.RowsAffected(c.d.affected), nil
}

var stub = &stubDriver{}

func init() {
	sql.Register("storestub", stub)
}
