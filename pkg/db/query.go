package db

import (
	"context"
	"fmt"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// Builder creates postgres flavoured squirrel queries.
var Builder = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

type conn interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
}

func NewDB(pool *pgxpool.Pool, log *zap.Logger) *DB {
	return &DB{
		log:  log,
		pool: pool,
		conn: pool,
	}
}

type DB struct {
	log  *zap.Logger
	pool *pgxpool.Pool
	conn conn
}

// Query runs a squirrel query and passes every row to scanner.
// pgx.ErrNoRows is returned when scanner is set and nothing was scanned.
func (db *DB) Query(ctx context.Context, query sq.Sqlizer, scanner RowScanner) error {
	sql, args, err := query.ToSql()
	if err != nil {
		return fmt.Errorf("build query: %w", err)
	}

	if err := db.query(ctx, sql, args, scanner); err != nil {
		return fmt.Errorf("exec query: %w", err)
	}

	return nil
}

// Exec runs a squirrel statement ignoring returned rows.
func (db *DB) Exec(ctx context.Context, query sq.Sqlizer) error {
	return db.Query(ctx, query, nil)
}

func (db *DB) query(ctx context.Context, sql string, args []any, scanner RowScanner) error {
	start := time.Now()
	defer func() {
		go db.logQuery(time.Since(start), sql, args) // don't block flow
	}()

	rows, err := db.conn.Query(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("exec query: %w", err)
	}
	defer rows.Close()

	var isAnyRowProcessed bool
	for rows.Next() {
		if scanner == nil {
			continue
		}

		if err = scanner(rows); err != nil {
			return fmt.Errorf("handle row: %w", err)
		}

		isAnyRowProcessed = true
	}

	// Err must only be called after the Rows is closed (either by calling Close or by Next returning false)
	if err = rows.Err(); err != nil {
		return fmt.Errorf("reading query result: %w", err)
	}

	if scanner != nil && !isAnyRowProcessed {
		return pgx.ErrNoRows
	}

	return nil
}

// RunInTransaction commits if f returns nil and rolls back otherwise.
func (db *DB) RunInTransaction(ctx context.Context, f func(ctx context.Context, txDB *DB) error) error {
	err := pgx.BeginTxFunc(ctx, db.pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
		txDB := &DB{
			log:  db.log,
			pool: db.pool,
			conn: tx,
		}

		if err := f(ctx, txDB); err != nil {
			return fmt.Errorf("run in transaction: %w", err)
		}

		return nil
	})
	if err != nil {
		return fmt.Errorf("transaction: %w", err)
	}

	return nil
}

func (db *DB) logQuery(dur time.Duration, sql string, args []any) {
	sql = strings.Join(strings.Fields(sql), " ")
	stat := db.pool.Stat()
	db.log.Debug(
		"db request",
		zap.String("sql", sql),
		zap.Any("args", args),
		zap.Int32("conn_limit", stat.MaxConns()),
		zap.Int32("conn_used", stat.TotalConns()),
		zap.Duration("dur", dur),
	)
}
