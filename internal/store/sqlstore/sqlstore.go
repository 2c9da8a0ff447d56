// Package sqlstore keeps collections in a single SQL table, one row per
// record, with the record stored as a JSON document. Postgres (pgx) and
// MySQL are supported.
package sqlstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"

	"thredvault/backend/internal/store"
)

type Dialect struct {
	Name   string
	Driver string
	schema string
	// dollar placeholders ($1) rather than question marks.
	dollar bool
}

var (
	Postgres = Dialect{
		Name:   "postgres",
		Driver: "pgx",
		dollar: true,
		schema: `
			CREATE TABLE IF NOT EXISTS thredvault_records (
				collection TEXT NOT NULL,
				position INTEGER NOT NULL,
				payload TEXT NOT NULL,
				updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
				PRIMARY KEY (collection, position)
			)`,
	}
	MySQL = Dialect{
		Name:   "mysql",
		Driver: "mysql",
		schema: `
			CREATE TABLE IF NOT EXISTS thredvault_records (
				collection VARCHAR(64) NOT NULL,
				position INT NOT NULL,
				payload LONGTEXT NOT NULL,
				updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
				PRIMARY KEY (collection, position)
			)`,
	}
)

// bind rewrites ? placeholders for dialects that number them.
func (d Dialect) bind(query string) string {
	if !d.dollar {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteString("$" + strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

type Store struct {
	db      *sql.DB
	dialect Dialect
}

// New connects, pings and creates the records table when missing.
func New(ctx context.Context, dialect Dialect, dsn string) (*Store, error) {
	if dialect.Driver == MySQL.Driver {
		cfg, err := mysql.ParseDSN(dsn)
		if err != nil {
			return nil, fmt.Errorf("parse mysql dsn: %w", err)
		}
		cfg.ParseTime = true
		dsn = cfg.FormatDSN()
	}

	db, err := sql.Open(dialect.Driver, dsn)
	if err != nil {
		return nil, err
	}

	db.SetMaxIdleConns(4)
	db.SetMaxOpenConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 6*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, err
	}

	s := &Store{db: db, dialect: dialect}
	if _, err := db.ExecContext(ctx, dialect.schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create records table: %w", err)
	}
	return s, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) Load(ctx context.Context, name string) ([]store.Record, error) {
	if _, err := store.Lookup(name); err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, s.dialect.bind(`
		SELECT payload
		FROM thredvault_records
		WHERE collection = ?
		ORDER BY position
	`), name)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	records := make([]store.Record, 0, 64)
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, err
		}
		var r store.Record
		if err := json.Unmarshal([]byte(payload), &r); err != nil {
			return nil, fmt.Errorf("%w: %s: %v", store.ErrMalformedRecord, name, err)
		}
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return records, nil
}

// Save replaces the collection inside one serializable transaction. A
// serialization failure or deadlock is retried once.
func (s *Store) Save(ctx context.Context, name string, records []store.Record) error {
	if _, err := store.Lookup(name); err != nil {
		return err
	}
	payloads := make([]string, 0, len(records))
	for _, r := range records {
		raw, err := json.Marshal(r)
		if err != nil {
			return err
		}
		payloads = append(payloads, string(raw))
	}

	err := s.replace(ctx, name, payloads)
	if isRetryable(err) {
		err = s.replace(ctx, name, payloads)
	}
	return err
}

func (s *Store) replace(ctx context.Context, name string, payloads []string) error {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, s.dialect.bind(`DELETE FROM thredvault_records WHERE collection = ?`), name); err != nil {
		return err
	}

	insert, err := tx.PrepareContext(ctx, s.dialect.bind(`
		INSERT INTO thredvault_records (collection, position, payload)
		VALUES (?, ?, ?)
	`))
	if err != nil {
		return err
	}
	defer insert.Close()

	for i, payload := range payloads {
		if _, err := insert.ExecContext(ctx, name, i, payload); err != nil {
			return err
		}
	}

	return tx.Commit()
}

func isRetryable(err error) bool {
	if err == nil {
		return false
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "40001" || pgErr.Code == "40P01"
	}
	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		return myErr.Number == 1213 || myErr.Number == 1205
	}
	return false
}
