package database

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	ErrUserNotFound         = errors.New("user not found")
	ErrLeadNotFound         = errors.New("lead not found")
	ErrTaskNotFound         = errors.New("task not found")
	ErrProjectNotFound      = errors.New("project not found")
	ErrLeaveNotFound        = errors.New("leave request not found")
	ErrLeaveNotPending      = errors.New("leave request is no longer pending")
	ErrAnnouncementNotFound = errors.New("announcement not found")
	ErrSettingsNotFound     = errors.New("settings not found")
	ErrLoginIDTaken         = errors.New("login id already in use")
)

type Database struct {
	Pool *pgxpool.Pool
}

func NewDatabase() Database {
	return Database{
		Pool: nil,
	}
}

func (db *Database) Connect(ctx context.Context, connString string, maxConns int32) error {
	config, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return fmt.Errorf("unable to parse database configuration: %w", err)
	}
	if maxConns > 0 {
		config.MaxConns = maxConns
	}

	db.Pool, err = pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return fmt.Errorf("unable to create database pool: %w", err)
	}

	return nil
}

func (db *Database) Close() {
	db.Pool.Close()
}

func (db *Database) Ping(ctx context.Context) error {
	return db.Pool.Ping(ctx)
}

type Page struct {
	Limit  int
	Offset int
}

// Key identifies the page in cache keys. The first page without a limit has an empty key.
func (p Page) Key() string {
	if p.Limit == 0 && p.Offset == 0 {
		return ""
	}
	return fmt.Sprintf("l%d-o%d", p.Limit, p.Offset)
}

func (p Page) write(query *strings.Builder, args *[]any) {
	if p.Limit > 0 {
		*args = append(*args, p.Limit)
		fmt.Fprintf(query, " LIMIT $%d", len(*args))
	}
	if p.Offset > 0 {
		*args = append(*args, p.Offset)
		fmt.Fprintf(query, " OFFSET $%d", len(*args))
	}
}

// updateBuilder assembles "UPDATE <table> SET a = $1, b = $2, updated_at = $n WHERE id = $m".
type updateBuilder struct {
	query strings.Builder
	args  []any
}

func newUpdate(table string) *updateBuilder {
	b := &updateBuilder{}
	b.query.WriteString("UPDATE " + table + " SET ")
	return b
}

func (b *updateBuilder) set(column string, value any) {
	b.args = append(b.args, value)
	fmt.Fprintf(&b.query, "%s = $%d, ", column, len(b.args))
}

func (b *updateBuilder) where(updatedAt any, id any) (string, []any) {
	b.args = append(b.args, updatedAt, id)
	fmt.Fprintf(&b.query, "updated_at = $%d WHERE id = $%d", len(b.args)-1, len(b.args))
	return b.query.String(), b.args
}

// jsonList encodes a list column, storing nil as an empty array.
func jsonList[T any](items []T) ([]byte, error) {
	if items == nil {
		items = []T{}
	}
	return json.Marshal(items)
}

func nonNil[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}
