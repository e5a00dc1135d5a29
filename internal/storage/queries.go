package storage

import (
	"context"
	"database/sql"
	"strings"
)

// DBTX is satisfied by *sql.DB and *sql.Tx.
type DBTX interface {
	ExecContext(context.Context, string, ...any) (sql.Result, error)
	QueryContext(context.Context, string, ...any) (*sql.Rows, error)
	QueryRowContext(context.Context, string, ...any) *sql.Row
}

type Queries struct {
	db DBTX
}

func NewQueries(db DBTX) *Queries {
	return &Queries{db: db}
}

func (q *Queries) WithTx(tx *sql.Tx) *Queries {
	return &Queries{db: tx}
}

const getValue = `
SELECT key, value, version FROM kv WHERE key = ?
`

func (q *Queries) GetValue(ctx context.Context, key string) (Item, error) {
	var i Item
	err := q.db.QueryRowContext(ctx, getValue, key).Scan(&i.Key, &i.Value, &i.Version)
	return i, err
}

const upsertValue = `
INSERT INTO kv (key, value, version, updated_at)
VALUES (?, ?, 1, CURRENT_TIMESTAMP)
ON CONFLICT(key) DO UPDATE SET
    value = excluded.value,
    version = kv.version + 1,
    updated_at = CURRENT_TIMESTAMP
RETURNING version
`

func (q *Queries) UpsertValue(ctx context.Context, key string, value []byte) (int64, error) {
	var version int64
	err := q.db.QueryRowContext(ctx, upsertValue, key, value).Scan(&version)
	return version, err
}

const deleteValue = `
DELETE FROM kv WHERE key = ?
`

func (q *Queries) DeleteValue(ctx context.Context, key string) error {
	_, err := q.db.ExecContext(ctx, deleteValue, key)
	return err
}

const listKeys = `
SELECT key FROM kv WHERE key LIKE ? ESCAPE '\' ORDER BY key
`

func (q *Queries) ListKeys(ctx context.Context, prefix string) ([]string, error) {
	rows, err := q.db.QueryContext(ctx, listKeys, likePrefix(prefix))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var keys []string
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, err
		}
		keys = append(keys, k)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	return keys, rows.Err()
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func likePrefix(prefix string) string {
	return likeEscaper.Replace(prefix) + "%"
}
