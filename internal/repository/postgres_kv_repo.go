package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// PostgresKVRepo はPostgreSQLのkv_storeテーブルを使用したリポジトリ。
type PostgresKVRepo struct {
	db *sql.DB
}

// NewPostgresKVRepo はPostgresKVRepoを生成する。
func NewPostgresKVRepo(db *sql.DB) *PostgresKVRepo {
	return &PostgresKVRepo{db: db}
}

// Get はキーの値を取得する。
func (r *PostgresKVRepo) Get(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := r.db.QueryRowContext(ctx,
		`SELECT value FROM kv_store WHERE key = $1`,
		key,
	).Scan(&value)

	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to get kv entry: %w", err)
	}
	return value, true, nil
}

// Set はキーに値をUPSERTする。
func (r *PostgresKVRepo) Set(ctx context.Context, key, value string) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO kv_store (key, value, updated_at)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = EXCLUDED.updated_at`,
		key, value, time.Now(),
	)
	if err != nil {
		return fmt.Errorf("failed to set kv entry: %w", err)
	}
	return nil
}

// compile-time interface check
var _ KVRepository = (*PostgresKVRepo)(nil)
