package repository

import (
	"context"
	"fmt"
	"time"

	bolt "go.etcd.io/bbolt"
)

// kvBucket は検索語を格納するbboltバケット名。
var kvBucket = []byte("kv")

// BoltKVRepo はローカルのbboltファイルを使用したリポジトリ。
// DATABASE_URLを指定しない単体起動時の既定の永続化先。
type BoltKVRepo struct {
	db *bolt.DB
}

// OpenBoltKVRepo はpathのbboltファイルを開き（なければ作成し）、バケットを準備する。
func OpenBoltKVRepo(path string) (*BoltKVRepo, error) {
	db, err := bolt.Open(path, 0644, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open bolt database: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(kvBucket)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create bolt bucket: %w", err)
	}

	return &BoltKVRepo{db: db}, nil
}

// Get はキーの値を取得する。
func (r *BoltKVRepo) Get(_ context.Context, key string) (string, bool, error) {
	var (
		value string
		found bool
	)
	err := r.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(kvBucket).Get([]byte(key))
		if v != nil {
			// vはトランザクション内でのみ有効なためコピーする
			value = string(v)
			found = true
		}
		return nil
	})
	if err != nil {
		return "", false, fmt.Errorf("failed to get kv entry: %w", err)
	}
	return value, found, nil
}

// Set はキーに値を保存する。
func (r *BoltKVRepo) Set(_ context.Context, key, value string) error {
	err := r.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(kvBucket).Put([]byte(key), []byte(value))
	})
	if err != nil {
		return fmt.Errorf("failed to set kv entry: %w", err)
	}
	return nil
}

// Close はbboltファイルを閉じる。
func (r *BoltKVRepo) Close() error {
	return r.db.Close()
}

// compile-time interface check
var _ KVRepository = (*BoltKVRepo)(nil)
