package store

import (
	"database/sql"
	"encoding/json"
	"time"

	"go.uber.org/zap"
)

// Collection keys. Every logical collection persists under its own key
// so a corrupt blob never poisons a sibling collection.
const (
	KeyUser     = "user"
	KeyChats    = "chats"
	KeyQueue    = "offline_queue"
	KeyMemory   = "assistant_memory"
	KeySettings = "settings"
)

// MessagesKey returns the per-chat message collection key.
func MessagesKey(chatID string) string {
	return "messages/" + chatID
}

// KV is the durable key/value adapter everything persists through.
// Values are JSON blobs. Writes are synchronous: once Save returns true
// the value is durable. Loads never fail hard; a missing or corrupt
// value yields the caller's fallback and a logged warning.
type KV struct {
	db     *DB
	logger *zap.Logger
}

// NewKV creates a key/value adapter over the given database.
func NewKV(db *DB, logger *zap.Logger) *KV {
	return &KV{db: db, logger: logger}
}

// Save marshals v as JSON and writes it under key. A marshal or write
// failure is logged and reported as false; the caller keeps its
// in-memory state and the next restart may lose that delta.
func (kv *KV) Save(key string, v any) bool {
	data, err := json.Marshal(v)
	if err != nil {
		kv.logger.Warn("kv marshal failed", zap.String("key", key), zap.Error(err))
		return false
	}
	now := time.Now().UnixMilli()
	_, err = kv.db.Exec(`
		INSERT INTO kv (key, value, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET
			value = excluded.value,
			updated_at = excluded.updated_at`,
		key, string(data), now)
	if err != nil {
		kv.logger.Warn("kv write failed", zap.String("key", key), zap.Error(err))
		return false
	}
	return true
}

// Delete removes the value under key. Missing keys are not an error.
func (kv *KV) Delete(key string) bool {
	if _, err := kv.db.Exec(`DELETE FROM kv WHERE key = ?`, key); err != nil {
		kv.logger.Warn("kv delete failed", zap.String("key", key), zap.Error(err))
		return false
	}
	return true
}

// raw returns the stored blob for key, or ("", false) when absent.
func (kv *KV) raw(key string) (string, bool) {
	var value string
	err := kv.db.QueryRow(`SELECT value FROM kv WHERE key = ?`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", false
	}
	if err != nil {
		kv.logger.Warn("kv read failed", zap.String("key", key), zap.Error(err))
		return "", false
	}
	return value, true
}

// Load returns the value stored under key, or fallback when the key is
// missing or the stored blob does not parse. Decoding happens into a
// fresh value so a half-parsed blob can never leak into the result.
func Load[T any](kv *KV, key string, fallback T) T {
	blob, ok := kv.raw(key)
	if !ok {
		return fallback
	}
	var v T
	if err := json.Unmarshal([]byte(blob), &v); err != nil {
		kv.logger.Warn("kv value corrupt, using fallback", zap.String("key", key), zap.Error(err))
		return fallback
	}
	return v
}
