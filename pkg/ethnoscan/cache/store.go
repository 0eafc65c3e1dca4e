package cache

import (
	"context"
	"crypto/md5"
	"encoding/hex"
)

// Store is a persistent key -> response store for annotation results.
// Implementations honor first-write-wins: once a key has a value, later Puts
// for that key never change what Get returns.
type Store interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Put(ctx context.Context, key, value string) error
	Close() error
}

// Entry is one cached response as it appears on disk.
type Entry struct {
	Key      string `json:"key"`
	Response string `json:"response"`
}

// Key derives the cache key for a task applied to a raw input text.
// md5 over task+text keeps keys compatible with existing cache files.
func Key(task, text string) string {
	sum := md5.Sum([]byte(task + text))
	return hex.EncodeToString(sum[:])
}
