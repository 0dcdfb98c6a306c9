package cache

import (
	"errors"
	"time"
)

// Common errors for cache operations
var (
	// ErrInvalidKey is returned when a key is not a well-formed digest
	ErrInvalidKey = errors.New("invalid cache key")

	// ErrCacheCorrupted is returned when cache data is corrupted
	ErrCacheCorrupted = errors.New("cache data corrupted")
)

// Entry is a cached synthesis result. Data is always a private copy.
type Entry struct {
	Key        Key
	Data       []byte
	Size       int64 // Size of Data in bytes
	CreatedAt  time.Time
	LastAccess time.Time
	Hits       int64
}

// Stats describes the store contents at the time of the scan. It is never
// persisted; every call rescans the cache directory.
type Stats struct {
	Dir       string
	Entries   int
	TotalSize int64 // Bytes on disk, after compression
	TotalHits int64
	Oldest    time.Time
	Newest    time.Time
}

// Config holds configuration for a Store.
type Config struct {
	// Dir is the cache root. It is created on first write.
	Dir string

	// CompressionLevel is the zstd level (1-22). Zero disables compression.
	CompressionLevel int
}

// DefaultConfig returns the default store configuration for dir.
func DefaultConfig(dir string) Config {
	return Config{
		Dir:              dir,
		CompressionLevel: 3, // Balanced compression
	}
}
