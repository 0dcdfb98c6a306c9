package cache

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/charmbracelet/log"
	"github.com/klauspost/compress/zstd"

	"github.com/dgnsrekt/tts-cli/internal/tts"
)

const (
	rawExt  = ".audio"
	zstdExt = ".audio.zst"
	metaExt = ".meta"
	tempExt = ".tmp"

	// Only compress entries larger than this.
	compressThreshold = 1024
)

// Store is a directory-backed, content-addressed map from Key to audio
// bytes. Each entry is one file named after its key, plus an optional
// metadata sidecar.
//
// Store keeps no in-memory index: every operation goes to the filesystem, so
// entries written or removed by other processes are always observed. Writes
// go to a temp file that is renamed into place, so readers see either the
// old or the new content of a key, never a partial file. A Store is safe for
// concurrent use.
type Store struct {
	dir string

	// Compression
	compressionLevel int
	encoder          *zstd.Encoder
	decoder          *zstd.Decoder

	now func() time.Time
}

// NewStore creates a store rooted at cfg.Dir. The directory is not created
// until the first write.
func NewStore(cfg Config) (*Store, error) {
	if cfg.Dir == "" {
		return nil, errors.New("cache directory is required")
	}

	s := &Store{
		dir:              cfg.Dir,
		compressionLevel: cfg.CompressionLevel,
		now:              time.Now,
	}

	var err error
	if s.compressionLevel > 0 {
		s.encoder, err = zstd.NewWriter(nil,
			zstd.WithEncoderLevel(zstd.EncoderLevelFromZstd(s.compressionLevel)))
		if err != nil {
			return nil, fmt.Errorf("failed to create zstd encoder: %w", err)
		}
	}

	// Always able to read compressed entries, even with compression off.
	s.decoder, err = zstd.NewReader(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create zstd decoder: %w", err)
	}

	return s, nil
}

// Dir returns the cache root.
func (s *Store) Dir() string {
	return s.dir
}

// Get returns a copy of the audio stored under key. Absence is a normal
// outcome; read errors and corrupted entries are reported as misses.
func (s *Store) Get(key Key) ([]byte, bool) {
	e, ok := s.GetEntry(key)
	if !ok {
		return nil, false
	}
	return e.Data, true
}

// GetEntry is Get with the entry metadata. A hit bumps the entry's hit
// count and access time on a best-effort basis.
func (s *Store) GetEntry(key Key) (Entry, bool) {
	if !key.Valid() {
		return Entry{}, false
	}

	data, compressed, info, err := s.readData(key)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			log.Debug("Cache read failed, treating as miss", "key", key.Short(), "error", err)
		}
		return Entry{}, false
	}

	if compressed {
		data, err = s.decoder.DecodeAll(data, nil)
		if err != nil {
			log.Warn("Removing corrupted cache entry", "key", key.Short(), "error", err)
			if _, rmErr := s.Remove(key); rmErr != nil {
				log.Debug("Could not remove corrupted entry", "key", key.Short(), "error", rmErr)
			}
			return Entry{}, false
		}
	}

	meta, _ := s.loadMeta(key)
	if meta.CreatedAt.IsZero() {
		meta.CreatedAt = info.ModTime()
	}
	meta.Hits++
	meta.LastAccess = s.now()
	meta.Size = int64(len(data))
	if err := s.saveMeta(key, meta); err != nil {
		log.Debug("Could not update cache metadata", "key", key.Short(), "error", err)
	}

	return Entry{
		Key:        key,
		Data:       data,
		Size:       int64(len(data)),
		CreatedAt:  meta.CreatedAt,
		LastAccess: meta.LastAccess,
		Hits:       meta.Hits,
	}, true
}

// Contains reports whether an entry exists for key without touching its
// metadata.
func (s *Store) Contains(key Key) bool {
	if !key.Valid() {
		return false
	}
	for _, p := range []string{s.dataPath(key, true), s.dataPath(key, false)} {
		if _, err := os.Stat(p); err == nil {
			return true
		}
	}
	return false
}

// Put stores data under key, replacing any existing entry. The new content
// becomes visible in a single rename. Failures are IOFailure errors.
func (s *Store) Put(key Key, data []byte) error {
	if !key.Valid() {
		return tts.IOFailure("refusing to write cache entry", fmt.Errorf("%w: %q", ErrInvalidKey, key))
	}

	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return tts.IOFailure("failed to create cache directory", err).WithContext("dir", s.dir)
	}

	payload, compressed := s.encode(data)

	// The other representation goes first: a failure or crash past this
	// point leaves a miss, never the previous audio.
	if err := removeIfExists(s.dataPath(key, !compressed)); err != nil {
		return tts.IOFailure("failed to replace cache entry", err).WithContext("key", key.String())
	}

	path := s.dataPath(key, compressed)
	if err := writeFileAtomic(s.dir, path, payload); err != nil {
		return tts.IOFailure("failed to write cache entry", err).WithContext("key", key.String())
	}

	now := s.now()
	meta := entryMeta{
		CreatedAt:  now,
		LastAccess: now,
		Size:       int64(len(data)),
	}
	if err := s.saveMeta(key, meta); err != nil {
		// The entry itself is published; creation time falls back to mtime.
		log.Warn("Could not write cache metadata", "key", key.Short(), "error", err)
	}

	log.Debug("Cached audio", "key", key.Short(), "bytes", len(data), "stored", len(payload), "compressed", compressed)
	return nil
}

// Remove deletes the entry for key. It reports whether an entry existed and
// is idempotent.
func (s *Store) Remove(key Key) (bool, error) {
	if !key.Valid() {
		return false, nil
	}

	removed := false
	for _, p := range []string{s.dataPath(key, true), s.dataPath(key, false)} {
		err := os.Remove(p)
		switch {
		case err == nil:
			removed = true
		case errors.Is(err, fs.ErrNotExist):
		default:
			return removed, tts.IOFailure("failed to remove cache entry", err).WithContext("key", key.String())
		}
	}

	if err := removeIfExists(s.metaPath(key)); err != nil {
		return removed, tts.IOFailure("failed to remove cache metadata", err).WithContext("key", key.String())
	}

	return removed, nil
}

// ClearAll deletes every entry and returns how many were removed. Abandoned
// temp files and orphaned metadata are removed too. Files the store did not
// create are left alone.
func (s *Store) ClearAll() (int, error) {
	files, err := os.ReadDir(s.dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return 0, nil
		}
		return 0, tts.IOFailure("failed to read cache directory", err).WithContext("dir", s.dir)
	}

	removedKeys := make(map[Key]struct{})
	for _, f := range files {
		if f.IsDir() {
			continue
		}
		key, kind := parseName(f.Name())
		if kind == kindForeign {
			continue
		}

		err := os.Remove(filepath.Join(s.dir, f.Name()))
		if err != nil && !errors.Is(err, fs.ErrNotExist) {
			return len(removedKeys), tts.IOFailure("failed to clear cache", err).WithContext("file", f.Name())
		}
		if err == nil && kind == kindData {
			removedKeys[key] = struct{}{}
		}
	}

	return len(removedKeys), nil
}

// Stats scans the cache directory and summarizes its entries.
func (s *Store) Stats() (Stats, error) {
	stats := Stats{Dir: s.dir}

	entries, err := s.scan()
	if err != nil {
		return stats, err
	}

	for _, e := range entries {
		stats.Entries++
		stats.TotalSize += e.diskSize
		stats.TotalHits += e.Hits
		if stats.Oldest.IsZero() || e.CreatedAt.Before(stats.Oldest) {
			stats.Oldest = e.CreatedAt
		}
		if e.CreatedAt.After(stats.Newest) {
			stats.Newest = e.CreatedAt
		}
	}

	return stats, nil
}

// Prune removes entries last used before cutoff. An entry that was never
// hit counts as used when it was stored.
func (s *Store) Prune(cutoff time.Time) (int, error) {
	entries, err := s.scan()
	if err != nil {
		return 0, err
	}

	removed := 0
	for _, e := range entries {
		if !e.LastAccess.Before(cutoff) {
			continue
		}
		ok, err := s.Remove(e.Key)
		if err != nil {
			return removed, err
		}
		if ok {
			removed++
		}
	}
	return removed, nil
}

// Trim evicts least recently used entries until the on-disk size is at most
// maxBytes.
func (s *Store) Trim(maxBytes int64) (int, error) {
	entries, err := s.scan()
	if err != nil {
		return 0, err
	}

	var total int64
	for _, e := range entries {
		total += e.diskSize
	}

	// Oldest access first
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].LastAccess.Before(entries[j].LastAccess)
	})

	evicted := 0
	for _, e := range entries {
		if total <= maxBytes {
			break
		}
		ok, err := s.Remove(e.Key)
		if err != nil {
			return evicted, err
		}
		total -= e.diskSize
		if ok {
			evicted++
		}
	}
	return evicted, nil
}

// Private helper methods

type scannedEntry struct {
	Entry
	diskSize int64
}

// scan lists every data file in the cache root with its metadata.
func (s *Store) scan() ([]scannedEntry, error) {
	files, err := os.ReadDir(s.dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, tts.IOFailure("failed to read cache directory", err).WithContext("dir", s.dir)
	}

	byKey := make(map[Key]*scannedEntry)
	for _, f := range files {
		if f.IsDir() {
			continue
		}
		key, kind := parseName(f.Name())
		if kind != kindData {
			continue
		}

		info, err := f.Info()
		if err != nil {
			// Removed concurrently
			continue
		}

		e, ok := byKey[key]
		if !ok {
			e = &scannedEntry{Entry: Entry{Key: key}}
			byKey[key] = e
		}
		e.diskSize += info.Size()
		if e.CreatedAt.IsZero() || info.ModTime().Before(e.CreatedAt) {
			e.CreatedAt = info.ModTime()
			e.LastAccess = info.ModTime()
		}
	}

	out := make([]scannedEntry, 0, len(byKey))
	for key, e := range byKey {
		if meta, ok := s.loadMeta(key); ok {
			if !meta.CreatedAt.IsZero() {
				e.CreatedAt = meta.CreatedAt
			}
			if !meta.LastAccess.IsZero() {
				e.LastAccess = meta.LastAccess
			}
			e.Hits = meta.Hits
			e.Size = meta.Size
		}
		out = append(out, *e)
	}
	return out, nil
}

// readData reads the stored payload for key. When both representations
// exist, the one written last wins and the other is removed.
func (s *Store) readData(key Key) ([]byte, bool, fs.FileInfo, error) {
	var (
		compressed bool
		info       fs.FileInfo
	)
	for _, c := range []bool{true, false} {
		fi, err := os.Stat(s.dataPath(key, c))
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return nil, false, nil, err
		}
		if info == nil || fi.ModTime().After(info.ModTime()) {
			if info != nil {
				s.dropStale(key, compressed)
			}
			compressed, info = c, fi
		} else {
			s.dropStale(key, c)
		}
	}
	if info == nil {
		return nil, false, nil, fs.ErrNotExist
	}

	data, err := os.ReadFile(s.dataPath(key, compressed))
	if err != nil {
		return nil, false, nil, err
	}
	return data, compressed, info, nil
}

func (s *Store) dropStale(key Key, compressed bool) {
	log.Debug("Removing shadowed cache file", "key", key.Short(), "compressed", compressed)
	if err := removeIfExists(s.dataPath(key, compressed)); err != nil {
		log.Debug("Could not remove shadowed cache file", "key", key.Short(), "error", err)
	}
}

// encode compresses data when it is worth it.
func (s *Store) encode(data []byte) ([]byte, bool) {
	if s.encoder == nil || len(data) <= compressThreshold {
		return data, false
	}
	compressed := s.encoder.EncodeAll(data, make([]byte, 0, len(data)/2))
	// Only use compression if it actually reduces size
	if len(compressed) >= len(data) {
		return data, false
	}
	return compressed, true
}

func (s *Store) dataPath(key Key, compressed bool) string {
	if compressed {
		return filepath.Join(s.dir, string(key)+zstdExt)
	}
	return filepath.Join(s.dir, string(key)+rawExt)
}

func (s *Store) metaPath(key Key) string {
	return filepath.Join(s.dir, string(key)+metaExt)
}

// Close releases compression resources.
func (s *Store) Close() error {
	if s.encoder != nil {
		if err := s.encoder.Close(); err != nil {
			return fmt.Errorf("failed to close zstd encoder: %w", err)
		}
	}
	if s.decoder != nil {
		s.decoder.Close()
	}
	return nil
}
