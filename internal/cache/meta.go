package cache

import (
	"bytes"
	"encoding/gob"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// entryMeta is the sidecar record kept next to each entry.
type entryMeta struct {
	CreatedAt  time.Time
	LastAccess time.Time
	Hits       int64
	Size       int64 // Original size (uncompressed)
}

func (s *Store) loadMeta(key Key) (entryMeta, bool) {
	var meta entryMeta

	data, err := os.ReadFile(s.metaPath(key))
	if err != nil {
		return meta, false
	}
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&meta); err != nil {
		// Sidecars are advisory; fall back to file times.
		return entryMeta{}, false
	}
	return meta, true
}

func (s *Store) saveMeta(key Key, meta entryMeta) error {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(meta); err != nil {
		return err
	}
	return writeFileAtomic(s.dir, s.metaPath(key), buf.Bytes())
}

// writeFileAtomic writes data to a unique temp file in dir and renames it
// over path. Readers of path see the old content or the new, never a mix.
// On any failure the temp file is removed and path is untouched.
func writeFileAtomic(dir, path string, data []byte) (err error) {
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*"+tempExt)
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()

	defer func() {
		if err != nil {
			_ = tmp.Close()
			_ = os.Remove(tmpPath)
		}
	}()

	if _, err = tmp.Write(data); err != nil {
		return err
	}
	if err = tmp.Sync(); err != nil {
		return err
	}
	if err = tmp.Close(); err != nil {
		return err
	}
	if err = os.Chmod(tmpPath, 0o644); err != nil {
		return err
	}

	// Atomic rename
	return os.Rename(tmpPath, path)
}

func removeIfExists(path string) error {
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

type fileKind int

const (
	kindForeign fileKind = iota
	kindData
	kindMeta
	kindTemp
)

// parseName classifies a file in the cache root.
func parseName(name string) (Key, fileKind) {
	if strings.HasPrefix(name, ".") && strings.HasSuffix(name, tempExt) {
		return "", kindTemp
	}

	for _, ext := range []string{zstdExt, rawExt} {
		if k := Key(strings.TrimSuffix(name, ext)); strings.HasSuffix(name, ext) && k.Valid() {
			return k, kindData
		}
	}
	if k := Key(strings.TrimSuffix(name, metaExt)); strings.HasSuffix(name, metaExt) && k.Valid() {
		return k, kindMeta
	}
	return "", kindForeign
}
