package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"hash"
	"strconv"

	"github.com/dgnsrekt/tts-cli/internal/tts"
)

// keyVersion is mixed into every key. Bump it when the field layout below
// changes so old entries stop matching.
const keyVersion = "tts-cli/cache-key/v1"

// Key is the content-derived identifier of a cached synthesis result: a
// lowercase hex SHA-256 digest, always KeyLength characters long.
type Key string

// KeyLength is the length of a Key in characters.
const KeyLength = sha256.Size * 2

// String returns the key as a string.
func (k Key) String() string {
	return string(k)
}

// Valid reports whether k looks like a key produced by DeriveKey.
func (k Key) Valid() bool {
	if len(k) != KeyLength {
		return false
	}
	for i := 0; i < len(k); i++ {
		c := k[i]
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return false
		}
	}
	return true
}

// Short returns an abbreviated key for log output.
func (k Key) Short() string {
	if len(k) <= 12 {
		return string(k)
	}
	return string(k[:12])
}

// DeriveKey computes the cache key of a request. It is pure and never fails.
//
// Fields are hashed in a fixed order: version, provider, language, voice,
// option count, options sorted by key, then text. Every field is
// length-prefixed so no choice of content can shift a field boundary. The
// voice carries a presence marker, so "no voice" and an empty voice differ.
func DeriveKey(req tts.Request) Key {
	h := sha256.New()

	writeField(h, keyVersion)
	writeField(h, string(req.Provider()))
	writeField(h, req.Language())
	if req.HasVoice() {
		writeField(h, "+"+req.Voice())
	} else {
		writeField(h, "-")
	}

	keys := req.OptionKeys()
	writeField(h, strconv.Itoa(len(keys)))
	for _, k := range keys {
		v, _ := req.Option(k)
		writeField(h, k)
		writeField(h, v)
	}

	writeField(h, req.Text())

	return Key(hex.EncodeToString(h.Sum(nil)))
}

func writeField(h hash.Hash, s string) {
	// hash.Hash.Write never returns an error
	_, _ = h.Write([]byte(strconv.Itoa(len(s))))
	_, _ = h.Write([]byte{':'})
	_, _ = h.Write([]byte(s))
}
