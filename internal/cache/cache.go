package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// ErrCorrupt marks a stored payload that could not be decoded. Callers treat it as a miss.
var ErrCorrupt = errors.New("cache: corrupt payload")

// Store is a key/value store whose TTL is evaluated at read time.
//
// A ttl <= 0 passed to Get disables expiry for that read.
type Store interface {
	Get(ctx context.Context, key string, ttl time.Duration) (string, bool, error)
	Set(ctx context.Context, key, value string) error
	Prune(ctx context.Context, maxAge time.Duration) (int64, error)
}

// Key derives the content hash for a logical query. Map keys are sorted by
// encoding/json, so equal material always hashes to the same key.
func Key(namespace string, material any) string {
	payload, err := json.Marshal(material)
	if err != nil {
		payload = []byte(fmt.Sprintf("%#v", material))
	}

	h := sha256.New()
	h.Write([]byte(namespace))
	h.Write([]byte{':'})
	h.Write(payload)
	return hex.EncodeToString(h.Sum(nil))
}

// GetJSON loads key and decodes it into dst.
func GetJSON(ctx context.Context, s Store, key string, ttl time.Duration, dst any) (bool, error) {
	raw, ok, err := s.Get(ctx, key, ttl)
	if err != nil || !ok {
		return false, err
	}
	if err := json.Unmarshal([]byte(raw), dst); err != nil {
		return false, fmt.Errorf("%w: %s: %v", ErrCorrupt, key, err)
	}
	return true, nil
}

// SetJSON encodes value and stores it under key.
func SetJSON(ctx context.Context, s Store, key string, value any) error {
	payload, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode cache payload: %w", err)
	}
	return s.Set(ctx, key, string(payload))
}

func expired(createdAt, now time.Time, ttl time.Duration) bool {
	if ttl <= 0 {
		return false
	}
	return now.Sub(createdAt) > ttl
}
