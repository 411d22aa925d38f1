package session

import (
	"os"
	"path/filepath"

	"github.com/gorilla/securecookie"
	"golang.org/x/crypto/scrypt"

	"github.com/Toskysun/sdu-seat/internal/domain/booking"
)

const cacheKeyName = "sdu-seat-session"

// Cache persists the session state between process runs so a restart
// shortly before the trigger does not burn a login. The file content is
// authenticated and encrypted with keys derived from the operator's
// userid and device id, so a copied cache file is useless elsewhere.
type Cache struct {
	path string
	sc   *securecookie.SecureCookie
}

func NewCache(path, userID, deviceID string) (*Cache, error) {
	hashKey, err := scrypt.Key([]byte(userID+deviceID), []byte("sdu-seat/hash"), 1<<15, 8, 1, 32)
	if err != nil {
		return nil, err
	}
	blockKey, err := scrypt.Key([]byte(userID+deviceID), []byte("sdu-seat/block"), 1<<15, 8, 1, 32)
	if err != nil {
		return nil, err
	}
	sc := securecookie.New(hashKey, blockKey)
	sc.MaxAge(0) // expiry is judged from the state itself, not file age
	return &Cache{path: path, sc: sc}, nil
}

func (c *Cache) Store(s booking.SessionState) error {
	encoded, err := c.sc.Encode(cacheKeyName, s)
	if err != nil {
		return err
	}
	if dir := filepath.Dir(c.path); dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return err
		}
	}
	return os.WriteFile(c.path, []byte(encoded), 0o600)
}

// Load returns the cached state. Any unreadable or tampered file is
// treated as a miss, never an error: the caller just logs in again.
func (c *Cache) Load() (booking.SessionState, bool) {
	raw, err := os.ReadFile(c.path)
	if err != nil {
		return booking.SessionState{}, false
	}
	var s booking.SessionState
	if err := c.sc.Decode(cacheKeyName, string(raw), &s); err != nil {
		return booking.SessionState{}, false
	}
	if s.AccessToken == "" {
		return booking.SessionState{}, false
	}
	return s, true
}

// Clear removes the cache file.
func (c *Cache) Clear() error {
	err := os.Remove(c.path)
	if os.IsNotExist(err) {
		return nil
	}
	return err
}
