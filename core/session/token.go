package session

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dgrijalva/jwt-go"
	"github.com/pkg/errors"
)

// TokenFileName is the fixed name of the durable token file.
const TokenFileName = "token"

// TokenStore persists the single auth token.
type TokenStore interface {
	Load() (string, error)
	Save(token string) error
	Clear() error
}

// FileTokenStore keeps the token in Dir/token, readable by the owner only.
type FileTokenStore struct {
	Dir string
}

var _ TokenStore = (*FileTokenStore)(nil)

func NewFileTokenStore(dir string) *FileTokenStore {
	return &FileTokenStore{Dir: dir}
}

func (s *FileTokenStore) path() string {
	return filepath.Join(s.Dir, TokenFileName)
}

func (s *FileTokenStore) Load() (string, error) {
	data, err := os.ReadFile(s.path())
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", errors.Wrap(err, "reading token file")
	}
	return strings.TrimSpace(string(data)), nil
}

func (s *FileTokenStore) Save(token string) error {
	if err := os.MkdirAll(s.Dir, 0o700); err != nil {
		return errors.Wrap(err, "creating config dir")
	}
	if err := os.WriteFile(s.path(), []byte(token), 0o600); err != nil {
		return errors.Wrap(err, "writing token file")
	}
	return nil
}

func (s *FileTokenStore) Clear() error {
	if err := os.Remove(s.path()); err != nil && !os.IsNotExist(err) {
		return errors.Wrap(err, "removing token file")
	}
	return nil
}

// MemoryTokenStore keeps the token in memory only.
type MemoryTokenStore struct {
	token string
}

var _ TokenStore = (*MemoryTokenStore)(nil)

func (s *MemoryTokenStore) Load() (string, error) { return s.token, nil }
func (s *MemoryTokenStore) Save(token string) error {
	s.token = token
	return nil
}
func (s *MemoryTokenStore) Clear() error {
	s.token = ""
	return nil
}

// TokenExpired decodes a JWT without verifying it and reports whether it has expired.
// Tokens that are not JWTs, or carry no expiry, are never considered expired.
func TokenExpired(token string, now time.Time) bool {
	claims := new(jwt.StandardClaims)
	if _, _, err := new(jwt.Parser).ParseUnverified(token, claims); err != nil {
		return false
	}
	return claims.ExpiresAt != 0 && now.Unix() > claims.ExpiresAt
}
