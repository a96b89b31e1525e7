package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/parishops/flock/pkg/crypto"
	"github.com/parishops/flock/pkg/models"
)

// ErrNoCredentials reports that no persisted session exists.
var ErrNoCredentials = errors.New("no persisted credentials")

// CredentialStore persists the bearer token and serialized identity. Both are
// written together on login and removed together on logout or invalidation;
// nothing else is persisted client-side.
type CredentialStore interface {
	Save(token string, identity *models.Identity) error
	Load() (string, *models.Identity, error)
	Clear() error
}

// credentialFile is the on-disk layout.
type credentialFile struct {
	Token    string           `json:"token"`
	Identity *models.Identity `json:"identity"`
}

// FileStore keeps credentials in a single JSON file, written atomically so
// the token and identity can never diverge. With a sealer the payload is
// encrypted at rest; Load then refuses files it cannot open.
type FileStore struct {
	path   string
	sealer *crypto.SessionSealer
}

// NewFileStore creates a FileStore at path. Parent directories are created on
// the first Save.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// NewSealedFileStore creates a FileStore that encrypts the payload with the
// given sealer.
func NewSealedFileStore(path string, sealer *crypto.SessionSealer) *FileStore {
	return &FileStore{path: path, sealer: sealer}
}

func (s *FileStore) Save(token string, identity *models.Identity) error {
	buf, err := json.Marshal(credentialFile{Token: token, Identity: identity})
	if err != nil {
		return fmt.Errorf("encode credentials: %w", err)
	}
	if s.sealer != nil {
		if buf, err = s.sealer.Seal(buf); err != nil {
			return fmt.Errorf("seal credentials: %w", err)
		}
	}
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("create credentials dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".flock-session-*")
	if err != nil {
		return fmt.Errorf("create temp credentials file: %w", err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(buf); err != nil {
		tmp.Close()
		return fmt.Errorf("write credentials: %w", err)
	}
	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close()
		return fmt.Errorf("chmod credentials: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close credentials: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("persist credentials: %w", err)
	}
	return nil
}

func (s *FileStore) Load() (string, *models.Identity, error) {
	buf, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", nil, ErrNoCredentials
		}
		return "", nil, fmt.Errorf("read credentials: %w", err)
	}
	if s.sealer != nil {
		if buf, err = s.sealer.Open(buf); err != nil {
			return "", nil, fmt.Errorf("open credentials: %w", err)
		}
	}
	var cf credentialFile
	if err := json.Unmarshal(buf, &cf); err != nil {
		return "", nil, fmt.Errorf("decode credentials: %w", err)
	}
	if cf.Token == "" || cf.Identity == nil {
		return "", nil, ErrNoCredentials
	}
	return cf.Token, cf.Identity, nil
}

func (s *FileStore) Clear() error {
	if err := os.Remove(s.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("remove credentials: %w", err)
	}
	return nil
}

// MemoryStore is an in-memory CredentialStore for tests.
type MemoryStore struct {
	token    string
	identity *models.Identity
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Save(token string, identity *models.Identity) error {
	s.token = token
	s.identity = identity
	return nil
}

func (s *MemoryStore) Load() (string, *models.Identity, error) {
	if s.token == "" || s.identity == nil {
		return "", nil, ErrNoCredentials
	}
	return s.token, s.identity, nil
}

func (s *MemoryStore) Clear() error {
	s.token = ""
	s.identity = nil
	return nil
}

var (
	_ CredentialStore = (*FileStore)(nil)
	_ CredentialStore = (*MemoryStore)(nil)
)
