// Package keyring provides secure storage for tunnel private keys.
// It uses the system keyring when available, falling back to an
// encrypted local file when not.
package keyring

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/zalando/go-keyring"
	"golang.org/x/crypto/hkdf"

	"github.com/yllada/wg-manager/common"
)

// Store keeps one secret per tunnel name. It implements common.CredentialStore.
type Store struct {
	service string

	mu       sync.RWMutex
	useLocal bool
	local    map[string]string
	file     string
	key      []byte
}

// New returns a Store for service. The system keyring is probed once; if it
// is unusable, secrets go to an encrypted file in dir.
func New(service, dir string) (*Store, error) {
	s := &Store{service: service, file: filepath.Join(dir, common.CredentialsFileName)}

	probe := service + "-probe"
	if err := keyring.Set(service, probe, "probe"); err == nil {
		_ = keyring.Delete(service, probe)
		return s, nil
	}

	common.LogDebug("System keyring unavailable, using encrypted file %s", s.file)
	if err := s.initLocal(); err != nil {
		return nil, err
	}
	return s, nil
}

// NewLocal returns a Store that only uses the encrypted file in dir.
func NewLocal(service, dir string) (*Store, error) {
	s := &Store{service: service, file: filepath.Join(dir, common.CredentialsFileName)}
	if err := s.initLocal(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Store) initLocal() error {
	if err := os.MkdirAll(filepath.Dir(s.file), 0700); err != nil {
		return fmt.Errorf("%w: %v", common.ErrCredentialStorage, err)
	}

	key, err := deriveKey(s.service)
	if err != nil {
		return fmt.Errorf("%w: %v", common.ErrEncryption, err)
	}

	local, err := loadLocal(s.file, key)
	if err != nil {
		return err
	}
	s.useLocal = true
	s.key = key
	s.local = local
	return nil
}

// deriveKey binds the file key to this machine and user.
func deriveKey(service string) ([]byte, error) {
	hostname, _ := os.Hostname()
	secret := fmt.Sprintf("%s-%s-%s-%d", service, hostname, machineID(), os.Getuid())

	key := make([]byte, 32)
	r := hkdf.New(sha256.New, []byte(secret), []byte(service), []byte("credentials file key"))
	if _, err := io.ReadFull(r, key); err != nil {
		return nil, err
	}
	return key, nil
}

func machineID() string {
	data, err := os.ReadFile("/etc/machine-id")
	if err == nil {
		return strings.TrimSpace(string(data))
	}
	return "default-machine-id"
}

// loadLocal reads the encrypted file. A missing file is an empty store.
func loadLocal(file string, key []byte) (map[string]string, error) {
	local := make(map[string]string)
	data, err := os.ReadFile(file)
	if err != nil {
		if os.IsNotExist(err) {
			return local, nil
		}
		return nil, fmt.Errorf("%w: %v", common.ErrCredentialStorage, err)
	}

	plain, err := decrypt(key, data)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", common.ErrDecryption, file, err)
	}
	if err := json.Unmarshal(plain, &local); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", common.ErrDecryption, file, err)
	}
	return local, nil
}

// saveLocal must be called with s.mu held.
func (s *Store) saveLocal() error {
	data, err := json.Marshal(s.local)
	if err != nil {
		return err
	}
	sealed, err := encrypt(s.key, data)
	if err != nil {
		return fmt.Errorf("%w: %v", common.ErrEncryption, err)
	}
	if err := common.WriteFileAtomic(s.file, sealed, 0600); err != nil {
		return fmt.Errorf("%w: %v", common.ErrCredentialStorage, err)
	}
	return nil
}

func encrypt(key, plaintext []byte) ([]byte, error) {
	gcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, err
	}
	sealed := gcm.Seal(nonce, nonce, plaintext, nil)
	return []byte(base64.StdEncoding.EncodeToString(sealed)), nil
}

func decrypt(key, data []byte) ([]byte, error) {
	sealed, err := base64.StdEncoding.DecodeString(string(data))
	if err != nil {
		return nil, err
	}
	gcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}
	if len(sealed) < gcm.NonceSize() {
		return nil, errors.New("ciphertext too short")
	}
	nonce, ciphertext := sealed[:gcm.NonceSize()], sealed[gcm.NonceSize():]
	return gcm.Open(nil, nonce, ciphertext, nil)
}

func newGCM(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}

// Store saves the secret for a tunnel.
func (s *Store) Store(tunnel, secret string) error {
	if tunnel == "" {
		return errors.New("tunnel name cannot be empty")
	}
	if secret == "" {
		return errors.New("secret cannot be empty")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.useLocal {
		err := keyring.Set(s.service, tunnel, secret)
		if err == nil {
			return nil
		}
		common.LogWarn("System keyring rejected secret for %s, falling back to file: %v", tunnel, err)
		if err := s.initLocal(); err != nil {
			return err
		}
	}

	s.local[tunnel] = secret
	return s.saveLocal()
}

// Get retrieves the secret for a tunnel.
func (s *Store) Get(tunnel string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.useLocal {
		secret, ok := s.local[tunnel]
		if !ok {
			return "", fmt.Errorf("%w: %s", common.ErrCredentialsNotFound, tunnel)
		}
		return secret, nil
	}

	secret, err := keyring.Get(s.service, tunnel)
	if errors.Is(err, keyring.ErrNotFound) {
		return "", fmt.Errorf("%w: %s", common.ErrCredentialsNotFound, tunnel)
	}
	if err != nil {
		return "", fmt.Errorf("%w: %v", common.ErrCredentialStorage, err)
	}
	return secret, nil
}

// Delete removes the secret for a tunnel.
func (s *Store) Delete(tunnel string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.useLocal {
		if _, ok := s.local[tunnel]; !ok {
			return fmt.Errorf("%w: %s", common.ErrCredentialsNotFound, tunnel)
		}
		delete(s.local, tunnel)
		return s.saveLocal()
	}

	err := keyring.Delete(s.service, tunnel)
	if errors.Is(err, keyring.ErrNotFound) {
		return fmt.Errorf("%w: %s", common.ErrCredentialsNotFound, tunnel)
	}
	return err
}

// Clear removes every secret stored under the service.
func (s *Store) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.useLocal {
		s.local = make(map[string]string)
		return s.saveLocal()
	}
	return keyring.DeleteAll(s.service)
}

// Exists reports whether a secret is stored for the tunnel.
func (s *Store) Exists(tunnel string) bool {
	_, err := s.Get(tunnel)
	return err == nil
}

// Local reports whether the encrypted file backend is in use.
func (s *Store) Local() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.useLocal
}
