package secrets

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"

	bolt "go.etcd.io/bbolt"
)

var bucketSecrets = []byte("secrets")

// Store is an encrypted-at-rest secret store over BoltDB. Content is a
// flat field mapping; secrets are addressed by opaque ID, matching the
// pointers the coordinator publishes. It implements worker.SecretStore.
type Store struct {
	db            *bolt.DB
	encryptionKey []byte // 32 bytes for AES-256
}

// Open opens (or creates) the secret store under dataDir. The key must be
// 32 bytes for AES-256-GCM.
func Open(dataDir string, key []byte) (*Store, error) {
	if len(key) != 32 {
		return nil, fmt.Errorf("encryption key must be 32 bytes for AES-256, got %d", len(key))
	}

	dbPath := filepath.Join(dataDir, "secrets.db")
	db, err := bolt.Open(dbPath, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketSecrets)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create bucket: %w", err)
	}

	return &Store{db: db, encryptionKey: key}, nil
}

// OpenWithPassword opens the store with a key derived from password via
// SHA-256.
func OpenWithPassword(dataDir, password string) (*Store, error) {
	if password == "" {
		return nil, fmt.Errorf("password cannot be empty")
	}
	hash := sha256.Sum256([]byte(password))
	return Open(dataDir, hash[:])
}

// Close closes the database
func (s *Store) Close() error {
	return s.db.Close()
}

// Put stores a secret's content mapping encrypted under id.
func (s *Store) Put(id string, content map[string]string) error {
	if id == "" {
		return fmt.Errorf("secret id cannot be empty")
	}

	plaintext, err := json.Marshal(content)
	if err != nil {
		return fmt.Errorf("failed to marshal secret content: %w", err)
	}
	ciphertext, err := s.encrypt(plaintext)
	if err != nil {
		return fmt.Errorf("failed to encrypt secret: %w", err)
	}

	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketSecrets).Put([]byte(id), ciphertext)
	})
}

// Get resolves a secret pointer to its content mapping. A field absent
// from the content reads as an empty string at the call sites, so Get only
// fails when the secret itself is missing or undecryptable.
func (s *Store) Get(id string) (map[string]string, error) {
	var ciphertext []byte
	err := s.db.View(func(tx *bolt.Tx) error {
		raw := tx.Bucket(bucketSecrets).Get([]byte(id))
		if raw == nil {
			return fmt.Errorf("secret %q not found", id)
		}
		ciphertext = make([]byte, len(raw))
		copy(ciphertext, raw)
		return nil
	})
	if err != nil {
		return nil, err
	}

	plaintext, err := s.decrypt(ciphertext)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt secret %q: %w", id, err)
	}

	var content map[string]string
	if err := json.Unmarshal(plaintext, &content); err != nil {
		return nil, fmt.Errorf("failed to unmarshal secret content: %w", err)
	}
	return content, nil
}

// Delete removes a secret.
func (s *Store) Delete(id string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketSecrets).Delete([]byte(id))
	})
}

// encrypt seals plaintext with AES-256-GCM, nonce prepended.
func (s *Store) encrypt(plaintext []byte) ([]byte, error) {
	block, err := aes.NewCipher(s.encryptionKey)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, fmt.Errorf("failed to generate nonce: %w", err)
	}
	return gcm.Seal(nonce, nonce, plaintext, nil), nil
}

// decrypt opens data sealed by encrypt.
func (s *Store) decrypt(ciphertext []byte) ([]byte, error) {
	block, err := aes.NewCipher(s.encryptionKey)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}

	nonceSize := gcm.NonceSize()
	if len(ciphertext) < nonceSize {
		return nil, fmt.Errorf("ciphertext too short")
	}
	nonce, sealed := ciphertext[:nonceSize], ciphertext[nonceSize:]
	return gcm.Open(nil, nonce, sealed, nil)
}
