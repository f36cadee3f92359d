// Package secretcipher encrypts reward account credentials at rest.
//
// Blobs are base64(IV || tag || ciphertext) produced by AES-256-GCM with a
// 16 byte IV and a fixed additional-authenticated-data context. The key is
// derived once from a process secret with scrypt.
package secretcipher

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/scrypt"
)

const (
	ivSize  = 16
	tagSize = 16
	keySize = 32

	scryptN = 1 << 14
	scryptR = 8
	scryptP = 1
)

var (
	// kdfSalt is fixed so every process sharing the secret derives the same key.
	kdfSalt = []byte("rewardvault:credentials:v1")
	aad     = []byte("reward-account-credentials")

	encoding = base64.StdEncoding.Strict()
)

var (
	ErrEmptySecret = errors.New("secretcipher: secret is empty")
	ErrDecryption  = errors.New("secretcipher: decryption failed")
)

// DecryptionError reports a blob that is malformed, truncated or fails
// authentication. It never carries blob contents.
type DecryptionError struct {
	Reason string
	Err    error
}

func (e *DecryptionError) Error() string {
	return "secretcipher: decryption failed: " + e.Reason
}

func (e *DecryptionError) Unwrap() error {
	return e.Err
}

func (e *DecryptionError) Is(target error) bool {
	return target == ErrDecryption
}

// Cipher is safe for concurrent use.
type Cipher struct {
	gcm cipher.AEAD
}

// New derives the AES-256 key from secret. Derivation is deliberately slow;
// construct one Cipher per process and share it.
func New(secret string) (*Cipher, error) {
	if secret == "" {
		return nil, ErrEmptySecret
	}

	key, err := scrypt.Key([]byte(secret), kdfSalt, scryptN, scryptR, scryptP, keySize)
	if err != nil {
		return nil, fmt.Errorf("secretcipher: derive key: %w", err)
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("secretcipher: cipher init: %w", err)
	}

	gcm, err := cipher.NewGCMWithNonceSize(block, ivSize)
	if err != nil {
		return nil, fmt.Errorf("secretcipher: gcm init: %w", err)
	}

	return &Cipher{gcm: gcm}, nil
}

// Encrypt seals plaintext under a fresh random IV.
func (c *Cipher) Encrypt(plaintext string) (string, error) {
	iv := make([]byte, ivSize)
	if _, err := io.ReadFull(rand.Reader, iv); err != nil {
		return "", fmt.Errorf("secretcipher: iv gen: %w", err)
	}

	// Seal returns ciphertext || tag; the stored layout puts the tag first.
	sealed := c.gcm.Seal(nil, iv, []byte(plaintext), aad)
	ct, tag := sealed[:len(sealed)-tagSize], sealed[len(sealed)-tagSize:]

	out := make([]byte, 0, ivSize+tagSize+len(ct))
	out = append(out, iv...)
	out = append(out, tag...)
	out = append(out, ct...)

	return encoding.EncodeToString(out), nil
}

// Decrypt opens a blob produced by Encrypt.
func (c *Cipher) Decrypt(blob string) (string, error) {
	data, err := encoding.DecodeString(blob)
	if err != nil {
		return "", &DecryptionError{Reason: "malformed encoding", Err: err}
	}

	if len(data) < ivSize+tagSize {
		return "", &DecryptionError{Reason: "blob too short"}
	}

	iv := data[:ivSize]
	tag := data[ivSize : ivSize+tagSize]
	ct := data[ivSize+tagSize:]

	sealed := make([]byte, 0, len(ct)+tagSize)
	sealed = append(sealed, ct...)
	sealed = append(sealed, tag...)

	plain, err := c.gcm.Open(nil, iv, sealed, aad)
	if err != nil {
		return "", &DecryptionError{Reason: "authentication failed", Err: err}
	}

	return string(plain), nil
}

// Hash returns the hex SHA-256 digest of text. Used for fingerprints, never
// for credential storage.
func Hash(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}

// SecureRandom returns n cryptographically random bytes hex encoded.
func SecureRandom(n int) (string, error) {
	if n <= 0 {
		return "", fmt.Errorf("secretcipher: invalid length %d", n)
	}

	b := make([]byte, n)
	if _, err := io.ReadFull(rand.Reader, b); err != nil {
		return "", fmt.Errorf("secretcipher: random: %w", err)
	}
	return hex.EncodeToString(b), nil
}
