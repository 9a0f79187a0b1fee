// Package fieldcipher encrypts individual sensitive string fields before
// they are persisted. Keys are derived per user from the server master
// secret, so records of different users never share a key and the master
// secret itself is never used as a cipher key directly.
package fieldcipher

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"golang.org/x/crypto/hkdf"
)

// versionPrefix tags ciphertext strings so the encoding can evolve without
// breaking stored records.
const versionPrefix = "dv1:"

const (
	keySize   = 32 // AES-256
	nonceSize = 12
)

var hkdfSalt = []byte("datavault/fieldcipher/v1")

var ErrEmptyMasterSecret = errors.New("master secret is empty")

// DecryptionError reports a field that could not be decrypted. It is always
// surfaced to the caller; the cipher never substitutes placeholder output
// for undecryptable input.
type DecryptionError struct {
	Reason string
	Err    error
}

func (e *DecryptionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("decryption failed: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("decryption failed: %s", e.Reason)
}

func (e *DecryptionError) Unwrap() error {
	return e.Err
}

type Cipher struct {
	masterSecret []byte
}

func New(masterSecret string) (*Cipher, error) {
	if masterSecret == "" {
		return nil, ErrEmptyMasterSecret
	}
	return &Cipher{masterSecret: []byte(masterSecret)}, nil
}

// userKey derives the AES key for one user via HKDF-SHA256.
func (c *Cipher) userKey(userID uint) ([]byte, error) {
	info := []byte("user:" + strconv.FormatUint(uint64(userID), 10))
	key := make([]byte, keySize)
	kdf := hkdf.New(sha256.New, c.masterSecret, hkdfSalt, info)
	if _, err := io.ReadFull(kdf, key); err != nil {
		return nil, err
	}
	return key, nil
}

func (c *Cipher) aead(userID uint) (cipher.AEAD, error) {
	key, err := c.userKey(userID)
	if err != nil {
		return nil, err
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}

// Encrypt returns a self-contained ciphertext string: version prefix plus
// base64(nonce || sealed). The GCM tag lives inside the sealed payload, no
// metadata is persisted alongside.
func (c *Cipher) Encrypt(userID uint, plaintext string) (string, error) {
	aead, err := c.aead(userID)
	if err != nil {
		return "", err
	}
	nonce := make([]byte, nonceSize)
	if _, err := rand.Read(nonce); err != nil {
		return "", err
	}
	sealed := aead.Seal(nonce, nonce, []byte(plaintext), nil)
	return versionPrefix + base64.RawStdEncoding.EncodeToString(sealed), nil
}

// Decrypt reverses Encrypt. Wrong user, wrong master secret or corrupted
// input all fail with *DecryptionError.
func (c *Cipher) Decrypt(userID uint, ciphertext string) (string, error) {
	payload, ok := strings.CutPrefix(ciphertext, versionPrefix)
	if !ok {
		return "", &DecryptionError{Reason: "unrecognized ciphertext format"}
	}
	raw, err := base64.RawStdEncoding.DecodeString(payload)
	if err != nil {
		return "", &DecryptionError{Reason: "malformed base64 payload", Err: err}
	}
	if len(raw) < nonceSize {
		return "", &DecryptionError{Reason: "payload too short"}
	}
	aead, err := c.aead(userID)
	if err != nil {
		return "", err
	}
	plaintext, err := aead.Open(nil, raw[:nonceSize], raw[nonceSize:], nil)
	if err != nil {
		return "", &DecryptionError{Reason: "authentication failed", Err: err}
	}
	return string(plaintext), nil
}

// MaskCardNumber renders a card number for display, keeping only the last
// four digits: "4111111111111111" -> "**** **** **** 1111". Inputs shorter
// than four digits are fully masked.
func MaskCardNumber(number string) string {
	digits := strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, number)
	if len(digits) < 4 {
		return "****"
	}
	return "**** **** **** " + digits[len(digits)-4:]
}
