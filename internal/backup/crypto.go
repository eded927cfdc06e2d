package backup

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/argon2"
)

const (
	saltSize  = 16
	nonceSize = 12
	keySize   = 32
	argonTime = 3
	argonMem  = 64 * 1024
	argonPar  = 4
)

// magic prefixes every snapshot so foreign objects are rejected before
// key derivation.
var magic = []byte("CPB1")

var (
	ErrNotSnapshot   = errors.New("not a chorepet snapshot")
	ErrBadPassphrase = errors.New("wrong passphrase or corrupted snapshot")
)

func generateSalt() ([]byte, error) {
	salt := make([]byte, saltSize)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return nil, fmt.Errorf("generate salt: %w", err)
	}
	return salt, nil
}

// deriveKey derives a 32-byte AES-256 key with Argon2id.
func deriveKey(passphrase string, salt []byte) []byte {
	return argon2.IDKey([]byte(passphrase), salt, argonTime, argonMem, argonPar, keySize)
}

func newGCM(passphrase string, salt []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(deriveKey(passphrase, salt))
	if err != nil {
		return nil, fmt.Errorf("create cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("create gcm: %w", err)
	}
	return gcm, nil
}

// Encrypt seals plaintext under a key derived from passphrase and a fresh
// salt. Output: [magic][salt][nonce][AES-256-GCM ciphertext].
func Encrypt(plaintext []byte, passphrase string) ([]byte, error) {
	salt, err := generateSalt()
	if err != nil {
		return nil, err
	}
	gcm, err := newGCM(passphrase, salt)
	if err != nil {
		return nil, err
	}

	nonce := make([]byte, nonceSize)
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, fmt.Errorf("generate nonce: %w", err)
	}

	header := make([]byte, 0, len(magic)+saltSize)
	header = append(header, magic...)
	header = append(header, salt...)

	out := make([]byte, 0, len(header)+nonceSize+len(plaintext)+gcm.Overhead())
	out = append(out, header...)
	out = append(out, nonce...)
	// The header is authenticated along with the payload.
	return gcm.Seal(out, nonce, plaintext, header), nil
}

// Decrypt reverses Encrypt.
func Decrypt(data []byte, passphrase string) ([]byte, error) {
	header := len(magic) + saltSize
	if len(data) < header+nonceSize || !bytes.Equal(data[:len(magic)], magic) {
		return nil, ErrNotSnapshot
	}

	salt := data[len(magic):header]
	nonce := data[header : header+nonceSize]
	ciphertext := data[header+nonceSize:]

	gcm, err := newGCM(passphrase, salt)
	if err != nil {
		return nil, err
	}
	plaintext, err := gcm.Open(nil, nonce, ciphertext, data[:header])
	if err != nil {
		return nil, ErrBadPassphrase
	}
	return plaintext, nil
}
