package ledger

import (
	"crypto/rand"
	"errors"
	"fmt"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/chacha20poly1305"
)

const (
	sealVersion  byte = 1
	sealSaltSize      = 16
)

// ErrSnapshotDecrypt is returned when a sealed snapshot cannot be opened with the given passphrase.
var ErrSnapshotDecrypt = errors.New("failed to decrypt snapshot")

// SealSnapshot encrypts a snapshot document under a passphrase.
// Layout: version byte | argon2id salt | XChaCha20-Poly1305 nonce | ciphertext.
func SealSnapshot(plaintext, passphrase []byte) ([]byte, error) {
	salt := make([]byte, sealSaltSize)
	if _, err := rand.Read(salt); err != nil {
		return nil, fmt.Errorf("failed to generate salt: %w", err)
	}

	aead, err := chacha20poly1305.NewX(deriveSnapshotKey(passphrase, salt))
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}

	nonce := make([]byte, aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("failed to generate nonce: %w", err)
	}

	out := make([]byte, 0, 1+len(salt)+len(nonce)+len(plaintext)+aead.Overhead())
	out = append(out, sealVersion)
	out = append(out, salt...)
	out = append(out, nonce...)
	return aead.Seal(out, nonce, plaintext, []byte{sealVersion}), nil
}

// OpenSnapshot reverses SealSnapshot.
func OpenSnapshot(sealed, passphrase []byte) ([]byte, error) {
	headerSize := 1 + sealSaltSize + chacha20poly1305.NonceSizeX
	if len(sealed) < headerSize+chacha20poly1305.Overhead {
		return nil, fmt.Errorf("%w: sealed snapshot too short", ErrSnapshotDecrypt)
	}
	if sealed[0] != sealVersion {
		return nil, fmt.Errorf("%w: unsupported seal version %d", ErrSnapshotDecrypt, sealed[0])
	}

	salt := sealed[1 : 1+sealSaltSize]
	nonce := sealed[1+sealSaltSize : headerSize]

	aead, err := chacha20poly1305.NewX(deriveSnapshotKey(passphrase, salt))
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}

	plaintext, err := aead.Open(nil, nonce, sealed[headerSize:], []byte{sealVersion})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSnapshotDecrypt, err)
	}
	return plaintext, nil
}

// deriveSnapshotKey stretches the passphrase with Argon2id.
func deriveSnapshotKey(passphrase, salt []byte) []byte {
	return argon2.IDKey(passphrase, salt, 1, 64*1024, 4, chacha20poly1305.KeySize)
}
