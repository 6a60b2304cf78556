// Trackvault - Media Library Track Lifecycle and Streaming Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/trackvault

package cache

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/hkdf"
)

// Cached values carry presigned URLs whose query strings embed request
// signatures, so entries are encrypted at rest with AES-256-GCM. The key is
// derived from the application's JWT secret with HKDF-SHA256, which ties the
// cache contents to the deployment without introducing a second secret.

const (
	encryptionSalt = "trackvault-stream-url-cache"
	encryptionInfo = "cache-encryption-v1"

	aesKeySize   = 32
	gcmNonceSize = 12
)

var (
	// ErrEmptySecret is returned when an empty JWT secret is provided.
	ErrEmptySecret = errors.New("JWT secret cannot be empty")

	// ErrDecryptionFailed is returned when a stored value cannot be
	// authenticated. Treated as a cache miss by callers.
	ErrDecryptionFailed = errors.New("decryption failed: invalid ciphertext or authentication tag")
)

// encryptor seals and opens cache values with AES-256-GCM.
type encryptor struct {
	aead cipher.AEAD
}

func newEncryptor(jwtSecret string) (*encryptor, error) {
	if jwtSecret == "" {
		return nil, ErrEmptySecret
	}

	key, err := deriveKey(jwtSecret)
	if err != nil {
		return nil, fmt.Errorf("derive cache key: %w", err)
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("create AES cipher: %w", err)
	}

	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("create GCM: %w", err)
	}

	return &encryptor{aead: aead}, nil
}

// seal encrypts plaintext and prepends the random nonce.
func (e *encryptor) seal(plaintext []byte) ([]byte, error) {
	nonce := make([]byte, gcmNonceSize)
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, fmt.Errorf("generate nonce: %w", err)
	}
	return e.aead.Seal(nonce, nonce, plaintext, nil), nil
}

// open decrypts a value produced by seal.
func (e *encryptor) open(data []byte) ([]byte, error) {
	if len(data) < gcmNonceSize+e.aead.Overhead() {
		return nil, ErrDecryptionFailed
	}

	plaintext, err := e.aead.Open(nil, data[:gcmNonceSize], data[gcmNonceSize:], nil)
	if err != nil {
		return nil, ErrDecryptionFailed
	}
	return plaintext, nil
}

// deriveKey derives a 256-bit AES key from the JWT secret using HKDF-SHA256.
func deriveKey(jwtSecret string) ([]byte, error) {
	hkdfReader := hkdf.New(sha256.New, []byte(jwtSecret),
		[]byte(encryptionSalt), []byte(encryptionInfo))

	key := make([]byte, aesKeySize)
	if _, err := io.ReadFull(hkdfReader, key); err != nil {
		return nil, fmt.Errorf("read HKDF output: %w", err)
	}
	return key, nil
}
