package util

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"fmt"
)

// EncryptSubmissionDataWithIV encrypts plaintext with AES-256-CBC using a
// caller-supplied IV so every field of one submission can share the same
// IV, which is what the score server expects. The key is the client
// version secret padded or truncated to 32 bytes.
func EncryptSubmissionDataWithIV(key string, iv []byte, plaintext []byte) (string, error) {
	block, err := aes.NewCipher(submissionKey(key))
	if err != nil {
		return "", fmt.Errorf("failed to init cipher: %w", err)
	}
	if len(iv) != aes.BlockSize {
		return "", fmt.Errorf("iv must be %d bytes, got %d", aes.BlockSize, len(iv))
	}

	padded := pkcs7Pad(plaintext, aes.BlockSize)
	out := make([]byte, len(padded))
	cipher.NewCBCEncrypter(block, iv).CryptBlocks(out, padded)

	return base64.StdEncoding.EncodeToString(out), nil
}

// NewSubmissionIV returns a fresh random IV for one submission.
func NewSubmissionIV() ([]byte, error) {
	iv := make([]byte, aes.BlockSize)
	if _, err := rand.Read(iv); err != nil {
		return nil, fmt.Errorf("failed to generate iv: %w", err)
	}
	return iv, nil
}

func submissionKey(key string) []byte {
	out := make([]byte, 32)
	copy(out, key)
	return out
}

func pkcs7Pad(data []byte, blockSize int) []byte {
	pad := blockSize - len(data)%blockSize
	out := make([]byte, len(data)+pad)
	copy(out, data)
	for i := len(data); i < len(out); i++ {
		out[i] = byte(pad)
	}
	return out
}
