package crypter

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"errors"
	"fmt"
)

type Crypter interface {
	EnCrypt(plainText []byte) ([]byte, error)
	DeCrypt(cipherText []byte) ([]byte, error)
}

type Aes struct {
	aesKey []byte
	aesIv  []byte
}

// NewAes constructs an AES-CBC Crypter. aesKey must be 16, 24 or 32
// bytes (AES-128/192/256); aesIv must be exactly aes.BlockSize bytes.
func NewAes(aesKey string, aesIv string) (Crypter, error) {
	if aesKey == "" || aesIv == "" {
		return nil, errors.New("key and IV must not be empty")
	}

	key := []byte(aesKey)
	iv := []byte(aesIv)

	validKeyLengths := map[int]bool{16: true, 24: true, 32: true}
	if !validKeyLengths[len(key)] {
		return nil, fmt.Errorf("invalid key length: %d bytes; must be 16, 24, or 32 bytes", len(key))
	}

	if len(iv) != aes.BlockSize {
		return nil, fmt.Errorf("invalid IV length: %d bytes; must be %d bytes", len(iv), aes.BlockSize)
	}

	return &Aes{
		aesKey: key,
		aesIv:  iv,
	}, nil
}

// pkcs7Pad adds PKCS#7 padding up to the next AES block boundary.
func (ae *Aes) pkcs7Pad(cipherText []byte) []byte {
	remain := len(cipherText) % aes.BlockSize
	length := aes.BlockSize - remain

	trailing := bytes.Repeat([]byte{byte(length)}, length)
	return append(cipherText, trailing...)
}

// pkcs7RemovePad strips and validates PKCS#7 padding after decryption.
func (ae *Aes) pkcs7RemovePad(src []byte) ([]byte, error) {
	length := len(src)

	paddingLen := int(src[length-1])
	if paddingLen == 0 || paddingLen > aes.BlockSize {
		return nil, errors.New("invalid padding length")
	}

	// verify every padding byte equals the declared padding length
	for i := length - paddingLen; i < length; i++ {
		if src[i] != byte(paddingLen) {
			return nil, errors.New("invalid padding")
		}
	}

	end := length - paddingLen
	if end < 1 {
		return nil, errors.New("padding less of len 1")
	}

	return src[:end], nil
}

// EnCrypt pads plainText to a block boundary and encrypts it with
// AES-CBC.
func (ae *Aes) EnCrypt(plainText []byte) ([]byte, error) {
	if len(plainText) < 1 {
		return nil, errors.New("encrypt val is empty")
	}

	pkPlainText := ae.pkcs7Pad(plainText)

	block, err := aes.NewCipher(ae.aesKey)
	if err != nil {
		return nil, fmt.Errorf("aes new cipher: %w", err)
	}

	cipherText := make([]byte, len(pkPlainText))

	cbc := cipher.NewCBCEncrypter(block, ae.aesIv)
	cbc.CryptBlocks(cipherText, pkPlainText)
	return cipherText, nil
}

// DeCrypt reverses EnCrypt: AES-CBC decrypt then strip PKCS#7 padding.
func (ae *Aes) DeCrypt(cipherText []byte) ([]byte, error) {
	if len(cipherText) < 1 {
		return nil, errors.New("decrypt val is empty")
	}

	if len(cipherText)%aes.BlockSize != 0 {
		return nil, errors.New("input is not block-aligned")
	}

	block, err := aes.NewCipher(ae.aesKey)
	if err != nil {
		return nil, fmt.Errorf("aes new cipher: %w", err)
	}

	plainText := make([]byte, len(cipherText))

	cbc := cipher.NewCBCDecrypter(block, ae.aesIv)
	cbc.CryptBlocks(plainText, cipherText)
	return ae.pkcs7RemovePad(plainText)
}
