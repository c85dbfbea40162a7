package identity

import (
	"crypto/ed25519"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

const pemTypePrivateKey = "PRIVATE KEY"

// LoadOrCreateIdentity loads the participant key at keyPath, generating and
// saving a new one when the file is missing or empty.
//
// The key file is stored in PEM format with PKCS8 encoding and is written
// with 0600 permissions.
func LoadOrCreateIdentity(keyPath string) (*Identity, error) {
	info, err := os.Stat(keyPath)
	switch {
	case os.IsNotExist(err):
		return createIdentity(keyPath)
	case err != nil:
		return nil, err
	case info.Size() == 0:
		return createIdentity(keyPath)
	}

	return LoadIdentity(keyPath)
}

// LoadIdentity loads an existing key file and fails if it is absent.
func LoadIdentity(keyPath string) (*Identity, error) {
	keyData, err := os.ReadFile(keyPath)
	if err != nil {
		return nil, err
	}

	pemBlock, _ := pem.Decode(keyData)
	if pemBlock == nil {
		return nil, errors.New("failed to decode PEM block from key file")
	}

	genericKey, err := x509.ParsePKCS8PrivateKey(pemBlock.Bytes)
	if err != nil {
		return nil, fmt.Errorf("parse key %s: %w", keyPath, err)
	}

	privKey, ok := genericKey.(ed25519.PrivateKey)
	if !ok {
		return nil, errors.New("key is not an ed25519 private key")
	}

	return NewIdentity(privKey), nil
}

// Save writes the identity's private key to keyPath.
func (i *Identity) Save(keyPath string) error {
	x509Encoded, err := x509.MarshalPKCS8PrivateKey(i.key)
	if err != nil {
		return err
	}

	if dir := filepath.Dir(keyPath); dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return fmt.Errorf("create key directory: %w", err)
		}
	}

	file, err := os.OpenFile(keyPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return err
	}
	defer file.Close()

	return pem.Encode(file, &pem.Block{Type: pemTypePrivateKey, Bytes: x509Encoded})
}

func createIdentity(keyPath string) (*Identity, error) {
	id, err := Generate()
	if err != nil {
		return nil, err
	}
	if err := id.Save(keyPath); err != nil {
		return nil, err
	}
	return id, nil
}
