package util

import (
	"crypto/rand"
	"errors"
	"fmt"
	"os"
)

const secretKeyBytes = 32

// DefaultJWTSecretKeyPath is where the signing key lives when no path is
// configured.
const DefaultJWTSecretKeyPath = "jwtsecret.key"

// LoadJWTSecretKey reads the token signing key from path. When the file does
// not exist a new random key is generated and written with mode 0600.
func LoadJWTSecretKey(path string) ([]byte, error) {
	if path == "" {
		path = DefaultJWTSecretKeyPath
	}
	key, err := os.ReadFile(path)
	if err == nil {
		if len(key) == 0 {
			return nil, fmt.Errorf("JWT secret key file %s is empty", path)
		}
		return key, nil
	}
	if !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to read JWT secret key: %w", err)
	}

	key = make([]byte, secretKeyBytes)
	if _, err := rand.Read(key); err != nil {
		return nil, fmt.Errorf("failed to generate random JWT secret key: %w", err)
	}
	if err := os.WriteFile(path, key, 0600); err != nil {
		return nil, fmt.Errorf("failed to write JWT secret key: %w", err)
	}
	return key, nil
}
