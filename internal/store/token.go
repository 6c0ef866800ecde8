package store

import (
	"context"
	"crypto/rand"
	"encoding/hex"
)

// EnsureAuthToken returns the stored API token, generating and saving one on
// first use.
func EnsureAuthToken(ctx context.Context, repo Repository) (string, error) {
	existing, err := repo.GetConfig(ctx, AuthTokenKey)
	if err == nil && existing != "" {
		return existing, nil
	}

	tokenBytes := make([]byte, 32)
	if _, err := rand.Read(tokenBytes); err != nil {
		return "", err
	}
	token := hex.EncodeToString(tokenBytes)

	if err := repo.SetConfig(ctx, AuthTokenKey, token); err != nil {
		return "", err
	}
	return token, nil
}
