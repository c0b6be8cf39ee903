// package services defines HTTP clients for the yomi listening-history API
package services

import (
	"context"
	"fmt"
	"os"

	"github.com/desertthunder/yomi/internal/shared"
	"github.com/desertthunder/yomi/internal/store"
)

// TokenFunc returns the bearer token for the next request, or "" when the user is signed out.
type TokenFunc func(ctx context.Context) (string, error)

// StaticToken always returns token.
func StaticToken(token string) TokenFunc {
	return func(context.Context) (string, error) { return token, nil }
}

// StoreToken reads the token from s, preferring the YOMI_TOKEN environment variable when set.
func StoreToken(s store.Store) TokenFunc {
	return func(ctx context.Context) (string, error) {
		if v := os.Getenv(shared.EnvToken); v != "" {
			return v, nil
		}
		token, _, err := s.Get(ctx, store.TokenKey)
		if err != nil {
			return "", fmt.Errorf("failed to read token: %w", err)
		}
		return token, nil
	}
}
