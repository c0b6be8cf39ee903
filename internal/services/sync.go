package services

import (
	"context"
	"fmt"

	"github.com/charmbracelet/log"

	"github.com/desertthunder/yomi/internal/models"
	"github.com/desertthunder/yomi/internal/shared"
	"github.com/desertthunder/yomi/internal/store"
)

// UserPoster posts a user profile to the API.
type UserPoster interface {
	SyncUser(ctx context.Context, user models.User) error
}

// UserSyncer registers the signed-in user with the API once per subject.
type UserSyncer struct {
	api    UserPoster
	store  store.Store
	logger *log.Logger
}

// NewUserSyncer creates a UserSyncer that records completed syncs in s.
func NewUserSyncer(api UserPoster, s store.Store, logger *log.Logger) *UserSyncer {
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	return &UserSyncer{api: api, store: s, logger: logger}
}

// Sync posts the user described by claims unless that subject was already synced. It reports whether a request
// was made. The flag is only recorded after the API accepts the user; with force the flag is ignored.
func (u *UserSyncer) Sync(ctx context.Context, claims *shared.TokenClaims, force bool) (bool, error) {
	if claims == nil || claims.Subject == "" {
		return false, fmt.Errorf("%w: token has no subject", shared.ErrNotAuthenticated)
	}

	key := store.SyncedKey(claims.Subject)
	if !force {
		done, err := store.IsSet(ctx, u.store, key)
		if err != nil {
			return false, err
		}
		if done {
			u.logger.Debug("user already synced", "sub", claims.Subject)
			return false, nil
		}
	}

	user := models.User{
		Auth0ID:      claims.Subject,
		Email:        claims.Email,
		Username:     claims.Nickname,
		ShowExplicit: 1,
		DarkMode:     0,
	}
	if err := u.api.SyncUser(ctx, user); err != nil {
		return true, fmt.Errorf("failed to sync user: %w", err)
	}

	if err := u.store.Set(ctx, key, "true"); err != nil {
		return true, err
	}
	u.logger.Info("user synced", "sub", claims.Subject)
	return true, nil
}
