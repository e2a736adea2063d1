package auth

import (
	"context"
	"errors"
	"strings"

	"plantkeeper/internal/blob"
)

// CurrentUserKey is the blob key holding the cached user id.
const CurrentUserKey = "device/current_user_id"

// IDCache persists the last signed-in user id so it survives restarts.
type IDCache struct {
	store blob.Store
}

// NewIDCache stores the id in store.
func NewIDCache(store blob.Store) *IDCache {
	return &IDCache{store: store}
}

// Load returns the cached id, or "" when nothing is cached.
func (c *IDCache) Load(ctx context.Context) (string, error) {
	data, err := blob.ReadAll(ctx, c.store, CurrentUserKey)
	if errors.Is(err, blob.ErrNotFound) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}

// Save replaces the cached id.
func (c *IDCache) Save(ctx context.Context, userID string) error {
	_, err := blob.PutBytes(ctx, c.store, CurrentUserKey, []byte(userID), "text/plain")
	return err
}

// Clear removes the cached id.
func (c *IDCache) Clear(ctx context.Context) error {
	_, err := c.store.Delete(ctx, CurrentUserKey)
	return err
}
