package imaging

import (
	"context"
	"fmt"
	"time"

	"plantkeeper/internal/blob"
)

// ContentType is the MIME type of every archived image.
const ContentType = "image/jpeg"

// PlantCoverKey is the blob key of a plant's cover image.
func PlantCoverKey(plantID string) string { return fmt.Sprintf("plants/%s/cover.jpg", plantID) }

// ProfileAvatarKey is the blob key of a profile picture.
func ProfileAvatarKey(profileID string) string {
	return fmt.Sprintf("profiles/%s/avatar.jpg", profileID)
}

// Archive stores encoded images in a blob store.
type Archive struct {
	store blob.Store
}

// NewArchive wraps store.
func NewArchive(store blob.Store) *Archive {
	return &Archive{store: store}
}

// Put writes jpeg under key, replacing any previous version.
func (a *Archive) Put(ctx context.Context, key string, jpeg []byte) error {
	if _, err := blob.PutBytes(ctx, a.store, key, jpeg, ContentType); err != nil {
		return fmt.Errorf("archive %s: %w", key, err)
	}
	return nil
}

// URL returns a read URL valid for expiry. Drivers without presigning return
// blob.ErrUnsupported.
func (a *Archive) URL(ctx context.Context, key string, expiry time.Duration) (string, error) {
	return a.store.PresignURL(ctx, key, blob.SignedURLOptions{Method: "GET", Expiry: expiry})
}
