package core

import (
	"context"
	"image"
	"time"

	"plantkeeper/internal/imaging"
	"plantkeeper/pkg/domain"
)

// ImageArchive mirrors encoded images outside the entity store.
type ImageArchive interface {
	Put(ctx context.Context, key string, jpeg []byte) error
	URL(ctx context.Context, key string, expiry time.Duration) (string, error)
}

// SetPlantCoverImage encodes img as JPEG and stores it on the plant.
func (s *Service) SetPlantCoverImage(ctx context.Context, plantID string, img image.Image) (domain.Plant, domain.Result, error) {
	data, err := imaging.Encode(img)
	if err != nil {
		return domain.Plant{}, domain.Result{}, err
	}
	updated, res, err := s.mutatePlant(ctx, "set_plant_cover_image", plantID, func(p *domain.Plant) error {
		p.CoverImage = data
		return nil
	})
	if err == nil {
		s.archiveImage(ctx, imaging.PlantCoverKey(plantID), data)
	}
	return updated, res, err
}

// SetPlantCoverImageBytes decodes an uploaded image of any registered format
// and stores it as the plant cover.
func (s *Service) SetPlantCoverImageBytes(ctx context.Context, plantID string, raw []byte) (domain.Plant, domain.Result, error) {
	img := imaging.Decode(raw)
	if img == nil {
		return domain.Plant{}, domain.Result{}, ErrInvalidImage
	}
	return s.SetPlantCoverImage(ctx, plantID, img)
}

// PlantCoverImage decodes the stored cover, falling back to a placeholder.
func (s *Service) PlantCoverImage(ctx context.Context, plantID string) (image.Image, error) {
	plant, err := s.GetPlant(ctx, plantID)
	if err != nil {
		return nil, err
	}
	return imaging.DecodeOrPlaceholder(plant.CoverImage), nil
}

// SetProfileImage encodes img as JPEG and stores it on the profile.
func (s *Service) SetProfileImage(ctx context.Context, profileID string, img image.Image) (domain.Profile, domain.Result, error) {
	data, err := imaging.Encode(img)
	if err != nil {
		return domain.Profile{}, domain.Result{}, err
	}
	updated, res, err := s.UpdateProfile(ctx, profileID, func(p *domain.Profile) error {
		p.ProfileImage = data
		return nil
	})
	if err == nil {
		s.archiveImage(ctx, imaging.ProfileAvatarKey(profileID), data)
	}
	return updated, res, err
}

// ImageURL returns a time-limited URL for an archived image key.
func (s *Service) ImageURL(ctx context.Context, key string, expiry time.Duration) (string, error) {
	if s.archive == nil {
		return "", ErrNoImageArchive
	}
	return s.archive.URL(ctx, key, expiry)
}

// archiveImage is best effort: the entity store already holds the bytes.
func (s *Service) archiveImage(ctx context.Context, key string, data []byte) {
	if s.archive == nil {
		return
	}
	if err := s.archive.Put(ctx, key, data); err != nil {
		s.logger.Error("archive image", "key", key, "error", err)
	}
}
