package user

import (
	"context"
	"fmt"
	"log/slog"
	"mime/multipart"
	"path"

	"github.com/versecraft/api/pkg/file"
	"github.com/versecraft/api/pkg/logger"
)

// Profile returns the user's public account view.
func (s *Service) Profile(ctx context.Context, userID string) (*Profile, error) {
	u, err := s.store.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	p := u.Profile()
	return &p, nil
}

// UpdateProfile applies the provided name/bio changes and returns the
// updated view.
func (s *Service) UpdateProfile(ctx context.Context, userID string, upd ProfileUpdate) (*Profile, error) {
	u, err := s.store.UpdateProfile(ctx, userID, upd)
	if err != nil {
		return nil, err
	}
	p := u.Profile()
	return &p, nil
}

// UploadAvatar validates and stores a new avatar image, replacing any
// previous one. The stored path is keyed by user ID so re-uploads
// overwrite in place.
func (s *Service) UploadAvatar(ctx context.Context, userID string, fh *multipart.FileHeader) (*Profile, error) {
	u, err := s.store.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	if err := file.ValidateSize(fh, s.cfg.AvatarMaxSize); err != nil {
		return nil, ErrAvatarTooLarge
	}
	if err := file.ValidateMIMEType(fh, "image/jpeg", "image/png"); err != nil {
		return nil, ErrAvatarNotAnImage
	}

	ext := file.GetExtension(fh)
	stored, err := s.storage.Save(ctx, fh, path.Join("avatars", userID+ext))
	if err != nil {
		return nil, fmt.Errorf("user: store avatar: %w", err)
	}

	url := s.storage.URL(stored.RelativePath)
	if err := s.store.SetAvatarURL(ctx, userID, url); err != nil {
		return nil, err
	}

	s.log.InfoContext(ctx, "avatar updated",
		logger.UserID(userID),
		slog.String("path", stored.RelativePath))

	p := u.Profile()
	p.AvatarURL = url
	return &p, nil
}
