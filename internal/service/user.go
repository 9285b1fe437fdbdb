package service

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/google/uuid"

	"github.com/Skotchmaster/storefront/internal/models"
	"github.com/Skotchmaster/storefront/internal/repo"
	"github.com/Skotchmaster/storefront/pkg/hash"
	"github.com/Skotchmaster/storefront/pkg/logging"
)

type UserService struct {
	Repo     *repo.GormRepo
	Uploader Uploader
	Events   EventPublisher
}

type ProfileUpdate struct {
	Username        *string
	Password        *string
	CurrentPassword string
}

func (s *UserService) Profile(ctx context.Context, userID uint) (*models.User, error) {
	u, err := s.Repo.UserByID(ctx, userID)
	if err != nil {
		if repo.IsNotFound(err) {
			return nil, fmt.Errorf("user %d: %w", userID, ErrNotFound)
		}
		return nil, err
	}
	return u, nil
}

// UpdateProfile changes the username and/or password. A password change
// requires the current password and revokes every refresh token of the user.
func (s *UserService) UpdateProfile(ctx context.Context, userID uint, upd ProfileUpdate) (*models.User, error) {
	if upd.Username == nil && upd.Password == nil {
		return nil, fmt.Errorf("nothing to update: %w", ErrValidation)
	}

	err := s.Repo.Tx(ctx, func(tx *repo.GormRepo) error {
		u, err := tx.UserByID(ctx, userID)
		if err != nil {
			if repo.IsNotFound(err) {
				return fmt.Errorf("user %d: %w", userID, ErrNotFound)
			}
			return err
		}

		fields := map[string]any{}
		if upd.Username != nil {
			name := strings.TrimSpace(*upd.Username)
			if name == "" {
				return fmt.Errorf("username must not be empty: %w", ErrValidation)
			}
			taken, err := tx.UsernameTaken(ctx, name, userID)
			if err != nil {
				return err
			}
			if taken {
				return fmt.Errorf("username %q: %w", name, ErrConflict)
			}
			fields["username"] = name
		}
		if upd.Password != nil {
			if !hash.CheckPassword(u.PasswordHash, upd.CurrentPassword) {
				return fmt.Errorf("current password does not match: %w", ErrForbidden)
			}
			h, err := hash.HashPassword(*upd.Password)
			if err != nil {
				return err
			}
			fields["password_hash"] = h
			if err := tx.RevokeUserRefresh(ctx, userID); err != nil {
				return err
			}
		}
		return tx.UpdateUser(ctx, userID, fields)
	})
	if err != nil {
		return nil, err
	}

	publish(ctx, s.Events, TopicUser, idKey(userID), Event{
		Type: "user.updated", UserID: userID,
		Data: map[string]any{"username_changed": upd.Username != nil, "password_changed": upd.Password != nil},
	})
	return s.Profile(ctx, userID)
}

func (s *UserService) UploadAvatar(ctx context.Context, userID uint, filename string, size int64, r io.Reader) (*models.User, error) {
	if s.Uploader == nil {
		return nil, fmt.Errorf("object storage is not configured: %w", ErrUnavailable)
	}
	contentType, r, err := readImage(r, size)
	if err != nil {
		return nil, err
	}
	if _, err := s.Profile(ctx, userID); err != nil {
		return nil, err
	}

	key := fmt.Sprintf("avatars/%d/%s%s", userID, uuid.NewString(), path.Ext(filename))
	url, err := s.Uploader.Upload(ctx, key, r, size, contentType)
	if err != nil {
		logging.FromContext(ctx).Error("avatar_upload_error", "user_id", userID, "key", key, "error", err)
		return nil, fmt.Errorf("upload avatar: %w", err)
	}
	if err := s.Repo.UpdateUser(ctx, userID, map[string]any{"avatar_url": url}); err != nil {
		return nil, err
	}
	return s.Profile(ctx, userID)
}
