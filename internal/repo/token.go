package repo

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/Skotchmaster/storefront/internal/models"
)

// SaveRefresh stores a refresh token by its hash, never the raw value.
func (r *GormRepo) SaveRefresh(ctx context.Context, t *models.RefreshToken) error {
	if err := r.db(ctx).Create(t).Error; err != nil {
		return errors.Wrap(err, "save refresh token")
	}
	return nil
}

func (r *GormRepo) LockRefreshByJTI(ctx context.Context, jti string) (*models.RefreshToken, error) {
	var t models.RefreshToken
	if err := r.db(ctx).Clauses(forUpdate()).Where("jti = ?", jti).First(&t).Error; err != nil {
		return nil, errors.Wrap(err, "refresh token by jti")
	}
	return &t, nil
}

// RevokeRefresh marks the token as used. Revoking twice is a no-op.
func (r *GormRepo) RevokeRefresh(ctx context.Context, jti string) error {
	err := r.db(ctx).Model(&models.RefreshToken{}).
		Where("jti = ?", jti).
		Update("revoked", true).Error
	return errors.Wrap(err, "revoke refresh token")
}

func (r *GormRepo) RevokeUserRefresh(ctx context.Context, userID uint) error {
	err := r.db(ctx).Model(&models.RefreshToken{}).
		Where("user_id = ? AND revoked = ?", userID, false).
		Update("revoked", true).Error
	return errors.Wrapf(err, "revoke refresh tokens of user %d", userID)
}

// PurgeRefresh drops tokens that expired before now.
func (r *GormRepo) PurgeRefresh(ctx context.Context, now time.Time) (int64, error) {
	res := r.db(ctx).Where("expires_at < ?", now.Unix()).Delete(&models.RefreshToken{})
	if res.Error != nil {
		return 0, errors.Wrap(res.Error, "purge refresh tokens")
	}
	return res.RowsAffected, nil
}
