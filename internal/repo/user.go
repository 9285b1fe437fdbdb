package repo

import (
	"context"

	"github.com/pkg/errors"

	"github.com/Skotchmaster/storefront/internal/models"
)

func (r *GormRepo) CreateUser(ctx context.Context, u *models.User) error {
	if err := r.db(ctx).Omit("Role").Create(u).Error; err != nil {
		return errors.Wrap(err, "create user")
	}
	return nil
}

func (r *GormRepo) UserByUsername(ctx context.Context, username string) (*models.User, error) {
	var u models.User
	if err := r.db(ctx).Preload("Role").Where("username = ?", username).First(&u).Error; err != nil {
		return nil, errors.Wrapf(err, "user by username %q", username)
	}
	return &u, nil
}

func (r *GormRepo) UserByID(ctx context.Context, id uint) (*models.User, error) {
	var u models.User
	if err := r.db(ctx).Preload("Role").First(&u, id).Error; err != nil {
		return nil, errors.Wrapf(err, "user %d", id)
	}
	return &u, nil
}

func (r *GormRepo) UsernameTaken(ctx context.Context, username string, exceptID uint) (bool, error) {
	var n int64
	err := r.db(ctx).Model(&models.User{}).
		Where("username = ? AND id <> ?", username, exceptID).
		Count(&n).Error
	if err != nil {
		return false, errors.Wrap(err, "count usernames")
	}
	return n > 0, nil
}

// UpdateUser writes only the given columns.
func (r *GormRepo) UpdateUser(ctx context.Context, id uint, fields map[string]any) error {
	res := r.db(ctx).Model(&models.User{}).Where("id = ?", id).Updates(fields)
	if res.Error != nil {
		return errors.Wrapf(res.Error, "update user %d", id)
	}
	if res.RowsAffected == 0 {
		return errors.Wrapf(gormNotFound, "update user %d", id)
	}
	return nil
}

func (r *GormRepo) ListUsers(ctx context.Context, p Page) (int64, []models.User, error) {
	var total int64
	if err := r.db(ctx).Model(&models.User{}).Count(&total).Error; err != nil {
		return 0, nil, errors.Wrap(err, "count users")
	}
	var users []models.User
	if err := r.db(ctx).Preload("Role").Order("id ASC").Offset(p.Offset).Limit(p.Limit).Find(&users).Error; err != nil {
		return 0, nil, errors.Wrap(err, "list users")
	}
	return total, users, nil
}
