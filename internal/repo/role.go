package repo

import (
	"context"

	"github.com/pkg/errors"
	"gorm.io/gorm/clause"

	"github.com/Skotchmaster/storefront/internal/models"
)

func (r *GormRepo) RoleByName(ctx context.Context, name string) (*models.Role, error) {
	var role models.Role
	if err := r.db(ctx).Where("name = ?", name).First(&role).Error; err != nil {
		return nil, errors.Wrapf(err, "role %q", name)
	}
	return &role, nil
}

func (r *GormRepo) RoleByID(ctx context.Context, id uint) (*models.Role, error) {
	var role models.Role
	if err := r.db(ctx).First(&role, id).Error; err != nil {
		return nil, errors.Wrapf(err, "role %d", id)
	}
	return &role, nil
}

func (r *GormRepo) CreateRole(ctx context.Context, role *models.Role) error {
	if err := r.db(ctx).Create(role).Error; err != nil {
		return errors.Wrap(err, "create role")
	}
	return nil
}

// EnsureRole returns the role with the given name, creating it when missing.
func (r *GormRepo) EnsureRole(ctx context.Context, name string) (*models.Role, error) {
	role := models.Role{Name: name}
	if err := r.db(ctx).Where("name = ?", name).FirstOrCreate(&role).Error; err != nil {
		return nil, errors.Wrapf(err, "ensure role %q", name)
	}
	return &role, nil
}

func (r *GormRepo) EnsurePermission(ctx context.Context, name string) (*models.Permission, error) {
	perm := models.Permission{Name: name}
	if err := r.db(ctx).Where("name = ?", name).FirstOrCreate(&perm).Error; err != nil {
		return nil, errors.Wrapf(err, "ensure permission %q", name)
	}
	return &perm, nil
}

// ListRoles returns every role with its permission names filled in.
func (r *GormRepo) ListRoles(ctx context.Context) ([]models.Role, error) {
	var roles []models.Role
	if err := r.db(ctx).Order("id ASC").Find(&roles).Error; err != nil {
		return nil, errors.Wrap(err, "list roles")
	}

	type row struct {
		RoleID uint
		Name   string
	}
	var rows []row
	err := r.db(ctx).Table("role_permissions AS rp").
		Select("rp.role_id, p.name").
		Joins("JOIN permissions AS p ON p.id = rp.permission_id").
		Order("p.name ASC").
		Scan(&rows).Error
	if err != nil {
		return nil, errors.Wrap(err, "list role permissions")
	}

	byRole := make(map[uint][]string, len(roles))
	for _, rw := range rows {
		byRole[rw.RoleID] = append(byRole[rw.RoleID], rw.Name)
	}
	for i := range roles {
		roles[i].Permissions = byRole[roles[i].ID]
	}
	return roles, nil
}

func (r *GormRepo) GrantPermission(ctx context.Context, roleID, permissionID uint) error {
	err := r.db(ctx).Clauses(clause.OnConflict{DoNothing: true}).
		Create(&models.RolePermission{RoleID: roleID, PermissionID: permissionID}).Error
	if err != nil {
		return errors.Wrap(err, "grant permission")
	}
	return nil
}

// RevokePermission reports whether a grant was removed.
func (r *GormRepo) RevokePermission(ctx context.Context, roleID uint, permission string) (bool, error) {
	res := r.db(ctx).
		Where("role_id = ? AND permission_id IN (?)", roleID,
			r.db(ctx).Model(&models.Permission{}).Select("id").Where("name = ?", permission)).
		Delete(&models.RolePermission{})
	if res.Error != nil {
		return false, errors.Wrap(res.Error, "revoke permission")
	}
	return res.RowsAffected > 0, nil
}

func (r *GormRepo) RoleHasPermission(ctx context.Context, role, permission string) (bool, error) {
	var n int64
	err := r.db(ctx).Table("role_permissions AS rp").
		Joins("JOIN roles AS r ON r.id = rp.role_id").
		Joins("JOIN permissions AS p ON p.id = rp.permission_id").
		Where("r.name = ? AND p.name = ?", role, permission).
		Count(&n).Error
	if err != nil {
		return false, errors.Wrap(err, "check permission")
	}
	return n > 0, nil
}

func (r *GormRepo) SetUserRole(ctx context.Context, userID, roleID uint) error {
	res := r.db(ctx).Model(&models.User{}).Where("id = ?", userID).Update("role_id", roleID)
	if res.Error != nil {
		return errors.Wrapf(res.Error, "set role of user %d", userID)
	}
	if res.RowsAffected == 0 {
		return errors.Wrapf(gormNotFound, "user %d", userID)
	}
	return nil
}
