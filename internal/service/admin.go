package service

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/Skotchmaster/storefront/internal/models"
	"github.com/Skotchmaster/storefront/internal/repo"
	"github.com/Skotchmaster/storefront/internal/util"
	"github.com/Skotchmaster/storefront/pkg/hash"
	"github.com/Skotchmaster/storefront/pkg/logging"
)

type AdminService struct {
	Repo *repo.GormRepo
}

// HasPermission backs the permission guard of admin routes.
func (s *AdminService) HasPermission(ctx context.Context, role, permission string) (bool, error) {
	return s.Repo.RoleHasPermission(ctx, role, permission)
}

func (s *AdminService) ListUsers(ctx context.Context, page, size int) (int64, []models.User, error) {
	offset, limit := util.Calculate(page, size)
	return s.Repo.ListUsers(ctx, repo.Page{Offset: offset, Limit: limit})
}

func (s *AdminService) ListRoles(ctx context.Context) ([]models.Role, error) {
	return s.Repo.ListRoles(ctx)
}

func (s *AdminService) CreateRole(ctx context.Context, name string) (*models.Role, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		return nil, fmt.Errorf("role name is required: %w", ErrValidation)
	}
	role := models.Role{Name: name}
	if err := s.Repo.CreateRole(ctx, &role); err != nil {
		if repo.IsDuplicate(err) {
			return nil, fmt.Errorf("role %q: %w", name, ErrConflict)
		}
		return nil, err
	}
	return &role, nil
}

func (s *AdminService) GrantPermission(ctx context.Context, roleID uint, permission string) error {
	if !slices.Contains(models.AllPermissions, permission) {
		return fmt.Errorf("unknown permission %q: %w", permission, ErrValidation)
	}
	return s.Repo.Tx(ctx, func(tx *repo.GormRepo) error {
		if _, err := tx.RoleByID(ctx, roleID); err != nil {
			if repo.IsNotFound(err) {
				return fmt.Errorf("role %d: %w", roleID, ErrNotFound)
			}
			return err
		}
		perm, err := tx.EnsurePermission(ctx, permission)
		if err != nil {
			return err
		}
		return tx.GrantPermission(ctx, roleID, perm.ID)
	})
}

func (s *AdminService) RevokePermission(ctx context.Context, roleID uint, permission string) error {
	ok, err := s.Repo.RevokePermission(ctx, roleID, permission)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("role %d has no permission %q: %w", roleID, permission, ErrNotFound)
	}
	return nil
}

func (s *AdminService) AssignRole(ctx context.Context, userID, roleID uint) (*models.User, error) {
	err := s.Repo.Tx(ctx, func(tx *repo.GormRepo) error {
		if _, err := tx.RoleByID(ctx, roleID); err != nil {
			if repo.IsNotFound(err) {
				return fmt.Errorf("role %d: %w", roleID, ErrNotFound)
			}
			return err
		}
		if err := tx.SetUserRole(ctx, userID, roleID); err != nil {
			if repo.IsNotFound(err) {
				return fmt.Errorf("user %d: %w", userID, ErrNotFound)
			}
			return err
		}
		// the new role applies to tokens issued from now on
		return tx.RevokeUserRefresh(ctx, userID)
	})
	if err != nil {
		return nil, err
	}
	return s.Repo.UserByID(ctx, userID)
}

// Seed creates the default roles and permissions, and an admin account when
// credentials are given. It is safe to run repeatedly.
func (s *AdminService) Seed(ctx context.Context, adminUsername, adminPassword string) error {
	l := logging.FromContext(ctx).With("svc", "admin.seed")

	return s.Repo.Tx(ctx, func(tx *repo.GormRepo) error {
		if _, err := tx.EnsureRole(ctx, models.RoleUser); err != nil {
			return err
		}
		admin, err := tx.EnsureRole(ctx, models.RoleAdmin)
		if err != nil {
			return err
		}
		for _, name := range models.AllPermissions {
			perm, err := tx.EnsurePermission(ctx, name)
			if err != nil {
				return err
			}
			if err := tx.GrantPermission(ctx, admin.ID, perm.ID); err != nil {
				return err
			}
		}

		if adminUsername == "" || adminPassword == "" {
			l.Info("seed_completed", "admin_user", false)
			return nil
		}
		existing, err := tx.UserByUsername(ctx, adminUsername)
		switch {
		case err == nil:
			if existing.RoleID != admin.ID {
				if err := tx.SetUserRole(ctx, existing.ID, admin.ID); err != nil {
					return err
				}
			}
		case repo.IsNotFound(err):
			h, err := hash.HashPassword(adminPassword)
			if err != nil {
				return err
			}
			if err := tx.CreateUser(ctx, &models.User{Username: adminUsername, PasswordHash: h, RoleID: admin.ID}); err != nil {
				return err
			}
		default:
			return err
		}
		l.Info("seed_completed", "admin_user", true, "username", adminUsername)
		return nil
	})
}
