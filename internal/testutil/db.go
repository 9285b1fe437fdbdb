package testutil

import (
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/Skotchmaster/storefront/internal/models"
	"github.com/Skotchmaster/storefront/pkg/hash"
)

// NewDB opens an isolated in-memory database with the full schema migrated.
func NewDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := "file:" + uuid.NewString() + "?mode=memory&cache=shared&_pragma=foreign_keys(1)"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, db.AutoMigrate(models.All()...))
	return db
}

func SeedRole(t *testing.T, db *gorm.DB, name string, perms ...string) models.Role {
	t.Helper()
	role := models.Role{Name: name}
	require.NoError(t, db.Create(&role).Error)
	for _, p := range perms {
		perm := models.Permission{Name: p}
		require.NoError(t, db.Where("name = ?", p).FirstOrCreate(&perm).Error)
		require.NoError(t, db.Create(&models.RolePermission{RoleID: role.ID, PermissionID: perm.ID}).Error)
	}
	return role
}

func SeedUser(t *testing.T, db *gorm.DB, username string, roleID uint) models.User {
	t.Helper()
	h, err := hash.HashPassword("password123")
	require.NoError(t, err)
	u := models.User{Username: username, PasswordHash: h, RoleID: roleID}
	require.NoError(t, db.Create(&u).Error)
	return u
}

func SeedProduct(t *testing.T, db *gorm.DB, name, price string, stock int) models.Product {
	t.Helper()
	p := models.Product{Name: name, Price: decimal.RequireFromString(price), Stock: stock}
	require.NoError(t, db.Create(&p).Error)
	return p
}

func Stock(t *testing.T, db *gorm.DB, productID uint) int {
	t.Helper()
	var p models.Product
	require.NoError(t, db.First(&p, productID).Error)
	return p.Stock
}
