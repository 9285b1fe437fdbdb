package models

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

const (
	PermProductsWrite = "products:write"
	PermOrdersRead    = "orders:read"
	PermOrdersShip    = "orders:ship"
	PermUsersRead     = "users:read"
	PermRolesManage   = "roles:manage"
)

// AllPermissions is the permission set granted to the admin role by the seeder.
var AllPermissions = []string{
	PermProductsWrite,
	PermOrdersRead,
	PermOrdersShip,
	PermUsersRead,
	PermRolesManage,
}

type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "pending"
	OrderStatusCancelled OrderStatus = "cancelled"
	OrderStatusShipped   OrderStatus = "shipped"
)

type Role struct {
	ID          uint     `gorm:"primaryKey;autoIncrement" json:"id"`
	Name        string   `gorm:"uniqueIndex;not null"     json:"name"`
	Permissions []string `gorm:"-"                        json:"permissions,omitempty"`
}

type Permission struct {
	ID   uint   `gorm:"primaryKey;autoIncrement" json:"id"`
	Name string `gorm:"uniqueIndex;not null"     json:"name"`
}

type RolePermission struct {
	RoleID       uint `gorm:"primaryKey"`
	PermissionID uint `gorm:"primaryKey"`
}

type User struct {
	ID           uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	Username     string    `gorm:"uniqueIndex;not null"     json:"username"`
	PasswordHash string    `gorm:"not null"                 json:"-"`
	RoleID       uint      `gorm:"not null;index"           json:"role_id"`
	Role         Role      `gorm:"foreignKey:RoleID"        json:"role"`
	AvatarURL    string    `gorm:"not null;default:''"      json:"avatar_url"`
	CreatedAt    time.Time `                                json:"created_at"`
}

type RefreshToken struct {
	ID        uint   `gorm:"primaryKey"            json:"id"`
	Token     string `gorm:"uniqueIndex;not null"  json:"-"`
	UserID    uint   `gorm:"index;not null"        json:"user_id"`
	JTI       string `gorm:"uniqueIndex;not null"  json:"jti"`
	ExpiresAt int64  `gorm:"not null"              json:"expires_at"`
	Revoked   bool   `gorm:"not null;default:false" json:"revoked"`
}

type Product struct {
	ID          uint            `gorm:"primaryKey;autoIncrement"     json:"id"`
	Name        string          `gorm:"not null"                     json:"name"`
	Description string          `gorm:"not null;default:''"          json:"description"`
	Price       decimal.Decimal `gorm:"type:numeric(12,2);not null"  json:"price"`
	Stock       int             `gorm:"not null;default:0"           json:"stock"`
	ImageURL    string          `gorm:"not null;default:''"          json:"image_url"`
	CreatedAt   time.Time       `                                    json:"created_at"`
	UpdatedAt   time.Time       `                                    json:"updated_at"`
}

type CartItem struct {
	ID        uint    `gorm:"primaryKey"                                      json:"id"`
	UserID    uint    `gorm:"uniqueIndex:idx_cart_user_product;not null"      json:"user_id"`
	ProductID uint    `gorm:"uniqueIndex:idx_cart_user_product;not null"      json:"product_id"`
	Product   Product `gorm:"foreignKey:ProductID"                            json:"product"`
	Quantity  int     `gorm:"not null;check:quantity > 0"                     json:"quantity"`
}

type Order struct {
	ID          uint            `gorm:"primaryKey"                   json:"id"`
	UserID      uint            `gorm:"index;not null"               json:"user_id"`
	ProductID   uint            `gorm:"index;not null"               json:"product_id"`
	Product     Product         `gorm:"foreignKey:ProductID"         json:"product"`
	Quantity    int             `gorm:"not null;check:quantity > 0"  json:"quantity"`
	TotalAmount decimal.Decimal `gorm:"type:numeric(12,2);not null"  json:"total_amount"`
	Status      OrderStatus     `gorm:"type:varchar(16);not null;index" json:"status"`
	CreatedAt   time.Time       `                                    json:"created_at"`
	UpdatedAt   time.Time       `                                    json:"updated_at"`
}

type Payment struct {
	ID              uint            `gorm:"primaryKey"                  json:"id"`
	OrderID         uint            `gorm:"uniqueIndex;not null"        json:"order_id"`
	UserID          uint            `gorm:"index;not null"              json:"user_id"`
	ProviderOrderID string          `gorm:"uniqueIndex;not null"        json:"provider_order_id"`
	CaptureID       string          `gorm:"not null;default:''"         json:"capture_id"`
	Amount          decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"amount"`
	Currency        string          `gorm:"type:varchar(3);not null"    json:"currency"`
	Status          string          `gorm:"not null"                    json:"status"`
	PayerEmail      string          `gorm:"not null;default:''"         json:"payer_email"`
	CreatedAt       time.Time       `                                   json:"created_at"`
}

// All lists every persisted model in migration order.
func All() []any {
	return []any{
		&Role{},
		&Permission{},
		&RolePermission{},
		&User{},
		&RefreshToken{},
		&Product{},
		&CartItem{},
		&Order{},
		&Payment{},
	}
}
