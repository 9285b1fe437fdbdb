package handlers

import "github.com/shopspring/decimal"

type registerRequest struct {
	Username string `json:"username" validate:"required,min=3,max=64"`
	Password string `json:"password" validate:"required,min=8,max=128"`
}

type loginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type profileRequest struct {
	Username        *string `json:"username"         validate:"omitempty,min=3,max=64"`
	Password        *string `json:"password"         validate:"omitempty,min=8,max=128"`
	CurrentPassword string  `json:"current_password"`
}

type productRequest struct {
	Name        string          `json:"name"        validate:"required,max=200"`
	Description string          `json:"description" validate:"max=5000"`
	Price       decimal.Decimal `json:"price"`
	Stock       int             `json:"stock"       validate:"gte=0"`
}

type productPatchRequest struct {
	Name        *string          `json:"name"        validate:"omitempty,min=1,max=200"`
	Description *string          `json:"description" validate:"omitempty,max=5000"`
	Price       *decimal.Decimal `json:"price"`
	Stock       *int             `json:"stock"       validate:"omitempty,gte=0"`
}

// Quantity 0 means "one", as older clients never send it.
type addToCartRequest struct {
	ProductID uint `json:"product_id" validate:"required"`
	Quantity  int  `json:"quantity"   validate:"gte=0"`
}

type cartQuantityRequest struct {
	Quantity int `json:"quantity" validate:"gt=0"`
}

type captureRequest struct {
	OrderID         uint   `json:"order_id"          validate:"required"`
	ProviderOrderID string `json:"provider_order_id" validate:"required,max=64"`
}

type roleRequest struct {
	Name string `json:"name" validate:"required,max=64"`
}

type permissionRequest struct {
	Permission string `json:"permission" validate:"required"`
}

type assignRoleRequest struct {
	RoleID uint `json:"role_id" validate:"required"`
}
