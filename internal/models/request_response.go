package models

// Request models
type RegisterRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Role     string `json:"role"`
}

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type DepositRequest struct {
	Amount int `json:"amount" binding:"required"`
}

type AddProductRequest struct {
	Name   string `json:"name" binding:"required"`
	Cost   int    `json:"cost" binding:"required,gt=0"`
	Amount int    `json:"amount" binding:"required,gte=0"`
}

// UpdateProductRequest carries a partial update; nil fields are left as-is.
type UpdateProductRequest struct {
	Name   *string `json:"name"`
	Cost   *int    `json:"cost"`
	Amount *int    `json:"amount"`
}

type BuyRequest struct {
	Amount int `json:"amount" binding:"required"`
}

// Response models. Every body carries the documented envelope of
// user/product plus errors and form_errors.
type UserResponse struct {
	User       *PublicUser         `json:"user,omitempty"`
	Token      string              `json:"token,omitempty"`
	Errors     []string            `json:"errors,omitempty"`
	FormErrors map[string][]string `json:"form_errors,omitempty"`
}

type DepositResponse struct {
	User    *PublicUser `json:"user,omitempty"`
	Balance int         `json:"balance"`
	Errors  []string    `json:"errors,omitempty"`
}

type ResetResponse struct {
	Balance  int      `json:"balance"`
	Refunded []int    `json:"refunded"`
	Errors   []string `json:"errors,omitempty"`
}

type ProductResponse struct {
	Product    *Product            `json:"product,omitempty"`
	Errors     []string            `json:"errors,omitempty"`
	FormErrors map[string][]string `json:"form_errors,omitempty"`
}

type ProductListResponse struct {
	Products []Product `json:"products"`
	Errors   []string  `json:"errors,omitempty"`
}

type BuyResponse struct {
	Product           *Product            `json:"product,omitempty"`
	AmountPurchased   int                 `json:"amount_purchased"`
	TransactionAmount int                 `json:"transaction_amount"`
	Change            []int               `json:"change"`
	Errors            []string            `json:"errors,omitempty"`
	FormErrors        map[string][]string `json:"form_errors,omitempty"`
}

type ErrorResponse struct {
	Errors     []string            `json:"errors,omitempty"`
	FormErrors map[string][]string `json:"form_errors,omitempty"`
}

type HealthResponse struct {
	Status string `json:"status"`
}
