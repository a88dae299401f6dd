package models

import "database/sql"

// Role titles seeded at migration time.
const (
	RoleVendor = "vendor"
	RoleBuyer  = "buyer"
)

// Role is immutable reference data.
type Role struct {
	ID    int    `db:"id" json:"id"`
	Title string `db:"title" json:"title"`
}

// User represents a registered account. Balance is in cents and never goes
// negative; Token holds the last-issued auth token.
type User struct {
	ID       int            `db:"id" json:"id"`
	Username string         `db:"username" json:"username"`
	Password string         `db:"password" json:"-"` // bcrypt hash, never serialized
	Token    sql.NullString `db:"token" json:"-"`
	Balance  int            `db:"balance" json:"balance"`
	RoleID   int            `db:"role_id" json:"-"`
}

// PublicUser is the externally visible view of a User: no credential, no
// role foreign key, role title inlined.
type PublicUser struct {
	ID       int    `json:"id"`
	Username string `json:"username"`
	Balance  int    `json:"balance"`
	Role     string `json:"role"`
}

// Public builds the external view of the user given its resolved role title.
func (u *User) Public(roleTitle string) *PublicUser {
	return &PublicUser{
		ID:       u.ID,
		Username: u.Username,
		Balance:  u.Balance,
		Role:     roleTitle,
	}
}

// Product is a catalog entry owned by a vendor. Cost is in cents;
// AmountAvailable is the stock count and never goes negative.
type Product struct {
	ID              int    `db:"id" json:"id"`
	ProductName     string `db:"product_name" json:"product_name"`
	AmountAvailable int    `db:"amount_available" json:"amount_available"`
	Cost            int    `db:"cost" json:"cost"`
	SellerID        int    `db:"seller_id" json:"seller_id"`
}
