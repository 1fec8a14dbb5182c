package models

// User roles. Visitors browse without an account; affiliate visitors get one
// on their first OTP verification, same as buyers.
const (
	RoleBuyer  = "buyer"
	RoleSeller = "seller"
	RoleAdmin  = "admin"
)

// User represents an account on the storefront.
type User struct {
	BaseModel
	FirstName    string  `json:"first_name"`
	LastName     string  `json:"last_name"`
	DisplayName  string  `json:"display_name"`
	Phone        string  `gorm:"uniqueIndex" json:"phone"`
	Email        string  `json:"email"`
	Address      string  `json:"address"`
	Role         string  `gorm:"default:buyer" json:"role"`
	PasswordHash string  `json:"-"`
	IsVerified   bool    `json:"is_verified"`
	Orders       []Order `gorm:"foreignKey:UserID" json:"orders,omitempty"`
}
