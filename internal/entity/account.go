package domain

import "github.com/shopspring/decimal"

type Role string

const (
	RoleCustomer Role = "customer"
	RoleAdmin    Role = "admin"
)

// SystemActor marks history entries written by message consumers.
const SystemActor = "system"

type Account struct {
	ID           string `json:"id" bson:"_id"`
	Email        string `json:"email" bson:"email"`
	PasswordHash string `json:"-" bson:"passwordHash"`
	Role         Role   `json:"role" bson:"role"`
	FirstName    string `json:"firstName" bson:"firstName"`
	LastName     string `json:"lastName" bson:"lastName"`
	Phone        string `json:"phone,omitempty" bson:"phone,omitempty"`
	Cart         Cart   `json:"cart" bson:"cart"`
}

// Principal is the authenticated caller of an operation.
type Principal struct {
	UserID string
	Role   Role
}

func (p Principal) IsAdmin() bool { return p.Role == RoleAdmin }

// CanView reports whether p may see (and therefore act on) an order owned by owner.
func (p Principal) CanView(owner string) bool {
	return p.IsAdmin() || (p.UserID != "" && p.UserID == owner)
}

type CartItem struct {
	ProductID string `json:"product" bson:"product"`
	Quantity  int    `json:"quantity" bson:"quantity"`
}

type Cart struct {
	Items []CartItem `json:"items" bson:"items"`
}

func (c Cart) Empty() bool { return len(c.Items) == 0 }

type Image struct {
	URL string `json:"url,omitempty" bson:"url,omitempty"`
	Alt string `json:"alt,omitempty" bson:"alt,omitempty"`
}

// Product is the catalog view the order processor consumes.
type Product struct {
	ID     string          `json:"id" bson:"_id"`
	Name   string          `json:"name" bson:"name"`
	Price  decimal.Decimal `json:"price" bson:"price"`
	Stock  int             `json:"stock" bson:"stock"`
	Active bool            `json:"isActive" bson:"isActive"`
	Image  Image           `json:"image" bson:"image"`
}
